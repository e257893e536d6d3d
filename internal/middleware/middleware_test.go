package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/medical-assistant/pkg/logger"
)

func TestLogging_CorrelationID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	var seen string
	r := chi.NewRouter()
	r.Use(Logging(log))
	r.Get("/api/v1/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	req.Header.Set(CorrelationIDHeader, "corr-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "corr-1", seen)
	require.Equal(t, "corr-1", rec.Header().Get(CorrelationIDHeader))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "abc", fields["session_id"])
	require.EqualValues(t, http.StatusTeapot, fields["status"])
}

func TestLogging_GeneratesCorrelationID(t *testing.T) {
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, GetCorrelationID(r.Context()))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NotEmpty(t, rec.Header().Get(CorrelationIDHeader))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS("https://clinic.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://clinic.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "https://clinic.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessionRateLimit(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(SessionRateLimit(2, time.Minute))
		r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	})

	send := func(id string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/messages", nil))
		return rec.Code
	}

	require.Equal(t, http.StatusCreated, send("a"))
	require.Equal(t, http.StatusCreated, send("a"))
	require.Equal(t, http.StatusTooManyRequests, send("a"))
	require.Equal(t, http.StatusCreated, send("b"), "limits are per session")
}

func TestValidateMessageContent(t *testing.T) {
	require.NoError(t, ValidateMessageContent("I have a fever"))
	require.NoError(t, ValidateMessageContent(""), "blank input is reported by the session")
	require.Error(t, ValidateMessageContent(strings.Repeat("a", MaxMessageBytes+1)))
	require.Error(t, ValidateMessageContent("\xff\xfe"))
}

func TestValidateSessionID(t *testing.T) {
	require.NoError(t, ValidateSessionID("0190d6c2-6a2b-7cde-8f00-1234567890ab"))
	require.Error(t, ValidateSessionID("not-a-uuid"))
}

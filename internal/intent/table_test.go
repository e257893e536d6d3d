package intent

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTable_Validation(t *testing.T) {
	cases := []struct {
		name    string
		intents []Intent
		wantErr error
	}{
		{"empty table", nil, ErrEmptyTable},
		{"missing id", []Intent{{Patterns: []string{"a"}, Response: "r"}}, ErrInvalidIntent},
		{"no patterns", []Intent{{ID: "a", Response: "r"}}, ErrInvalidIntent},
		{"empty response", []Intent{{ID: "a", Patterns: []string{"a"}, Response: "  "}}, ErrInvalidIntent},
		{"blank pattern", []Intent{{ID: "a", Patterns: []string{"?!"}, Response: "r"}}, ErrInvalidIntent},
		{"duplicate id", []Intent{
			{ID: "a", Patterns: []string{"x"}, Response: "r"},
			{ID: "a", Patterns: []string{"y"}, Response: "r"},
		}, ErrInvalidIntent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTable(tc.intents...)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestNewTable_NormalizesPatterns(t *testing.T) {
	tbl, err := NewTable(Intent{ID: "breath", Patterns: []string{"Can't Breathe!"}, Response: "call"})
	require.NoError(t, err)

	in, ok := tbl.Match(Normalize("I CANT breathe"))
	require.True(t, ok)
	require.Equal(t, "breath", in.ID)
}

func TestMatch_FirstRegisteredWins(t *testing.T) {
	tbl, err := NewTable(
		Intent{ID: "first", Patterns: []string{"pain"}, Response: "first response"},
		Intent{ID: "second", Patterns: []string{"chest pain"}, Response: "second response"},
	)
	require.NoError(t, err)

	in, ok := tbl.Match(Normalize("I have chest pain"))
	require.True(t, ok)
	require.Equal(t, "first response", in.Response)

	reordered, err := NewTable(
		Intent{ID: "second", Patterns: []string{"chest pain"}, Response: "second response"},
		Intent{ID: "first", Patterns: []string{"pain"}, Response: "first response"},
	)
	require.NoError(t, err)

	in, ok = reordered.Match(Normalize("I have chest pain"))
	require.True(t, ok)
	require.Equal(t, "second response", in.Response)
}

func TestMatch_NoMatch(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)

	_, ok := tbl.Match(Normalize("asdkjasdkj"))
	require.False(t, ok)

	var nilTable *Table
	_, ok = nilTable.Match("fever")
	require.False(t, ok)
}

func TestDefault_MedicalIntents(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)
	require.Equal(t, 10, tbl.Len())

	fever, ok := tbl.Lookup("fever")
	require.True(t, ok)

	in, ok := tbl.Match(Normalize("I have a fever"))
	require.True(t, ok)
	require.Equal(t, fever.Response, in.Response)

	cases := map[string]string{
		"Book appointment":             "appointment",
		"Fever symptoms":               "fever",
		"Emergency contact":            "emergency",
		"Clinic hours":                 "clinic_hours",
		"I think I'm having a STROKE!": "emergency",
		"My head hurts":                "headache",
		"need a refill":                "medication",
		"Hello there":                  "greeting",
		"thanks a lot":                 "thanks",
		"fever since 24 hours":         "fever",
	}
	for input, want := range cases {
		in, ok := tbl.Match(Normalize(input))
		require.True(t, ok, "input=%q", input)
		require.Equal(t, want, in.ID, "input=%q", input)
	}
}

func TestDefault_EmergencyRegisteredFirst(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)

	intents := tbl.Intents()
	require.Equal(t, "emergency", intents[0].ID)

	// chest pain with a fever is still an emergency
	in, ok := tbl.Match(Normalize("fever and chest pain"))
	require.True(t, ok)
	require.Equal(t, "emergency", in.ID)
}

func TestIntents_ReturnsCopy(t *testing.T) {
	tbl, err := NewTable(Intent{ID: "a", Patterns: []string{"alpha"}, Response: "r"})
	require.NoError(t, err)

	got := tbl.Intents()
	got[0].Patterns[0] = "mutated"
	got[0].Response = "mutated"

	in, ok := tbl.Match("alpha")
	require.True(t, ok)
	require.Equal(t, "r", in.Response)
}

func TestLoadTable(t *testing.T) {
	src := `
intents:
  - id: one
    patterns: ["Alpha"]
    response: first
  - id: two
    patterns: ["beta", "gamma"]
    response: second
`
	tbl, err := LoadTable(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	in, ok := tbl.Match("gamma ray")
	require.True(t, ok)
	require.Equal(t, "two", in.ID)
}

func TestLoadTable_RejectsUnknownFields(t *testing.T) {
	src := `
intents:
  - id: one
    patterns: ["alpha"]
    response: first
    weight: 3
`
	_, err := LoadTable(strings.NewReader(src))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intents:\n  - id: x\n    patterns: [x-ray]\n    response: scan\n"), 0o600))

	tbl, err := LoadFile(path)
	require.NoError(t, err)

	in, ok := tbl.Match(Normalize("need an X-Ray"))
	require.True(t, ok)
	require.Equal(t, "scan", in.Response)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

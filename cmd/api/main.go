// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/medical-assistant/internal/config"
	"github.com/capitalize-ai/medical-assistant/internal/handler"
	"github.com/capitalize-ai/medical-assistant/internal/intent"
	"github.com/capitalize-ai/medical-assistant/internal/llm"
	"github.com/capitalize-ai/medical-assistant/internal/model"
	natsclient "github.com/capitalize-ai/medical-assistant/internal/nats"
	"github.com/capitalize-ai/medical-assistant/internal/resolver"
	"github.com/capitalize-ai/medical-assistant/internal/session"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("starting API server",
		zap.String("strategy", string(cfg.Strategy)),
		zap.String("backend", string(cfg.Backend)),
	)

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "medical-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	intents, err := loadIntents(cfg, log)
	if err != nil {
		return err
	}
	log.Info("intent table loaded", zap.Int("intents", intents.Current().Len()))

	// Hot reload is best effort: a watcher failure leaves the loaded table serving.
	if src, ok := intents.(*intent.FileSource); ok {
		g.Go(func() error {
			if err := src.Watch(ctx); err != nil {
				log.Warn("intent table hot reload disabled", zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					if err := src.Reload(); err != nil {
						log.Warn("intent table reload failed", zap.Error(err))
					}
				}
			}
		})
	}

	resolverOpts := []resolver.Option{
		resolver.WithStrategy(resolver.NewRuleBased(intents)),
	}

	// The remote strategy is offered whenever a backend is usable, so
	// clients may opt into it even when rules are the default.
	if remote, err := newRemoteStrategy(cfg, log); err != nil {
		if cfg.Strategy == model.StrategyRemote {
			return err
		}
		log.Info("remote replies disabled", zap.String("reason", err.Error()))
	} else {
		resolverOpts = append(resolverOpts, resolver.WithStrategy(remote))
	}

	var (
		observers []session.Observer
		readiness handler.ConnectionChecker
		journal   *natsclient.Journal
	)

	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer nc.Close()

		if err := natsclient.EnsureStream(ctx, nc.JetStream()); err != nil {
			return err
		}

		journal = natsclient.NewJournal(nc.JetStream(), log)
		observers = append(observers, journal)
		resolverOpts = append(resolverOpts, resolver.WithEvents(journal))
		readiness = nc
	}

	res := resolver.New(log, resolverOpts...)
	store := session.NewStore(cfg.Greeting, log, observers...)

	router := handler.NewRouter(handler.RouterConfig{
		Sessions:          handler.NewSessionHandler(store, res, cfg.Strategy, log),
		Messages:          handler.NewMessageHandler(store, res, log),
		Stream:            handler.NewStreamHandler(store, handler.DefaultHeartbeatInterval, log),
		Health:            handler.NewHealthHandler(readiness),
		Logger:            log,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g.Go(func() error {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Background delivery outlives the server so turns appended by the last
	// requests still reach the observers, and the journal stops only after
	// the store has handed it everything.
	storeCtx, stopStore := context.WithCancel(context.Background())
	defer stopStore()
	journalCtx, stopJournal := context.WithCancel(context.Background())
	defer stopJournal()

	g.Go(func() error {
		defer stopJournal()
		return store.Run(storeCtx)
	})
	if journal != nil {
		g.Go(func() error {
			return journal.Run(journalCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
		stopStore()
		return nil
	})

	err = g.Wait()
	log.Info("server stopped", zap.Int("sessions", store.Len()))
	return err
}

// loadIntents returns the built-in table, or a file-backed table when
// INTENTS_FILE is set.
func loadIntents(cfg *config.Config, log *logger.Logger) (intent.Source, error) {
	if cfg.IntentsFile == "" {
		table, err := intent.Default()
		if err != nil {
			return nil, err
		}
		return table, nil
	}

	src, err := intent.NewFileSource(cfg.IntentsFile, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load intents: %w", err)
	}
	return src, nil
}

func newRemoteStrategy(cfg *config.Config, log *logger.Logger) (*resolver.Remote, error) {
	var opts []llm.Option
	if cfg.EndpointURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.EndpointURL))
	}

	switch cfg.Backend {
	case llm.ProviderOpenAI, llm.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, errors.New("API_KEY not set")
		}
	}

	client, err := llm.NewClient(cfg.Backend, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	completer := llm.NewCompleter(client, cfg.CompletionTimeout, log)
	return resolver.NewRemote(completer, resolver.PromptConfig{
		SystemPrompt:    cfg.SystemPrompt,
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		MaxHistoryTurns: cfg.MaxHistoryTurns,
	}), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/at-ishikawa/mindbank/internal/auth"
	"github.com/at-ishikawa/mindbank/internal/books"
	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/bootstrap"
	"github.com/at-ishikawa/mindbank/internal/capture"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/config"
	"github.com/at-ishikawa/mindbank/internal/database"
	"github.com/at-ishikawa/mindbank/internal/dictionary"
	"github.com/at-ishikawa/mindbank/internal/inference/openai"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/metrics"
	"github.com/at-ishikawa/mindbank/internal/realtime"
	"github.com/at-ishikawa/mindbank/internal/security"
	"github.com/at-ishikawa/mindbank/internal/server"
	"github.com/at-ishikawa/mindbank/internal/session"
	"github.com/at-ishikawa/mindbank/internal/speech"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configFile      string
		debugMode       bool
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:           "mindbank-server",
		Short:         "Serve the mindbank RPC API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(newLogger(debugMode))
			if configFile == "" {
				configFile = os.Getenv("MINDBANK_CONFIG")
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("config.Load() > %w", err)
			}
			return run(cmd.Context(), cfg, shutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file (default: MINDBANK_CONFIG or ./config.yml)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", bootstrap.DefaultShutdownTimeout, "time allowed for a graceful shutdown")
	return cmd
}

func newLogger(debugMode bool) *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cfg *config.Config, shutdownTimeout time.Duration) error {
	if cfg.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY environment variable is required")
	}
	app := bootstrap.New(shutdownTimeout)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	repo, dictCache, err := openStorage(ctx, app, cfg)
	if err != nil {
		return err
	}

	openaiClient := openai.NewClient(cfg.OpenAI, recorder)
	app.AddCloser("openai", openaiClient)

	speechCache, err := speech.NewCache(openaiClient, speech.Options{
		Size:         cfg.Speech.CacheSize,
		DefaultVoice: cfg.Speech.DefaultVoice,
		Timeout:      cfg.Speech.Timeout,
		Recorder:     recorder,
	})
	if err != nil {
		return fmt.Errorf("speech.NewCache() > %w", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth.NewIssuer() > %w", err)
	}

	hub := realtime.NewHub()
	app.AddShutdownHook("realtime", func(context.Context) error {
		hub.Close()
		return nil
	})
	sanitizer := security.NewTextSanitizer()
	collections := collection.NewService(repo, hub, recorder)
	sessions := session.NewManager(collections, capture.Dependencies{
		Classifier: openaiClient,
		Sanitizer:  sanitizer,
		Recorder:   recorder,
		Timeout:    cfg.Capture.Timeout,
	}, openaiClient, cfg.Translation.DefaultLanguage)
	app.AddShutdownHook("sessions", func(context.Context) error {
		sessions.Close()
		return nil
	})

	handler, err := server.NewHandler(server.Dependencies{
		Issuer:      issuer,
		Sessions:    sessions,
		Collections: collections,
		Bookshelf:   bookshelf.NewService(collections, openaiClient, sanitizer),
		Speech:      speechCache,
		Books:       books.NewClient(cfg.Books, recorder),
		Dictionary:  dictionary.NewReader(cfg.Dictionaries.RapidAPI, dictCache),
		Covers:      security.NewCoverFetcher(cfg.Books.Timeout),
	})
	if err != nil {
		return fmt.Errorf("server.NewHandler() > %w", err)
	}
	router := server.NewRouter(handler, server.RouterOptions{
		CORS:      cfg.Server.CORS,
		RateLimit: cfg.Server.RateLimit,
		Gatherer:  registry,
		Logger:    slog.Default(),
	})
	app.AddShutdownHook("rate limiter", func(context.Context) error {
		router.RateLimiter.Stop()
		return nil
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	app.AddShutdownHook("http server", srv.Shutdown)

	return app.Run(ctx, func(ctx context.Context) error {
		var err error
		tls := cfg.Server.TLS
		slog.Info("starting server", "addr", srv.Addr, "storage", cfg.Storage.Driver, "tls", tls.CertFile != "")
		if tls.CertFile != "" {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
}

// openStorage returns the item repository and the dictionary cache for the
// configured driver. The MySQL connection is closed on shutdown.
func openStorage(ctx context.Context, app *bootstrap.App, cfg *config.Config) (item.Repository, dictionary.Cache, error) {
	if cfg.Storage.Driver != "mysql" {
		return item.NewMemoryRepository(), dictionary.NewFileCache(cfg.Dictionaries.RapidAPI.CacheDirectory), nil
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	app.AddCloser("database", db)
	return item.NewDBRepository(db), dictionary.NewDBCache(db), nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("database.Open() > %w", err)
	}
	if err := database.WaitReady(ctx, db, cfg.ReadyAttempts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database.WaitReady() > %w", err)
	}
	if err := database.RunMigrations(cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database.RunMigrations() > %w", err)
	}
	return db, nil
}

// Package bootstrap runs the server until a signal arrives and then shuts its
// parts down in reverse order of startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const DefaultShutdownTimeout = 15 * time.Second

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// App manages application lifecycle with graceful shutdown support.
type App struct {
	mu              sync.Mutex
	hooks           []hook
	shutdownTimeout time.Duration
	signals         []os.Signal
}

func New(shutdownTimeout time.Duration) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &App{
		shutdownTimeout: shutdownTimeout,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// AddShutdownHook registers fn to run on shutdown. Hooks run in reverse
// order of registration.
func (a *App) AddShutdownHook(name string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook{name: name, fn: fn})
}

// AddCloser registers a hook for anything with a Close method.
func (a *App) AddCloser(name string, closer interface{ Close() error }) {
	a.AddShutdownHook(name, func(context.Context) error {
		return closer.Close()
	})
}

// Run calls run and shuts down once it returns or a signal arrives. The error
// of run comes first, followed by any hook errors.
func (a *App) Run(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, a.signals...)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Default().Info("shutting down", "reason", context.Cause(ctx))
	case runErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer shutdownCancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			slog.Default().Error("shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

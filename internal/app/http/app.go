package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	logger     *slog.Logger
	httpServer *http.Server
	notify     chan error
}

func New(
	logger *slog.Logger,
	address string,
	timeout, idleTimeout time.Duration,
	handler http.Handler,
) *App {
	return &App{
		logger: logger,
		httpServer: &http.Server{
			Addr:         address,
			Handler:      handler,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			IdleTimeout:  idleTimeout,
		},
		notify: make(chan error, 1),
	}
}

// Start serves in the background. A listener failure is reported on Notify.
func (a *App) Start() {
	a.logger.Info("http server is running", slog.String("address", a.httpServer.Addr))

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.notify <- err
		}
		close(a.notify)
	}()
}

func (a *App) Notify() <-chan error {
	return a.notify
}

func (a *App) Stop() error {
	const op = "httpapp.Stop"

	a.logger.Info("stopping http server", slog.String("op", op))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Serve migrates the schema and runs the HTTP API until ctx ends or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Migrate(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: a.Config.HTTP.ReadHeaderTimeout,
		ReadTimeout:       a.Config.HTTP.ReadTimeout,
		WriteTimeout:      a.Config.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		a.Logger.InfoContext(ctx, "http server listening", "addr", server.Addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error

	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		a.Logger.ErrorContext(ctx, "http server failed", "error", serveErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, err)
	}

	a.Logger.InfoContext(shutdownCtx, "http server stopped")

	return serveErr
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/accounthub/auth-service/internal/infra/config"
)

// StartHTTPServer runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully with a 5 second deadline.
func StartHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}
	logger.Info("ctx cancelled, stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return errors.Wrap(err, "http server shutdown")
	}
	logger.Info("HTTP server stopped")
	return <-errCh
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"identity-core/internal/wire"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// APIServer serves app until ctx is cancelled, then drains requests and
// pending notifications.
func APIServer(ctx context.Context, app *wire.App, port string, log *zap.Logger) error {
	addr := fmt.Sprintf(":%s", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server running", zap.String("addr", "http://localhost"+addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := app.Service.Wait(shutdownCtx); err != nil {
		log.Warn("Pending notifications dropped", zap.Error(err))
	}
	return nil
}

package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.shutdownHTTPServer(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Wait for all goroutines
	a.wg.Wait()

	a.Close()

	a.logger.Info("application-shutdown-complete")

	return nil
}

// Close releases storage, caches and market snapshots. One-shot commands
// call it directly instead of Shutdown.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.cancel()

		if a.manifestCache != nil {
			a.manifestCache.Close()
		}

		if a.factory != nil {
			a.factory.Close()
		}

		if a.repo != nil {
			err := a.repo.Close()
			if err != nil {
				a.logger.Error("storage-close-error", zap.Error(err))
			}
		}
	})
}

func (a *App) shutdownHTTPServer(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

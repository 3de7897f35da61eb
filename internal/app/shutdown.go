package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops the application in dependency order: readiness flips
// first, then the serving surface closes, then the scan loop drains, and
// only then the sinks it was writing to.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	err = a.hub.Close()
	if err != nil {
		a.logger.Error("websocket-hub-close-error", zap.Error(err))
	}

	// Stop the scan loop and wait for it to finish the current tick
	// before closing the sinks it writes to.
	a.cancel()
	a.wg.Wait()

	err = a.csv.Close()
	if err != nil {
		a.logger.Error("csv-logger-close-error", zap.Error(err))
	}

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")

	return nil
}

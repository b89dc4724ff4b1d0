package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carwatch/internal/observability"
)

// GracefulShutdown возвращает context, отменяемый по SIGINT/SIGTERM.
// runTimeout > 0 ограничивает общее время работы.
func GracefulShutdown(logger *observability.Logger, runTimeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	if runTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, runTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

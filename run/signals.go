package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridge/alluvium/tlog"
	"go.uber.org/zap"
)

// handleSignals returns on the first termination signal, which shuts the task
// down and lets the pipeline drain. A second signal aborts the process
// without waiting for the drain to finish.
func handleSignals(ctx context.Context) error {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	select {
	case sig := <-signals:
		tlog.Get(ctx).Info("Received signal, draining", zap.Stringer("signal", sig))
		go func() {
			sig := <-signals
			tlog.Get(ctx).Warn("Received second signal, aborting", zap.Stringer("signal", sig))
			os.Exit(130)
		}()
		return nil
	case <-ctx.Done():
		signal.Stop(signals)
		return ctx.Err()
	}
}

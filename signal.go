package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second. The first signal cancels the running
// transfer so its partial file is cleaned up and its history row closed; a
// second one quits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(parent)

	go func() {
		defer signal.Stop(sigCh)
		watchSignals(parent, cancel, sigCh, logger, os.Exit)
	}()

	return ctx
}

// watchSignals cancels on the first value from sigCh and calls exit on the
// second. It returns once parent is done.
func watchSignals(
	parent context.Context, cancel context.CancelFunc, sigCh <-chan os.Signal,
	logger *slog.Logger, exit func(int),
) {
	select {
	case sig := <-sigCh:
		logger.Info("received signal, canceling transfer",
			slog.String("signal", sig.String()),
		)
		cancel()
	case <-parent.Done():
		cancel()
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("received second signal, forcing exit",
			slog.String("signal", sig.String()),
		)
		exit(1)
	case <-parent.Done():
	}
}

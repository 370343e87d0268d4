package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"icaltool/internal/cli"
	appLog "icaltool/internal/log"
)

func main() {
	// Root context with cancellation on SIGINT/SIGTERM; only --watch blocks
	// long enough to notice.
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	code := cli.New().Run(ctx, os.Args[1:])
	signal.Stop(sigCh)
	cancel()
	os.Exit(code)
}

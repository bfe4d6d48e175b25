//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/interpolis/tourpoule/internal/logger"
)

// watchSignals adjusts logging at runtime until ctx is done
func watchSignals(ctx context.Context, appLog logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == syscall.SIGUSR1 {
				toggleHTTPLogging(appLog)
			} else {
				cycleLogLevel(appLog)
			}
		}
	}
}

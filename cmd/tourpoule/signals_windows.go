//go:build windows

package main

import (
	"context"

	"github.com/interpolis/tourpoule/internal/logger"
)

// watchSignals is a no-op: Windows has no user signals
func watchSignals(ctx context.Context, appLog logger.Logger) {}

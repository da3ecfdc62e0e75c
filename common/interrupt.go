package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// InterruptContext returns a context canceled on the first interrupt signal.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
}

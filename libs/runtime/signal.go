package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled on SIGINT, SIGTERM and any extra signals. Every
// service waits on it before draining its servers and background workers.
func SignalContext(extra ...os.Signal) (context.Context, context.CancelFunc) {
	sigs := append([]os.Signal{syscall.SIGINT, syscall.SIGTERM}, extra...)
	return signal.NotifyContext(context.Background(), sigs...)
}

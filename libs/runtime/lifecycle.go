package runtime

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Stopper is one component to drain on shutdown.
type Stopper struct {
	Name string
	Stop func(context.Context) error
}

// Drain stops components in order, sharing one deadline of timeout. Every
// component is attempted; failures are logged and joined.
func Drain(logger *slog.Logger, timeout time.Duration, stoppers ...Stopper) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, s := range stoppers {
		if s.Stop == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Error("shutdown failed", "component", s.Name, "err", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("stopped", "component", s.Name)
	}
	return errors.Join(errs...)
}

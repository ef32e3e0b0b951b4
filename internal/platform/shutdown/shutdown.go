package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// NotifyContext is cancelled on SIGINT, SIGTERM or any extra signal.
func NotifyContext(parent context.Context, extra ...os.Signal) (context.Context, context.CancelFunc) {
	sigs := append([]os.Signal{syscall.SIGINT, syscall.SIGTERM}, extra...)
	return signal.NotifyContext(parent, sigs...)
}

// Step is one named teardown action. A nil Fn is skipped.
type Step struct {
	Name string
	Fn   func(context.Context) error
}

// Drain runs steps in order under a shared deadline. Every step runs even when an
// earlier one fails; failures are joined and prefixed with the step name.
func Drain(parent context.Context, timeout time.Duration, steps ...Step) error {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}
	var errs []error
	for _, s := range steps {
		if s.Fn == nil {
			continue
		}
		if err := s.Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

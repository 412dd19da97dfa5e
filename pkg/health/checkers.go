package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCount fails when more than limit goroutines are running, which
// usually means a leak.
func GoroutineCount(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds %d", n, limit)
		}
		return nil
	}
}

// Pinger is implemented by connection pools and clients that can probe
// their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks p.
func Ping(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

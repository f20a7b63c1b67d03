// Package util holds small helpers shared across the engine.
package util

import (
	"context"
	"time"
)

const maxBackoff = 30 * time.Second

// Retry runs fn up to max+1 times, doubling the backoff between
// attempts and honouring context cancellation. The last error is
// returned when every attempt fails.
func Retry(ctx context.Context, max int, backoff time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= max; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == max {
			break
		}
		wait := backoff * time.Duration(1<<attempt)
		if wait > maxBackoff {
			wait = maxBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

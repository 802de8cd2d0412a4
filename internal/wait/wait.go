// Package wait holds the suspension helpers shared by the lifecycle engine
// and the bootstrap handlers.
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errNotYet = errors.New("condition not met")

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Until polls cond every interval until it holds or ctx is done.
func Until(ctx context.Context, interval time.Duration, cond func() bool) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	return backoff.Retry(func() error {
		if cond() {
			return nil
		}
		return errNotYet
	}, b)
}

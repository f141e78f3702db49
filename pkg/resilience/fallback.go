// Package resilience provides the fallback chain that tries recognition
// engines in order until one succeeds.
package resilience

import (
	"context"
	"errors"
	"fmt"
)

// Attempt is one alternative in a fallback chain.
type Attempt struct {
	Name string
	Run  func(ctx context.Context) error
}

// Fallback tries alternatives in declared order and stops at the first
// success. Each alternative runs at most once; there is no retry.
type Fallback struct {
	Attempts []Attempt
	// OnFallback runs after a failed attempt when another one remains.
	OnFallback func(failed Attempt, err error)
}

// Do returns nil on the first success. When every alternative fails the
// errors come back joined in attempt order, each prefixed with its
// attempt name. Context cancellation stops the chain; a cancelled
// attempt never falls through to the next one.
func (f Fallback) Do(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(f.Attempts) == 0 {
		return errors.New("no attempts configured")
	}
	var failed []error
	for i, attempt := range f.Attempts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := attempt.Run(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		failed = append(failed, fmt.Errorf("%s: %w", attempt.Name, err))
		if f.OnFallback != nil && i < len(f.Attempts)-1 {
			f.OnFallback(attempt, err)
		}
	}
	return errors.Join(failed...)
}

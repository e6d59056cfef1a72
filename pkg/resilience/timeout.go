package resilience

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn under a deadline derived from ctx. fn must honour its
// context; Call does not abandon it. A non-positive timeout only
// propagates ctx.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := fn(callCtx)
	if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
		return v, fmt.Errorf("%s: deadline %v exceeded: %w", name, timeout, err)
	}
	return v, err
}

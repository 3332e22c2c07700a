package pool

import (
	"context"
	"fmt"
)

// waitUntil blocks until either the done channel is closed or ctx ends.
// It is used during graceful shutdown to wait for workers to drain the queue.
func waitUntil(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	default:
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

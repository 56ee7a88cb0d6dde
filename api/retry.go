package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/warp/frontdesk/cashdesk"
)

// readRetryDelay is the pause before the single retry of a read.
var readRetryDelay = 50 * time.Millisecond

// retryRead runs a naturally idempotent read and retries it exactly once
// when the store reports a transient failure. Business errors are returned
// as is. Never use it for open, close or confirm.
func retryRead[T any](ctx context.Context, op string, read func() (T, error)) (T, error) {
	out, err := read()
	if err == nil || !cashdesk.IsRetryable(err) {
		return out, err
	}

	slog.Warn("read failed, retrying once", "operation", op, "error", err)

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-time.After(readRetryDelay):
	}
	return read()
}

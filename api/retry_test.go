package api

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/frontdesk/cashdesk"
)

func fastRetry(t *testing.T) {
	t.Helper()
	prev := readRetryDelay
	readRetryDelay = time.Millisecond
	t.Cleanup(func() { readRetryDelay = prev })
}

func TestRetryRead_RetriesOnceOnBusyStore(t *testing.T) {
	fastRetry(t)

	calls := 0
	got, err := retryRead(context.Background(), "test", func() (int, error) {
		calls++
		if calls == 1 {
			return 0, fmt.Errorf("list shifts: %w", cashdesk.ErrStoreBusy)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestRetryRead_GivesUpAfterOneRetry(t *testing.T) {
	fastRetry(t)

	calls := 0
	_, err := retryRead(context.Background(), "test", func() (int, error) {
		calls++
		return 0, cashdesk.ErrStoreBusy
	})

	assert.ErrorIs(t, err, cashdesk.ErrStoreBusy)
	assert.Equal(t, 2, calls)
}

func TestRetryRead_BusinessErrorsNotRetried(t *testing.T) {
	fastRetry(t)

	calls := 0
	_, err := retryRead(context.Background(), "test", func() (cashdesk.Shift, error) {
		calls++
		return cashdesk.Shift{}, cashdesk.ErrShiftNotFound
	})

	assert.ErrorIs(t, err, cashdesk.ErrShiftNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryRead_CancelledContext(t *testing.T) {
	prev := readRetryDelay
	readRetryDelay = time.Hour
	t.Cleanup(func() { readRetryDelay = prev })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryRead(ctx, "test", func() (int, error) {
		calls++
		return 0, cashdesk.ErrStoreBusy
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"igavatar/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunPreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3, 0}

	// later items finish first so completion order differs from input order
	work := func(ctx context.Context, n int) (string, error) {
		time.Sleep(time.Duration(n) * 5 * time.Millisecond)
		return fmt.Sprintf("item-%d", n), nil
	}

	results := Run(context.Background(), items, work, 3)

	require.Len(t, results, len(items))
	for i, n := range items {
		assert.NoError(t, results[i].Err)
		assert.Equal(t, fmt.Sprintf("item-%d", n), results[i].Value)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	items := []string{"ok-1", "fail", "panic", "ok-2"}

	work := func(ctx context.Context, s string) (int, error) {
		switch s {
		case "fail":
			return 0, errors.New("boom")
		case "panic":
			panic("worker exploded")
		}
		return len(s), nil
	}

	results := Run(context.Background(), items, work, 2)

	require.Len(t, results, 4)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 4, results[0].Value)
	assert.EqualError(t, results[1].Err, "boom")
	require.Error(t, results[2].Err)
	assert.Contains(t, results[2].Err.Error(), "worker exploded")
	assert.NoError(t, results[3].Err)
	assert.Equal(t, 4, results[3].Value)
}

func TestRunEmptyInput(t *testing.T) {
	var calls atomic.Int32
	work := func(ctx context.Context, s string) (string, error) {
		calls.Add(1)
		return s, nil
	}

	results := Run(context.Background(), nil, work, 4)

	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRunBoundsConcurrency(t *testing.T) {
	tests := []struct {
		name        string
		items       int
		concurrency int
		wantMax     int32
	}{
		{"limited by concurrency", 20, 3, 3},
		{"limited by items", 2, 6, 2},
		{"zero concurrency runs serially", 5, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var active, peak atomic.Int32
			work := func(ctx context.Context, n int) (int, error) {
				cur := active.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				return n, nil
			}

			items := make([]int, tt.items)
			results := Run(context.Background(), items, work, tt.concurrency)

			require.Len(t, results, tt.items)
			assert.LessOrEqual(t, peak.Load(), tt.wantMax)
			assert.GreaterOrEqual(t, peak.Load(), int32(1))
		})
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	work := func(ctx context.Context, n int) (int, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return n, nil
	}

	results := Run(ctx, []int{1, 2, 3, 4, 5}, work, 1)

	require.Len(t, results, 5)
	assert.NoError(t, results[0].Err)
	for _, r := range results[1:] {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunWithLoggerLogsFailures(t *testing.T) {
	log := logger.NewTestLogger()
	work := func(ctx context.Context, n int) (int, error) {
		if n%2 == 0 {
			return 0, errors.New("even")
		}
		return n, nil
	}

	results := RunWithLogger(context.Background(), []int{1, 2, 3}, work, 2, log)

	require.Len(t, results, 3)
	assert.Error(t, results[1].Err)
	assert.Len(t, log.GetMessagesByLevel("DEBUG"), len(log.GetMessages()))
	assert.True(t, log.HasMessage("Batch item failed"))
	assert.True(t, log.HasMessage("Batch workers finished"))
}

func TestPoolSize(t *testing.T) {
	assert.Equal(t, 1, PoolSize(0, 10))
	assert.Equal(t, 1, PoolSize(5, 0))
	assert.Equal(t, 2, PoolSize(2, 10))
	assert.Equal(t, 3, PoolSize(6, 3))
}

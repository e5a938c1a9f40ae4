package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startQueue(t *testing.T, cfg Config, register func(q *Queue)) *Queue {
	t.Helper()
	q := NewQueue(cfg, zaptest.NewLogger(t))
	register(q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q
}

func TestQueueDeliversParams(t *testing.T) {
	var mu sync.Mutex
	var got []map[string]string

	q := startQueue(t, Config{Workers: 2, Size: 8, MaxAttempts: 1}, func(q *Queue) {
		q.Handle("/tasks/echo", func(ctx context.Context, params map[string]string) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, params)
			return nil
		})
	})

	params := map[string]string{"email": "a@example.com"}
	require.NoError(t, q.Enqueue("/tasks/echo", params))
	params["email"] = "mutated"

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "a@example.com", got[0]["email"])
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	q := startQueue(t, Config{Workers: 1, Size: 8, MaxAttempts: 5, InitialBackoff: time.Millisecond}, func(q *Queue) {
		q.Handle("/tasks/flaky", func(ctx context.Context, params map[string]string) error {
			if calls.Add(1) < 3 {
				return errors.New("not yet")
			}
			return nil
		})
	})

	require.NoError(t, q.Enqueue("/tasks/flaky", nil))
	assert.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	q := startQueue(t, Config{Workers: 1, Size: 8, MaxAttempts: 2, InitialBackoff: time.Millisecond}, func(q *Queue) {
		q.Handle("/tasks/broken", func(ctx context.Context, params map[string]string) error {
			calls.Add(1)
			panic("handler bug")
		})
	})

	require.NoError(t, q.Enqueue("/tasks/broken", nil))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueuePermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	q := startQueue(t, Config{Workers: 1, Size: 8, MaxAttempts: 5, InitialBackoff: time.Millisecond}, func(q *Queue) {
		q.Handle("/tasks/bad-input", func(ctx context.Context, params map[string]string) error {
			calls.Add(1)
			return Permanent(errors.New("malformed key"))
		})
	})

	require.NoError(t, q.Enqueue("/tasks/bad-input", nil))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnqueueFailures(t *testing.T) {
	q := NewQueue(Config{Workers: 1, Size: 1}, zaptest.NewLogger(t))
	q.Handle("/tasks/noop", func(ctx context.Context, params map[string]string) error { return nil })

	assert.Error(t, q.Enqueue("/tasks/unknown", nil))

	require.NoError(t, q.Enqueue("/tasks/noop", nil))
	assert.ErrorIs(t, q.Enqueue("/tasks/noop", nil), ErrQueueFull)

	q.Close()
	assert.ErrorIs(t, q.Enqueue("/tasks/noop", nil), ErrQueueClosed)
}

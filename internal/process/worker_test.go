package process

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendforge/importer/internal/database"
	"trendforge/importer/internal/queue"
)

type scriptedProcessor struct {
	mu       sync.Mutex
	failing  map[int64]bool
	attempts map[int64]int
}

func (s *scriptedProcessor) ProcessItem(ctx context.Context, trendID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[trendID]++
	if s.failing[trendID] {
		return retryable(trendID, errors.New("upstream unavailable"))
	}
	return nil
}

func (s *scriptedProcessor) count(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[id]
}

func newQueue(t *testing.T, ids ...int64) queue.Queue {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "worker.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q := queue.NewDBQueue(db)
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), id))
	}
	return q
}

func TestWorkerRetriesOnlyTheFailingItem(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, 1, 2, 3)
	p := &scriptedProcessor{failing: map[int64]bool{2: true}, attempts: map[int64]int{}}

	w := NewWorker(p, q, WorkerOptions{WorkerCount: 2, Lease: time.Minute, RetryDelay: time.Hour, MaxAttempts: 3})
	w.Drain(ctx)

	assert.Equal(t, 1, p.count(1))
	assert.Equal(t, 1, p.count(2))
	assert.Equal(t, 1, p.count(3))

	processed, retried, abandoned := w.Stats()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(1), retried)
	assert.Zero(t, abandoned)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "failed trend stays queued for a later attempt")
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, 7)
	p := &scriptedProcessor{failing: map[int64]bool{7: true}, attempts: map[int64]int{}}

	w := NewWorker(p, q, WorkerOptions{WorkerCount: 1, Lease: time.Minute, RetryDelay: 0, MaxAttempts: 3})
	w.Drain(ctx)

	assert.Equal(t, 3, p.count(7))
	_, retried, abandoned := w.Stats()
	assert.Equal(t, int64(2), retried)
	assert.Equal(t, int64(1), abandoned)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	q := newQueue(t, 1)
	p := &scriptedProcessor{failing: map[int64]bool{}, attempts: map[int64]int{}}
	w := NewWorker(p, q, WorkerOptions{WorkerCount: 2, Lease: time.Minute, PollInterval: 10 * time.Millisecond, MaxAttempts: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.count(1) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	processed, _, _ := w.Stats()
	assert.Equal(t, int64(1), processed)
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/cache"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeFinisher struct {
	mu       sync.Mutex
	finished []uuid.UUID
	fail     map[uuid.UUID]error
	expired  []int
	sweeps   int
}

func (f *fakeFinisher) ForceFinish(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[id]; err != nil {
		return false, err
	}
	f.finished = append(f.finished, id)
	return true, nil
}

func (f *fakeFinisher) ForceFinishExpired(context.Context, time.Time, int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	if len(f.expired) == 0 {
		return 0, nil
	}
	n := f.expired[0]
	f.expired = f.expired[1:]
	return n, nil
}

func newTestIndex(t *testing.T) *cache.DeadlineIndex {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewDeadlineIndex(rdb)
}

func TestExpiryWorkerClaimDue(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	now := time.Unix(1_700_000_000, 0)

	due, notFound, broken, later := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{due, notFound, broken} {
		if err := idx.Track(ctx, id, now.Add(-time.Minute)); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	if err := idx.Track(ctx, later, now.Add(time.Hour)); err != nil {
		t.Fatalf("Track: %v", err)
	}

	fin := &fakeFinisher{fail: map[uuid.UUID]error{
		notFound: service.ErrAttemptNotFound,
		broken:   errors.New("connection reset"),
	}}
	w := NewExpiryWorker(idx, fin, 0, zerolog.Nop())
	w.now = func() time.Time { return now }

	if closed := w.claimDue(ctx); closed != 1 {
		t.Fatalf("closed = %d, want 1", closed)
	}
	if len(fin.finished) != 1 || fin.finished[0] != due {
		t.Fatalf("finished = %v", fin.finished)
	}

	// The failed attempt is requeued, the missing one is dropped, the
	// future one is untouched.
	left, err := idx.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if left != 2 {
		t.Fatalf("index size = %d, want 2", left)
	}

	delete(fin.fail, broken)
	if closed := w.claimDue(ctx); closed != 1 {
		t.Fatalf("retry closed = %d, want 1", closed)
	}
	if fin.finished[1] != broken {
		t.Fatalf("retry finished %v", fin.finished[1])
	}
}

func TestExpiryWorkerSweepDrainsFullBatches(t *testing.T) {
	fin := &fakeFinisher{expired: []int{ExpirySweepBatch, ExpirySweepBatch, 3}}
	w := NewExpiryWorker(newTestIndex(t), fin, time.Minute, zerolog.Nop())

	if total := w.sweep(context.Background()); total != 2*ExpirySweepBatch+3 {
		t.Fatalf("total = %d", total)
	}
	if fin.sweeps != 3 {
		t.Fatalf("sweeps = %d, want 3", fin.sweeps)
	}
}

func TestExpiryWorkerStopsOnCancel(t *testing.T) {
	fin := &fakeFinisher{}
	w := NewExpiryWorker(newTestIndex(t), fin, time.Hour, zerolog.Nop())
	w.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	fin.mu.Lock()
	defer fin.mu.Unlock()
	if fin.sweeps != 1 {
		t.Fatalf("startup sweeps = %d, want 1", fin.sweeps)
	}
}

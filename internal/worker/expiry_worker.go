package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/rs/zerolog"
)

const (
	ExpiryClaimBatch   = 100
	ExpirySweepBatch   = 200
	ExpiryPollInterval = 1 * time.Second
)

// DueIndex is the Redis sorted set of open attempts keyed by deadline.
type DueIndex interface {
	ClaimDue(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error)
	Track(ctx context.Context, attemptID uuid.UUID, endsAt time.Time) error
}

// AttemptFinisher closes attempts whose time limit has run out.
type AttemptFinisher interface {
	ForceFinish(ctx context.Context, attemptID uuid.UUID) (bool, error)
	ForceFinishExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ExpiryWorker closes timed attempts once their deadline passes, even when
// the student never comes back. Due attempts are popped from the Redis index
// every poll; a slower Postgres sweep catches anything the index missed.
type ExpiryWorker struct {
	index         DueIndex
	attempts      AttemptFinisher
	pollInterval  time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

func NewExpiryWorker(index DueIndex, attempts AttemptFinisher, sweepInterval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		index:         index,
		attempts:      attempts,
		pollInterval:  ExpiryPollInterval,
		sweepInterval: sweepInterval,
		now:           time.Now,
		log:           log.With().Str("component", "expiry_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled. A non-positive sweep interval disables
// the Postgres sweep.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().
		Dur("poll_interval", w.pollInterval).
		Dur("sweep_interval", w.sweepInterval).
		Msg("ExpiryWorker started")

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()

	var sweepC <-chan time.Time
	if w.sweepInterval > 0 {
		sweep := time.NewTicker(w.sweepInterval)
		defer sweep.Stop()
		sweepC = sweep.C

		// Catch up on anything that expired while the server was down.
		w.sweep(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-poll.C:
			w.claimDue(ctx)
		case <-sweepC:
			w.sweep(ctx)
		}
	}
}

// ----------------------------------------------------------------
// Redis index
// ----------------------------------------------------------------

func (w *ExpiryWorker) claimDue(ctx context.Context) int {
	ids, err := w.index.ClaimDue(ctx, w.now(), ExpiryClaimBatch)
	if err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("ClaimDue error")
	}

	closed := 0
	for _, id := range ids {
		ok, err := w.attempts.ForceFinish(ctx, id)
		switch {
		case err == nil:
			if ok {
				closed++
			}
		case errors.Is(err, service.ErrAttemptNotFound):
			// Deleted underneath us; nothing left to close.
		default:
			if ctx.Err() != nil {
				return closed
			}
			w.log.Error().Err(err).Str("attempt_id", id.String()).Msg("ForceFinish failed, requeueing")
			// Due again on the next poll.
			if err := w.index.Track(ctx, id, w.now()); err != nil {
				w.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Requeue failed, left to the sweep")
			}
		}
	}

	if closed > 0 {
		w.log.Info().Int("closed", closed).Msg("Expired attempts closed from index")
	}
	return closed
}

// ----------------------------------------------------------------
// Postgres sweep fallback
// ----------------------------------------------------------------

func (w *ExpiryWorker) sweep(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		closed, err := w.attempts.ForceFinishExpired(ctx, w.now(), ExpirySweepBatch)
		total += closed
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Expiry sweep failed")
			}
			break
		}
		if closed < ExpirySweepBatch {
			break
		}
	}

	if total > 0 {
		w.log.Warn().Int("closed", total).Msg("Expiry sweep closed attempts missing from the index")
	}
	return total
}

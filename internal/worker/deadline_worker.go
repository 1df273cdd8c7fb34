package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// SweepBatchSize bounds how many expired sessions one sweep handles; the
// rest are picked up by the next tick.
const SweepBatchSize = 100

// ExpiredLister finds IN_PROGRESS sessions whose deadline has passed.
type ExpiredLister interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error)
}

// Submitter drives a session to its terminal state. Submitting a session
// that is already terminal is a no-op, so the watchdog can race with
// student-driven submits safely.
type Submitter interface {
	Submit(ctx context.Context, sessionID uuid.UUID, trigger model.SubmitTrigger) (*model.SubmitResult, error)
}

// DeadlineWorker is the auto-submit watchdog. It periodically sweeps for
// sessions past their deadline and timeout-submits them, catching clients
// that disappeared without ever making another call.
type DeadlineWorker struct {
	sessions  ExpiredLister
	submitter Submitter
	interval  time.Duration
	log       zerolog.Logger
}

func NewDeadlineWorker(sessions ExpiredLister, submitter Submitter, interval time.Duration, log zerolog.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		sessions:  sessions,
		submitter: submitter,
		interval:  interval,
		log:       log.With().Str("component", "deadline_worker").Logger(),
	}
}

func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("DeadlineWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("DeadlineWorker stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep timeout-submits every expired session it can find, up to the batch
// limit. Errors on individual sessions are logged and skipped; the session
// stays expired and the next sweep retries it.
func (w *DeadlineWorker) Sweep(ctx context.Context) {
	expired, err := w.sessions.ListExpired(ctx, time.Now(), SweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("list expired sessions")
		return
	}
	if len(expired) == 0 {
		return
	}

	submitted := 0
	for _, sess := range expired {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.submitter.Submit(ctx, sess.ID, model.TriggerTimeout); err != nil {
			w.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("timeout submit failed")
			continue
		}
		submitted++
	}
	w.log.Info().Int("expired", len(expired)).Int("submitted", submitted).Msg("deadline sweep complete")
}

package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// SecurityLogWorker drains the audit queue filled by the auth hot path and
// persists device-binding violations in batches, so a rejected login never
// waits on a database write.
type SecurityLogWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewSecurityLogWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SecurityLogWorker {
	return &SecurityLogWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "security_log_worker").Logger(),
	}
}

func (w *SecurityLogWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SecurityLogWorker started")

	buffer := make([]*model.SecurityLogJob, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlush = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.QueueKey.SecurityLogQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}
		var job model.SecurityLogJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, &job)
	}
}

// flushSafe attempts bulk insert, then falls back to row-by-row with requeue.
func (w *SecurityLogWorker) flushSafe(ctx context.Context, batch []*model.SecurityLogJob) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *SecurityLogWorker) bulkInsert(ctx context.Context, batch []*model.SecurityLogJob) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, job := range batch {
		studentID, err := uuid.Parse(job.StudentID)
		if err != nil {
			// Trigger the fallback, which handles the bad row individually.
			return err
		}
		rows = append(rows, []interface{}{
			studentID, job.RollNumber, job.EventType,
			job.ExpectedFingerprint, job.ActualFingerprint, job.Details,
			time.Unix(job.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"security_logs"},
		[]string{"student_id", "roll_number", "event_type", "expected_fingerprint", "actual_fingerprint", "details", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *SecurityLogWorker) fallbackInsert(ctx context.Context, batch []*model.SecurityLogJob) {
	requeueList := make([]*model.SecurityLogJob, 0)

	for _, job := range batch {
		studentID, err := uuid.Parse(job.StudentID)
		if err != nil {
			w.log.Error().Str("student_id", job.StudentID).Msg("Dropping audit record with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO security_logs (student_id, roll_number, event_type, expected_fingerprint, actual_fingerprint, details, created_at)
             VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			studentID, job.RollNumber, job.EventType,
			job.ExpectedFingerprint, job.ActualFingerprint, job.Details,
			time.Unix(job.Timestamp, 0),
		)
		if err != nil {
			w.log.Error().Err(err).Str("roll_number", job.RollNumber).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, job)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *SecurityLogWorker) requeue(ctx context.Context, items []*model.SecurityLogJob) {
	pipe := w.rdb.Pipeline()
	for _, job := range items {
		data, _ := json.Marshal(job)
		pipe.RPush(ctx, config.QueueKey.SecurityLogQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue audit records. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed audit records")
	// Avoid thrashing if the DB is down hard.
	time.Sleep(2 * time.Second)
}

func (w *SecurityLogWorker) shutdown(buffer []*model.SecurityLogJob) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

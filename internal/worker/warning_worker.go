package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sinovhub/sinov-backend/internal/config"
	"github.com/sinovhub/sinov-backend/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// WarningWorker consumes persist_warnings_queue and bulk-inserts proctoring
// events into the session_warnings audit table. The counter that locks a
// session lives in the request path; this worker only records the trail.
type WarningWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewWarningWorker creates a new WarningWorker.
func NewWarningWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *WarningWorker {
	return &WarningWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "warning_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *WarningWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]*model.WarningEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// Flush when the batch is full or old enough.
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistWarningsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check flush timer
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

		var event model.WarningEvent
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed warning event")
			continue
		}

		buffer = append(buffer, &event)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *WarningWorker) flushSafe(ctx context.Context, batch []*model.WarningEvent) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *WarningWorker) bulkInsert(ctx context.Context, batch []*model.WarningEvent) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, e := range batch {
		rows = append(rows, []interface{}{
			e.SessionID, e.StudentID, e.WarningType, e.Message, e.OccurredAt,
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"session_warnings"},
		[]string{"session_id", "student_id", "warning_type", "message", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *WarningWorker) fallbackInsert(ctx context.Context, batch []*model.WarningEvent) {
	requeueList := make([]*model.WarningEvent, 0)

	for _, e := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO session_warnings (session_id, student_id, warning_type, message, occurred_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.SessionID, e.StudentID, e.WarningType, e.Message, e.OccurredAt,
		)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", e.SessionID.String()).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, e)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *WarningWorker) requeue(ctx context.Context, items []*model.WarningEvent) {
	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, _ := json.Marshal(e)
		pipe.RPush(ctx, config.WorkerKey.PersistWarningsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Back off if the database is down hard.
		time.Sleep(2 * time.Second)
	}
}

func (w *WarningWorker) shutdown(buffer []*model.WarningEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

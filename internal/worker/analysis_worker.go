package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/repository"
)

const (
	AnalysisBatchSize    = 50
	AnalysisBatchTimeout = 2 * time.Second
	AnalysisPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AnalysisWorker drains persist_analysis_queue and writes analyses that
// could not be stored inline (e.g. during a database outage) to PostgreSQL.
type AnalysisWorker struct {
	subRepo *repository.AnalyzedSubmissionRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewAnalysisWorker creates a new AnalysisWorker.
func NewAnalysisWorker(subRepo *repository.AnalyzedSubmissionRepository, rdb *redis.Client, log zerolog.Logger) *AnalysisWorker {
	return &AnalysisWorker{
		subRepo: subRepo,
		rdb:     rdb,
		log:     log.With().Str("component", "analysis_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnalysisWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AnalysisWorker started")

	batch := make([]*model.AnalyzedSubmission, 0, AnalysisBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= AnalysisBatchSize || time.Since(lastFlush) >= AnalysisBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, AnalysisPollTimeout, config.WorkerKey.PersistAnalysisQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(3 * time.Second)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var a model.AnalyzedSubmission
			if err := json.Unmarshal([]byte(item[1]), &a); err != nil {
				// Malformed JSON cannot be retried. Log and discard.
				w.log.Error().Err(err).Str("data", item[1]).Msg("Discarding malformed analysis payload")
				continue
			}

			batch = append(batch, &a)
		}
	}
}

// flushSafe persists each analysis, requeueing only genuine failures.
// Already-stored sessions are dropped silently — the queue may replay an
// analysis that was also written inline.
func (w *AnalysisWorker) flushSafe(ctx context.Context, batch []*model.AnalyzedSubmission) {
	requeue := make([]*model.AnalyzedSubmission, 0)

	for _, a := range batch {
		err := w.subRepo.Create(ctx, a)
		if err == nil || errors.Is(err, repository.ErrAlreadyAnalyzed) {
			continue
		}

		w.log.Error().Err(err).Str("session_id", a.SessionID.String()).Msg("Persist failed, requeueing")
		requeue = append(requeue, a)
	}

	if len(requeue) > 0 {
		w.requeueBatch(ctx, requeue)
	}
}

func (w *AnalysisWorker) requeueBatch(ctx context.Context, items []*model.AnalyzedSubmission) {
	pipe := w.rdb.Pipeline()
	for _, a := range items {
		data, _ := json.Marshal(a)
		pipe.RPush(ctx, config.WorkerKey.PersistAnalysisQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue analyses to Redis. Data loss occurred.")
		return
	}

	w.log.Info().Int("count", len(items)).Msg("Requeued failed analyses back to Redis")
	// Avoid thrashing while the database is down hard.
	time.Sleep(2 * time.Second)
}

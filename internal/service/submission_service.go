package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/anomaly"
	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/repository"
	"github.com/stemsi/examvault/internal/seal"
	"github.com/stemsi/examvault/internal/submission"
)

// ErrProcessingInProgress signals a concurrent upload for the same session.
var ErrProcessingInProgress = errors.New("submission is already being processed")

// processingLockTTL bounds how long a crashed processor can block retries.
const processingLockTTL = 5 * time.Minute

// analyzedCacheTTL keeps recent analyses in Redis for fast duplicate replies.
const analyzedCacheTTL = 24 * time.Hour

// SubmissionService runs the server-side pipeline for one uploaded package:
// unseal every snapshot, detect anomalies over the ordered sequence, combine
// to a final answer set, persist, and broadcast. Processing is idempotent
// per session — a retried upload returns the stored analysis.
type SubmissionService struct {
	subRepo      *repository.AnalyzedSubmissionRepository
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	unsealer     *seal.Unsealer
	detector     *anomaly.Detector
	combiner     *submission.Combiner
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	subRepo *repository.AnalyzedSubmissionRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	unsealer *seal.Unsealer,
	detector *anomaly.Detector,
	combiner *submission.Combiner,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		subRepo:      subRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		unsealer:     unsealer,
		detector:     detector,
		combiner:     combiner,
		rdb:          rdb,
		log:          log.With().Str("component", "submission_service").Logger(),
	}
}

// Process handles one uploaded SubmissionPackage end to end and returns the
// client receipt. Per-snapshot failures never abort the batch: the exam is
// always scored, just flagged.
func (s *SubmissionService) Process(ctx context.Context, pkg *model.SubmissionPackage) (*model.SubmissionReceipt, error) {
	if existing, err := s.findExisting(ctx, pkg.SessionID); err != nil {
		return nil, err
	} else if existing != nil {
		s.log.Info().Str("session_id", pkg.SessionID.String()).Msg("Duplicate upload, returning stored analysis")
		return receiptFrom(existing), nil
	}

	lockKey := config.CacheKey.SubmissionLockKey(pkg.SessionID.String())
	locked, err := s.rdb.SetNX(ctx, lockKey, 1, processingLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire processing lock: %w", err)
	}
	if !locked {
		return nil, ErrProcessingInProgress
	}
	defer s.rdb.Del(context.Background(), lockKey)

	questions, err := s.questionRepo.ListByExam(ctx, pkg.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	// Barrier: the detector needs the complete ordered sequence, so it runs
	// only after the whole batch is unsealed.
	batch := s.unsealer.UnsealBatch(pkg.Submissions)
	report := s.detector.Detect(batch.Snapshots, batch.Dropped)
	analyzed := s.combiner.Combine(pkg, batch, report, questions, time.Now())

	if err := s.persist(ctx, analyzed); err != nil {
		if existing, lookupErr := s.findExisting(ctx, pkg.SessionID); lookupErr == nil && existing != nil {
			return receiptFrom(existing), nil
		}
		return nil, err
	}

	s.cacheAndBroadcast(ctx, analyzed)

	s.log.Info().
		Str("session_id", analyzed.SessionID.String()).
		Float64("score", analyzed.Score).
		Int("suspicious_level", analyzed.SuspiciousLevel).
		Int("snapshots", analyzed.SubmissionsCount).
		Int("dropped", batch.Dropped).
		Msg("Submission analyzed")

	return receiptFrom(analyzed), nil
}

// GetAnalyzed returns the stored analysis for a session.
func (s *SubmissionService) GetAnalyzed(ctx context.Context, sessionID uuid.UUID) (*model.AnalyzedSubmission, error) {
	return s.subRepo.GetBySessionID(ctx, sessionID)
}

func (s *SubmissionService) findExisting(ctx context.Context, sessionID uuid.UUID) (*model.AnalyzedSubmission, error) {
	cacheKey := config.CacheKey.AnalyzedSubmissionKey(sessionID.String())
	if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var a model.AnalyzedSubmission
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			return &a, nil
		}
	}

	a, err := s.subRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup analysis: %w", err)
	}
	return a, nil
}

// persist stores the analysis. On a DB outage the record is requeued for the
// analysis worker so the upload still succeeds from the client's view.
func (s *SubmissionService) persist(ctx context.Context, a *model.AnalyzedSubmission) error {
	err := s.subRepo.Create(ctx, a)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrAlreadyAnalyzed) {
		return err
	}

	s.log.Error().Err(err).Str("session_id", a.SessionID.String()).Msg("Persist failed, queueing for retry")

	raw, mErr := json.Marshal(a)
	if mErr != nil {
		return fmt.Errorf("marshal analysis for requeue: %w", mErr)
	}
	if qErr := s.rdb.RPush(ctx, config.WorkerKey.PersistAnalysisQueue, raw).Err(); qErr != nil {
		return fmt.Errorf("persist analysis: %w", err)
	}
	return nil
}

func (s *SubmissionService) cacheAndBroadcast(ctx context.Context, a *model.AnalyzedSubmission) {
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	s.rdb.Set(ctx, config.CacheKey.AnalyzedSubmissionKey(a.SessionID.String()), raw, analyzedCacheTTL)
	s.rdb.Publish(ctx, config.CacheKey.MonitorChannel(), raw)
}

func receiptFrom(a *model.AnalyzedSubmission) *model.SubmissionReceipt {
	return &model.SubmissionReceipt{
		SessionID:            a.SessionID,
		SubmissionID:         a.ID,
		Score:                a.Score,
		SuspiciousLevel:      a.SuspiciousLevel,
		DetectedAnomalies:    a.DetectedAnomalies,
		SubmissionsProcessed: a.SubmissionsCount,
	}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examvault/internal/model"
)

// ErrAlreadyAnalyzed signals that a session already has a stored analysis.
var ErrAlreadyAnalyzed = errors.New("session already analyzed")

// AnalyzedSubmissionRepository persists the one immutable analysis record
// per session.
type AnalyzedSubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyzedSubmissionRepository creates a new AnalyzedSubmissionRepository.
func NewAnalyzedSubmissionRepository(pool *pgxpool.Pool) *AnalyzedSubmissionRepository {
	return &AnalyzedSubmissionRepository{pool: pool}
}

// Create inserts the analysis. The unique constraint on session_id is the
// idempotency backstop: a concurrent duplicate insert yields
// ErrAlreadyAnalyzed instead of a second record.
func (r *AnalyzedSubmissionRepository) Create(ctx context.Context, a *model.AnalyzedSubmission) error {
	answers, err := json.Marshal(a.FinalAnswers)
	if err != nil {
		return fmt.Errorf("marshal final answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO analyzed_submissions
		     (id, session_id, exam_id, user_id, final_answers, score,
		      suspicious_level, detected_anomalies, submissions_count,
		      submitted_at, analyzed_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (session_id) DO NOTHING`,
		a.ID, a.SessionID, a.ExamID, a.UserID, answers, a.Score,
		a.SuspiciousLevel, a.DetectedAnomalies, a.SubmissionsCount,
		a.SubmittedAt, a.AnalyzedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyAnalyzed
	}
	return nil
}

// GetBySessionID retrieves the stored analysis for a session, or pgx.ErrNoRows.
func (r *AnalyzedSubmissionRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.AnalyzedSubmission, error) {
	a := &model.AnalyzedSubmission{}
	var answers []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, exam_id, user_id, final_answers, score,
		        suspicious_level, detected_anomalies, submissions_count,
		        submitted_at, analyzed_at
		 FROM analyzed_submissions
		 WHERE session_id = $1`, sessionID,
	).Scan(&a.ID, &a.SessionID, &a.ExamID, &a.UserID, &answers, &a.Score,
		&a.SuspiciousLevel, &a.DetectedAnomalies, &a.SubmissionsCount,
		&a.SubmittedAt, &a.AnalyzedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answers, &a.FinalAnswers); err != nil {
		return nil, fmt.Errorf("decode final answers: %w", err)
	}
	return a, nil
}

// Exists reports whether a session already has an analysis.
func (r *AnalyzedSubmissionRepository) Exists(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM analyzed_submissions WHERE session_id = $1`, sessionID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examvault/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves a single exam.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, title, status, start_at, end_at, duration_minutes, created_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.Code, &e.Title, &e.Status, &e.StartAt, &e.EndAt, &e.DurationMinutes, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByCode retrieves a single exam by its code.
func (r *ExamRepository) GetByCode(ctx context.Context, code string) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, title, status, start_at, end_at, duration_minutes, created_at
		 FROM exams
		 WHERE code = $1`, code,
	).Scan(&e.ID, &e.Code, &e.Title, &e.Status, &e.StartAt, &e.EndAt, &e.DurationMinutes, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

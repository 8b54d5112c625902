package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/offline"
	"github.com/stemsi/examvault/internal/repository"
)

// Package service errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrExamClosed       = errors.New("exam window has closed")
	ErrNoQuestions      = errors.New("exam has no questions")
)

// PackageService assembles downloadable offline packages for students.
type PackageService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	assembler    *offline.Assembler
	log          zerolog.Logger
}

// NewPackageService creates a new PackageService.
func NewPackageService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	assembler *offline.Assembler,
	log zerolog.Logger,
) *PackageService {
	return &PackageService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		assembler:    assembler,
		log:          log.With().Str("component", "package_service").Logger(),
	}
}

// BuildPackage loads the exam and its questions, checks availability, and
// assembles a freshly keyed package for the requesting student. Prefetch is
// allowed before the window opens — the license, not the download time,
// gates when the exam can actually be opened.
func (s *PackageService) BuildPackage(ctx context.Context, examID uuid.UUID, studentID int) (*model.DownloadedExamPackage, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	now := time.Now()
	if now.After(exam.EndAt) {
		return nil, ErrExamClosed
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	pkg, err := s.assembler.Assemble(exam, questions, studentID, now)
	if err != nil {
		return nil, fmt.Errorf("assemble package: %w", err)
	}

	s.log.Info().
		Str("exam_code", exam.Code).
		Int("student_id", studentID).
		Msg("Offline package issued")

	return pkg, nil
}

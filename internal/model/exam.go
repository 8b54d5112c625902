package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates exam lifecycle states.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an examination that can be packaged for offline use.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	Status          ExamStatus `json:"status"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	DurationMinutes int        `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
}

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeChoice      QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeMultiSelect QuestionType = "MULTI_SELECT"
	QuestionTypeShortAnswer QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay       QuestionType = "ESSAY"
)

// Question is a single exam question. The numeric ID doubles as the
// canonical ordering key for answer-set hashing.
type Question struct {
	ID        int          `json:"id"`
	ExamID    uuid.UUID    `json:"exam_id"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	Choices   []string     `json:"choices,omitempty"`
	AnswerKey []string     `json:"answer_key,omitempty"`
	Points    float64      `json:"points"`
}

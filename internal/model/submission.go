package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerValue holds one answer in exactly one of three shapes: free text,
// a choice list, or a number. The zero value is the placeholder used when a
// question has no recorded answer.
type AnswerValue struct {
	Text    string   `json:"text,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Number  *float64 `json:"number,omitempty"`
}

// IsZero reports whether the value is the empty placeholder.
func (v AnswerValue) IsZero() bool {
	return v.Text == "" && len(v.Choices) == 0 && v.Number == nil
}

// AnswerSnapshot is a single question's answer state at one auto-save tick.
type AnswerSnapshot struct {
	QuestionID int         `json:"question_id"`
	Answer     AnswerValue `json:"answer"`
	TimeSpent  int         `json:"time_spent"`
}

// AnswerSet maps question ID to the answer snapshot for that question.
// Insertion order is irrelevant; the canonical form orders by question ID.
type AnswerSet map[int]AnswerSnapshot

// SealedSubmission is one encrypted, integrity-checked snapshot of a
// student's in-progress answers. Immutable once written; snapshots accumulate
// in the local log until uploaded.
type SealedSubmission struct {
	SubmissionID           uuid.UUID  `json:"submission_id"`
	SessionID              *uuid.UUID `json:"session_id,omitempty"`
	EncryptedSealedAnswers string     `json:"encrypted_sealed_answers"`
	EncryptedSubmissionKey string     `json:"encrypted_submission_key"`
	SavedAt                time.Time  `json:"saved_at"`
}

// SealedPayload is the plaintext carried inside a SealedSubmission envelope.
type SealedPayload struct {
	Answers          AnswerSet `json:"answers"`
	FinalAnswersHash string    `json:"final_answers_hash"`
	SealedAt         time.Time `json:"sealed_at"`
}

// SubmissionPackage is the ordered sequence of a session's SealedSubmissions
// plus exam metadata, assembled once at the end of the exam and sent as one
// unit.
type SubmissionPackage struct {
	SessionID   uuid.UUID          `json:"session_id"`
	ExamID      uuid.UUID          `json:"exam_id"`
	ExamCode    string             `json:"exam_code"`
	UserID      int                `json:"user_id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Submissions []SealedSubmission `json:"submissions"`
}

// SubmissionReceipt is the API projection returned to the uploading client
// once its package has been analyzed.
type SubmissionReceipt struct {
	SessionID            uuid.UUID `json:"session_id"`
	SubmissionID         uuid.UUID `json:"submission_id"`
	Score                float64   `json:"score"`
	SuspiciousLevel      int       `json:"suspicious_level"`
	DetectedAnomalies    []string  `json:"detected_anomalies"`
	SubmissionsProcessed int       `json:"submissions_processed"`
}

// AnalyzedSubmission is the only server-persisted artifact of the offline
// submission pipeline. Created once per session and never mutated; a
// re-uploaded session gets the stored record back.
type AnalyzedSubmission struct {
	ID                uuid.UUID `json:"id"`
	SessionID         uuid.UUID `json:"session_id"`
	ExamID            uuid.UUID `json:"exam_id"`
	UserID            int       `json:"user_id"`
	FinalAnswers      AnswerSet `json:"final_answers"`
	Score             float64   `json:"score"`
	SuspiciousLevel   int       `json:"suspicious_level"`
	DetectedAnomalies []string  `json:"detected_anomalies"`
	SubmissionsCount  int       `json:"submissions_count"`
	SubmittedAt       time.Time `json:"submitted_at"`
	AnalyzedAt        time.Time `json:"analyzed_at"`
}

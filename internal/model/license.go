package model

import (
	"time"

	"github.com/google/uuid"
)

// License is the time- and user-bound credential carrying the key needed to
// open a specific offline exam package. It is created per (exam, user) pair
// at download time, immutable once issued, and never persisted server-side —
// a lost license is simply reissued.
type License struct {
	ExamID    uuid.UUID `json:"exam_id"`
	ExamKey   []byte    `json:"exam_key"`
	ExamCode  string    `json:"exam_code"`
	ExamTitle string    `json:"exam_title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IssuedAt  time.Time `json:"issued_at"`
	UserID    int       `json:"user_id"`
}

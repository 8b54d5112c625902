package websocket

import "github.com/stemsi/examvault/internal/model"

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventAnalyzed Event = "analyzed"
)

// AnalyzedEvent is pushed to monitor clients whenever a submission package
// finishes analysis.
type AnalyzedEvent struct {
	Event      Event                     `json:"event"`
	Submission *model.AnalyzedSubmission `json:"submission"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

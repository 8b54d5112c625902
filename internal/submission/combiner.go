// Package submission reduces a session's validated snapshot sequence to the
// final graded artifact.
package submission

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/anomaly"
	"github.com/stemsi/examvault/internal/canonical"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/seal"
)

// Combiner reduces the snapshot sequence to one final answer set and a
// numeric score. Selection policy: the most recent snapshot with a valid
// hash wins for the whole submission. A per-question merge is a possible
// future refinement, not part of this reducer.
type Combiner struct {
	log zerolog.Logger
}

// NewCombiner creates a Combiner.
func NewCombiner(log zerolog.Logger) *Combiner {
	return &Combiner{log: log.With().Str("component", "submission_combiner").Logger()}
}

// Combine produces the AnalyzedSubmission for a session from its unsealed
// batch and anomaly report. Questions supply the authoritative ID list for
// gap filling and the answer keys for scoring.
func (c *Combiner) Combine(
	pkg *model.SubmissionPackage,
	batch *seal.BatchResult,
	report anomaly.Report,
	questions []model.Question,
	now time.Time,
) *model.AnalyzedSubmission {
	final := c.selectFinalAnswers(batch)

	ids := make([]int, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	sort.Ints(ids)

	filled, gaps := canonical.FillGaps(final, ids)
	if len(gaps) > 0 {
		c.log.Warn().
			Str("session_id", pkg.SessionID.String()).
			Ints("question_ids", gaps).
			Msg("Unanswered questions filled with placeholder")
	}

	return &model.AnalyzedSubmission{
		ID:                uuid.New(),
		SessionID:         pkg.SessionID,
		ExamID:            pkg.ExamID,
		UserID:            pkg.UserID,
		FinalAnswers:      filled,
		Score:             scoreAnswers(filled, questions),
		SuspiciousLevel:   report.SuspiciousLevel,
		DetectedAnomalies: report.Findings,
		SubmissionsCount:  len(batch.Snapshots) + batch.Dropped,
		SubmittedAt:       pkg.FinishedAt,
		AnalyzedAt:        now,
	}
}

// selectFinalAnswers walks the sequence backwards and returns the answers
// of the most recent snapshot whose hash checked out. If no snapshot is
// valid the latest flagged one still counts — the exam is always scored,
// just flagged.
func (c *Combiner) selectFinalAnswers(batch *seal.BatchResult) model.AnswerSet {
	for i := len(batch.Snapshots) - 1; i >= 0; i-- {
		if batch.Snapshots[i].HashValid {
			return batch.Snapshots[i].Answers
		}
	}
	if n := len(batch.Snapshots); n > 0 {
		c.log.Warn().Msg("No snapshot passed integrity check, using latest flagged snapshot")
		return batch.Snapshots[n-1].Answers
	}
	return model.AnswerSet{}
}

// scoreAnswers grades objective questions (those carrying an answer key)
// and returns a 0–100 score weighted by question points.
func scoreAnswers(answers model.AnswerSet, questions []model.Question) float64 {
	var earned, total float64
	for _, q := range questions {
		if len(q.AnswerKey) == 0 {
			continue
		}
		total += q.Points
		if snap, ok := answers[q.ID]; ok && answerMatchesKey(snap.Answer, q.AnswerKey) {
			earned += q.Points
		}
	}
	if total == 0 {
		return 0
	}
	return earned / total * 100
}

func answerMatchesKey(v model.AnswerValue, key []string) bool {
	norm := canonical.Normalize(v)

	if len(norm.Choices) > 0 {
		if len(norm.Choices) != len(key) {
			return false
		}
		sorted := make([]string, len(key))
		copy(sorted, key)
		sort.Strings(sorted)
		for i := range sorted {
			if norm.Choices[i] != sorted[i] {
				return false
			}
		}
		return true
	}

	for _, k := range key {
		if strings.EqualFold(norm.Text, strings.TrimSpace(k)) {
			return true
		}
	}
	return false
}

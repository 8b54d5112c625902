// Package canonical produces the single deterministic serialization of an
// answer set used for hashing. Sealer and server-side validator must agree
// on these exact bytes or integrity checks spuriously fail.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/examvault/internal/model"
)

// entry is the canonical per-question record. Field order is fixed by the
// struct; the serialized form carries no extraneous whitespace.
type entry struct {
	QuestionID int               `json:"q"`
	Answer     model.AnswerValue `json:"a"`
	TimeSpent  int               `json:"t"`
}

// Normalize returns a copy of one answer value in canonical form: text is
// trimmed, choice lists are shallow-copied and sorted, numbers pass through
// unchanged.
func Normalize(v model.AnswerValue) model.AnswerValue {
	out := model.AnswerValue{
		Text:   strings.TrimSpace(v.Text),
		Number: v.Number,
	}
	if len(v.Choices) > 0 {
		choices := make([]string, len(v.Choices))
		copy(choices, v.Choices)
		sort.Strings(choices)
		out.Choices = choices
	}
	return out
}

// Marshal serializes an answer set into its canonical byte form: entries
// normalized and re-ordered by ascending numeric question identifier.
func Marshal(set model.AnswerSet) ([]byte, error) {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]entry, 0, len(ids))
	for _, id := range ids {
		snap := set[id]
		entries = append(entries, entry{
			QuestionID: id,
			Answer:     Normalize(snap.Answer),
			TimeSpent:  snap.TimeSpent,
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical form: %w", err)
	}
	return data, nil
}

// Digest returns the hex SHA-256 of the canonical form.
func Digest(set model.AnswerSet) (string, error) {
	data, err := Marshal(set)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FillGaps returns a copy of the set in which every question in questionIDs
// has an entry, missing ones filled with the zero-answer placeholder, plus
// the list of question IDs that were filled. Silently shrinking the answer
// set would corrupt hash comparisons across snapshots, so callers are
// expected to log the returned gaps.
func FillGaps(set model.AnswerSet, questionIDs []int) (model.AnswerSet, []int) {
	filled := make(model.AnswerSet, len(questionIDs))
	var gaps []int

	for _, id := range questionIDs {
		if snap, ok := set[id]; ok {
			filled[id] = snap
			continue
		}
		filled[id] = model.AnswerSnapshot{QuestionID: id}
		gaps = append(gaps, id)
	}
	sort.Ints(gaps)
	return filled, gaps
}

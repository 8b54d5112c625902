// Package anomaly scores a session's unsealed snapshot sequence for
// suspicious behavior. The engine is deterministic and rule-based: each rule
// contributes a fixed weight to a 0–100 suspicion level.
//
// Weight policy: a rule's weight is added once per session no matter how
// many times it fires; every firing still produces its own finding tag.
package anomaly

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/canonical"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/seal"
)

const (
	maxSuspiciousLevel = 100

	// massChangeRatio is the fraction of answers that must differ from the
	// preceding snapshot to count as a mass change.
	massChangeRatio = 0.5

	// rapidWindow bounds the snapshot interval under which a mass change is
	// also considered rapid.
	rapidWindow = 2 * time.Minute

	// cadenceSlack is the tolerance added to the expected auto-save
	// interval before an inter-snapshot gap counts as irregular.
	cadenceSlack = 5 * time.Second

	// inactivityMinWindows is how many zero-change windows (a window being
	// two consecutive snapshots with identical answers) must occur before
	// the inactivity rule fires.
	inactivityMinWindows = 2
)

// Weights is the tunable point table, one entry per rule.
type Weights struct {
	HashMismatch        int
	MalformedSnapshot   int
	TimestampOrder      int
	MassChange          int
	RapidMassChange     int
	IrregularCadence    int
	ProlongedInactivity int
}

// DefaultWeights mirrors the documented point scale.
var DefaultWeights = Weights{
	HashMismatch:        30,
	MalformedSnapshot:   30,
	TimestampOrder:      25,
	MassChange:          15,
	RapidMassChange:     20,
	IrregularCadence:    10,
	ProlongedInactivity: 5,
}

// Report is the detector output for one session.
type Report struct {
	SuspiciousLevel int      `json:"suspicious_level"`
	Findings        []string `json:"findings"`
}

// Detector consumes the ordered, validated snapshot sequence for one
// session. It is a pure function of the unsealed batch; it runs only after
// every snapshot has been unsealed.
type Detector struct {
	weights          Weights
	expectedInterval time.Duration
	log              zerolog.Logger
}

// NewDetector creates a Detector with the given expected auto-save cadence.
func NewDetector(weights Weights, expectedInterval time.Duration, log zerolog.Logger) *Detector {
	return &Detector{
		weights:          weights,
		expectedInterval: expectedInterval,
		log:              log.With().Str("component", "anomaly_detector").Logger(),
	}
}

// Detect scores the sequence and returns the capped suspicion level plus a
// finding tag for every rule firing.
func (d *Detector) Detect(snaps []seal.Snapshot, dropped int) Report {
	r := Report{Findings: []string{}}
	level := 0
	fired := map[string]bool{}

	addFinding := func(rule string, weight int, tag string) {
		r.Findings = append(r.Findings, tag)
		if !fired[rule] {
			fired[rule] = true
			level += weight
		}
	}

	for i := 0; i < dropped; i++ {
		addFinding("malformed", d.weights.MalformedSnapshot, "malformed snapshot dropped during unsealing")
	}

	for i := range snaps {
		if !snaps[i].HashValid {
			addFinding("hash", d.weights.HashMismatch,
				fmt.Sprintf("hash mismatch: snapshot %s digest differs from embedded hash", snaps[i].SubmissionID))
		}
	}

	inactiveWindows := 0
	for i := 1; i < len(snaps); i++ {
		prev, cur := snaps[i-1], snaps[i]
		interval := cur.SavedAt.Sub(prev.SavedAt)

		if cur.SavedAt.Before(prev.SavedAt) {
			addFinding("order", d.weights.TimestampOrder,
				fmt.Sprintf("timestamp order: snapshot %s saved before its predecessor", cur.SubmissionID))
		}

		if interval > d.expectedInterval+cadenceSlack {
			addFinding("cadence", d.weights.IrregularCadence,
				fmt.Sprintf("irregular cadence: %s gap between snapshots (expected ~%s)", interval.Round(time.Second), d.expectedInterval))
		}

		changed, total := diffAnswers(prev.Answers, cur.Answers)
		if total > 0 && float64(changed) >= massChangeRatio*float64(total) {
			addFinding("mass", d.weights.MassChange,
				fmt.Sprintf("mass change: %d of %d answers changed in snapshot %s", changed, total, cur.SubmissionID))
			if interval >= 0 && interval < rapidWindow {
				addFinding("rapid", d.weights.RapidMassChange,
					fmt.Sprintf("rapid mass change: %d answers changed within %s", changed, interval.Round(time.Second)))
			}
		}

		if changed == 0 {
			inactiveWindows++
		}
	}

	if inactiveWindows >= inactivityMinWindows {
		addFinding("inactivity", d.weights.ProlongedInactivity,
			fmt.Sprintf("prolonged inactivity: %d windows with no answer changes", inactiveWindows))
	}

	if level > maxSuspiciousLevel {
		level = maxSuspiciousLevel
	}
	r.SuspiciousLevel = level

	if level > 0 {
		d.log.Info().
			Int("suspicious_level", level).
			Int("findings", len(r.Findings)).
			Msg("Anomalies detected")
	}
	return r
}

// diffAnswers counts answers that differ between two snapshots over the
// union of their question IDs. Comparison is on canonical form so trimming
// and choice order never register as changes.
func diffAnswers(prev, cur model.AnswerSet) (changed, total int) {
	seen := make(map[int]bool, len(prev)+len(cur))
	for id := range prev {
		seen[id] = true
	}
	for id := range cur {
		seen[id] = true
	}

	for id := range seen {
		total++
		p, pok := prev[id]
		c, cok := cur[id]
		if pok != cok {
			changed++
			continue
		}
		if !answersEqual(p.Answer, c.Answer) {
			changed++
		}
	}
	return changed, total
}

func answersEqual(a, b model.AnswerValue) bool {
	na, _ := json.Marshal(canonical.Normalize(a))
	nb, _ := json.Marshal(canonical.Normalize(b))
	return string(na) == string(nb)
}

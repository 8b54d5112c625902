package seal

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/canonical"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/model"
)

var (
	ErrSnapshotMalformed         = errors.New("snapshot envelope malformed")
	ErrSubmissionKeyUnwrapFailed = errors.New("submission key unwrap failed")
)

// unsealWorkers bounds the fan-out for batch unsealing. Each snapshot is an
// independent decrypt-and-hash check.
const unsealWorkers = 8

// Snapshot is one successfully unsealed auto-save snapshot. SavedAt is the
// sealed-in timestamp, not the outer plaintext one. HashValid is false when
// the recomputed canonical digest disagrees with the embedded one — the
// snapshot stays in the sequence but is flagged.
type Snapshot struct {
	SubmissionID uuid.UUID
	SavedAt      time.Time
	Answers      model.AnswerSet
	EmbeddedHash string
	HashValid    bool
}

// BatchResult is the outcome of unsealing one session's upload.
type BatchResult struct {
	// Snapshots holds the unsealed sequence in upload order. Snapshots that
	// failed structurally are excluded.
	Snapshots []Snapshot
	// Dropped counts snapshots that could not be unwrapped or decrypted.
	// A single corrupted auto-save never voids the batch.
	Dropped int
}

// Unsealer unwraps sealed submissions server-side with the private key.
type Unsealer struct {
	keys *cryptoenv.KeyPair
	log  zerolog.Logger
}

// NewUnsealer creates an Unsealer.
func NewUnsealer(keys *cryptoenv.KeyPair, log zerolog.Logger) *Unsealer {
	return &Unsealer{
		keys: keys,
		log:  log.With().Str("component", "submission_unsealer").Logger(),
	}
}

// UnsealOne unwraps and validates a single sealed submission.
func (u *Unsealer) UnsealOne(sub model.SealedSubmission) (*Snapshot, error) {
	wrapped, err := base64.StdEncoding.DecodeString(sub.EncryptedSubmissionKey)
	if err != nil {
		return nil, ErrSnapshotMalformed
	}

	key, err := cryptoenv.UnwrapKey(u.keys.Private, wrapped)
	if err != nil {
		return nil, ErrSubmissionKeyUnwrapFailed
	}

	data, err := cryptoenv.Open(key, sub.EncryptedSealedAnswers)
	if err != nil {
		return nil, ErrSnapshotMalformed
	}

	var payload model.SealedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ErrSnapshotMalformed
	}

	digest, err := canonical.Digest(payload.Answers)
	if err != nil {
		return nil, ErrSnapshotMalformed
	}

	// The timestamp comes from inside the authenticated payload. The outer
	// SavedAt is client-rewritable plaintext and must never feed the timing
	// rules.
	return &Snapshot{
		SubmissionID: sub.SubmissionID,
		SavedAt:      payload.SealedAt,
		Answers:      payload.Answers,
		EmbeddedHash: payload.FinalAnswersHash,
		HashValid:    digest == payload.FinalAnswersHash,
	}, nil
}

// UnsealBatch processes a session's snapshots. Decrypt/hash checks are
// independent per snapshot, so they fan out across a bounded worker set;
// the result preserves upload order. Structural failures are dropped and
// counted, hash mismatches are kept but flagged — the anomaly detector
// runs only after the whole batch is done.
func (u *Unsealer) UnsealBatch(subs []model.SealedSubmission) *BatchResult {
	results := make([]*Snapshot, len(subs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, unsealWorkers)

	for i := range subs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			snap, err := u.UnsealOne(subs[i])
			if err != nil {
				u.log.Warn().
					Err(err).
					Str("submission_id", subs[i].SubmissionID.String()).
					Msg("Dropping snapshot")
				return
			}
			results[i] = snap
		}(i)
	}
	wg.Wait()

	out := &BatchResult{Snapshots: make([]Snapshot, 0, len(subs))}
	for _, snap := range results {
		if snap == nil {
			out.Dropped++
			continue
		}
		out.Snapshots = append(out.Snapshots, *snap)
	}
	return out
}

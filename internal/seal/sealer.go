// Package seal wraps and unwraps the encrypted answer snapshots produced by
// the offline client's auto-save loop. Each snapshot is an independent
// hybrid envelope: answers sealed under a fresh symmetric key, the key
// wrapped under the server's public key.
package seal

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/canonical"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/model"
)

// Sealer produces one immutable SealedSubmission per auto-save tick. It
// never mutates or deletes prior snapshots; they form an append-only local
// log until upload.
type Sealer struct {
	serverPub *rsa.PublicKey
	log       zerolog.Logger
}

// NewSealer creates a Sealer around the server's public key.
func NewSealer(serverPub *rsa.PublicKey, log zerolog.Logger) *Sealer {
	return &Sealer{
		serverPub: serverPub,
		log:       log.With().Str("component", "submission_sealer").Logger(),
	}
}

// Seal canonicalizes the current answer set, binds its digest into the
// payload, encrypts the payload under a fresh random key, and wraps that
// key for the server.
func (s *Sealer) Seal(sessionID uuid.UUID, set model.AnswerSet, now time.Time) (*model.SealedSubmission, error) {
	digest, err := canonical.Digest(set)
	if err != nil {
		return nil, fmt.Errorf("digest answers: %w", err)
	}

	payload := model.SealedPayload{
		Answers:          set,
		FinalAnswersHash: digest,
		SealedAt:         now,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal sealed payload: %w", err)
	}

	key, err := cryptoenv.NewSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("generate submission key: %w", err)
	}

	sealed, err := cryptoenv.Seal(key, data)
	if err != nil {
		return nil, fmt.Errorf("seal answers: %w", err)
	}

	wrapped, err := cryptoenv.WrapKey(s.serverPub, key)
	if err != nil {
		return nil, fmt.Errorf("wrap submission key: %w", err)
	}

	sub := &model.SealedSubmission{
		SubmissionID:           uuid.New(),
		SessionID:              &sessionID,
		EncryptedSealedAnswers: sealed,
		EncryptedSubmissionKey: base64.StdEncoding.EncodeToString(wrapped),
		SavedAt:                now,
	}

	s.log.Debug().
		Str("submission_id", sub.SubmissionID.String()).
		Int("answers", len(set)).
		Msg("Snapshot sealed")

	return sub, nil
}

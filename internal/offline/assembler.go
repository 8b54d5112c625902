// Package offline assembles and opens the downloadable exam package: the
// bundle of encrypted exam content plus its signed license, stored locally
// for disconnected use.
package offline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/content"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/license"
	"github.com/stemsi/examvault/internal/model"
)

// Assembler builds offline packages server-side. Each call mints a fresh
// random exam key, so two downloads of the same exam never share content
// ciphertext.
type Assembler struct {
	keys  *cryptoenv.KeyPair
	codec *license.Codec
	log   zerolog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(keys *cryptoenv.KeyPair, codec *license.Codec, log zerolog.Logger) *Assembler {
	return &Assembler{
		keys:  keys,
		codec: codec,
		log:   log.With().Str("component", "package_assembler").Logger(),
	}
}

// deliverableQuestions copies the question set for client delivery with the
// grading key removed. Scoring happens server-side against the stored
// questions; the packaged copy never carries answer keys.
func deliverableQuestions(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.AnswerKey = nil
		out[i] = q
	}
	return out
}

// Assemble encrypts the question set under a fresh key, issues a license
// embedding that key for (exam, user), and bundles both into the package
// the client persists locally.
func (a *Assembler) Assemble(exam *model.Exam, questions []model.Question, userID int, now time.Time) (*model.DownloadedExamPackage, error) {
	examKey, err := cryptoenv.NewSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("generate exam key: %w", err)
	}

	encryptedData, err := content.Encrypt(deliverableQuestions(questions), examKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt exam content: %w", err)
	}

	lic := &model.License{
		ExamID:    exam.ID,
		ExamKey:   examKey,
		ExamCode:  exam.Code,
		ExamTitle: exam.Title,
		StartDate: exam.StartAt,
		EndDate:   exam.EndAt,
		IssuedAt:  now,
		UserID:    userID,
	}

	signedLicense, err := a.codec.Issue(a.keys.Private, lic)
	if err != nil {
		return nil, fmt.Errorf("issue license: %w", err)
	}

	a.log.Debug().
		Str("exam_code", exam.Code).
		Int("user_id", userID).
		Int("questions", len(questions)).
		Msg("Offline package assembled")

	return &model.DownloadedExamPackage{
		ExamCode:          exam.Code,
		EncryptedExamData: encryptedData,
		SignedLicense:     signedLicense,
		PrefetchedAt:      now,
	}, nil
}

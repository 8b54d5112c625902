package offline

import (
	"crypto/rsa"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/content"
	"github.com/stemsi/examvault/internal/license"
	"github.com/stemsi/examvault/internal/model"
)

// OpenedExam is the result of a fully verified package open: the question
// set plus license metadata for display. The embedded exam key is not
// exposed.
type OpenedExam struct {
	ExamID    string           `json:"exam_id"`
	ExamCode  string           `json:"exam_code"`
	ExamTitle string           `json:"exam_title"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Questions []model.Question `json:"questions"`
}

// Opener reverses the assembler client-side. It holds only the public
// verification key; a client build never sees the private half.
type Opener struct {
	pub   *rsa.PublicKey
	codec *license.Codec
	log   zerolog.Logger
}

// NewOpener creates an Opener.
func NewOpener(pub *rsa.PublicKey, codec *license.Codec, log zerolog.Logger) *Opener {
	return &Opener{
		pub:   pub,
		codec: codec,
		log:   log.With().Str("component", "package_opener").Logger(),
	}
}

// Open runs the strict pipeline: parse signed license, verify signature,
// decrypt license, validate timing and user, decrypt exam content with the
// license's embedded key. Each stage gates the next; any failure aborts
// with a typed error and no partial exam content is ever exposed. The clock
// is the caller's local clock (the offline trust boundary).
func (o *Opener) Open(pkg *model.DownloadedExamPackage, now time.Time, userID int) (*OpenedExam, error) {
	payload, sig, err := license.Parse(pkg.SignedLicense)
	if err != nil {
		return nil, err
	}

	if !license.Verify(o.pub, payload, sig) {
		o.log.Warn().Str("exam_code", pkg.ExamCode).Msg("License signature rejected")
		return nil, license.ErrSignatureInvalid
	}

	lic, err := o.codec.Decrypt(payload)
	if err != nil {
		return nil, err
	}

	if err := license.Validate(lic, now, userID); err != nil {
		return nil, err
	}

	questions, err := content.Decrypt(pkg.EncryptedExamData, lic.ExamKey)
	if err != nil {
		return nil, err
	}

	o.log.Debug().
		Str("exam_code", lic.ExamCode).
		Int("questions", len(questions)).
		Msg("Offline package opened")

	return &OpenedExam{
		ExamID:    lic.ExamID.String(),
		ExamCode:  lic.ExamCode,
		ExamTitle: lic.ExamTitle,
		StartDate: lic.StartDate.Format(time.RFC3339),
		EndDate:   lic.EndDate.Format(time.RFC3339),
		Questions: questions,
	}, nil
}

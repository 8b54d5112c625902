package offline

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/license"
	"github.com/stemsi/examvault/internal/model"
)

var (
	testKeys  *cryptoenv.KeyPair
	testCodec *license.Codec
)

func TestMain(m *testing.M) {
	var err error
	testKeys, err = cryptoenv.GenerateKeyPair(2048)
	if err != nil {
		panic(err)
	}
	testCodec, err = license.NewCodec(bytes.Repeat([]byte{0x5a}, cryptoenv.KeySize))
	if err != nil {
		panic(err)
	}
	m.Run()
}

var (
	windowStart = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
)

func testExam() *model.Exam {
	return &model.Exam{
		ID:              uuid.New(),
		Code:            "PHY-2026",
		Title:           "Physics Final",
		Status:          model.ExamStatusPublished,
		StartAt:         windowStart,
		EndAt:           windowEnd,
		DurationMinutes: 90,
	}
}

func testQuestions(examID uuid.UUID) []model.Question {
	return []model.Question{
		{ID: 1, ExamID: examID, Type: model.QuestionTypeChoice, Prompt: "F = ?", Choices: []string{"ma", "mv", "mg"}, AnswerKey: []string{"ma"}, Points: 2},
		{ID: 2, ExamID: examID, Type: model.QuestionTypeEssay, Prompt: "Explain inertia.", Points: 5},
	}
}

func assembleAndOpen(t *testing.T) (*model.DownloadedExamPackage, *Opener, []model.Question) {
	t.Helper()

	exam := testExam()
	questions := testQuestions(exam.ID)

	assembler := NewAssembler(testKeys, testCodec, zerolog.Nop())
	pkg, err := assembler.Assemble(exam, questions, 42, windowStart.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	opener := NewOpener(testKeys.Public, testCodec, zerolog.Nop())
	return pkg, opener, questions
}

func TestAssembleThenOpenInsideWindow(t *testing.T) {
	pkg, opener, questions := assembleAndOpen(t)

	opened, err := opener.Open(pkg, windowStart.Add(time.Second), 42)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.ExamCode != "PHY-2026" || opened.ExamTitle != "Physics Final" {
		t.Fatalf("opened metadata = %+v", opened)
	}
	if len(opened.Questions) != len(questions) {
		t.Fatalf("got %d questions, want %d", len(opened.Questions), len(questions))
	}
	if opened.Questions[0].Prompt != questions[0].Prompt {
		t.Fatal("question content corrupted in round trip")
	}
}

func TestPackagedQuestionsCarryNoAnswerKey(t *testing.T) {
	pkg, opener, questions := assembleAndOpen(t)

	if len(questions[0].AnswerKey) == 0 {
		t.Fatal("fixture lost its answer key")
	}

	opened, err := opener.Open(pkg, windowStart.Add(time.Second), 42)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, q := range opened.Questions {
		if len(q.AnswerKey) != 0 {
			t.Fatalf("question %d delivered with answer key %v", q.ID, q.AnswerKey)
		}
	}
	if opened.Questions[0].Points != 2 {
		t.Fatalf("points = %v, want 2", opened.Questions[0].Points)
	}
}

func TestOpenBeforeWindow(t *testing.T) {
	pkg, opener, _ := assembleAndOpen(t)

	_, err := opener.Open(pkg, windowStart.Add(-time.Minute), 42)
	if !errors.Is(err, license.ErrLicenseNotYetActive) {
		t.Fatalf("err = %v, want ErrLicenseNotYetActive", err)
	}
}

func TestOpenAfterWindow(t *testing.T) {
	pkg, opener, _ := assembleAndOpen(t)

	_, err := opener.Open(pkg, windowEnd.Add(time.Second), 42)
	if !errors.Is(err, license.ErrLicenseExpired) {
		t.Fatalf("err = %v, want ErrLicenseExpired", err)
	}
}

func TestOpenWrongUser(t *testing.T) {
	pkg, opener, _ := assembleAndOpen(t)

	_, err := opener.Open(pkg, windowStart.Add(time.Minute), 43)
	if !errors.Is(err, license.ErrLicenseUserMismatch) {
		t.Fatalf("err = %v, want ErrLicenseUserMismatch", err)
	}
}

func TestOpenTamperedLicense(t *testing.T) {
	pkg, opener, _ := assembleAndOpen(t)

	// Flip a byte in the middle of the signed license. Depending on where
	// it lands this breaks either the frame or the signature; both must
	// refuse to open.
	raw := []byte(pkg.SignedLicense)
	raw[len(raw)/2] ^= 0x01
	pkg.SignedLicense = string(raw)

	_, err := opener.Open(pkg, windowStart.Add(time.Minute), 42)
	if err == nil {
		t.Fatal("tampered license opened successfully")
	}
}

func TestOpenTamperedContent(t *testing.T) {
	pkg, opener, _ := assembleAndOpen(t)

	raw := []byte(pkg.EncryptedExamData)
	raw[len(raw)-3] ^= 0x01
	pkg.EncryptedExamData = string(raw)

	_, err := opener.Open(pkg, windowStart.Add(time.Minute), 42)
	if err == nil {
		t.Fatal("tampered content opened successfully")
	}
}

func TestOpenWrongVerificationKey(t *testing.T) {
	pkg, _, _ := assembleAndOpen(t)

	other, err := cryptoenv.GenerateKeyPair(2048)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	opener := NewOpener(other.Public, testCodec, zerolog.Nop())

	_, err = opener.Open(pkg, windowStart.Add(time.Minute), 42)
	if !errors.Is(err, license.ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
}

func TestAssembleUsesFreshKeys(t *testing.T) {
	exam := testExam()
	questions := testQuestions(exam.ID)
	assembler := NewAssembler(testKeys, testCodec, zerolog.Nop())

	p1, _ := assembler.Assemble(exam, questions, 42, windowStart)
	p2, _ := assembler.Assemble(exam, questions, 42, windowStart)

	if p1.EncryptedExamData == p2.EncryptedExamData {
		t.Fatal("two downloads share content ciphertext")
	}
	if p1.SignedLicense == p2.SignedLicense {
		t.Fatal("two downloads share a license")
	}
}

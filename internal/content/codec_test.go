package content

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/model"
)

func testQuestions() []model.Question {
	examID := uuid.New()
	return []model.Question{
		{
			ID:      1,
			ExamID:  examID,
			Type:    model.QuestionTypeChoice,
			Prompt:  "Capital of France?",
			Choices: []string{"Paris", "Lyon", "Nice"},
			Points:  2,
		},
		{
			ID:     2,
			ExamID: examID,
			Type:   model.QuestionTypeShortAnswer,
			Prompt: "Name the process plants use to convert sunlight.",
			Points: 3,
		},
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, cryptoenv.KeySize)
	questions := testQuestions()

	encrypted, err := Encrypt(questions, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(encrypted, "Paris") {
		t.Fatal("encrypted payload leaks question text")
	}

	got, err := Decrypt(encrypted, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if len(got) != len(questions) {
		t.Fatalf("got %d questions, want %d", len(got), len(questions))
	}
	if got[0].Prompt != questions[0].Prompt || got[1].Type != questions[1].Type {
		t.Fatalf("questions corrupted in round trip: %+v", got)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, cryptoenv.KeySize)
	other := bytes.Repeat([]byte{0x22}, cryptoenv.KeySize)

	encrypted, _ := Encrypt(testQuestions(), key)
	if _, err := Decrypt(encrypted, other); !errors.Is(err, ErrContentDecryptFailed) {
		t.Fatalf("err = %v, want ErrContentDecryptFailed", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, cryptoenv.KeySize)
	if _, err := Decrypt("not an envelope at all", key); !errors.Is(err, ErrContentDecryptFailed) {
		t.Fatalf("err = %v, want ErrContentDecryptFailed", err)
	}
}

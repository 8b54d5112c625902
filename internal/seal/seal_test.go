package seal

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/model"
)

var testKeys *cryptoenv.KeyPair

func TestMain(m *testing.M) {
	var err error
	testKeys, err = cryptoenv.GenerateKeyPair(2048)
	if err != nil {
		panic(err)
	}
	m.Run()
}

func answerSet(text string) model.AnswerSet {
	return model.AnswerSet{
		1: {QuestionID: 1, Answer: model.AnswerValue{Text: text}, TimeSpent: 15},
		2: {QuestionID: 2, Answer: model.AnswerValue{Choices: []string{"A", "C"}}, TimeSpent: 30},
	}
}

func TestSealUnsealRoundTrip(t *testing.T) {
	sessionID := uuid.New()
	savedAt := time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

	sealer := NewSealer(testKeys.Public, zerolog.Nop())
	sealed, err := sealer.Seal(sessionID, answerSet("gravity"), savedAt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed.SessionID == nil || *sealed.SessionID != sessionID {
		t.Fatal("sealed submission lost its session binding")
	}
	if !sealed.SavedAt.Equal(savedAt) {
		t.Fatal("sealed submission lost its save time")
	}

	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	snap, err := unsealer.UnsealOne(*sealed)
	if err != nil {
		t.Fatalf("UnsealOne: %v", err)
	}
	if !snap.HashValid {
		t.Fatal("untampered snapshot flagged as hash mismatch")
	}
	if snap.Answers[1].Answer.Text != "gravity" {
		t.Fatalf("answers corrupted: %+v", snap.Answers)
	}
	if snap.SubmissionID != sealed.SubmissionID {
		t.Fatal("submission id lost in unseal")
	}
}

func TestUnsealIgnoresRewrittenOuterTimestamp(t *testing.T) {
	sessionID := uuid.New()
	sealedAt := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	sealer := NewSealer(testKeys.Public, zerolog.Nop())
	sealed, err := sealer.Seal(sessionID, answerSet("gravity"), sealedAt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Rewrite the plaintext timestamp as a client editing its local log
	// would. The sealed-in one must win.
	sealed.SavedAt = sealedAt.Add(-time.Hour)

	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	snap, err := unsealer.UnsealOne(*sealed)
	if err != nil {
		t.Fatalf("UnsealOne: %v", err)
	}
	if !snap.SavedAt.Equal(sealedAt) {
		t.Fatalf("SavedAt = %v, want authenticated %v", snap.SavedAt, sealedAt)
	}
	if !snap.HashValid {
		t.Fatal("untampered payload flagged as hash mismatch")
	}
}

func TestSealedPayloadIsOpaque(t *testing.T) {
	sealer := NewSealer(testKeys.Public, zerolog.Nop())
	sealed, _ := sealer.Seal(uuid.New(), answerSet("photosynthesis"), time.Now())

	for _, blob := range []string{sealed.EncryptedSealedAnswers, sealed.EncryptedSubmissionKey} {
		if strings.Contains(blob, "photosynthesis") {
			t.Fatal("sealed blob leaks plaintext answer")
		}
	}
}

func TestUnsealWrongServerKey(t *testing.T) {
	other, err := cryptoenv.GenerateKeyPair(2048)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	sealer := NewSealer(other.Public, zerolog.Nop())
	sealed, _ := sealer.Seal(uuid.New(), answerSet("x"), time.Now())

	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	if _, err := unsealer.UnsealOne(*sealed); !errors.Is(err, ErrSubmissionKeyUnwrapFailed) {
		t.Fatalf("err = %v, want ErrSubmissionKeyUnwrapFailed", err)
	}
}

func TestUnsealCorruptedAnswers(t *testing.T) {
	sealer := NewSealer(testKeys.Public, zerolog.Nop())
	sealed, _ := sealer.Seal(uuid.New(), answerSet("x"), time.Now())

	raw := []byte(sealed.EncryptedSealedAnswers)
	raw[len(raw)-4] ^= 0x01
	sealed.EncryptedSealedAnswers = string(raw)

	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	if _, err := unsealer.UnsealOne(*sealed); !errors.Is(err, ErrSnapshotMalformed) {
		t.Fatalf("err = %v, want ErrSnapshotMalformed", err)
	}
}

func TestUnsealBadKeyEncoding(t *testing.T) {
	sealer := NewSealer(testKeys.Public, zerolog.Nop())
	sealed, _ := sealer.Seal(uuid.New(), answerSet("x"), time.Now())
	sealed.EncryptedSubmissionKey = "not base64 at all!!!"

	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	if _, err := unsealer.UnsealOne(*sealed); !errors.Is(err, ErrSnapshotMalformed) {
		t.Fatalf("err = %v, want ErrSnapshotMalformed", err)
	}
}

// resealWithHash builds a snapshot whose embedded digest disagrees with its
// answers, simulating a client that edited answers after hashing.
func resealWithHash(t *testing.T, set model.AnswerSet, hash string) model.SealedSubmission {
	t.Helper()

	payload := model.SealedPayload{
		Answers:          set,
		FinalAnswersHash: hash,
		SealedAt:         time.Now(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	key, _ := cryptoenv.NewSymmetricKey()
	sealedData, err := cryptoenv.Seal(key, data)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	wrapped, err := cryptoenv.WrapKey(testKeys.Public, key)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	sessionID := uuid.New()
	return model.SealedSubmission{
		SubmissionID:           uuid.New(),
		SessionID:              &sessionID,
		EncryptedSealedAnswers: sealedData,
		EncryptedSubmissionKey: base64.StdEncoding.EncodeToString(wrapped),
		SavedAt:                time.Now(),
	}
}

func TestUnsealFlagsHashMismatch(t *testing.T) {
	sub := resealWithHash(t, answerSet("edited later"), "deadbeef")

	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	snap, err := unsealer.UnsealOne(sub)
	if err != nil {
		t.Fatalf("UnsealOne: %v", err)
	}
	if snap.HashValid {
		t.Fatal("mismatched digest not flagged")
	}
}

func TestUnsealBatchPreservesOrderAndDropsCorrupt(t *testing.T) {
	sessionID := uuid.New()
	sealer := NewSealer(testKeys.Public, zerolog.Nop())

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	subs := make([]model.SealedSubmission, 0, 5)
	for i := 0; i < 5; i++ {
		s, err := sealer.Seal(sessionID, answerSet(string(rune('a'+i))), base.Add(time.Duration(i)*30*time.Second))
		if err != nil {
			t.Fatalf("Seal %d: %v", i, err)
		}
		subs = append(subs, *s)
	}

	// Corrupt the third snapshot beyond repair.
	subs[2].EncryptedSubmissionKey = "%%%"

	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	result := unsealer.UnsealBatch(subs)

	if result.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", result.Dropped)
	}
	if len(result.Snapshots) != 4 {
		t.Fatalf("Snapshots = %d, want 4", len(result.Snapshots))
	}
	for i := 1; i < len(result.Snapshots); i++ {
		if result.Snapshots[i].SavedAt.Before(result.Snapshots[i-1].SavedAt) {
			t.Fatal("batch result lost upload order")
		}
	}
}

func TestUnsealBatchEmpty(t *testing.T) {
	unsealer := NewUnsealer(testKeys, zerolog.Nop())
	result := unsealer.UnsealBatch(nil)
	if result.Dropped != 0 || len(result.Snapshots) != 0 {
		t.Fatalf("empty batch result = %+v", result)
	}
}

package license

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
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

func testCodec(t *testing.T) *Codec {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, cryptoenv.KeySize)
	c, err := NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func testLicense() *model.License {
	examKey := bytes.Repeat([]byte{0x07}, cryptoenv.KeySize)
	return &model.License{
		ExamID:    uuid.New(),
		ExamKey:   examKey,
		ExamCode:  "MATH-2026",
		ExamTitle: "Mathematics Final",
		StartDate: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		IssuedAt:  time.Date(2026, 5, 30, 12, 0, 0, 0, time.UTC),
		UserID:    77,
	}
}

func TestNewCodecRejectsBadKey(t *testing.T) {
	if _, err := NewCodec([]byte("too short")); err == nil {
		t.Fatal("short key accepted")
	}
}

func TestIssueParseVerifyDecrypt(t *testing.T) {
	c := testCodec(t)
	lic := testLicense()

	signed, err := c.Issue(testKeys.Private, lic)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(signed, "v1:") {
		t.Fatalf("signed license %q missing v1 frame", signed[:16])
	}
	if strings.Contains(signed, lic.ExamCode) {
		t.Fatal("signed license leaks plaintext fields")
	}

	payload, sig, err := Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !Verify(testKeys.Public, payload, sig) {
		t.Fatal("freshly issued license fails verification")
	}

	got, err := c.Decrypt(payload)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got.ExamID != lic.ExamID || got.ExamCode != lic.ExamCode || got.UserID != lic.UserID {
		t.Fatalf("decrypted license = %+v, want %+v", got, lic)
	}
	if !bytes.Equal(got.ExamKey, lic.ExamKey) {
		t.Fatal("exam key corrupted in round trip")
	}
	if !got.StartDate.Equal(lic.StartDate) || !got.EndDate.Equal(lic.EndDate) {
		t.Fatal("license window corrupted in round trip")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	c := testCodec(t)

	signed, _ := c.Issue(testKeys.Private, testLicense())
	payload, sig, err := Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tampered := []byte(payload)
	tampered[len(tampered)/2] ^= 0x01
	if Verify(testKeys.Public, string(tampered), sig) {
		t.Fatal("tampered payload passed verification")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	c := testCodec(t)
	other, err := cryptoenv.GenerateKeyPair(2048)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	signed, _ := c.Issue(other.Private, testLicense())
	payload, sig, _ := Parse(signed)

	if Verify(testKeys.Public, payload, sig) {
		t.Fatal("signature from a different key accepted")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	c := testCodec(t)
	signed, _ := c.Issue(testKeys.Private, testLicense())
	payload, _, _ := Parse(signed)

	otherKey := bytes.Repeat([]byte{0x99}, cryptoenv.KeySize)
	wrong, _ := NewCodec(otherKey)

	if _, err := wrong.Decrypt(payload); !errors.Is(err, ErrLicenseDecryptFailed) {
		t.Fatalf("err = %v, want ErrLicenseDecryptFailed", err)
	}
}

func TestParseLegacyForm(t *testing.T) {
	c := testCodec(t)
	lic := testLicense()

	signed, _ := c.Issue(testKeys.Private, lic)
	payload, sig, _ := Parse(signed)

	// Reconstruct the unframed historical wire form. The payload contains
	// a separator internally, so this exercises the split-on-last logic.
	legacy := payload + ":" + base64Std(sig)

	gotPayload, gotSig, err := Parse(legacy)
	if err != nil {
		t.Fatalf("Parse legacy: %v", err)
	}
	if gotPayload != payload {
		t.Fatal("legacy parse split payload incorrectly")
	}
	if !Verify(testKeys.Public, gotPayload, gotSig) {
		t.Fatal("legacy-parsed license fails verification")
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		name   string
		signed string
	}{
		{"empty", ""},
		{"no separator", "justonepiece"},
		{"v1 bad length", "v1:abc:payload:c2ln"},
		{"v1 length overruns", "v1:999:short:c2ln"},
		{"v1 bad signature base64", "v1:4:abcd:!!!"},
		{"legacy bad signature base64", "payload:part:!!!"},
		{"trailing separator", "payload:"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Parse(tc.signed); !errors.Is(err, ErrMalformedLicense) {
				t.Fatalf("err = %v, want ErrMalformedLicense", err)
			}
		})
	}
}

func TestValidateWindow(t *testing.T) {
	lic := testLicense()

	cases := []struct {
		name    string
		now     time.Time
		userID  int
		wantErr error
	}{
		{"before window", lic.StartDate.Add(-time.Minute), lic.UserID, ErrLicenseNotYetActive},
		{"at start", lic.StartDate, lic.UserID, nil},
		{"inside window", lic.StartDate.Add(30 * time.Minute), lic.UserID, nil},
		{"at end", lic.EndDate, lic.UserID, nil},
		{"after window", lic.EndDate.Add(time.Second), lic.UserID, ErrLicenseExpired},
		{"wrong user", lic.StartDate.Add(time.Minute), lic.UserID + 1, ErrLicenseUserMismatch},
		{"owner check skipped", lic.StartDate.Add(time.Minute), 0, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(lic, tc.now, tc.userID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func base64Std(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Package license builds and parses the signed, encrypted license structure
// that gates access to offline exam packages.
//
// Wire format (v1, length-prefixed):
//
//	v1:<payloadLen>:<payload>:<signatureB64>
//
// where payload is the symmetric envelope of the license JSON under the
// shared license key. The explicit length removes the split-on-separator
// fragility of the legacy "<payload>:<signatureB64>" form, which Parse
// still accepts by splitting on the LAST separator (payloads legally
// contain the separator character).
package license

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/model"
)

const (
	wirePrefix    = "v1:"
	wireSeparator = ":"
)

var (
	ErrSignatureInvalid     = errors.New("license signature invalid")
	ErrLicenseDecryptFailed = errors.New("license decrypt failed")
	ErrLicenseExpired       = errors.New("license expired")
	ErrLicenseNotYetActive  = errors.New("license not yet active")
	ErrLicenseUserMismatch  = errors.New("license issued to a different user")
	ErrMalformedLicense     = errors.New("malformed signed license")
)

// Codec seals and opens licenses under the shared license-encryption key.
type Codec struct {
	licenseKey []byte
}

// NewCodec validates the shared key and returns a codec.
func NewCodec(licenseKey []byte) (*Codec, error) {
	if len(licenseKey) != cryptoenv.KeySize {
		return nil, cryptoenv.ErrInvalidKeySize
	}
	return &Codec{licenseKey: licenseKey}, nil
}

// Issue serializes the license, encrypts it under the shared license key
// with a fresh random nonce, signs the encrypted transport bytes with the
// server's private key, and frames payload plus detached signature.
func (c *Codec) Issue(priv *rsa.PrivateKey, lic *model.License) (string, error) {
	data, err := json.Marshal(lic)
	if err != nil {
		return "", fmt.Errorf("marshal license: %w", err)
	}

	payload, err := cryptoenv.Seal(c.licenseKey, data)
	if err != nil {
		return "", fmt.Errorf("seal license: %w", err)
	}

	sig, err := cryptoenv.Sign(priv, []byte(payload))
	if err != nil {
		return "", fmt.Errorf("sign license: %w", err)
	}

	return wirePrefix +
		strconv.Itoa(len(payload)) + wireSeparator +
		payload + wireSeparator +
		base64.StdEncoding.EncodeToString(sig), nil
}

// Parse splits a signed license into its encrypted payload and detached
// signature without touching either. No verification or decryption happens
// here.
func Parse(signed string) (payload string, sig []byte, err error) {
	if strings.HasPrefix(signed, wirePrefix) {
		return parseFramed(strings.TrimPrefix(signed, wirePrefix))
	}
	return parseLegacy(signed)
}

func parseFramed(rest string) (string, []byte, error) {
	sep := strings.Index(rest, wireSeparator)
	if sep < 1 {
		return "", nil, ErrMalformedLicense
	}
	n, err := strconv.Atoi(rest[:sep])
	if err != nil || n < 0 {
		return "", nil, ErrMalformedLicense
	}

	rest = rest[sep+1:]
	if len(rest) < n+1 || rest[n] != wireSeparator[0] {
		return "", nil, ErrMalformedLicense
	}

	payload := rest[:n]
	sig, err := base64.StdEncoding.DecodeString(rest[n+1:])
	if err != nil || len(sig) == 0 {
		return "", nil, ErrMalformedLicense
	}
	return payload, sig, nil
}

// parseLegacy handles the unframed "<payload>:<sig>" form. The payload
// itself contains the separator, so the split must be on the last
// occurrence — splitting on the first is the historical bug class this
// framing replaced.
func parseLegacy(signed string) (string, []byte, error) {
	sep := strings.LastIndex(signed, wireSeparator)
	if sep <= 0 || sep == len(signed)-1 {
		return "", nil, ErrMalformedLicense
	}
	sig, err := base64.StdEncoding.DecodeString(signed[sep+1:])
	if err != nil || len(sig) == 0 {
		return "", nil, ErrMalformedLicense
	}
	return signed[:sep], sig, nil
}

// Verify is a pure signature check over the encrypted payload bytes.
// Callers must not attempt decryption when it returns false.
func Verify(pub *rsa.PublicKey, payload string, sig []byte) bool {
	return cryptoenv.Verify(pub, []byte(payload), sig)
}

// Decrypt opens the encrypted payload and deserializes the license. Any
// structural anomaly yields ErrLicenseDecryptFailed, never a partial
// license.
func (c *Codec) Decrypt(payload string) (*model.License, error) {
	data, err := cryptoenv.Open(c.licenseKey, payload)
	if err != nil {
		return nil, ErrLicenseDecryptFailed
	}

	var lic model.License
	if err := json.Unmarshal(data, &lic); err != nil {
		return nil, ErrLicenseDecryptFailed
	}
	if len(lic.ExamKey) != cryptoenv.KeySize {
		return nil, ErrLicenseDecryptFailed
	}
	return &lic, nil
}

// Validate gates offline access on the license window and, when userID is
// positive, on the license owner. The clock passed in is the client's local
// clock — an accepted trust boundary of the offline design.
func Validate(lic *model.License, now time.Time, userID int) error {
	if now.Before(lic.StartDate) {
		return ErrLicenseNotYetActive
	}
	if now.After(lic.EndDate) {
		return ErrLicenseExpired
	}
	if userID > 0 && lic.UserID != userID {
		return ErrLicenseUserMismatch
	}
	return nil
}

// Package cryptoenv provides the envelope primitives used by the offline
// exam protocol: RSA-PSS signing, RSA-OAEP key wrapping for short symmetric
// keys, and AES-256-GCM for bulk payloads. Every encrypted artifact travels
// as a single delimited string carrying all material needed to decrypt it
// (nonce and ciphertext with its auth tag) — no side channel carries
// envelope metadata.
package cryptoenv

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	// KeySize is the symmetric key length (AES-256).
	KeySize = 32

	// MaxWrapSize caps the plaintext accepted by WrapKey. The asymmetric
	// primitive is for wrapping short symmetric keys, never bulk data.
	MaxWrapSize = 32

	envelopeSeparator = ":"
)

var (
	ErrInvalidKeySize    = errors.New("symmetric key must be 32 bytes")
	ErrKeyTooLarge       = errors.New("wrap payload exceeds maximum size")
	ErrMalformedEnvelope = errors.New("malformed symmetric envelope")
	ErrDecryptFailed     = errors.New("symmetric decryption failed")
	ErrUnwrapFailed      = errors.New("key unwrap failed")
)

// NewSymmetricKey returns a fresh random AES-256 key.
func NewSymmetricKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sign produces an RSA-PSS signature over the SHA-256 digest of message.
// Signing always covers the exact transport bytes of an encrypted payload,
// never plaintext.
func Sign(priv *rsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], nil)
}

// Verify reports whether sig is a valid signature of message under pub.
// A false result is terminal: the caller must not retry or partially trust
// the payload.
func Verify(pub *rsa.PublicKey, message, sig []byte) bool {
	digest := sha256.Sum256(message)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil) == nil
}

// WrapKey encrypts a short symmetric key under pub using RSA-OAEP.
func WrapKey(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	if len(key) > MaxWrapSize {
		return nil, ErrKeyTooLarge
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
}

// UnwrapKey reverses WrapKey with the private half.
func UnwrapKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return key, nil
}

// Seal encrypts plaintext with AES-256-GCM under key and encodes the result
// as "base64(nonce):base64(ciphertext||tag)". The auth tag rides inside the
// ciphertext segment; absence or mismatch on Open is a hard failure.
func Seal(key, plaintext []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(nonce) +
		envelopeSeparator +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts an envelope produced by Seal. Any structural anomaly —
// missing delimiter, bad base64, short nonce, auth failure — yields an
// error, never partial plaintext.
func Open(key []byte, envelope string) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(envelope, envelopeSeparator, 2)
	if len(parts) != 2 {
		return nil, ErrMalformedEnvelope
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrMalformedEnvelope
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

package cryptoenv

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

const (
	privateKeyPEMType = "PRIVATE KEY"
	publicKeyPEMType  = "PUBLIC KEY"
)

var ErrInvalidKeyPEM = errors.New("invalid key PEM")

// KeyPair holds the process-wide asymmetric key material. The server holds
// both halves; client builds carry only Public. It is loaded once at startup
// and threaded through component constructors — never a hidden singleton —
// and must never be logged or serialized outside this package.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// GenerateKeyPair creates a fresh RSA key pair of the given size in bits.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// LoadKeyPair reads a PKCS#8 private key PEM and derives the public half.
// Used by the server, which owns both halves.
func LoadKeyPair(privateKeyPath string) (*KeyPair, error) {
	raw, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil || block.Type != privateKeyPEMType {
		return nil, ErrInvalidKeyPEM
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}

	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// LoadPublicKey reads an SPKI public key PEM. Used by client builds, which
// never see the private half.
func LoadPublicKey(publicKeyPath string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil || block.Type != publicKeyPEMType {
		return nil, ErrInvalidKeyPEM
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}

	return pub, nil
}

// EncodePrivateKeyPEM serializes the private half as PKCS#8 PEM.
func (k *KeyPair) EncodePrivateKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.Private)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: privateKeyPEMType, Bytes: der}), nil
}

// EncodePublicKeyPEM serializes the public half as SPKI PEM. This is the
// byte-identical blob that must be distributed to every client build.
func (k *KeyPair) EncodePublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(k.Public)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: der}), nil
}

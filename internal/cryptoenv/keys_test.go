package cryptoenv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKeyPairPEMRoundTrip(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "test.pem")
	pubPath := filepath.Join(dir, "test.pub.pem")

	privPEM, err := testKeys.EncodePrivateKeyPEM()
	if err != nil {
		t.Fatalf("EncodePrivateKeyPEM: %v", err)
	}
	pubPEM, err := testKeys.EncodePublicKeyPEM()
	if err != nil {
		t.Fatalf("EncodePublicKeyPEM: %v", err)
	}

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadKeyPair(privPath)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	if !loaded.Private.Equal(testKeys.Private) {
		t.Fatal("loaded private key differs")
	}

	pub, err := LoadPublicKey(pubPath)
	if err != nil {
		t.Fatalf("LoadPublicKey: %v", err)
	}
	if !pub.Equal(testKeys.Public) {
		t.Fatal("loaded public key differs")
	}

	// The two halves still work together after a disk round trip.
	key, _ := NewSymmetricKey()
	wrapped, err := WrapKey(pub, key)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	if _, err := UnwrapKey(loaded.Private, wrapped); err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
}

func TestLoadKeyPairRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(path, []byte("not a pem at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadKeyPair(path); !errors.Is(err, ErrInvalidKeyPEM) {
		t.Fatalf("err = %v, want ErrInvalidKeyPEM", err)
	}
}

func TestLoadKeyPairMissingFile(t *testing.T) {
	if _, err := LoadKeyPair(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Fatal("missing file loaded without error")
	}
}

func TestLoadPublicKeyRejectsPrivatePEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.pem")
	privPEM, _ := testKeys.EncodePrivateKeyPEM()
	if err := os.WriteFile(path, privPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadPublicKey(path); !errors.Is(err, ErrInvalidKeyPEM) {
		t.Fatalf("err = %v, want ErrInvalidKeyPEM", err)
	}
}

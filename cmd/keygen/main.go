package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/stemsi/examvault/internal/cryptoenv"
)

func main() {
	var (
		outDir string
		bits   int
	)
	flag.StringVar(&outDir, "out", "keys", "Output directory for key material")
	flag.IntVar(&bits, "bits", 2048, "RSA key size in bits")
	flag.Parse()

	if err := os.MkdirAll(outDir, 0700); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// RSA pair used for license signing and submission-key wrapping.
	keys, err := cryptoenv.GenerateKeyPair(bits)
	if err != nil {
		log.Fatalf("Key generation failed: %v", err)
	}

	privPEM, err := keys.EncodePrivateKeyPEM()
	if err != nil {
		log.Fatalf("Private key encoding failed: %v", err)
	}
	pubPEM, err := keys.EncodePublicKeyPEM()
	if err != nil {
		log.Fatalf("Public key encoding failed: %v", err)
	}

	privPath := filepath.Join(outDir, "examvault.pem")
	pubPath := filepath.Join(outDir, "examvault.pub.pem")

	if err := os.WriteFile(privPath, privPEM, 0600); err != nil {
		log.Fatalf("Failed to write private key: %v", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0644); err != nil {
		log.Fatalf("Failed to write public key: %v", err)
	}

	// Shared AES-256 secret for license payload encryption, emitted as hex
	// so it can go straight into LICENSE_SECRET.
	secret := make([]byte, cryptoenv.KeySize)
	if _, err := rand.Read(secret); err != nil {
		log.Fatalf("Failed to generate license secret: %v", err)
	}

	fmt.Printf("Private key: %s\n", privPath)
	fmt.Printf("Public key:  %s\n", pubPath)
	fmt.Printf("\nAdd to your .env:\n")
	fmt.Printf("LICENSE_SECRET=%s\n", hex.EncodeToString(secret))
}

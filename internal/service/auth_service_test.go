package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stemsi/examvault/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func testAuthService(t *testing.T) *AuthService {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-admin"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:         "test-secret",
		JWTExpiry:         time.Hour,
		BcryptCost:        bcrypt.MinCost,
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	}
	// Sessions live in Redis; none of the paths under test touch it.
	return NewAuthService(cfg, nil)
}

func TestHashPasswordRoundTrip(t *testing.T) {
	s := testAuthService(t)

	hash, err := s.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("password stored in plaintext")
	}
	if err := s.CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("CheckPassword: %v", err)
	}
	if err := s.CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAdminLogin(t *testing.T) {
	s := testAuthService(t)

	token, err := s.AdminLogin("admin", "s3cret-admin")
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeAdmin {
		t.Fatalf("token_type = %q, want admin", claims.TokenType)
	}
}

func TestAdminLoginRejected(t *testing.T) {
	s := testAuthService(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"wrong username", "root", "s3cret-admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.AdminLogin(tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAdminLoginDisabledWithoutHash(t *testing.T) {
	s := testAuthService(t)
	s.cfg.AdminPasswordHash = ""

	if _, err := s.AdminLogin("admin", "s3cret-admin"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestGenerateAdminTokenClaims(t *testing.T) {
	s := testAuthService(t)

	token, err := s.GenerateAdminToken(7)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 7 || claims.TokenType != TokenTypeAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

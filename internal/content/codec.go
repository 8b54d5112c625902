// Package content encrypts and decrypts exam question payloads using the
// per-download key carried inside a license. Decrypt must never be invoked
// before license verification and validation succeed.
package content

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/model"
)

var ErrContentDecryptFailed = errors.New("exam content decrypt failed")

// Encrypt serializes the question set and seals it under examKey.
func Encrypt(questions []model.Question, examKey []byte) (string, error) {
	data, err := json.Marshal(questions)
	if err != nil {
		return "", fmt.Errorf("marshal questions: %w", err)
	}
	return cryptoenv.Seal(examKey, data)
}

// Decrypt opens encrypted exam data with the key extracted from a verified,
// decrypted, validated license.
func Decrypt(encrypted string, examKey []byte) ([]model.Question, error) {
	data, err := cryptoenv.Open(examKey, encrypted)
	if err != nil {
		return nil, ErrContentDecryptFailed
	}

	var questions []model.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, ErrContentDecryptFailed
	}
	return questions, nil
}

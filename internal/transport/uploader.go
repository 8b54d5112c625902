// Package transport is the client's upload path: one multipart request per
// full exam submission. Retry policy lives here, not in the crypto core —
// the server side is idempotent per session, so resending a package after a
// network failure is always safe.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/model"
)

// Uploader posts submission packages to the server API.
type Uploader struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewUploader creates an Uploader with a bearer token for the student API.
func NewUploader(baseURL, token string, log zerolog.Logger) *Uploader {
	return &Uploader{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("component", "uploader").Logger(),
	}
}

type responseEnvelope struct {
	Data  *model.SubmissionReceipt `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the full submission package as one multipart request and
// returns the server's analysis receipt.
func (u *Uploader) Upload(ctx context.Context, pkg *model.SubmissionPackage) (*model.SubmissionReceipt, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	_ = w.WriteField("exam_id", pkg.ExamID.String())
	_ = w.WriteField("session_id", pkg.SessionID.String())
	_ = w.WriteField("started_at", pkg.StartedAt.Format(time.RFC3339))
	_ = w.WriteField("finished_at", pkg.FinishedAt.Format(time.RFC3339))

	part, err := w.CreateFormFile("package", "submission_package.json")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := json.NewEncoder(part).Encode(pkg); err != nil {
		return nil, fmt.Errorf("encode package: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/v1/submissions", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload submission: %w", err)
	}
	defer resp.Body.Close()

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 || envelope.Data == nil {
		if envelope.Error != nil {
			return nil, fmt.Errorf("server rejected upload: %s (%s)", envelope.Error.Message, envelope.Error.Code)
		}
		return nil, fmt.Errorf("server rejected upload: status %d", resp.StatusCode)
	}

	u.log.Info().
		Str("session_id", envelope.Data.SessionID.String()).
		Float64("score", envelope.Data.Score).
		Int("suspicious_level", envelope.Data.SuspiciousLevel).
		Msg("Submission accepted")

	return envelope.Data, nil
}

package handler

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examvault/internal/model"
)

func TestMetadataMatchesPackage(t *testing.T) {
	pkg := &model.SubmissionPackage{
		ExamID:     uuid.New(),
		SessionID:  uuid.New(),
		StartedAt:  time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC),
	}

	matching := map[string]string{
		"exam_id":     pkg.ExamID.String(),
		"session_id":  pkg.SessionID.String(),
		"started_at":  "2026-06-01T08:00:00Z",
		"finished_at": "2026-06-01T09:30:00Z",
	}

	cases := []struct {
		name     string
		override map[string]string
		want     bool
	}{
		{"all fields agree", nil, true},
		{"exam id differs", map[string]string{"exam_id": uuid.New().String()}, false},
		{"session id differs", map[string]string{"session_id": uuid.New().String()}, false},
		{"started_at differs", map[string]string{"started_at": "2026-06-01T07:00:00Z"}, false},
		{"finished_at differs", map[string]string{"finished_at": "2026-06-01T10:00:00Z"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := make(map[string]string, len(matching))
			for k, v := range matching {
				fields[k] = v
			}
			for k, v := range tc.override {
				fields[k] = v
			}
			got := metadataMatchesPackage(func(k string) string { return fields[k] }, pkg)
			if got != tc.want {
				t.Fatalf("metadataMatchesPackage = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMetadataAbsentFieldsAccepted(t *testing.T) {
	pkg := &model.SubmissionPackage{ExamID: uuid.New(), SessionID: uuid.New()}
	if !metadataMatchesPackage(func(string) string { return "" }, pkg) {
		t.Fatal("absent metadata fields rejected")
	}
}

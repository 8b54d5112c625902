package model

import "time"

// DownloadedExamPackage is the unit persisted to local client storage, keyed
// by exam code. Created once at prefetch, read many times while offline,
// deleted on submission or explicit clear.
type DownloadedExamPackage struct {
	ExamCode          string    `json:"exam_code"`
	EncryptedExamData string    `json:"encrypted_exam_data"`
	SignedLicense     string    `json:"signed_license"`
	PrefetchedAt      time.Time `json:"prefetched_at"`
}

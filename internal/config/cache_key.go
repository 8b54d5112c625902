package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SubmissionLockKey returns the idempotency lock key for a session's
// submission processing
func (r *CacheKeyStruct) SubmissionLockKey(sessionID string) string {
	return fmt.Sprintf("submission:%s:lock", sessionID)
}

// AnalyzedSubmissionKey returns the cache key for a session's analysis result
func (r *CacheKeyStruct) AnalyzedSubmissionKey(sessionID string) string {
	return fmt.Sprintf("submission:%s:analyzed", sessionID)
}

// MonitorChannel returns the Redis PubSub channel for the live analysis feed
func (r *CacheKeyStruct) MonitorChannel() string {
	return "submissions:monitor"
}

var CacheKey = NewCacheKeyStruct()

package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentLoginKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SessionAnswersKey returns the cache key for a test session's answers hash
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionDeadlineKey returns the cache key for a test session's expiry unix timestamp
func (r *CacheKeyStruct) SessionDeadlineKey(sessionID string) string {
	return fmt.Sprintf("session:%s:deadline", sessionID)
}

// SessionWarningsKey returns the cache key for a test session's warning counter
func (r *CacheKeyStruct) SessionWarningsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:warnings", sessionID)
}

// SessionUnbanCodeKey returns the cache key for a test session's pending unban code
func (r *CacheKeyStruct) SessionUnbanCodeKey(sessionID string) string {
	return fmt.Sprintf("session:%s:unban_code", sessionID)
}

// TestQuestionsKey returns the cache key for a test's student-facing question payload
func (r *CacheKeyStruct) TestQuestionsKey(testID string) string {
	return fmt.Sprintf("test:%s:questions", testID)
}

// TestTimeLimitKey returns the cache key for a test's time limit in minutes
func (r *CacheKeyStruct) TestTimeLimitKey(testID string) string {
	return fmt.Sprintf("test:%s:time_limit", testID)
}

var CacheKey = NewCacheKeyStruct()

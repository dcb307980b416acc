package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestDefinitionKey returns the cache key for a test with its answer key.
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// AttemptStartKey holds the unix start time of a user's running attempt.
func (r *CacheKeyStruct) AttemptStartKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:started_at", userID, testID)
}

// AttemptAnswersKey is the hash of answers autosaved during an attempt.
func (r *CacheKeyStruct) AttemptAnswersKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:answers", userID, testID)
}

// AttemptAutoSubmittedKey marks an attempt that the sweeper already closed.
func (r *CacheKeyStruct) AttemptAutoSubmittedKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:auto_submitted", userID, testID)
}

// AttemptDeadlines is the sorted set of running attempts scored by deadline.
func (r *CacheKeyStruct) AttemptDeadlines() string {
	return "attempts:deadlines"
}

// AttemptMember is the AttemptDeadlines member for one attempt.
func (r *CacheKeyStruct) AttemptMember(testID string, userID int) string {
	return fmt.Sprintf("%d:%s", userID, testID)
}

// RevokedTokenKey marks a logged-out JWT by its ID.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// RateLimitKey counts requests from one client in one window.
func (r *CacheKeyStruct) RateLimitKey(scope, clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, clientIP, window)
}

var CacheKey = NewCacheKeyStruct()

package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentDraftKey returns the cache key for a student's unsubmitted answers to a test.
func (r *CacheKeyStruct) StudentDraftKey(studentID, testID string) string {
	return fmt.Sprintf("student:%s:test:%s:draft", studentID, testID)
}

// LiveSessionKey identifies a running gateway session for a student and test.
func (r *CacheKeyStruct) LiveSessionKey(studentID, testID string) string {
	return fmt.Sprintf("student:%s:test:%s:live", studentID, testID)
}

var CacheKey = NewCacheKeyStruct()

package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key holding a student's active token id
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// ExamPaperKey returns the cache key for an exam's student-facing question list
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// SweepLockKey returns the key of the cross-process auto-submission sweep lock
func (r *CacheKeyStruct) SweepLockKey() string {
	return "lock:auto_submit_sweep"
}

var CacheKey = NewCacheKeyStruct()

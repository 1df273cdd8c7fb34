package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key holding a student's active JWT ID.
func (r *CacheKeyStruct) StudentLoginKey(studentID string) string {
	return fmt.Sprintf("login:%s", studentID)
}

// QuestionOrderKey returns the cache key for a student's permuted question order.
func (r *CacheKeyStruct) QuestionOrderKey(examID, studentID string) string {
	return fmt.Sprintf("student:%s:exam:%s:question_order", studentID, examID)
}

// SessionMonitorChannel returns the Redis PubSub channel carrying live
// proctoring events for one exam.
func (r *CacheKeyStruct) SessionMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientRateLimiter_CheckRequestAllowed(t *testing.T) {
	t.Run("should allow requests under limit", func(t *testing.T) {
		limiter := NewClientRateLimiter(10, 5)

		for i := 0; i < 5; i++ {
			allowed, reason := limiter.CheckRequestAllowed()
			assert.True(t, allowed)
			assert.Empty(t, reason)
			limiter.RecordRequestStart()
			limiter.RecordRequestEnd()
		}
	})

	t.Run("should reject when concurrent limit exceeded", func(t *testing.T) {
		limiter := NewClientRateLimiter(100, 3)

		for i := 0; i < 3; i++ {
			limiter.RecordRequestStart()
		}

		allowed, reason := limiter.CheckRequestAllowed()
		assert.False(t, allowed)
		assert.Equal(t, "too many concurrent requests", reason)
	})

	t.Run("should reject when rate limit exceeded", func(t *testing.T) {
		limiter := NewClientRateLimiter(5, 10)

		for i := 0; i < 5; i++ {
			limiter.RecordRequestStart()
			limiter.RecordRequestEnd()
		}

		allowed, reason := limiter.CheckRequestAllowed()
		assert.False(t, allowed)
		assert.Equal(t, "rate limit exceeded", reason)
	})

	t.Run("should free concurrent slot after request ends", func(t *testing.T) {
		limiter := NewClientRateLimiter(100, 1)

		limiter.RecordRequestStart()
		allowed, _ := limiter.CheckRequestAllowed()
		assert.False(t, allowed)

		limiter.RecordRequestEnd()
		allowed, reason := limiter.CheckRequestAllowed()
		assert.True(t, allowed)
		assert.Empty(t, reason)
	})
}

func TestClientRateLimiter_Defaults(t *testing.T) {
	limiter := NewClientRateLimiter(0, 0)

	requestCount, concurrentCount := limiter.GetStats()
	assert.Equal(t, 0, requestCount)
	assert.Equal(t, 0, concurrentCount)

	allowed, reason := limiter.CheckRequestAllowed()
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestClientRateLimiter_GetStats(t *testing.T) {
	limiter := NewClientRateLimiter(10, 5)

	limiter.RecordRequestStart()
	limiter.RecordRequestStart()
	limiter.RecordRequestEnd()

	requestCount, concurrentCount := limiter.GetStats()
	assert.Equal(t, 2, requestCount)
	assert.Equal(t, 1, concurrentCount)
}

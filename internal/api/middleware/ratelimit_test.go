package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginLimiter_AllowsUpToLimitThenRejects(t *testing.T) {
	l := NewLoginLimiter(3, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow("1.2.3.4", now))
	assert.True(t, l.Allow("1.2.3.4", now))
	assert.True(t, l.Allow("1.2.3.4", now))
	assert.False(t, l.Allow("1.2.3.4", now))
}

func TestLoginLimiter_TracksEachIPIndependently(t *testing.T) {
	l := NewLoginLimiter(1, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow("1.1.1.1", now))
	assert.True(t, l.Allow("2.2.2.2", now))
	assert.False(t, l.Allow("1.1.1.1", now))
}

func TestLoginLimiter_ResetsAfterWindowElapses(t *testing.T) {
	l := NewLoginLimiter(1, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow("1.2.3.4", now))
	assert.False(t, l.Allow("1.2.3.4", now))
	assert.True(t, l.Allow("1.2.3.4", now.Add(2*time.Minute)))
}

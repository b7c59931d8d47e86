package ingest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	clock := &fakeClock{now: t0}
	rl := newRateLimiter(1, 2)
	rl.now = clock.Now

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"), "burst exhausted")
	assert.True(t, rl.allow("b"), "buckets are per client")

	clock.Advance(time.Second)
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))

	clock.Advance(time.Hour)
	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"), "refill is capped at burst")
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	clock := &fakeClock{now: t0}
	rl := newRateLimiter(1, 1)
	rl.now = clock.Now

	rl.allow("a")
	clock.Advance(2 * idleBucket)
	rl.allow("b")
	assert.Len(t, rl.buckets, 1)
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "10.0.0.7", clientKey(r))
	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientKey(r))
}

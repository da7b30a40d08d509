package security

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestAllowWithinLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:scan:gate1").SetVal(1)
	mock.ExpectExpire("ratelimit:scan:gate1", time.Minute).SetVal(true)
	assert.True(t, limiter.Allow(ctx, "scan:gate1"))

	mock.ExpectIncr("ratelimit:scan:gate1").SetVal(3)
	assert.True(t, limiter.Allow(ctx, "scan:gate1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)

	mock.ExpectIncr("ratelimit:scan:gate1").SetVal(4)
	assert.False(t, limiter.Allow(context.Background(), "scan:gate1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A broken limiter must not take the gate offline.
func TestAllowFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)

	mock.ExpectIncr("ratelimit:scan:gate1").SetErr(assert.AnError)
	assert.True(t, limiter.Allow(context.Background(), "scan:gate1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemaining(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 5, time.Minute)
	ctx := context.Background()

	mock.ExpectGet("ratelimit:scan:gate1").SetVal("2")
	assert.Equal(t, 3, limiter.Remaining(ctx, "scan:gate1"))

	mock.ExpectGet("ratelimit:scan:gate2").RedisNil()
	assert.Equal(t, 5, limiter.Remaining(ctx, "scan:gate2"))

	mock.ExpectGet("ratelimit:scan:gate3").SetVal("9")
	assert.Equal(t, 0, limiter.Remaining(ctx, "scan:gate3"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

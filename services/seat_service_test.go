package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-engine/internal/status"
)

func newSeatFixture(t *testing.T) (*SeatService, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewSeatService(db, 5*time.Minute), mock
}

func TestHoldSeatsSuccess(t *testing.T) {
	ctx := context.Background()
	svc, mock := newSeatFixture(t)

	mock.ExpectEval(holdSeatsScript,
		[]string{"seathold:evt1:A1", "seathold:evt1:A2"},
		"buyer-1", int64(300000)).SetVal([]interface{}{})

	err := svc.HoldSeats(ctx, "evt1", "buyer-1", []string{"A1", "A2"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldSeatsConflict(t *testing.T) {
	ctx := context.Background()
	svc, mock := newSeatFixture(t)

	mock.ExpectEval(holdSeatsScript,
		[]string{"seathold:evt1:A1", "seathold:evt1:A2"},
		"buyer-2", int64(300000)).SetVal([]interface{}{"seathold:evt1:A2"})

	err := svc.HoldSeats(ctx, "evt1", "buyer-2", []string{"A1", "A2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrSeatUnavailable)

	var seatErr *status.SeatUnavailableError
	require.ErrorAs(t, err, &seatErr)
	assert.Equal(t, []string{"A2"}, seatErr.Seats)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldSeatsEmpty(t *testing.T) {
	svc, mock := newSeatFixture(t)

	// No seats, no Redis round trip.
	assert.NoError(t, svc.HoldSeats(context.Background(), "evt1", "buyer-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseSeats(t *testing.T) {
	ctx := context.Background()
	svc, mock := newSeatFixture(t)

	mock.ExpectEval(releaseSeatsScript,
		[]string{"seathold:evt1:A1"},
		"buyer-1").SetVal(int64(1))

	assert.NoError(t, svc.ReleaseSeats(ctx, "evt1", "buyer-1", []string{"A1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeldBy(t *testing.T) {
	ctx := context.Background()
	svc, mock := newSeatFixture(t)

	mock.ExpectGet("seathold:evt1:A1").RedisNil()
	mock.ExpectGet("seathold:evt1:A2").SetVal("buyer-1")
	mock.ExpectGet("seathold:evt1:A3").SetVal("someone-else")

	conflicts, err := svc.HeldBy(ctx, "evt1", "buyer-1", []string{"A1", "A2", "A3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A3"}, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	svc, mock := newSeatFixture(t)

	mock.ExpectGet("seathold:evt1:A1").RedisNil()
	mock.ExpectGet("seathold:evt1:A2").SetVal("buyer-1")

	availability, err := svc.Availability(ctx, "evt1", []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, SeatAvailable, availability["A1"])
	assert.Equal(t, SeatHeld, availability["A2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

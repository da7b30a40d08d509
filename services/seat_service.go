package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-engine/internal/status"
)

// Seat hold states reported by Availability.
const (
	SeatAvailable = "available"
	SeatHeld      = "held"
)

// holdSeatsScript claims every requested seat or none of them. It returns
// the list of conflicting keys, empty on success.
const holdSeatsScript = `
local conflicts = {}
for i, key in ipairs(KEYS) do
	local holder = redis.call('GET', key)
	if holder and holder ~= ARGV[1] then
		table.insert(conflicts, key)
	end
end
if #conflicts > 0 then
	return conflicts
end
for i, key in ipairs(KEYS) do
	redis.call('SET', key, ARGV[1], 'PX', ARGV[2])
end
return {}
`

// releaseSeatsScript deletes only holds still owned by the caller, so an
// expired-and-reacquired seat is never released out from under its new
// holder.
const releaseSeatsScript = `
local released = 0
for i, key in ipairs(KEYS) do
	if redis.call('GET', key) == ARGV[1] then
		redis.call('DEL', key)
		released = released + 1
	end
end
return released
`

// SeatService manages provisional seat holds in Redis. Holds are TTL-scoped;
// durable seat exclusivity is enforced against ticket records at commit.
type SeatService struct {
	Redis   *redis.Client
	HoldTTL time.Duration
}

func NewSeatService(redisClient *redis.Client, holdTTL time.Duration) *SeatService {
	return &SeatService{Redis: redisClient, HoldTTL: holdTTL}
}

func seatHoldKey(eventID, seatID string) string {
	return fmt.Sprintf("seathold:%s:%s", eventID, seatID)
}

func seatFromHoldKey(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return key
	}
	return parts[2]
}

// HoldSeats places TTL holds on all requested seats, all-or-nothing. On
// conflict it returns SeatUnavailableError naming the contested seats.
func (s *SeatService) HoldSeats(ctx context.Context, eventID, holderID string, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	keys := make([]string, len(seatIDs))
	for i, seatID := range seatIDs {
		keys[i] = seatHoldKey(eventID, seatID)
	}

	res, err := s.Redis.Eval(ctx, holdSeatsScript, keys, holderID, s.HoldTTL.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("hold seats: %w", err)
	}

	conflicts, ok := res.([]interface{})
	if !ok {
		return fmt.Errorf("hold seats: unexpected script result %T", res)
	}
	if len(conflicts) == 0 {
		return nil
	}

	seats := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		if key, ok := c.(string); ok {
			seats = append(seats, seatFromHoldKey(key))
		}
	}
	return &status.SeatUnavailableError{Seats: seats}
}

// ReleaseSeats drops the caller's holds. Holds owned by someone else are
// left alone.
func (s *SeatService) ReleaseSeats(ctx context.Context, eventID, holderID string, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	keys := make([]string, len(seatIDs))
	for i, seatID := range seatIDs {
		keys[i] = seatHoldKey(eventID, seatID)
	}
	if err := s.Redis.Eval(ctx, releaseSeatsScript, keys, holderID).Err(); err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	return nil
}

// HeldBy reports which of the seats are currently held by someone other
// than holderID.
func (s *SeatService) HeldBy(ctx context.Context, eventID, holderID string, seatIDs []string) ([]string, error) {
	var conflicts []string
	for _, seatID := range seatIDs {
		holder, err := s.Redis.Get(ctx, seatHoldKey(eventID, seatID)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check seat hold: %w", err)
		}
		if holder != holderID {
			conflicts = append(conflicts, seatID)
		}
	}
	return conflicts, nil
}

// Availability reports the hold state of each seat from Redis only. Durable
// occupancy from issued tickets is layered on by the caller.
func (s *SeatService) Availability(ctx context.Context, eventID string, seatIDs []string) (map[string]string, error) {
	availability := make(map[string]string, len(seatIDs))
	for _, seatID := range seatIDs {
		err := s.Redis.Get(ctx, seatHoldKey(eventID, seatID)).Err()
		if err == redis.Nil {
			availability[seatID] = SeatAvailable
		} else if err != nil {
			return nil, fmt.Errorf("seat availability: %w", err)
		} else {
			availability[seatID] = SeatHeld
		}
	}
	return availability, nil
}

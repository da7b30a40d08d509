package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"ticket-engine/internal/status"
	"ticket-engine/models"
	"ticket-engine/store"
	"ticket-engine/utils"
)

const gateCodeLength = 6

// GateService mints scanner gates and verifies their access codes. Codes
// are displayed once at creation and stored only as bcrypt hashes, like any
// other credential.
type GateService struct {
	store      store.Store
	Redis      *redis.Client
	codeTTL    time.Duration
	sessionTTL time.Duration

	nowFn func() time.Time
}

func NewGateService(st store.Store, redisClient *redis.Client, codeTTL, sessionTTL time.Duration) *GateService {
	return &GateService{
		store:      st,
		Redis:      redisClient,
		codeTTL:    codeTTL,
		sessionTTL: sessionTTL,
		nowFn:      time.Now,
	}
}

func gateSessionKey(token string) string {
	return fmt.Sprintf("gatesession:%s", token)
}

// CreateGate mints a gate for the event and returns it together with the
// plain access code. The code is not recoverable afterwards.
func (s *GateService) CreateGate(ctx context.Context, eventID, label string) (*models.Gate, string, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, "", err
	}

	code, err := utils.GenerateOTP(gateCodeLength)
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	expires := s.nowFn().Add(s.codeTTL)
	gate := &models.Gate{
		EventID:   eventID,
		Label:     label,
		CodeHash:  string(hash),
		IsActive:  true,
		ExpiresAt: &expires,
	}
	if err := s.store.CreateGate(ctx, gate); err != nil {
		return nil, "", err
	}
	return gate, code, nil
}

// VerifyAccess checks a scanner's access code against the event's gates and
// opens a gate session. The session token keys the gate's scan tally.
func (s *GateService) VerifyAccess(ctx context.Context, eventID, code string) (*models.Gate, string, error) {
	gates, err := s.store.ListGates(ctx, eventID)
	if err != nil {
		return nil, "", err
	}

	now := s.nowFn()
	for _, gate := range gates {
		if !gate.IsActive {
			continue
		}
		if gate.ExpiresAt != nil && gate.ExpiresAt.Before(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(gate.CodeHash), []byte(code)) == nil {
			token, err := utils.GenerateCode(16)
			if err != nil {
				return nil, "", err
			}
			if err := s.Redis.Set(ctx, gateSessionKey(token), gate.ID, s.sessionTTL).Err(); err != nil {
				return nil, "", fmt.Errorf("save gate session: %w", err)
			}
			return gate, token, nil
		}
	}
	return nil, "", status.ErrGateAccessDenied
}

// ResolveSession maps a session token back to its gate id.
func (s *GateService) ResolveSession(ctx context.Context, token string) (string, error) {
	gateID, err := s.Redis.Get(ctx, gateSessionKey(token)).Result()
	if err == redis.Nil {
		return "", status.ErrGateAccessDenied
	}
	if err != nil {
		return "", fmt.Errorf("load gate session: %w", err)
	}
	return gateID, nil
}

// SetActive toggles a gate on or off.
func (s *GateService) SetActive(ctx context.Context, gateID string, active bool) error {
	return s.store.SetGateActive(ctx, gateID, active)
}

// List returns the event's gates.
func (s *GateService) List(ctx context.Context, eventID string) ([]*models.Gate, error) {
	return s.store.ListGates(ctx, eventID)
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ticket-engine/internal/status"
	"ticket-engine/store"
)

func newGateFixture(t *testing.T, st *store.MemoryStore) (*GateService, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewGateService(st, db, 24*time.Hour, 12*time.Hour), mock
}

func TestCreateGateHashesCode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 10)
	svc, _ := newGateFixture(t, st)

	gate, code, err := svc.CreateGate(ctx, ev.ID, "North")
	require.NoError(t, err)

	assert.Len(t, code, gateCodeLength)
	assert.NotContains(t, gate.CodeHash, code)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(gate.CodeHash), []byte(code)))
	assert.True(t, gate.IsActive)
	require.NotNil(t, gate.ExpiresAt)
}

func TestCreateGateUnknownEvent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc, _ := newGateFixture(t, st)

	_, _, err := svc.CreateGate(ctx, "missing", "North")
	assert.ErrorIs(t, err, status.ErrEventNotFound)
}

func TestVerifyAccess(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 10)
	svc, mock := newGateFixture(t, st)

	gate, code, err := svc.CreateGate(ctx, ev.ID, "North")
	require.NoError(t, err)

	mock.Regexp().ExpectSet(`gatesession:[A-F0-9]{32}`, gate.ID, 12*time.Hour).SetVal("OK")

	verified, token, err := svc.VerifyAccess(ctx, ev.ID, code)
	require.NoError(t, err)
	assert.Equal(t, gate.ID, verified.ID)
	assert.Len(t, token, 32)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessWrongCode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 10)
	svc, _ := newGateFixture(t, st)

	_, _, err := svc.CreateGate(ctx, ev.ID, "North")
	require.NoError(t, err)

	_, _, err = svc.VerifyAccess(ctx, ev.ID, "000000")
	assert.ErrorIs(t, err, status.ErrGateAccessDenied)
}

func TestVerifyAccessInactiveGate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 10)
	svc, _ := newGateFixture(t, st)

	gate, code, err := svc.CreateGate(ctx, ev.ID, "North")
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(ctx, gate.ID, false))

	_, _, err = svc.VerifyAccess(ctx, ev.ID, code)
	assert.ErrorIs(t, err, status.ErrGateAccessDenied)
}

func TestVerifyAccessExpiredCode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 10)
	svc, _ := newGateFixture(t, st)

	gate, code, err := svc.CreateGate(ctx, ev.ID, "North")
	require.NoError(t, err)
	_ = gate

	// Jump past the code's validity window.
	svc.nowFn = func() time.Time { return time.Now().Add(48 * time.Hour) }

	_, _, err = svc.VerifyAccess(ctx, ev.ID, code)
	assert.ErrorIs(t, err, status.ErrGateAccessDenied)
}

func TestResolveSession(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc, mock := newGateFixture(t, st)

	mock.ExpectGet("gatesession:ABC123").SetVal("gate_000001")
	gateID, err := svc.ResolveSession(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "gate_000001", gateID)

	mock.ExpectGet("gatesession:GONE").RedisNil()
	_, err = svc.ResolveSession(ctx, "GONE")
	assert.ErrorIs(t, err, status.ErrGateAccessDenied)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ticket-engine/internal/status"
	"ticket-engine/models"
	"ticket-engine/store"
)

// PromoService validates and manages discount codes. Validation is advisory;
// the usage counter is only consumed at purchase commit, inside the ticket
// insert transaction, so a validated code can still lose the race at commit.
type PromoService struct {
	store store.Store
	nowFn func() time.Time
}

func NewPromoService(st store.Store) *PromoService {
	return &PromoService{
		store: st,
		nowFn: time.Now,
	}
}

// NormalizeCode upper-cases a promo code. Codes are stored upper-cased so
// matching is case-insensitive without per-row transforms.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks that the code exists for the event, is active, is not
// expired and still has uses left. It does not consume a use.
func (s *PromoService) Validate(ctx context.Context, eventID, code string) (*models.PromoCode, error) {
	promo, err := s.store.GetPromo(ctx, eventID, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if !promo.IsActive {
		return nil, status.ErrPromoInactive
	}
	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(s.nowFn()) {
		return nil, status.ErrPromoExpired
	}
	if promo.Exhausted() {
		return nil, status.ErrPromoLimitReached
	}
	return promo, nil
}

// FinalPrice computes unit*qty discounted by pct, rounded to 2 decimal
// places half away from zero.
func FinalPrice(unitPrice float64, quantity int, discountPct float64) float64 {
	unit := decimal.NewFromFloat(unitPrice)
	qty := decimal.NewFromInt(int64(quantity))
	pct := decimal.NewFromFloat(discountPct)

	multiplier := decimal.NewFromInt(1).Sub(pct.Div(decimal.NewFromInt(100)))
	total := unit.Mul(qty).Mul(multiplier).Round(2)
	f, _ := total.Float64()
	return f
}

// CreatePromoRequest is the organizer-facing create payload.
type CreatePromoRequest struct {
	Code               string     `json:"code"`
	DiscountPercentage float64    `json:"discount_percentage"`
	TicketLimit        int        `json:"ticket_limit"` // 0 means unlimited
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

func (s *PromoService) Create(ctx context.Context, eventID string, req CreatePromoRequest) (*models.PromoCode, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, status.ErrPromoNotFound
	}
	promo := &models.PromoCode{
		EventID:            eventID,
		Code:               code,
		DiscountPercentage: req.DiscountPercentage,
		TicketLimit:        req.TicketLimit,
		IsActive:           true,
		ExpiresAt:          req.ExpiresAt,
	}
	if err := s.store.CreatePromo(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

func (s *PromoService) List(ctx context.Context, eventID string) ([]*models.PromoCode, error) {
	return s.store.ListPromos(ctx, eventID)
}

func (s *PromoService) SetActive(ctx context.Context, promoID string, active bool) error {
	return s.store.SetPromoActive(ctx, promoID, active)
}

func (s *PromoService) Delete(ctx context.Context, promoID string) error {
	return s.store.DeletePromo(ctx, promoID)
}

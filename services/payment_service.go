package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"ticket-engine/internal/status"
	"ticket-engine/models"
	"ticket-engine/store"
	"ticket-engine/utils"
)

// settledSessionTTL keeps settled sessions around briefly for status polls.
const settledSessionTTL = 24 * time.Hour

// claimPurchaseScript flips a pending session to the given terminal status
// and returns the prior JSON, or an empty string when the session is missing
// or already settled. Confirm, cancel and the sweeper all race through this
// single test-and-set, so a purchase settles exactly once.
const claimPurchaseScript = `
local raw = redis.call('GET', KEYS[1])
if not raw then
	return ''
end
local obj = cjson.decode(raw)
if obj.status ~= 'pending' then
	return ''
end
obj.status = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(obj), 'EX', tonumber(ARGV[2]))
return raw
`

// PaymentService manages purchase sessions that wait on an external payment
// signal. A session holds a capacity reservation (and seat holds) but no
// lock; settlement either issues the ticket or releases everything.
type PaymentService struct {
	Redis    *redis.Client
	PubNub   *pubnub.PubNub
	tickets  *TicketService
	ledger   *CapacityService
	seats    *SeatService
	promos   *PromoService
	store    store.Store
	notifier Notifier

	timeout       time.Duration
	sweepInterval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	nowFn func() time.Time
	idFn  func() (string, error)
}

func NewPaymentService(redisClient *redis.Client, pn *pubnub.PubNub, st store.Store, tickets *TicketService, ledger *CapacityService, seats *SeatService, promos *PromoService, notifier Notifier, timeout, sweepInterval time.Duration) *PaymentService {
	return &PaymentService{
		Redis:         redisClient,
		PubNub:        pn,
		tickets:       tickets,
		ledger:        ledger,
		seats:         seats,
		promos:        promos,
		store:         st,
		notifier:      notifier,
		timeout:       timeout,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
		nowFn:         time.Now,
		idFn:          newPurchaseID,
	}
}

func newPurchaseID() (string, error) {
	code, err := utils.GenerateCode(8)
	if err != nil {
		return "", err
	}
	return "PUR-" + code, nil
}

func purchaseKey(purchaseID string) string {
	return fmt.Sprintf("purchase:%s", purchaseID)
}

// Start launches the expiry sweeper and, when PubNub is configured, the
// payment notification subscriber.
func (s *PaymentService) Start() {
	s.wg.Add(1)
	go s.sweepExpired()

	if s.PubNub != nil {
		go s.subscribeToPaymentNotifications()
	}
}

// Shutdown stops the background workers.
func (s *PaymentService) Shutdown() {
	close(s.stopChan)
	s.wg.Wait()
}

// CreatePendingPurchase reserves capacity (and seats) for a purchase that
// will be settled by a payment signal. The promo is validated for pricing
// but not consumed until settlement.
func (s *PaymentService) CreatePendingPurchase(ctx context.Context, req IssueRequest) (*models.PendingPurchase, error) {
	ev, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != models.EventStatusActive {
		return nil, status.ErrEventNotActive
	}

	qty := req.Quantity
	if len(req.SeatIDs) > 0 {
		qty = len(req.SeatIDs)
	}
	if qty <= 0 || qty > s.tickets.maxQuantity {
		return nil, status.ErrCapacityExceeded
	}

	var discountPct float64
	var promoCode string
	if req.PromoCode != "" {
		promo, err := s.promos.Validate(ctx, req.EventID, req.PromoCode)
		if err != nil {
			return nil, err
		}
		discountPct = promo.DiscountPercentage
		promoCode = promo.Code
	}

	purchaseID, err := s.idFn()
	if err != nil {
		return nil, err
	}

	if len(req.SeatIDs) > 0 {
		if err := s.tickets.checkSeatPlan(ev, req.SeatIDs); err != nil {
			return nil, err
		}
		if err := s.seats.HoldSeats(ctx, req.EventID, purchaseID, req.SeatIDs); err != nil {
			return nil, err
		}
		if err := s.tickets.checkOccupancy(ctx, req.EventID, req.SeatIDs); err != nil {
			s.releaseSeats(ctx, req.EventID, purchaseID, req.SeatIDs)
			return nil, err
		}
	}

	if _, err := s.ledger.Reserve(ctx, req.EventID, qty); err != nil {
		s.releaseSeats(ctx, req.EventID, purchaseID, req.SeatIDs)
		return nil, err
	}

	now := s.nowFn()
	purchase := &models.PendingPurchase{
		ID:         purchaseID,
		EventID:    req.EventID,
		OwnerEmail: req.OwnerEmail,
		Quantity:   qty,
		SeatIDs:    req.SeatIDs,
		PromoCode:  promoCode,
		Amount:     FinalPrice(ev.Price, qty, discountPct),
		Status:     models.PurchaseStatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.timeout),
	}

	raw, err := json.Marshal(purchase)
	if err != nil {
		return nil, err
	}
	// No TTL: the sweeper settles expired sessions so their reservations
	// are released rather than silently dropped with the key.
	if err := s.Redis.Set(ctx, purchaseKey(purchaseID), raw, 0).Err(); err != nil {
		s.ledger.Release(ctx, &store.Reservation{EventID: req.EventID, Quantity: qty})
		s.releaseSeats(ctx, req.EventID, purchaseID, req.SeatIDs)
		return nil, fmt.Errorf("save purchase session: %w", err)
	}

	return purchase, nil
}

// GetPendingPurchase returns a session by id.
func (s *PaymentService) GetPendingPurchase(ctx context.Context, purchaseID string) (*models.PendingPurchase, error) {
	raw, err := s.Redis.Get(ctx, purchaseKey(purchaseID)).Result()
	if err == redis.Nil {
		return nil, status.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load purchase session: %w", err)
	}
	var purchase models.PendingPurchase
	if err := json.Unmarshal([]byte(raw), &purchase); err != nil {
		return nil, fmt.Errorf("decode purchase session: %w", err)
	}
	return &purchase, nil
}

// claim atomically moves a pending session to a terminal status. It returns
// the session as it was while pending.
func (s *PaymentService) claim(ctx context.Context, purchaseID, terminal string) (*models.PendingPurchase, error) {
	raw, err := s.Redis.Eval(ctx, claimPurchaseScript,
		[]string{purchaseKey(purchaseID)},
		terminal, int(settledSessionTTL.Seconds())).Text()
	if err != nil {
		return nil, fmt.Errorf("claim purchase session: %w", err)
	}
	if raw == "" {
		if _, err := s.GetPendingPurchase(ctx, purchaseID); err != nil {
			return nil, err
		}
		return nil, status.ErrPurchaseSettled
	}
	var purchase models.PendingPurchase
	if err := json.Unmarshal([]byte(raw), &purchase); err != nil {
		return nil, fmt.Errorf("decode purchase session: %w", err)
	}
	return &purchase, nil
}

// Confirm settles a pending purchase after a successful payment and issues
// the ticket under the already-held reservation.
func (s *PaymentService) Confirm(ctx context.Context, purchaseID, transactionID string) (*models.Ticket, error) {
	purchase, err := s.claim(ctx, purchaseID, models.PurchaseStatusCompleted)
	if err != nil {
		return nil, err
	}

	ticket, err := s.tickets.IssueReserved(ctx, IssueRequest{
		EventID:    purchase.EventID,
		OwnerEmail: purchase.OwnerEmail,
		Quantity:   purchase.Quantity,
		SeatIDs:    purchase.SeatIDs,
		PromoCode:  purchase.PromoCode,
		PaymentRef: transactionID,
		HoldID:     purchase.ID,
	})
	if err != nil {
		// Payment arrived but issuance failed (promo lost the race at the
		// limit, a seat double-sell caught at commit, or a storage error).
		// Give everything back; refunding is the payment provider's problem,
		// signalled by the returned error.
		s.ledger.Release(ctx, &store.Reservation{EventID: purchase.EventID, Quantity: purchase.Quantity})
		s.releaseSeats(ctx, purchase.EventID, purchase.ID, purchase.SeatIDs)
		s.markFailed(ctx, purchase)
		return nil, err
	}
	return ticket, nil
}

// markFailed records a settled-but-unissued session so status polls do not
// report a completed purchase that has no ticket. The claim already moved the
// session out of pending, so this overwrite cannot race another settlement.
func (s *PaymentService) markFailed(ctx context.Context, purchase *models.PendingPurchase) {
	purchase.Status = models.PurchaseStatusFailed
	raw, err := json.Marshal(purchase)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, purchaseKey(purchase.ID), raw, settledSessionTTL).Err(); err != nil {
		slog.Warn("failed to record failed settlement", "purchase_id", purchase.ID, "error", err)
	}
}

// Cancel settles a pending purchase without issuing, releasing its
// reservation and seat holds.
func (s *PaymentService) Cancel(ctx context.Context, purchaseID string) error {
	purchase, err := s.claim(ctx, purchaseID, models.PurchaseStatusCancelled)
	if err != nil {
		return err
	}
	s.ledger.Release(ctx, &store.Reservation{EventID: purchase.EventID, Quantity: purchase.Quantity})
	s.releaseSeats(ctx, purchase.EventID, purchase.ID, purchase.SeatIDs)
	return nil
}

func (s *PaymentService) releaseSeats(ctx context.Context, eventID, holderID string, seatIDs []string) {
	if len(seatIDs) == 0 {
		return
	}
	if err := s.seats.ReleaseSeats(ctx, eventID, holderID, seatIDs); err != nil {
		slog.Error("failed to release seat holds", "event_id", eventID, "error", err)
	}
}

// sweepExpired settles sessions whose payment window has lapsed.
func (s *PaymentService) sweepExpired() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepOnce(context.Background())
		}
	}
}

func (s *PaymentService) sweepOnce(ctx context.Context) {
	keys, err := s.Redis.Keys(ctx, "purchase:*").Result()
	if err != nil {
		slog.Error("purchase sweep failed", "error", err)
		return
	}

	now := s.nowFn()
	for _, key := range keys {
		raw, err := s.Redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var purchase models.PendingPurchase
		if err := json.Unmarshal([]byte(raw), &purchase); err != nil {
			continue
		}
		if purchase.Status != models.PurchaseStatusPending || purchase.ExpiresAt.After(now) {
			continue
		}

		claimed, err := s.claim(ctx, purchase.ID, models.PurchaseStatusExpired)
		if err != nil {
			continue
		}
		s.ledger.Release(ctx, &store.Reservation{EventID: claimed.EventID, Quantity: claimed.Quantity})
		s.releaseSeats(ctx, claimed.EventID, claimed.ID, claimed.SeatIDs)

		if ev, err := s.store.GetEvent(ctx, claimed.EventID); err == nil {
			s.notifier.PurchaseExpired(ctx, ev.EventKey, claimed.ID)
		}
		slog.Info("expired pending purchase", "purchase_id", claimed.ID, "event_id", claimed.EventID)
	}
}

func (s *PaymentService) subscribeToPaymentNotifications() {
	listener := pubnub.NewListener()

	s.PubNub.AddListener(listener)
	s.PubNub.Subscribe().
		Channels([]string{"bank-payment-notifications"}).
		Execute()

	for {
		select {
		case <-s.stopChan:
			return
		case message := <-listener.Message:
			go s.handlePaymentNotification(message)
		}
	}
}

func (s *PaymentService) handlePaymentNotification(message *pubnub.PNMessage) {
	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	jsonData, _ := json.Marshal(data)
	var notification models.PaymentNotification
	if err := json.Unmarshal(jsonData, &notification); err != nil {
		slog.Error("unparseable payment notification", "error", err)
		return
	}
	if notification.PurchaseID == "" {
		return
	}

	ctx := context.Background()

	switch notification.Status {
	case "success":
		if _, err := s.Confirm(ctx, notification.PurchaseID, notification.TransactionID); err != nil {
			slog.Error("payment confirmation failed",
				"purchase_id", notification.PurchaseID, "error", err)
		}
	case "failed", "cancelled":
		if err := s.Cancel(ctx, notification.PurchaseID); err != nil {
			slog.Warn("payment cancellation failed",
				"purchase_id", notification.PurchaseID, "error", err)
		}
	}
}

package services

import (
	"context"
	"log/slog"

	"ticket-engine/store"
)

// CapacityService is the ledger guarding an event's ticket count. All sales
// paths reserve through it before anything else is committed, so oversell is
// impossible no matter how the rest of a purchase fails.
type CapacityService struct {
	store store.Store
}

func NewCapacityService(st store.Store) *CapacityService {
	return &CapacityService{store: st}
}

// Reserve claims qty tickets against the event's capacity. The claim must be
// settled by a ticket insert or handed back via Release.
func (s *CapacityService) Reserve(ctx context.Context, eventID string, qty int) (*store.Reservation, error) {
	res, err := s.store.ReserveCapacity(ctx, eventID, qty)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Release hands back an unsettled reservation. It is best effort on the
// caller's error path, so failures are logged rather than propagated.
func (s *CapacityService) Release(ctx context.Context, res *store.Reservation) {
	if res == nil {
		return
	}
	if err := s.store.ReleaseCapacity(ctx, res); err != nil {
		slog.Error("failed to release capacity reservation",
			"event_id", res.EventID, "quantity", res.Quantity, "error", err)
	}
}

// Remaining reports how many tickets are still sellable for the event.
func (s *CapacityService) Remaining(ctx context.Context, eventID string) (int, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return ev.Remaining(), nil
}

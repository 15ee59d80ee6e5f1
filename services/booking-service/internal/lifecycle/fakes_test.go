package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aurasync/timehold/services/booking-service/internal/engine"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

// memStore mirrors the pgx store's semantics in memory: per-entity atomic
// operations guarded by one mutex, compare-and-set transitions, and an
// all-or-nothing ledger append.
type memStore struct {
	mu       sync.Mutex
	masters  map[string]model.Master
	services map[string]model.ServiceOffering
	clients  map[string]model.ClientProfile
	bookings map[string]model.Booking
	ledger   []model.LedgerTransaction

	failInsertBooking bool
	failAppendLedger  bool
}

func newMemStore() *memStore {
	return &memStore{
		masters:  map[string]model.Master{},
		services: map[string]model.ServiceOffering{},
		clients:  map[string]model.ClientProfile{},
		bookings: map[string]model.Booking{},
	}
}

func (s *memStore) GetMaster(_ context.Context, id string) (model.Master, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.masters[id]
	if !ok {
		return model.Master{}, ErrNotFound
	}
	return m, nil
}

func (s *memStore) GetService(_ context.Context, id string) (model.ServiceOffering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return model.ServiceOffering{}, ErrNotFound
	}
	return svc, nil
}

func (s *memStore) GetClient(_ context.Context, id string) (model.ClientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return model.ClientProfile{}, ErrNotFound
	}
	return c, nil
}

func (s *memStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *memStore) InsertBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertBooking {
		return errors.New("induced insert failure")
	}
	b.HoldResolved = b.PaymentIntentID == ""
	s.bookings[b.ID] = *b
	return nil
}

func (s *memStore) TransitionBooking(_ context.Context, id string, from []model.BookingStatus, to model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	matched := false
	for _, f := range from {
		if b.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("status %s: %w", b.Status, ErrInvalidTransition)
	}
	b.Status = to
	if to.Terminal() {
		b.HoldResolved = b.PaymentIntentID == ""
	}
	s.bookings[id] = b
	return nil
}

func (s *memStore) AdjustClientCounters(_ context.Context, clientID string, delta model.CounterDelta) (model.ClientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return model.ClientProfile{}, ErrNotFound
	}
	c.TotalBookings += delta.TotalBookings
	c.CompletedBookings += delta.CompletedBookings
	c.NoShows += delta.NoShows
	c.Cancellations += delta.Cancellations
	c.WalletBalance = engine.Round2(c.WalletBalance + delta.WalletCredit)
	s.clients[clientID] = c
	return c, nil
}

func (s *memStore) SetClientReliability(_ context.Context, clientID string, tier model.Reliability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	c.Reliability = tier
	s.clients[clientID] = c
	return nil
}

func (s *memStore) AppendLedger(_ context.Context, txs ...model.LedgerTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppendLedger {
		return errors.New("induced ledger failure")
	}
	s.ledger = append(s.ledger, txs...)
	return nil
}

func (s *memStore) MarkHoldResolved(_ context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	b.HoldResolved = true
	s.bookings[bookingID] = b
	return nil
}

func (s *memStore) ListUnresolvedHolds(_ context.Context, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Status.Terminal() && !b.HoldResolved {
			out = append(out, b)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) ledgerForBooking(bookingID string) []model.LedgerTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LedgerTransaction
	for _, tx := range s.ledger {
		if tx.BookingID == bookingID {
			out = append(out, tx)
		}
	}
	return out
}

// memHolds scripts the payment collaborator.
type memHolds struct {
	mu        sync.Mutex
	nextRef   int
	authErr   error
	captErr   error
	relErr    error
	captured  []string
	released  []string
	authCalls int
}

func (h *memHolds) AuthorizeHold(_ context.Context, _ float64, _ string, _ map[string]string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authCalls++
	if h.authErr != nil {
		return "", h.authErr
	}
	h.nextRef++
	return fmt.Sprintf("hold_test_%d", h.nextRef), nil
}

func (h *memHolds) CaptureHold(_ context.Context, ref string, _ float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.captErr != nil {
		return h.captErr
	}
	h.captured = append(h.captured, ref)
	return nil
}

func (h *memHolds) ReleaseHold(_ context.Context, ref string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.relErr != nil {
		return h.relErr
	}
	h.released = append(h.released, ref)
	return nil
}

type memSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *memSink) Record(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *memSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

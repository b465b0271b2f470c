package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotify/internal/bookings"
	"slotify/internal/catalog"
	"slotify/internal/clock"
	"slotify/internal/finalize"
	"slotify/internal/ledger"
	"slotify/internal/payments"
	"slotify/internal/pricing"
)

type memoryBookingStore struct {
	saved []*bookings.Booking
}

func (m *memoryBookingStore) Persist(ctx context.Context, b *bookings.Booking) error {
	m.saved = append(m.saved, b)
	return nil
}

type flowEnv struct {
	manager *Manager
	ledger  *ledger.Memory
	clock   *clock.Mock
	gateway *payments.MockGateway
	store   *memoryBookingStore
	item    *catalog.InventoryItem
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	clk := clock.NewMock(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	ldg := ledger.NewMemory(clk)
	gateway := payments.NewMockGateway()
	store := &memoryBookingStore{}
	fin := finalize.NewFinalizer(ldg, gateway, store, nil, clk)

	item := seatItem()
	cat := &fakeCatalog{items: map[uuid.UUID]*catalog.InventoryItem{item.ID: item}, ledger: ldg}
	mgr := NewManager(NewStore(), cat, ldg, pricing.NewEngine(0.05, 0.05), fin, clk, 10*time.Minute)

	return &flowEnv{manager: mgr, ledger: ldg, clock: clk, gateway: gateway, store: store, item: item}
}

func (e *flowEnv) unitID(label string) uuid.UUID {
	for _, u := range e.item.Units {
		if u.Label == label {
			return u.ID
		}
	}
	panic("unknown unit label " + label)
}

func (e *flowEnv) toReview(t *testing.T, shopperID string, labels ...string) *Session {
	t.Helper()
	ctx := context.Background()

	s, err := e.manager.Create(ctx, shopperID, e.item.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ids := make([]uuid.UUID, len(labels))
	for i, l := range labels {
		ids[i] = e.unitID(l)
	}
	s, err = e.manager.SelectUnits(ctx, s.ID, shopperID, ids)
	if err != nil || len(s.Conflicts) > 0 {
		t.Fatalf("select %v: err=%v conflicts=%v", labels, err, s.Conflicts)
	}
	if s, err = e.manager.Advance(ctx, s.ID, shopperID); err != nil {
		t.Fatalf("advance to participants: %v", err)
	}
	for _, l := range labels {
		_, err = e.manager.SetParticipant(ctx, s.ID, shopperID, e.unitID(l),
			Participant{Name: "Guest " + l, Age: 40, Gender: "MALE"})
		if err != nil {
			t.Fatalf("participant %s: %v", l, err)
		}
	}
	if s, err = e.manager.Advance(ctx, s.ID, shopperID); err != nil {
		t.Fatalf("advance to review: %v", err)
	}
	return s
}

// Two shoppers race for overlapping seats; the loser keeps what it got and
// both finalize their disjoint selections.
func TestFlow_ContendedSeatsBothConfirm(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()

	s1 := e.toReview(t, "shopper-1", "A1", "A2")
	if s1.Frozen.Total != 330.00 {
		t.Fatalf("expected frozen total 330.00, got %.2f", s1.Frozen.Total)
	}

	s2, _ := e.manager.Create(ctx, "shopper-2", e.item.ID)
	s2, err := e.manager.SelectUnits(ctx, s2.ID, "shopper-2", []uuid.UUID{e.unitID("A2"), e.unitID("A3")})
	if err != nil {
		t.Fatalf("contended select: %v", err)
	}
	if len(s2.Conflicts) != 1 || s2.Conflicts[0] != "A2" {
		t.Fatalf("expected A2 conflict for second shopper, got %v", s2.Conflicts)
	}
	if len(s2.Units) != 1 || s2.Units[0].Label != "A3" {
		t.Fatalf("expected A3 kept for second shopper, got %+v", s2.Units)
	}

	s1, res1, err := e.manager.Confirm(ctx, s1.ID, "shopper-1", "CARD")
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if s1.Stage != StageConfirmed || s1.BookingRef == "" {
		t.Fatalf("expected confirmed session with ref, got stage=%s ref=%q", s1.Stage, s1.BookingRef)
	}
	if res1.Booking.Total != 330.00 {
		t.Fatalf("expected persisted total 330.00, got %.2f", res1.Booking.Total)
	}
	if len(e.store.saved) != 1 {
		t.Fatalf("expected one persisted booking, got %d", len(e.store.saved))
	}

	states, _ := e.ledger.States(ctx, e.item.ID.String(),
		[]string{e.unitID("A1").String(), e.unitID("A2").String()})
	for id, st := range states {
		if st != ledger.UnitConsumed {
			t.Fatalf("unit %s should be consumed after confirmation, got %s", id, st)
		}
	}

	// The second shopper's disjoint hold is untouched by the first sale.
	s2, err = e.manager.Advance(ctx, s2.ID, "shopper-2")
	if err != nil {
		t.Fatalf("advance second session: %v", err)
	}
	_, err = e.manager.SetParticipant(ctx, s2.ID, "shopper-2", e.unitID("A3"),
		Participant{Name: "Solo", Age: 25, Gender: "FEMALE"})
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if s2, err = e.manager.Advance(ctx, s2.ID, "shopper-2"); err != nil {
		t.Fatalf("advance to review: %v", err)
	}
	if s2.Frozen.Total != 165.00 {
		t.Fatalf("expected 150 + 7.50 + 7.50 = 165.00, got %.2f", s2.Frozen.Total)
	}

	_, res2, err := e.manager.Confirm(ctx, s2.ID, "shopper-2", "CARD")
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if res2.Booking.Total != 165.00 || len(e.store.saved) != 2 {
		t.Fatalf("expected second booking at 165.00, got %.2f (saved=%d)", res2.Booking.Total, len(e.store.saved))
	}
}

func TestFlow_DeclinedPaymentFreesUnits(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()

	e.gateway.DeclineAmounts[330.00] = true
	s := e.toReview(t, "shopper-1", "A1", "A2")

	s, _, err := e.manager.Confirm(ctx, s.ID, "shopper-1", "CARD")
	if !errors.Is(err, finalize.ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if s.Stage != StageReviewing {
		t.Fatalf("session should return to review after a declined card, got %s", s.Stage)
	}
	if len(e.store.saved) != 0 {
		t.Fatal("no booking should exist after a declined payment")
	}

	// The reinstated units are free, not quietly re-held for this session;
	// anyone may take them now.
	states, _ := e.ledger.States(ctx, e.item.ID.String(), []string{e.unitID("A1").String()})
	if states[e.unitID("A1").String()] != ledger.UnitFree {
		t.Fatalf("expected unit free after decline, got %s", states[e.unitID("A1").String()])
	}

	// A blind retry races everyone else and, with nothing held, comes back as
	// an inventory change that reopens selection.
	delete(e.gateway.DeclineAmounts, 330.00)
	s, _, err = e.manager.Confirm(ctx, s.ID, "shopper-1", "CARD")
	if _, ok := finalize.IsInventoryChanged(err); !ok {
		t.Fatalf("expected InventoryChangedError on retry without holds, got %v", err)
	}
	if s.Stage != StageSelectingUnits {
		t.Fatalf("retry without holds should reopen selection, got %s", s.Stage)
	}

	// Re-selecting acquires fresh holds and the purchase completes.
	s, err = e.manager.SelectUnits(ctx, s.ID, "shopper-1", []uuid.UUID{e.unitID("A1"), e.unitID("A2")})
	if err != nil || len(s.Conflicts) != 0 {
		t.Fatalf("re-select: err=%v conflicts=%v", err, s.Conflicts)
	}
	if s, err = e.manager.Advance(ctx, s.ID, "shopper-1"); err != nil {
		t.Fatalf("advance to participants: %v", err)
	}
	for _, l := range []string{"A1", "A2"} {
		if _, err = e.manager.SetParticipant(ctx, s.ID, "shopper-1", e.unitID(l),
			Participant{Name: "Guest " + l, Age: 40, Gender: "MALE"}); err != nil {
			t.Fatalf("participant %s: %v", l, err)
		}
	}
	if s, err = e.manager.Advance(ctx, s.ID, "shopper-1"); err != nil {
		t.Fatalf("advance to review: %v", err)
	}

	s, res, err := e.manager.Confirm(ctx, s.ID, "shopper-1", "CARD")
	if err != nil {
		t.Fatalf("confirm after re-selection: %v", err)
	}
	if s.Stage != StageConfirmed || res.Booking.Total != 330.00 {
		t.Fatalf("expected confirmation at 330.00, got stage=%s total=%.2f", s.Stage, res.Booking.Total)
	}
}

func TestFlow_ExpiredHoldsAbortConfirmation(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()

	s := e.toReview(t, "shopper-1", "A1", "A2")

	// Let the holds lapse, then have another shopper take one of the seats.
	e.clock.Advance(11 * time.Minute)
	thief, _ := e.manager.Create(ctx, "shopper-2", e.item.ID)
	thief, err := e.manager.SelectUnits(ctx, thief.ID, "shopper-2", []uuid.UUID{e.unitID("A1")})
	if err != nil || len(thief.Conflicts) != 0 {
		t.Fatalf("expired seat should be stealable: err=%v conflicts=%v", err, thief.Conflicts)
	}

	s, _, err = e.manager.Confirm(ctx, s.ID, "shopper-1", "CARD")
	if _, ok := finalize.IsInventoryChanged(err); !ok {
		t.Fatalf("expected InventoryChangedError, got %v", err)
	}
	if s.Stage != StageSelectingUnits {
		t.Fatalf("session should reopen unit selection, got %s", s.Stage)
	}
	if len(s.Conflicts) == 0 {
		t.Fatal("lost units should be reported to the shopper")
	}
	if len(e.store.saved) != 0 {
		t.Fatal("nothing should be booked when inventory changed")
	}

	// The thief's hold must be untouched by the failed confirmation.
	states, _ := e.ledger.States(ctx, e.item.ID.String(), []string{e.unitID("A1").String()})
	if states[e.unitID("A1").String()] != ledger.UnitHeld {
		t.Fatal("the competing hold should survive the aborted finalize")
	}
}

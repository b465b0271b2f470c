package finalize

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotify/internal/bookings"
	"slotify/internal/clock"
	"slotify/internal/ledger"
	"slotify/internal/payments"
	"slotify/internal/pricing"
)

type fakeLedger struct {
	calls      []string
	consumeErr error
}

func (f *fakeLedger) Acquire(ctx context.Context, itemID string, unitIDs []string, sessionID string, ttl time.Duration) (ledger.AcquireResult, error) {
	f.calls = append(f.calls, "acquire")
	return ledger.AcquireResult{Granted: unitIDs}, nil
}

func (f *fakeLedger) Release(ctx context.Context, itemID string, unitIDs []string, sessionID string) error {
	f.calls = append(f.calls, "release")
	return nil
}

func (f *fakeLedger) Consume(ctx context.Context, itemID string, unitIDs []string, sessionID string) error {
	f.calls = append(f.calls, "consume")
	return f.consumeErr
}

func (f *fakeLedger) Reinstate(ctx context.Context, itemID string, unitIDs []string) error {
	f.calls = append(f.calls, "reinstate")
	return nil
}

func (f *fakeLedger) Validate(ctx context.Context, itemID string, unitIDs []string, sessionID string) ([]string, error) {
	f.calls = append(f.calls, "validate")
	return nil, nil
}

func (f *fakeLedger) States(ctx context.Context, itemID string, unitIDs []string) (map[string]ledger.UnitState, error) {
	f.calls = append(f.calls, "states")
	return nil, nil
}

type fakeGateway struct {
	calls   int
	failure error
	last    *payments.Authorization
}

func (f *fakeGateway) Authorize(ctx context.Context, amount float64, currency, reference, method string) (*payments.Authorization, error) {
	f.calls++
	if f.failure != nil {
		return nil, f.failure
	}
	f.last = &payments.Authorization{
		Reference:    "TXN_TEST_1",
		Amount:       amount,
		Currency:     currency,
		AuthorizedAt: time.Now(),
	}
	return f.last, nil
}

type fakeStore struct {
	saved   []*bookings.Booking
	failure error
}

func (f *fakeStore) Persist(ctx context.Context, b *bookings.Booking) error {
	if f.failure != nil {
		return f.failure
	}
	f.saved = append(f.saved, b)
	return nil
}

type fakePublisher struct {
	published []*bookings.Booking
	failure   error
}

func (f *fakePublisher) PublishBookingConfirmed(ctx context.Context, b *bookings.Booking) error {
	if f.failure != nil {
		return f.failure
	}
	f.published = append(f.published, b)
	return nil
}

func testInput() Input {
	return Input{
		SessionID:    "sess-1",
		ShopperID:    "shopper-1",
		ItemID:       uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		ItemName:     "Evening Show",
		InventoryKey: "11111111-1111-1111-1111-111111111111",
		Units: []UnitSelection{
			{UnitID: uuid.New(), Label: "A1", Price: 150.00, ParticipantName: "Ada", ParticipantAge: 34, Gender: "FEMALE"},
			{UnitID: uuid.New(), Label: "A2", Price: 150.00, ParticipantName: "Ben", ParticipantAge: 31, Gender: "MALE"},
		},
		Breakdown:     pricing.Breakdown{Subtotal: 300.00, BookingFee: 15.00, Tax: 15.00, Total: 330.00},
		Currency:      "USD",
		PaymentMethod: "CARD",
	}
}

func newTestFinalizer(l *fakeLedger, g *fakeGateway, s *fakeStore, p Publisher) *Finalizer {
	clk := clock.NewMock(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	return NewFinalizer(l, g, s, p, clk)
}

func TestFinalizer_Success(t *testing.T) {
	l := &fakeLedger{}
	g := &fakeGateway{}
	s := &fakeStore{}
	p := &fakePublisher{}
	f := newTestFinalizer(l, g, s, p)

	res, err := f.Finalize(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"consume"}; !reflect.DeepEqual(l.calls, want) {
		t.Fatalf("expected ledger calls %v, got %v", want, l.calls)
	}
	if g.calls != 1 {
		t.Fatalf("expected one authorize call, got %d", g.calls)
	}
	if len(s.saved) != 1 {
		t.Fatalf("expected one persisted booking, got %d", len(s.saved))
	}
	if len(p.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(p.published))
	}

	b := res.Booking
	if b.Total != 330.00 || b.Subtotal != 300.00 {
		t.Fatalf("breakdown not carried onto booking: %+v", b)
	}
	if b.PaymentRef != "TXN_TEST_1" {
		t.Fatalf("expected payment ref on booking, got %q", b.PaymentRef)
	}
	if len(b.Units) != 2 || b.Units[0].Label != "A1" || b.Units[0].ParticipantName != "Ada" {
		t.Fatalf("unit snapshot not preserved: %+v", b.Units)
	}
	if got := b.BookingRef; len(got) != len("SLT-20260829-XXXXXX") || got[:13] != "SLT-20260829-" {
		t.Fatalf("unexpected booking ref format: %q", got)
	}
}

func TestFinalizer_StaleHoldAbortsBeforePayment(t *testing.T) {
	l := &fakeLedger{consumeErr: &ledger.StaleHoldError{Units: []string{"u-1"}}}
	g := &fakeGateway{}
	s := &fakeStore{}
	f := newTestFinalizer(l, g, s, nil)

	_, err := f.Finalize(context.Background(), testInput())

	ice, ok := IsInventoryChanged(err)
	if !ok {
		t.Fatalf("expected InventoryChangedError, got %v", err)
	}
	if !reflect.DeepEqual(ice.Units, []string{"u-1"}) {
		t.Fatalf("expected stale units [u-1], got %v", ice.Units)
	}
	if g.calls != 0 {
		t.Fatal("payment must not be attempted when consume fails")
	}
	if len(s.saved) != 0 {
		t.Fatal("nothing should be persisted when consume fails")
	}
	for _, call := range l.calls {
		if call == "reinstate" {
			t.Fatal("nothing was consumed, so nothing should be reinstated")
		}
	}
}

func TestFinalizer_PaymentFailureReinstatesUnits(t *testing.T) {
	l := &fakeLedger{}
	g := &fakeGateway{failure: payments.ErrDeclined}
	s := &fakeStore{}
	f := newTestFinalizer(l, g, s, nil)

	_, err := f.Finalize(context.Background(), testInput())
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}

	if want := []string{"consume", "reinstate"}; !reflect.DeepEqual(l.calls, want) {
		t.Fatalf("expected compensation sequence %v, got %v", want, l.calls)
	}
	if len(s.saved) != 0 {
		t.Fatal("no booking should be persisted after a declined payment")
	}
}

func TestFinalizer_PersistFailureIsNotAPaymentFailure(t *testing.T) {
	l := &fakeLedger{}
	g := &fakeGateway{}
	s := &fakeStore{failure: errors.New("connection reset")}
	f := newTestFinalizer(l, g, s, nil)

	_, err := f.Finalize(context.Background(), testInput())

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if errors.Is(err, ErrPaymentFailed) {
		t.Fatal("a failed save after capture must not read as a payment failure")
	}
	if pe.PaymentRef != "TXN_TEST_1" {
		t.Fatalf("expected captured payment ref for reconciliation, got %q", pe.PaymentRef)
	}
	for _, call := range l.calls {
		if call == "reinstate" {
			t.Fatal("units must stay consumed when payment was captured")
		}
	}
}

func TestFinalizer_PublishFailureDoesNotFailBooking(t *testing.T) {
	l := &fakeLedger{}
	g := &fakeGateway{}
	s := &fakeStore{}
	p := &fakePublisher{failure: errors.New("broker down")}
	f := newTestFinalizer(l, g, s, p)

	res, err := f.Finalize(context.Background(), testInput())
	if err != nil {
		t.Fatalf("publish failure must not fail finalization: %v", err)
	}
	if res.Booking == nil || len(s.saved) != 1 {
		t.Fatal("booking should still be persisted")
	}
}

func TestFinalizer_RejectsEmptyInput(t *testing.T) {
	f := newTestFinalizer(&fakeLedger{}, &fakeGateway{}, &fakeStore{}, nil)

	in := testInput()
	in.Units = nil
	if _, err := f.Finalize(context.Background(), in); !errors.Is(err, ErrNotFinalizable) {
		t.Fatalf("expected ErrNotFinalizable for empty unit set, got %v", err)
	}

	in = testInput()
	in.Breakdown = pricing.Breakdown{}
	if _, err := f.Finalize(context.Background(), in); !errors.Is(err, ErrNotFinalizable) {
		t.Fatalf("expected ErrNotFinalizable for zero total, got %v", err)
	}
}

package finalize

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"slotify/internal/bookings"
	"slotify/internal/clock"
	"slotify/internal/ledger"
	"slotify/internal/payments"
	"slotify/internal/pricing"
	"slotify/pkg/logger"
)

// UnitSelection is one unit frozen at review time, with its participant.
type UnitSelection struct {
	UnitID          uuid.UUID
	Label           string
	Price           float64
	ParticipantName string
	ParticipantAge  int
	Gender          string
}

// Input is an immutable snapshot of a reviewed session. The finalizer never
// reads session state; everything it needs is captured here before the call.
type Input struct {
	SessionID     string
	ShopperID     string
	ItemID        uuid.UUID
	ItemName      string
	ShowtimeID    *uuid.UUID
	InventoryKey  string
	Units         []UnitSelection
	Breakdown     pricing.Breakdown
	Currency      string
	PaymentMethod string
}

type Result struct {
	Booking       *bookings.Booking
	Authorization *payments.Authorization
}

// BookingStore is the slice of the booking service the finalizer needs.
type BookingStore interface {
	Persist(ctx context.Context, booking *bookings.Booking) error
}

// Publisher announces confirmed bookings to downstream consumers. A nil
// publisher disables announcements; publish failures never fail the booking.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, booking *bookings.Booking) error
}

// Finalizer runs the confirmation pipeline: consume the held units, charge
// the shopper, record the booking. Each step only runs if the previous one
// succeeded, and a failed charge puts the units back.
type Finalizer struct {
	ledger  ledger.Ledger
	gateway payments.Gateway
	store   BookingStore
	pub     Publisher
	clock   clock.Clock
	log     *logger.Logger
}

func NewFinalizer(ldg ledger.Ledger, gateway payments.Gateway, store BookingStore, pub Publisher, clk clock.Clock) *Finalizer {
	return &Finalizer{
		ledger:  ldg,
		gateway: gateway,
		store:   store,
		pub:     pub,
		clock:   clk,
		log:     logger.GetDefault(),
	}
}

func (f *Finalizer) Finalize(ctx context.Context, in Input) (*Result, error) {
	if len(in.Units) == 0 {
		return nil, fmt.Errorf("%w: no units selected", ErrNotFinalizable)
	}
	if in.Breakdown.Total <= 0 {
		return nil, fmt.Errorf("%w: non-positive total %.2f", ErrNotFinalizable, in.Breakdown.Total)
	}

	unitIDs := make([]string, len(in.Units))
	for i, u := range in.Units {
		unitIDs[i] = u.UnitID.String()
	}

	// Step 1: consume. All or nothing; a stale hold anywhere aborts before
	// any money moves.
	if err := f.ledger.Consume(ctx, in.InventoryKey, unitIDs, in.SessionID); err != nil {
		var stale *ledger.StaleHoldError
		if errors.As(err, &stale) {
			f.log.Warn("finalize aborted, holds went stale",
				"session_id", in.SessionID,
				"stale_units", stale.Units,
			)
			return nil, &InventoryChangedError{Units: stale.Units}
		}
		return nil, fmt.Errorf("consume failed: %w", err)
	}

	bookingRef := f.newBookingRef()

	// Step 2: charge. On failure reinstate the consumed units; the consume
	// is never retried behind the shopper's back.
	auth, err := f.gateway.Authorize(ctx, in.Breakdown.Total, in.Currency, bookingRef, in.PaymentMethod)
	if err != nil {
		if rerr := f.ledger.Reinstate(ctx, in.InventoryKey, unitIDs); rerr != nil {
			f.log.Error("reinstate after failed payment also failed",
				"session_id", in.SessionID,
				"units", unitIDs,
				"error", rerr,
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	booking := &bookings.Booking{
		ID:            uuid.New(),
		BookingRef:    bookingRef,
		SessionID:     in.SessionID,
		ShopperID:     in.ShopperID,
		ItemID:        in.ItemID,
		ItemName:      in.ItemName,
		ShowtimeID:    in.ShowtimeID,
		Subtotal:      in.Breakdown.Subtotal,
		BookingFee:    in.Breakdown.BookingFee,
		Tax:           in.Breakdown.Tax,
		Total:         in.Breakdown.Total,
		Currency:      in.Currency,
		PaymentRef:    auth.Reference,
		PaymentMethod: in.PaymentMethod,
		Status:        "CONFIRMED",
		CreatedAt:     f.clock.Now(),
	}
	for _, u := range in.Units {
		booking.Units = append(booking.Units, bookings.BookedUnit{
			UnitID:          u.UnitID,
			Label:           u.Label,
			Price:           u.Price,
			ParticipantName: u.ParticipantName,
			ParticipantAge:  u.ParticipantAge,
			Gender:          u.Gender,
		})
	}

	// Step 3: record. The payment has been captured; a failure here is an
	// incident to reconcile, not a reason to undo the consume.
	if err := f.store.Persist(ctx, booking); err != nil {
		f.log.Error("booking paid but not recorded",
			"session_id", in.SessionID,
			"booking_ref", bookingRef,
			"payment_ref", auth.Reference,
			"error", err,
		)
		return nil, &PersistenceError{
			BookingRef: bookingRef,
			PaymentRef: auth.Reference,
			Err:        err,
		}
	}

	if f.pub != nil {
		if err := f.pub.PublishBookingConfirmed(ctx, booking); err != nil {
			f.log.Warn("failed to publish booking confirmation",
				"booking_ref", bookingRef,
				"error", err,
			)
		}
	}

	f.log.LogBookingConfirmed(ctx, bookingRef, in.SessionID, in.ShopperID)

	return &Result{Booking: booking, Authorization: auth}, nil
}

const refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newBookingRef builds a reference like SLT-20260829-K7Q2XN. Ambiguous
// characters are excluded from the alphabet.
func (f *Finalizer) newBookingRef() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(refAlphabet))))
		if err != nil {
			suffix[i] = refAlphabet[0]
			continue
		}
		suffix[i] = refAlphabet[n.Int64()]
	}
	return fmt.Sprintf("SLT-%s-%s", f.clock.Now().UTC().Format("20060102"), suffix)
}

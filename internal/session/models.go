package session

import (
	"time"

	"github.com/google/uuid"

	"slotify/internal/catalog"
	"slotify/internal/pricing"
)

// Stage is the position of a shopping session in the booking funnel.
// Transitions only move through Advance, Back, Confirm and Cancel.
type Stage string

const (
	StageSelectingSchedule     Stage = "SELECTING_SCHEDULE"
	StageSelectingUnits        Stage = "SELECTING_UNITS"
	StageCapturingParticipants Stage = "CAPTURING_PARTICIPANTS"
	StageReviewing             Stage = "REVIEWING"
	StageFinalizing            Stage = "FINALIZING"
	StageConfirmed             Stage = "CONFIRMED"
	StageAbandoned             Stage = "ABANDONED"
)

type Participant struct {
	Name   string `json:"name" validate:"required"`
	Age    int    `json:"age" validate:"gte=1,lte=120"`
	Gender string `json:"gender" validate:"required,oneof=MALE FEMALE OTHER"`
}

// SelectedUnit is one held unit in selection order. Price is captured at
// selection time so later catalog edits cannot shift an in-flight quote.
type SelectedUnit struct {
	UnitID      uuid.UUID    `json:"unit_id"`
	Label       string       `json:"label"`
	Price       float64      `json:"price"`
	Participant *Participant `json:"participant,omitempty"`
}

// Session is the single mutable workspace of one shopper buying one item.
// All access goes through the Manager, which serializes per session.
type Session struct {
	ID         string               `json:"id"`
	ShopperID  string               `json:"shopper_id"`
	ItemID     uuid.UUID            `json:"item_id"`
	ItemName   string               `json:"item_name"`
	Kind       catalog.CapacityKind `json:"kind"`
	Currency   string               `json:"currency"`
	ShowtimeID *uuid.UUID           `json:"showtime_id,omitempty"`
	Stage      Stage                `json:"stage"`
	Units      []SelectedUnit       `json:"units"`

	// Quote tracks the live selection; Frozen is set on entering review and
	// is the only breakdown finalization may use.
	Quote  *pricing.Breakdown `json:"quote,omitempty"`
	Frozen *pricing.Breakdown `json:"frozen,omitempty"`

	// Conflicts lists unit labels refused or invalidated by the ledger on the
	// most recent selection or finalization attempt.
	Conflicts []string `json:"conflicts,omitempty"`

	BookingRef    string    `json:"booking_ref,omitempty"`
	HoldExpiresAt time.Time `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Session) unitIDs() []string {
	ids := make([]string, len(s.Units))
	for i, u := range s.Units {
		ids[i] = u.UnitID.String()
	}
	return ids
}

func (s *Session) unitPrices() []float64 {
	prices := make([]float64, len(s.Units))
	for i, u := range s.Units {
		prices[i] = u.Price
	}
	return prices
}

func (s *Session) findUnit(unitID uuid.UUID) *SelectedUnit {
	for i := range s.Units {
		if s.Units[i].UnitID == unitID {
			return &s.Units[i]
		}
	}
	return nil
}

// dropUnits removes the named units from the selection, preserving order.
func (s *Session) dropUnits(ids []string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.Units[:0]
	for _, u := range s.Units {
		if _, gone := drop[u.UnitID.String()]; !gone {
			kept = append(kept, u)
		}
	}
	s.Units = kept
}

// snapshot copies the session for handing outside the manager's lock.
// Marshaling a live session would race with the next gesture mutating it.
func (s *Session) snapshot() *Session {
	c := *s
	c.Units = make([]SelectedUnit, len(s.Units))
	copy(c.Units, s.Units)
	for i := range c.Units {
		if c.Units[i].Participant != nil {
			p := *c.Units[i].Participant
			c.Units[i].Participant = &p
		}
	}
	c.Conflicts = append([]string(nil), s.Conflicts...)
	if s.Quote != nil {
		q := *s.Quote
		c.Quote = &q
	}
	if s.Frozen != nil {
		f := *s.Frozen
		c.Frozen = &f
	}
	if s.ShowtimeID != nil {
		id := *s.ShowtimeID
		c.ShowtimeID = &id
	}
	return &c
}

// taxBase maps the item kind to its tax treatment.
func (s *Session) taxBase() pricing.TaxBase {
	if s.Kind == catalog.KindQuantity {
		return pricing.TaxOnSubtotalPlusFee
	}
	return pricing.TaxOnSubtotal
}

package session

import "github.com/google/uuid"

type CreateSessionRequest struct {
	ItemID uuid.UUID `json:"item_id" binding:"required"`
}

type SetScheduleRequest struct {
	ShowtimeID uuid.UUID `json:"showtime_id" binding:"required"`
}

// SelectionRequest carries either an explicit unit list (seat-mapped items)
// or a quantity (undifferentiated items). Exactly one should be set.
type SelectionRequest struct {
	UnitIDs  []uuid.UUID `json:"unit_ids"`
	Quantity *int        `json:"quantity"`
}

type ParticipantRequest struct {
	UnitID      uuid.UUID   `json:"unit_id" binding:"required"`
	Participant Participant `json:"participant" binding:"required"`
}

type ConfirmRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

type ConfirmResponse struct {
	Session    *Session `json:"session"`
	BookingID  string   `json:"booking_id"`
	BookingRef string   `json:"booking_ref"`
	PaymentRef string   `json:"payment_ref"`
	Total      float64  `json:"total"`
	Currency   string   `json:"currency"`
}

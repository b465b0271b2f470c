package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Booking is an immutable, append-only record written once at finalization.
// There is no update path; cancellations and refunds are out of band.
type Booking struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingRef    string    `gorm:"uniqueIndex;not null" json:"booking_ref"`
	SessionID     string    `gorm:"index;not null" json:"session_id"`
	ShopperID     string    `gorm:"index;not null" json:"shopper_id"`
	ItemID        uuid.UUID `gorm:"type:uuid;index;not null" json:"item_id"`
	ItemName      string    `gorm:"not null" json:"item_name"`
	ShowtimeID    *uuid.UUID `gorm:"type:uuid" json:"showtime_id,omitempty"`
	TotalUnits    int       `gorm:"not null" json:"total_units"`
	Subtotal      float64   `gorm:"not null" json:"subtotal"`
	BookingFee    float64   `gorm:"not null" json:"booking_fee"`
	Tax           float64   `gorm:"not null" json:"tax"`
	Total         float64   `gorm:"not null" json:"total"`
	Currency      string    `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentRef    string    `gorm:"not null" json:"payment_ref"`
	PaymentMethod string    `gorm:"type:varchar(30)" json:"payment_method"`
	Status        string    `gorm:"type:varchar(20);default:'CONFIRMED'" json:"status"`
	CreatedAt     time.Time `json:"created_at"`

	Units []BookedUnit `json:"units,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
}

// BookedUnit freezes the unit and its participant at confirmation time.
// Later catalog edits never touch past bookings.
type BookedUnit struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID       uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	UnitID          uuid.UUID `gorm:"type:uuid;not null" json:"unit_id"`
	Label           string    `gorm:"not null" json:"label"`
	Price           float64   `gorm:"not null" json:"price"`
	ParticipantName string    `json:"participant_name,omitempty"`
	ParticipantAge  int       `json:"participant_age,omitempty"`
	Gender          string    `gorm:"type:varchar(10)" json:"gender,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (BookedUnit) TableName() string {
	return "booked_units"
}

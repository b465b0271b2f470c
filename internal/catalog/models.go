package catalog

import (
	"time"

	"github.com/google/uuid"
)

// CapacityKind distinguishes seat-mapped items (every unit addressable, a
// participant per unit) from undifferentiated quantity items (anonymous slots).
type CapacityKind string

const (
	KindSeatMapped CapacityKind = "SEAT_MAPPED"
	KindQuantity   CapacityKind = "QUANTITY"
)

// InventoryItem is a bookable offering: a show, trip, event or tour.
type InventoryItem struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Kind      CapacityKind `gorm:"type:varchar(20);not null;check:kind IN ('SEAT_MAPPED', 'QUANTITY')" json:"kind"`
	BasePrice float64      `gorm:"not null" json:"base_price"`
	Currency  string       `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	Status    string       `gorm:"type:varchar(20);default:'PUBLISHED'" json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	// Relationships
	Units     []Unit     `json:"units,omitempty" gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE;"`
	Showtimes []Showtime `json:"showtimes,omitempty" gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE;"`
}

// Unit is one addressable, scarce resource: a seat, berth or slot. Its label
// is unique within the item; price may differ from the item base price by tier.
type Unit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID    uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_item_unit" json:"item_id"`
	Label     string    `gorm:"not null;uniqueIndex:idx_item_unit" json:"label"`
	Tier      string    `gorm:"type:varchar(20);default:'STANDARD'" json:"tier"`
	Price     float64   `gorm:"not null" json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Showtime is the date/time dimension for items that have one. Holds are
// scoped per showtime, so the same seat can be sold for every screening.
type Showtime struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID   uuid.UUID `gorm:"type:uuid;index;not null" json:"item_id"`
	StartsAt time.Time `gorm:"not null" json:"starts_at"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

func (Unit) TableName() string {
	return "units"
}

func (Showtime) TableName() string {
	return "showtimes"
}

// HasSchedule reports whether booking this item starts with a showtime choice.
func (i *InventoryItem) HasSchedule() bool {
	return len(i.Showtimes) > 0
}

func (i *InventoryItem) IsPublished() bool {
	return i.Status == "PUBLISHED"
}

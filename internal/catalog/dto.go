package catalog

import (
	"time"

	"github.com/google/uuid"

	"slotify/internal/ledger"
)

type UnitAvailability struct {
	ID    uuid.UUID        `json:"id"`
	Label string           `json:"label"`
	Tier  string           `json:"tier"`
	Price float64          `json:"price"`
	State ledger.UnitState `json:"state"`
}

type AvailabilityResponse struct {
	ItemID     uuid.UUID          `json:"item_id"`
	ShowtimeID *uuid.UUID         `json:"showtime_id,omitempty"`
	Units      []UnitAvailability `json:"units"`
	Free       int                `json:"free"`
	Held       int                `json:"held"`
	Consumed   int                `json:"consumed"`
}

type ItemResponse struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Kind      CapacityKind `json:"kind"`
	BasePrice float64      `json:"base_price"`
	Currency  string       `json:"currency"`
	Showtimes []Showtime   `json:"showtimes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func toItemResponse(item *InventoryItem) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Kind:      item.Kind,
		BasePrice: item.BasePrice,
		Currency:  item.Currency,
		Showtimes: item.Showtimes,
		CreatedAt: item.CreatedAt,
	}
}

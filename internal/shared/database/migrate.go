package database

import (
	"slotify/internal/bookings"
	"slotify/internal/catalog"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&catalog.InventoryItem{},
		&catalog.Unit{},
		&catalog.Showtime{},
		&bookings.Booking{},
		&bookings.BookedUnit{},
	)
}

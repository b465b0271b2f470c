package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"slotify/internal/catalog"
	"slotify/internal/shared/config"
	"slotify/internal/shared/database"

	"github.com/google/uuid"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting Slotify Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order.
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"booked_units",
		"bookings",
		"units",
		"showtimes",
		"inventory_items",
	}

	for _, table := range tables {
		if err := s.db.PostgreSQL.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE").Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	if err := s.seedTheater(ctx); err != nil {
		return err
	}
	if err := s.seedSleeperTrain(ctx); err != nil {
		return err
	}
	if err := s.seedHarborTour(ctx); err != nil {
		return err
	}
	return nil
}

// seedTheater creates a seat-mapped show with two evening screenings.
// Rows A and B are premium, the rest standard.
func (s *Seeder) seedTheater(ctx context.Context) error {
	item := &catalog.InventoryItem{
		ID:        uuid.New(),
		Name:      "Midnight Orchestra — Live",
		Kind:      catalog.KindSeatMapped,
		BasePrice: 95.00,
		Currency:  "USD",
		Status:    "PUBLISHED",
	}

	rows := []struct {
		row   string
		tier  string
		price float64
	}{
		{"A", "PREMIUM", 150.00},
		{"B", "PREMIUM", 150.00},
		{"C", "STANDARD", 95.00},
		{"D", "STANDARD", 95.00},
	}
	for _, r := range rows {
		for seat := 1; seat <= 8; seat++ {
			item.Units = append(item.Units, catalog.Unit{
				ID:     uuid.New(),
				ItemID: item.ID,
				Label:  fmt.Sprintf("%s%d", r.row, seat),
				Tier:   r.tier,
				Price:  r.price,
			})
		}
	}

	base := time.Now().UTC().AddDate(0, 0, 7).Truncate(time.Hour)
	item.Showtimes = []catalog.Showtime{
		{ID: uuid.New(), ItemID: item.ID, StartsAt: base.Add(19 * time.Hour)},
		{ID: uuid.New(), ItemID: item.ID, StartsAt: base.Add(43 * time.Hour)},
	}

	if err := s.db.PostgreSQL.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to seed theater: %w", err)
	}
	fmt.Printf("   🎭 %s: %d seats, %d showtimes\n", item.Name, len(item.Units), len(item.Showtimes))
	return nil
}

// seedSleeperTrain creates a seat-mapped item without a schedule dimension.
func (s *Seeder) seedSleeperTrain(ctx context.Context) error {
	item := &catalog.InventoryItem{
		ID:        uuid.New(),
		Name:      "Coastal Sleeper — Cabin Berths",
		Kind:      catalog.KindSeatMapped,
		BasePrice: 210.00,
		Currency:  "USD",
		Status:    "PUBLISHED",
	}

	for car := 1; car <= 2; car++ {
		for berth := 1; berth <= 6; berth++ {
			tier := "STANDARD"
			price := 210.00
			if berth <= 2 {
				tier = "PREMIUM"
				price = 280.00
			}
			item.Units = append(item.Units, catalog.Unit{
				ID:     uuid.New(),
				ItemID: item.ID,
				Label:  fmt.Sprintf("CAR%d-B%d", car, berth),
				Tier:   tier,
				Price:  price,
			})
		}
	}

	if err := s.db.PostgreSQL.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to seed sleeper train: %w", err)
	}
	fmt.Printf("   🚆 %s: %d berths\n", item.Name, len(item.Units))
	return nil
}

// seedHarborTour creates a quantity item: identical slots, no seat picking.
func (s *Seeder) seedHarborTour(ctx context.Context) error {
	item := &catalog.InventoryItem{
		ID:        uuid.New(),
		Name:      "Sunset Harbor Tour",
		Kind:      catalog.KindQuantity,
		BasePrice: 80.00,
		Currency:  "USD",
		Status:    "PUBLISHED",
	}

	for slot := 1; slot <= 20; slot++ {
		item.Units = append(item.Units, catalog.Unit{
			ID:     uuid.New(),
			ItemID: item.ID,
			Label:  fmt.Sprintf("SLOT-%02d", slot),
			Tier:   "STANDARD",
			Price:  80.00,
		})
	}

	if err := s.db.PostgreSQL.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to seed harbor tour: %w", err)
	}
	fmt.Printf("   ⛵ %s: %d slots\n", item.Name, len(item.Units))
	return nil
}

package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrBookingNotFound = errors.New("booking not found")

type Service interface {
	Persist(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByRef(ctx context.Context, bookingRef string) (*Booking, error)
	ListByShopper(ctx context.Context, shopperID string) ([]Booking, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Persist writes the booking record once. Callers must treat a failure here
// as a payment-taken-but-unrecorded incident, not as a retryable save.
func (s *service) Persist(ctx context.Context, booking *Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	for i := range booking.Units {
		if booking.Units[i].ID == uuid.Nil {
			booking.Units[i].ID = uuid.New()
		}
		booking.Units[i].BookingID = booking.ID
	}
	booking.TotalUnits = len(booking.Units)
	if booking.Status == "" {
		booking.Status = "CONFIRMED"
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return fmt.Errorf("failed to persist booking %s: %w", booking.BookingRef, err)
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}
	return booking, nil
}

func (s *service) GetByRef(ctx context.Context, bookingRef string) (*Booking, error) {
	booking, err := s.repo.GetByRef(ctx, bookingRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}
	return booking, nil
}

func (s *service) ListByShopper(ctx context.Context, shopperID string) ([]Booking, error) {
	list, err := s.repo.ListByShopper(ctx, shopperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return list, nil
}

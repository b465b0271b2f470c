package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"slotify/internal/ledger"
	"slotify/internal/shared/constants"
	"slotify/pkg/cache"
)

var ErrItemNotFound = errors.New("inventory item not found")

// InventoryKey scopes ledger state per item, and per showtime when the item
// is scheduled. The same seat label is independent inventory per screening.
func InventoryKey(itemID uuid.UUID, showtimeID *uuid.UUID) string {
	if showtimeID != nil {
		return itemID.String() + ":" + showtimeID.String()
	}
	return itemID.String()
}

type Service interface {
	GetItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	ListItems(ctx context.Context) ([]ItemResponse, error)
	GetAvailability(ctx context.Context, itemID uuid.UUID, showtimeID *uuid.UUID) (*AvailabilityResponse, error)
	GetUnits(ctx context.Context, itemID uuid.UUID, unitIDs []uuid.UUID) ([]Unit, error)
	CreateItem(ctx context.Context, item *InventoryItem) error
}

type service struct {
	repo   Repository
	ledger ledger.Ledger
	cache  cache.Service
}

func NewService(repo Repository, ldg ledger.Ledger, cacheService cache.Service) Service {
	return &service{repo: repo, ledger: ldg, cache: cacheService}
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	var item InventoryItem
	cacheKey := constants.BuildItemDetailKey(id.String())

	err := s.cache.GetOrSet(ctx, cacheKey, constants.TTL_ITEM_DETAIL, func() (interface{}, error) {
		found, err := s.repo.GetItemByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrItemNotFound
			}
			return nil, fmt.Errorf("failed to fetch item: %w", err)
		}
		return found, nil
	}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *service) ListItems(ctx context.Context) ([]ItemResponse, error) {
	var responses []ItemResponse

	err := s.cache.GetOrSet(ctx, constants.CACHE_KEY_ITEMS_PUBLISHED, constants.TTL_ITEMS_PUBLISHED, func() (interface{}, error) {
		items, err := s.repo.ListItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}
		out := make([]ItemResponse, 0, len(items))
		for i := range items {
			out = append(out, toItemResponse(&items[i]))
		}
		return out, nil
	}, &responses)
	if err != nil {
		return nil, err
	}
	return responses, nil
}

// GetAvailability merges the static unit map with live hold state. The hold
// state is never cached; a stale availability view would defeat the ledger.
func (s *service) GetAvailability(ctx context.Context, itemID uuid.UUID, showtimeID *uuid.UUID) (*AvailabilityResponse, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.HasSchedule() && showtimeID == nil {
		return nil, fmt.Errorf("item %s requires a showtime", itemID)
	}

	units, err := s.repo.GetUnitsByItemID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch units: %w", err)
	}

	unitIDs := make([]string, len(units))
	for i, u := range units {
		unitIDs[i] = u.ID.String()
	}

	states, err := s.ledger.States(ctx, InventoryKey(itemID, showtimeID), unitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit states: %w", err)
	}

	resp := &AvailabilityResponse{ItemID: itemID, ShowtimeID: showtimeID}
	resp.Units = make([]UnitAvailability, len(units))
	for i, u := range units {
		state := states[u.ID.String()]
		resp.Units[i] = UnitAvailability{
			ID:    u.ID,
			Label: u.Label,
			Tier:  u.Tier,
			Price: u.Price,
			State: state,
		}
		switch state {
		case ledger.UnitHeld:
			resp.Held++
		case ledger.UnitConsumed:
			resp.Consumed++
		default:
			resp.Free++
		}
	}
	return resp, nil
}

func (s *service) GetUnits(ctx context.Context, itemID uuid.UUID, unitIDs []uuid.UUID) ([]Unit, error) {
	units, err := s.repo.GetUnitsByIDs(ctx, itemID, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch units: %w", err)
	}
	if len(units) != len(unitIDs) {
		return nil, fmt.Errorf("unknown unit in selection for item %s", itemID)
	}
	return units, nil
}

func (s *service) CreateItem(ctx context.Context, item *InventoryItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	for i := range item.Units {
		if item.Units[i].ID == uuid.Nil {
			item.Units[i].ID = uuid.New()
		}
		item.Units[i].ItemID = item.ID
	}
	for i := range item.Showtimes {
		if item.Showtimes[i].ID == uuid.Nil {
			item.Showtimes[i].ID = uuid.New()
		}
		item.Showtimes[i].ItemID = item.ID
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	_ = s.cache.DeletePattern(ctx, constants.PATTERN_INVALIDATE_CATALOG)
	return nil
}

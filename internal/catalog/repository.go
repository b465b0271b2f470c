package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetItemByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	GetUnitsByItemID(ctx context.Context, itemID uuid.UUID) ([]Unit, error)
	GetUnitsByIDs(ctx context.Context, itemID uuid.UUID, unitIDs []uuid.UUID) ([]Unit, error)
	ListItems(ctx context.Context) ([]InventoryItem, error)
	CreateItem(ctx context.Context, item *InventoryItem) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetItemByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	var item InventoryItem
	err := r.db.WithContext(ctx).
		Preload("Showtimes").
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) GetUnitsByItemID(ctx context.Context, itemID uuid.UUID) ([]Unit, error) {
	var units []Unit
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("label ASC").
		Find(&units).Error
	return units, err
}

func (r *repository) GetUnitsByIDs(ctx context.Context, itemID uuid.UUID, unitIDs []uuid.UUID) ([]Unit, error) {
	var units []Unit
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND id IN ?", itemID, unitIDs).
		Find(&units).Error
	return units, err
}

func (r *repository) ListItems(ctx context.Context) ([]InventoryItem, error) {
	var items []InventoryItem
	err := r.db.WithContext(ctx).
		Preload("Showtimes").
		Where("status = ?", "PUBLISHED").
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *repository) CreateItem(ctx context.Context, item *InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

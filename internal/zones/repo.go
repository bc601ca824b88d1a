package zones

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/internal/repo"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
)

// Repository reads the zone, producer and pallet rows the matcher needs.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) FindProducers(ctx context.Context, ids []uuid.UUID) ([]models.Producer, error) {
	return repo.FindByIDs[models.Producer](ctx, r.Base, ids)
}

func (r *Repository) FindZones(ctx context.Context, ids []uuid.UUID) ([]models.Zone, error) {
	return repo.FindByIDs[models.Zone](ctx, r.Base, ids)
}

func (r *Repository) ListZonesByType(ctx context.Context, zoneType enums.ZoneType) ([]models.Zone, error) {
	var zones []models.Zone
	err := r.DB(ctx).Where("type = ?", zoneType).Order("name ASC, id ASC").Find(&zones).Error
	return zones, err
}

// ListBookablePallets returns open, incomplete pallets serving any of the
// given zone pairs.
func (r *Repository) ListBookablePallets(ctx context.Context, pickupZoneIDs, deliveryZoneIDs []uuid.UUID) ([]models.Pallet, error) {
	if len(pickupZoneIDs) == 0 || len(deliveryZoneIDs) == 0 {
		return nil, nil
	}
	var pallets []models.Pallet
	err := r.DB(ctx).
		Where("is_complete = ?", false).
		Where("status IN ?", []enums.PalletStatus{enums.PalletStatusOpen, enums.PalletStatusConsolidating}).
		Where("pickup_zone_id IN ?", pickupZoneIDs).
		Where("delivery_zone_id IN ?", deliveryZoneIDs).
		Order("created_at ASC, id ASC").
		Find(&pallets).Error
	return pallets, err
}

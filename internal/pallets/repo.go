package pallets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/internal/repo"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/pagination"
)

// Repository persists pallets and reads the catalog rows bookings need.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to tx. A nil tx returns r unchanged.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{Base: r.Bind(tx)}
}

func (r *Repository) Create(ctx context.Context, pallet *models.Pallet) error {
	return r.DB(ctx).Create(pallet).Error
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Pallet, error) {
	var pallet models.Pallet
	if err := r.DB(ctx).Where("id = ?", id).First(&pallet).Error; err != nil {
		return nil, err
	}
	return &pallet, nil
}

// ListFilter narrows pallet listings. Completed pallets are hidden unless
// IncludeComplete is set.
type ListFilter struct {
	Status          *enums.PalletStatus
	PickupZoneID    *uuid.UUID
	DeliveryZoneID  *uuid.UUID
	IncludeComplete bool
}

// List pages through pallets, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Pallet, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.DB(ctx).Model(&models.Pallet{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.PickupZoneID != nil {
		q = q.Where("pickup_zone_id = ?", *filter.PickupZoneID)
	}
	if filter.DeliveryZoneID != nil {
		q = q.Where("delivery_zone_id = ?", *filter.DeliveryZoneID)
	}
	if !filter.IncludeComplete {
		q = q.Where("is_complete = ?", false)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Pallet
	err = q.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, params.Limit, func(p models.Pallet) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}

func (r *Repository) FindZones(ctx context.Context, ids []uuid.UUID) ([]models.Zone, error) {
	return repo.FindByIDs[models.Zone](ctx, r.Base, ids)
}

func (r *Repository) FindWines(ctx context.Context, ids []uuid.UUID) ([]models.Wine, error) {
	return repo.FindByIDs[models.Wine](ctx, r.Base, ids)
}

func (r *Repository) FindProducers(ctx context.Context, ids []uuid.UUID) ([]models.Producer, error) {
	return repo.FindByIDs[models.Producer](ctx, r.Base, ids)
}

// MarkComplete flips is_complete once. OPEN pallets move to CONSOLIDATING.
// It reports false when another writer completed the pallet first.
func (r *Repository) MarkComplete(ctx context.Context, id uuid.UUID, completedAt, paymentDeadline time.Time) (bool, error) {
	res := r.DB(ctx).Model(&models.Pallet{}).
		Where("id = ? AND is_complete = ?", id, false).
		Updates(map[string]any{
			"is_complete":      true,
			"completed_at":     completedAt.UTC(),
			"payment_deadline": paymentDeadline.UTC(),
			"status":           gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", enums.PalletStatusOpen, enums.PalletStatusConsolidating),
			"updated_at":       time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// TransitionStatus moves the pallet from one status to the next only when
// it still has the expected one.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.PalletStatus) (bool, error) {
	res := r.DB(ctx).Model(&models.Pallet{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// Reopen clears completion and returns the pallet to OPEN. Dispatched
// pallets are never touched.
func (r *Repository) Reopen(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).Model(&models.Pallet{}).
		Where("id = ? AND status IN ?", id, []enums.PalletStatus{enums.PalletStatusOpen, enums.PalletStatusConsolidating}).
		Updates(map[string]any{
			"is_complete":      false,
			"completed_at":     nil,
			"payment_deadline": nil,
			"status":           enums.PalletStatusOpen,
			"updated_at":       time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

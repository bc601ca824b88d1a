package reservations

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

// Repository persists order reservations and their items.
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

// Create inserts the reservation together with its items.
func (r *Repository) Create(ctx context.Context, reservation *models.OrderReservation) error {
	return r.DB(ctx).Create(reservation).Error
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.OrderReservation, error) {
	var reservation models.OrderReservation
	err := r.DB(ctx).Preload("Items").Where("id = ?", id).First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

type palletBottles struct {
	PalletID uuid.UUID
	Bottles  int
}

// ReservedBottles sums item quantities of active reservations per pallet.
// Pallets without active reservations map to 0.
func (r *Repository) ReservedBottles(ctx context.Context, palletIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(palletIDs))
	if len(palletIDs) == 0 {
		return out, nil
	}
	for _, id := range palletIDs {
		out[id] = 0
	}

	var rows []palletBottles
	err := r.DB(ctx).
		Table("order_reservations AS r").
		Select("r.pallet_id AS pallet_id, COALESCE(SUM(i.quantity), 0) AS bottles").
		Joins("JOIN order_reservation_items AS i ON i.reservation_id = r.id").
		Where("r.pallet_id IN ? AND r.status IN ?", palletIDs, enums.ActiveReservationStatuses).
		Group("r.pallet_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PalletID] = row.Bottles
	}
	return out, nil
}

// ReservedBottlesForPallet is ReservedBottles for a single pallet.
func (r *Repository) ReservedBottlesForPallet(ctx context.Context, palletID uuid.UUID) (int, error) {
	counts, err := r.ReservedBottles(ctx, []uuid.UUID{palletID})
	if err != nil {
		return 0, err
	}
	return counts[palletID], nil
}

// AssignPaymentDeadlines moves every placed reservation on the pallet to
// pending_payment with the given deadline and returns the affected ids.
func (r *Repository) AssignPaymentDeadlines(ctx context.Context, palletID uuid.UUID, deadline time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.OrderReservation{}).
		Where("pallet_id = ? AND status = ?", palletID, enums.ReservationStatusPlaced).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	err = r.DB(ctx).Model(&models.OrderReservation{}).
		Where("id IN ? AND status = ?", ids, enums.ReservationStatusPlaced).
		Updates(map[string]any{
			"status":           enums.ReservationStatusPendingPayment,
			"payment_deadline": deadline.UTC(),
			"updated_at":       time.Now().UTC(),
		}).Error
	return ids, err
}

// FindOverdue returns pending_payment reservations whose deadline passed.
func (r *Repository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]models.OrderReservation, error) {
	var rows []models.OrderReservation
	q := r.DB(ctx).
		Where("status = ? AND payment_deadline IS NOT NULL AND payment_deadline < ?", enums.ReservationStatusPendingPayment, now.UTC()).
		Order("payment_deadline ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return rows, q.Find(&rows).Error
}

// TransitionStatus moves the reservation to next only while it is in one of
// from. It reports whether a row changed.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.ReservationStatus, next enums.ReservationStatus) (bool, error) {
	res := r.DB(ctx).Model(&models.OrderReservation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":     next,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// ListForCustomer pages through a customer's reservations, newest first.
func (r *Repository) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.OrderReservation, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.DB(ctx).Preload("Items").Where("customer_id = ?", customerID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.OrderReservation
	err = q.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, params.Limit, func(row models.OrderReservation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

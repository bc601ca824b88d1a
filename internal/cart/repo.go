package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/internal/repo"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
)

// Repository reads persisted carts and the producer rules they need.
type Repository struct {
	repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListByCustomer returns the customer's cart in insertion order.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.DB(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// FindProducers loads producers by id; missing ids are simply absent.
func (r *Repository) FindProducers(ctx context.Context, ids []uuid.UUID) ([]models.Producer, error) {
	return repo.FindByIDs[models.Producer](ctx, r.Base, ids)
}

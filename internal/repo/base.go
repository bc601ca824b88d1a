package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by domain repositories. It carries the connection (or
// open transaction) every query runs against.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// Bind returns a Base that issues queries inside tx.
func (b Base) Bind(tx *gorm.DB) Base {
	return Base{db: tx}
}

// DB returns the connection scoped to ctx. A nil ctx yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// FindByIDs loads rows of T by primary key. Unknown ids are absent from the
// result and an empty id list never reaches the database.
func FindByIDs[T any](ctx context.Context, b Base, ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []T
	if err := b.DB(ctx).Where("id IN ?", dedupeIDs(ids)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

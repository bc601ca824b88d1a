package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/db/dbtest"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
)

func TestBaseDBBindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")
	if got := base.DB(ctx).Statement.Context; got != ctx {
		t.Fatalf("expected context to flow through, got %v", got)
	}
	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBindSwapsConnection(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		if base.Bind(tx).DB(nil) != tx {
			t.Fatalf("expected bound base to use the transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if base.DB(nil) != db {
		t.Fatalf("bind must not mutate the original base")
	}
}

func TestFindByIDs(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	first := models.Producer{ID: uuid.New(), Name: "Domaine A"}
	second := models.Producer{ID: uuid.New(), Name: "Domaine B"}
	for _, p := range []*models.Producer{&first, &second} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed producer: %v", err)
		}
	}

	rows, err := FindByIDs[models.Producer](context.Background(), base, []uuid.UUID{first.ID, first.ID, uuid.New()})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != first.ID {
		t.Fatalf("expected only the first producer, got %+v", rows)
	}

	rows, err = FindByIDs[models.Producer](context.Background(), base, nil)
	if err != nil || rows != nil {
		t.Fatalf("expected empty lookup to short-circuit, got %v %v", rows, err)
	}
}

package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/db/dbtest"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/pagination"
)

func createReservation(t *testing.T, db *gorm.DB, customerID, palletID uuid.UUID, status enums.ReservationStatus, quantities ...int) models.OrderReservation {
	t.Helper()
	reservation := models.OrderReservation{CustomerID: customerID, PalletID: palletID, Status: status}
	for _, qty := range quantities {
		reservation.Items = append(reservation.Items, models.OrderReservationItem{WineID: uuid.New(), ProducerID: uuid.New(), Quantity: qty})
	}
	require.NoError(t, NewRepository(db).Create(context.Background(), &reservation))
	return reservation
}

func TestReservedBottlesCountsActiveStatusesOnly(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	pallet, other, empty := uuid.New(), uuid.New(), uuid.New()

	createReservation(t, db, uuid.New(), pallet, enums.ReservationStatusPlaced, 6, 6)
	createReservation(t, db, uuid.New(), pallet, enums.ReservationStatusPendingPayment, 3)
	createReservation(t, db, uuid.New(), pallet, enums.ReservationStatusPaid, 3)
	createReservation(t, db, uuid.New(), pallet, enums.ReservationStatusCancelled, 12)
	createReservation(t, db, uuid.New(), pallet, enums.ReservationStatusExpired, 12)
	createReservation(t, db, uuid.New(), other, enums.ReservationStatusPlaced, 6)

	counts, err := repo.ReservedBottles(context.Background(), []uuid.UUID{pallet, other, empty})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{pallet: 18, other: 6, empty: 0}, counts)

	single, err := repo.ReservedBottlesForPallet(context.Background(), pallet)
	require.NoError(t, err)
	assert.Equal(t, 18, single)
}

func TestAssignPaymentDeadlinesOnlyTouchesPlaced(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	pallet := uuid.New()

	placed := createReservation(t, db, uuid.New(), pallet, enums.ReservationStatusPlaced, 6)
	cancelled := createReservation(t, db, uuid.New(), pallet, enums.ReservationStatusCancelled, 6)
	elsewhere := createReservation(t, db, uuid.New(), uuid.New(), enums.ReservationStatusPlaced, 6)

	deadline := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	ids, err := repo.AssignPaymentDeadlines(context.Background(), pallet, deadline)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{placed.ID}, ids)

	got, err := repo.Find(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusPendingPayment, got.Status)
	require.NotNil(t, got.PaymentDeadline)
	assert.True(t, got.PaymentDeadline.Equal(deadline))

	for _, id := range []uuid.UUID{cancelled.ID, elsewhere.ID} {
		row, err := repo.Find(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, row.PaymentDeadline)
	}
}

func TestFindOverdue(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	overdue := createReservation(t, db, uuid.New(), uuid.New(), enums.ReservationStatusPendingPayment, 6)
	current := createReservation(t, db, uuid.New(), uuid.New(), enums.ReservationStatusPendingPayment, 6)
	paid := createReservation(t, db, uuid.New(), uuid.New(), enums.ReservationStatusPaid, 6)
	require.NoError(t, db.Model(&models.OrderReservation{}).Where("id IN ?", []uuid.UUID{overdue.ID, paid.ID}).Update("payment_deadline", now.Add(-time.Hour)).Error)
	require.NoError(t, db.Model(&models.OrderReservation{}).Where("id = ?", current.ID).Update("payment_deadline", now.Add(time.Hour)).Error)

	rows, err := repo.FindOverdue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, overdue.ID, rows[0].ID)
}

func TestListForCustomerPaginates(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	customer := uuid.New()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		r := createReservation(t, db, customer, uuid.New(), enums.ReservationStatusPlaced, 6)
		require.NoError(t, db.Model(&models.OrderReservation{}).Where("id = ?", r.ID).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	createReservation(t, db, uuid.New(), uuid.New(), enums.ReservationStatusPlaced, 6)

	first, next, err := repo.ListForCustomer(context.Background(), customer, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, next)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt))
	assert.Len(t, first[0].Items, 1)

	second, next, err := repo.ListForCustomer(context.Background(), customer, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Empty(t, next)
	assert.True(t, second[0].CreatedAt.Equal(base))
}

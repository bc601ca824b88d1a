package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palletwine/palletwine-backend/pkg/db/dbtest"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	palletID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "admin"}

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventPalletStatusChanged,
		AggregateType: enums.AggregatePallet,
		AggregateID:   palletID,
		Actor:         actor,
		Data:          PalletStatusChangedEvent{PalletID: palletID, From: enums.PalletStatusConsolidating, To: enums.PalletStatusShipped},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, palletID, rows[0].AggregateID)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.NotEmpty(t, env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, actor.UserID, env.Actor.UserID)
	assert.JSONEq(t, `{"pallet_id":"`+palletID.String()+`","from":"CONSOLIDATING","to":"SHIPPED"}`, string(env.Data))
}

func TestEmitRejectsUnknownEventAndMissingTx(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), db, DomainEvent{EventType: "pallet_lost", AggregateType: enums.AggregatePallet})
	require.Error(t, err)

	err = svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventPalletCompleted, AggregateType: enums.AggregatePallet})
	require.ErrorIs(t, err, errTxRequired)
}

func TestEmitIfNotExistsIsOncePerAggregate(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	reservationID := uuid.New()

	event := DomainEvent{
		EventType:     enums.EventReservationExpired,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservationID,
		Data:          ReservationExpiredEvent{ReservationID: reservationID},
	}
	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))
	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))

	pending, err := repo.PendingCount(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		id := uuid.New()
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     enums.EventReservationPlaced,
			AggregateType: enums.AggregateReservation,
			AggregateID:   id,
			Data:          ReservationPlacedEvent{ReservationID: id, Bottles: 6},
		}))
	}

	batch, err := repo.FetchUnpublishedForPublish(db, 10, 2)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	require.NoError(t, repo.MarkPublishedTx(db, batch[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, batch[1].ID, errors.New("deadline exceeded")))
	require.NoError(t, repo.MarkFailedTx(db, batch[1].ID, errors.New("deadline exceeded")))

	batch, err = repo.FetchUnpublishedForPublish(db, 10, 2)
	require.NoError(t, err)
	require.Len(t, batch, 1, "published rows and rows out of attempts are skipped")

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", batch[0].ID).Error)
	assert.Equal(t, 0, failed.AttemptCount)
}

func TestMarkExhaustedStopsRetries(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	id := uuid.New()
	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventPalletReopened,
		AggregateType: enums.AggregatePallet,
		AggregateID:   id,
		Data:          PalletReopenedEvent{PalletID: id},
	}))

	batch, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, repo.MarkExhaustedTx(db, batch[0].ID, errors.New("bad envelope"), 5))

	batch, err = repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, batch)

	pending, err := repo.PendingCount(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestDeletePublishedBeforeHonoursLimit(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(60 * 24 * time.Hour)
	seed := []*time.Time{&old, &old, &old, &fresh, nil}
	for _, publishedAt := range seed {
		require.NoError(t, db.Create(&models.OutboxEvent{
			EventType:     enums.EventPalletReopened,
			AggregateType: enums.AggregatePallet,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			PublishedAt:   publishedAt,
		}).Error)
	}

	cutoff := old.Add(24 * time.Hour)
	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.DeletePublishedBefore(context.Background(), nil, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining, "fresh and unpublished rows survive")
}

func TestEmitRequiresAggregateAndStampsTime(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	fixed := time.Date(2026, 10, 1, 8, 30, 0, 0, time.FixedZone("CET", 3600))
	svc.now = func() time.Time { return fixed }

	err := svc.Emit(context.Background(), db, DomainEvent{EventType: enums.EventPalletCompleted, AggregateType: enums.AggregatePallet})
	require.ErrorContains(t, err, "no aggregate id")

	id := uuid.New()
	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventPalletCompleted,
		AggregateType: enums.AggregatePallet,
		AggregateID:   id,
		Data:          PalletReopenedEvent{PalletID: id},
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "aggregate_id = ?", id).Error)
	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.True(t, env.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
}

package zones

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palletwine/palletwine-backend/internal/validation"
	"github.com/palletwine/palletwine-backend/pkg/db/dbtest"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

type staticReserved map[uuid.UUID]int

func (s staticReserved) ReservedBottles(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		out[id] = s[id]
	}
	return out, nil
}

type failingResolver struct{ calls int }

func (f *failingResolver) Resolve(context.Context, types.DeliveryAddress) (types.DeliveryAddress, error) {
	f.calls++
	return types.DeliveryAddress{}, pkgerrors.New(pkgerrors.CodeDependency, "geocoder unavailable")
}

type brokenRepo struct{ zoneReader }

func (brokenRepo) FindProducers(context.Context, []uuid.UUID) ([]models.Producer, error) {
	return nil, errors.New("connection reset by peer")
}

type fixture struct {
	producer models.Producer
	pickup   models.Zone
	delivery models.Zone
	pallet   models.Pallet
}

func seed(t *testing.T, ctx context.Context, repo *Repository) fixture {
	t.Helper()
	db := repo.DB(ctx)

	pickup := models.Zone{
		Name:        "Languedoc",
		Type:        enums.ZoneTypePickup,
		Center:      &types.GeographyPoint{Lat: 43.6, Lng: 3.88},
		RadiusKm:    ptr(120.0),
		CountryCode: ptr("FR"),
	}
	require.NoError(t, db.Create(&pickup).Error)

	delivery := models.Zone{
		Name:        "Stockholm 50km",
		Type:        enums.ZoneTypeDelivery,
		Center:      &types.GeographyPoint{Lat: 59.3293, Lng: 18.0686},
		RadiusKm:    ptr(50.0),
		CountryCode: ptr("SE"),
		Cities:      pq.StringArray{"Stockholm"},
	}
	require.NoError(t, db.Create(&delivery).Error)

	producer := models.Producer{Name: "Domaine A", PickupZoneID: &pickup.ID, QuantityRule: enums.QuantityRuleMultiple, QuantityStep: 6}
	require.NoError(t, db.Create(&producer).Error)

	pallet := models.Pallet{
		Name:           "LDC-STO-01",
		PickupZoneID:   pickup.ID,
		DeliveryZoneID: delivery.ID,
		BottleCapacity: 24,
		Status:         enums.PalletStatusOpen,
		CostCents:      48000,
	}
	require.NoError(t, db.Create(&pallet).Error)

	return fixture{producer: producer, pickup: pickup, delivery: delivery, pallet: pallet}
}

func newService(t *testing.T, repo zoneReader, reserved reservedCounter, resolver *failingResolver, reg prometheus.Registerer) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "zones-test", Output: io.Discard})
	params := ServiceParams{
		Repository: repo,
		Reserved:   reserved,
		Runner:     validation.NewRunner(logg, metrics.NewValidationMetrics(reg)),
		Logger:     logg,
	}
	if resolver != nil {
		params.Resolver = resolver
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func TestDetermineReturnsPartiallyFilledPallet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	fx := seed(t, ctx, repo)

	svc := newService(t, repo, staticReserved{fx.pallet.ID: 18}, nil, prometheus.NewRegistry())
	det, err := svc.Determine(ctx, MatchInput{
		Address: types.DeliveryAddress{Lat: ptr(59.3326), Lng: ptr(18.0649), CountryCode: "SE"},
		Items:   []CartItemRef{{ItemID: uuid.New(), WineID: uuid.New(), ProducerID: fx.producer.ID, Quantity: 6}},
	})
	require.NoError(t, err)

	assert.Equal(t, MatchedByCoordinates, det.MatchedBy)
	require.Len(t, det.AvailableDeliveryZones, 1)
	assert.Equal(t, fx.delivery.ID, det.AvailableDeliveryZones[0].ID)
	require.NotNil(t, det.AvailableDeliveryZones[0].DistanceKm)
	assert.Less(t, *det.AvailableDeliveryZones[0].DistanceKm, 1.0)

	require.Len(t, det.Groups, 1)
	group := det.Groups[0]
	assert.Equal(t, fx.pickup.ID, group.PickupZone.ID)
	assert.Equal(t, "Languedoc", group.PickupZone.Name)
	assert.Equal(t, 6, group.Bottles)
	require.NotNil(t, group.DeliveryZone)
	assert.Equal(t, fx.delivery.ID, group.DeliveryZone.ID)

	require.Len(t, group.Candidates, 1)
	candidate := group.Candidates[0]
	assert.Equal(t, fx.pallet.ID, candidate.PalletID)
	assert.Equal(t, 18, candidate.ReservedBottles)
	assert.Equal(t, 6, candidate.RemainingBottles)
	require.NotNil(t, candidate.PercentFilled)
	assert.Equal(t, 75, *candidate.PercentFilled)
	assert.Equal(t, int64(2000), candidate.CostPerBottleCents)
	assert.True(t, candidate.FitsGroup)
	assert.Empty(t, det.ConfigurationGaps)
	assert.Empty(t, det.Unassignable)
}

func TestDetermineSkipsCompletedAndShippedPallets(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewRepository(db)
	fx := seed(t, ctx, repo)

	require.NoError(t, db.Model(&models.Pallet{}).Where("id = ?", fx.pallet.ID).Update("is_complete", true).Error)
	shipped := models.Pallet{Name: "old", PickupZoneID: fx.pickup.ID, DeliveryZoneID: fx.delivery.ID, BottleCapacity: 24, Status: enums.PalletStatusShipped}
	require.NoError(t, db.Create(&shipped).Error)

	svc := newService(t, repo, staticReserved{}, nil, prometheus.NewRegistry())
	det, err := svc.Determine(ctx, MatchInput{
		Address: types.DeliveryAddress{Lat: ptr(59.33), Lng: ptr(18.07)},
		Items:   []CartItemRef{{ItemID: uuid.New(), ProducerID: fx.producer.ID, Quantity: 6}},
	})
	require.NoError(t, err)
	require.Len(t, det.Groups, 1)
	assert.Empty(t, det.Groups[0].Candidates)
	require.Len(t, det.ConfigurationGaps, 1)
	assert.Equal(t, ReasonNoEligiblePallet, det.ConfigurationGaps[0].Reason)
	assert.Equal(t, fx.pickup.ID, det.ConfigurationGaps[0].PickupZone.ID)
}

func TestDetermineUncoveredAddress(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	fx := seed(t, ctx, repo)

	svc := newService(t, repo, staticReserved{}, nil, prometheus.NewRegistry())
	_, err := svc.Determine(ctx, MatchInput{
		Address: types.DeliveryAddress{Lat: ptr(55.605), Lng: ptr(13.0038), CountryCode: "SE", City: "Malmö"},
		Items:   []CartItemRef{{ItemID: uuid.New(), ProducerID: fx.producer.ID, Quantity: 6}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZonesUndeterminable)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestDetermineFallsBackToPostalWhenGeocodingFails(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	fx := seed(t, ctx, repo)
	resolver := &failingResolver{}

	svc := newService(t, repo, staticReserved{}, resolver, prometheus.NewRegistry())
	det, err := svc.Determine(ctx, MatchInput{
		Address: types.DeliveryAddress{Line: "Drottninggatan 1", City: "Stockholm", CountryCode: "se"},
		Items:   []CartItemRef{{ItemID: uuid.New(), ProducerID: fx.producer.ID, Quantity: 6}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, MatchedByPostal, det.MatchedBy)
	require.Len(t, det.AvailableDeliveryZones, 1)
	assert.Nil(t, det.AvailableDeliveryZones[0].DistanceKm)
	require.Len(t, det.Groups, 1)
	assert.Len(t, det.Groups[0].Candidates, 1)
}

func TestDetermineReportsUnassignableItems(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewRepository(db)
	fx := seed(t, ctx, repo)

	orphan := models.Producer{Name: "No Zone"}
	require.NoError(t, db.Create(&orphan).Error)

	svc := newService(t, repo, staticReserved{}, nil, prometheus.NewRegistry())
	det, err := svc.Determine(ctx, MatchInput{
		Address: types.DeliveryAddress{Lat: ptr(59.33), Lng: ptr(18.07)},
		Items: []CartItemRef{
			{ItemID: uuid.New(), ProducerID: fx.producer.ID, Quantity: 6},
			{ItemID: uuid.New(), ProducerID: orphan.ID, Quantity: 6},
		},
	})
	require.NoError(t, err)
	require.Len(t, det.Unassignable, 1)
	assert.Equal(t, orphan.ID, det.Unassignable[0].Item.ProducerID)
	assert.Equal(t, ReasonProducerMissingPickupZone, det.Unassignable[0].Reason)
	assert.Len(t, det.Groups, 1)
}

func TestDetermineRejectsEmptyInput(t *testing.T) {
	svc := newService(t, NewRepository(dbtest.Open(t)), staticReserved{}, nil, prometheus.NewRegistry())

	_, err := svc.Determine(context.Background(), MatchInput{Address: types.DeliveryAddress{CountryCode: "SE"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Determine(context.Background(), MatchInput{Items: []CartItemRef{{ProducerID: uuid.New(), Quantity: 6}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDetermineFailsClosedOnRepositoryError(t *testing.T) {
	svc := newService(t, brokenRepo{}, staticReserved{}, nil, prometheus.NewRegistry())

	det, err := svc.Determine(context.Background(), MatchInput{
		Address: types.DeliveryAddress{Lat: ptr(59.33), Lng: ptr(18.07)},
		Items:   []CartItemRef{{ItemID: uuid.New(), ProducerID: uuid.New(), Quantity: 6}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.Empty(t, det.Groups)
}

package zones

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/internal/address"
	"github.com/palletwine/palletwine-backend/internal/validation"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

const matcherName = "zone_matcher"

type zoneReader interface {
	FindProducers(ctx context.Context, ids []uuid.UUID) ([]models.Producer, error)
	FindZones(ctx context.Context, ids []uuid.UUID) ([]models.Zone, error)
	ListZonesByType(ctx context.Context, zoneType enums.ZoneType) ([]models.Zone, error)
	ListBookablePallets(ctx context.Context, pickupZoneIDs, deliveryZoneIDs []uuid.UUID) ([]models.Pallet, error)
}

type reservedCounter interface {
	ReservedBottles(ctx context.Context, palletIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type ServiceParams struct {
	Repository zoneReader
	Reserved   reservedCounter
	Resolver   address.Resolver
	Runner     *validation.Runner
	Logger     *logger.Logger
}

// Service determines delivery zones and pallet candidates for a cart. It
// fails closed: infrastructure errors never produce a default zone.
type Service struct {
	repo     zoneReader
	reserved reservedCounter
	resolver address.Resolver
	runner   *validation.Runner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("zones repository required")
	}
	if params.Reserved == nil {
		return nil, errors.New("reserved bottle counter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:     params.Repository,
		reserved: params.Reserved,
		resolver: params.Resolver,
		runner:   params.Runner,
		logg:     logg,
	}, nil
}

// Determine matches the cart against delivery zones and pallets.
func (s *Service) Determine(ctx context.Context, input MatchInput) (Determination, error) {
	return validation.Run(ctx, s.runner, matcherName, validation.FailClosed, Determination{}, func(ctx context.Context) (Determination, error) {
		return s.determine(ctx, input)
	})
}

func (s *Service) determine(ctx context.Context, input MatchInput) (Determination, error) {
	if len(input.Items) == 0 {
		return Determination{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	addr := input.Address
	if _, ok := addr.Point(); !ok && !addr.HasPostalFields() && !addr.Geocodable() {
		return Determination{}, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}

	producers, err := s.loadProducers(ctx, input.Items)
	if err != nil {
		return Determination{}, err
	}
	groups, unassignable := groupByPickupZone(input.Items, producers)

	addr = s.resolveAddress(ctx, input)
	matchedBy := MatchedByPostal
	if _, ok := addr.Point(); ok {
		matchedBy = MatchedByCoordinates
	}

	deliveryZones, err := s.repo.ListZonesByType(ctx, enums.ZoneTypeDelivery)
	if err != nil {
		return Determination{}, err
	}
	matches := MatchDeliveryZones(deliveryZones, addr)
	if len(matches) == 0 {
		return Determination{}, ErrZonesUndeterminable
	}

	pickupIDs := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		pickupIDs = append(pickupIDs, g.zoneID)
	}
	pickupZones, err := s.repo.FindZones(ctx, pickupIDs)
	if err != nil {
		return Determination{}, err
	}
	pickupByID := make(map[uuid.UUID]models.Zone, len(pickupZones))
	for _, z := range pickupZones {
		pickupByID[z.ID] = z
	}

	deliveryIDs := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		deliveryIDs = append(deliveryIDs, m.ID)
	}
	pallets, err := s.repo.ListBookablePallets(ctx, pickupIDs, deliveryIDs)
	if err != nil {
		return Determination{}, err
	}
	palletIDs := make([]uuid.UUID, 0, len(pallets))
	for _, p := range pallets {
		palletIDs = append(palletIDs, p.ID)
	}
	reserved := map[uuid.UUID]int{}
	if len(palletIDs) > 0 {
		reserved, err = s.reserved.ReservedBottles(ctx, palletIDs)
		if err != nil {
			return Determination{}, err
		}
	}

	return assemble(groups, unassignable, pickupByID, matches, pallets, reserved, matchedBy), nil
}

func (s *Service) loadProducers(ctx context.Context, items []CartItemRef) (map[uuid.UUID]models.Producer, error) {
	seen := map[uuid.UUID]struct{}{}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProducerID]; ok {
			continue
		}
		seen[item.ProducerID] = struct{}{}
		ids = append(ids, item.ProducerID)
	}
	rows, err := s.repo.FindProducers(ctx, ids)
	if err != nil {
		return nil, err
	}
	producers := make(map[uuid.UUID]models.Producer, len(rows))
	for _, p := range rows {
		producers[p.ID] = p
	}
	return producers, nil
}

// resolveAddress geocodes when coordinates are missing. Failure is logged
// and matching continues on postal rules.
func (s *Service) resolveAddress(ctx context.Context, input MatchInput) types.DeliveryAddress {
	addr := input.Address
	if _, ok := addr.Point(); ok || s.resolver == nil || !addr.Geocodable() {
		return addr
	}
	resolved, err := s.resolver.Resolve(ctx, addr)
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"geocode_query": addr.GeocodeQuery(),
			"error":         err.Error(),
		})
		s.logg.Warn(logCtx, "geocoding failed; falling back to postal zone matching")
		return addr
	}
	return resolved
}

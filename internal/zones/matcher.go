package zones

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/geo"
	"github.com/palletwine/palletwine-backend/pkg/pallet"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

// ZoneContains reports whether addr falls inside zone. Radius zones are
// tested geometrically when the address has coordinates; everything else
// falls back to postal rules.
func ZoneContains(zone models.Zone, addr types.DeliveryAddress) (bool, *float64) {
	if point, ok := addr.Point(); ok && zone.HasRadius() {
		distance := geo.HaversineKm(*zone.Center, point)
		return geo.WithinRadius(*zone.Center, *zone.RadiusKm, point), &distance
	}
	return matchesPostal(zone, addr), nil
}

// matchesPostal: same country, and a postcode prefix or city hit, or a
// zone that lists neither and so spans the whole country.
func matchesPostal(zone models.Zone, addr types.DeliveryAddress) bool {
	if zone.CountryCode == nil {
		return false
	}
	country := strings.TrimSpace(addr.CountryCode)
	if country == "" || !strings.EqualFold(strings.TrimSpace(*zone.CountryCode), country) {
		return false
	}
	if len(zone.PostcodePrefixes) == 0 && len(zone.Cities) == 0 {
		return true
	}

	postcode := addr.NormalizedPostcode()
	if postcode != "" {
		for _, prefix := range zone.PostcodePrefixes {
			p := types.NormalizePostcode(prefix)
			if p != "" && strings.HasPrefix(postcode, p) {
				return true
			}
		}
	}

	city := strings.TrimSpace(addr.City)
	if city != "" {
		for _, candidate := range zone.Cities {
			if strings.EqualFold(strings.TrimSpace(candidate), city) {
				return true
			}
		}
	}
	return false
}

// MatchDeliveryZones returns the zones covering addr, nearest first:
// radius matches by distance, then postal matches, ties by name then id.
func MatchDeliveryZones(zones []models.Zone, addr types.DeliveryAddress) []DeliveryZoneMatch {
	matches := make([]DeliveryZoneMatch, 0)
	for _, zone := range zones {
		ok, distance := ZoneContains(zone, addr)
		if !ok {
			continue
		}
		by := MatchedByPostal
		if distance != nil {
			by = MatchedByCoordinates
		}
		matches = append(matches, DeliveryZoneMatch{
			ZoneRef:    ZoneRef{ID: zone.ID, Name: zone.Name},
			DistanceKm: distance,
			MatchedBy:  by,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if (a.DistanceKm != nil) != (b.DistanceKm != nil) {
			return a.DistanceKm != nil
		}
		if a.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm {
			return *a.DistanceKm < *b.DistanceKm
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
	return matches
}

// ComparePalletCandidates orders candidates: fuller first, then older,
// then by id. Returns <0 when a sorts before b.
func ComparePalletCandidates(a, b PalletCandidate) int {
	fa, fb := fillOrMinus(a.PercentFilled), fillOrMinus(b.PercentFilled)
	if fa != fb {
		if fa > fb {
			return -1
		}
		return 1
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.PalletID.String(), b.PalletID.String())
}

func fillOrMinus(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

// NewPalletCandidate derives the candidate view of a pallet.
func NewPalletCandidate(p models.Pallet, reserved, groupBottles int) PalletCandidate {
	state := pallet.NewFillState(reserved, p.BottleCapacity, p.Status, p.CostCents)
	return PalletCandidate{
		PalletID:           p.ID,
		Name:               p.Name,
		PickupZoneID:       p.PickupZoneID,
		DeliveryZoneID:     p.DeliveryZoneID,
		BottleCapacity:     p.BottleCapacity,
		Status:             p.Status,
		CreatedAt:          p.CreatedAt,
		FitsGroup:          groupBottles <= state.RemainingBottles,
		ReservedBottles:    state.ReservedBottles,
		RemainingBottles:   state.RemainingBottles,
		PercentFilled:      state.PercentFilled,
		CostPerBottleCents: state.CostPerBottleCents,
	}
}

type pickupGroup struct {
	zoneID  uuid.UUID
	items   []CartItemRef
	bottles int
}

// groupByPickupZone splits items by their producer's pickup zone. Items
// whose producer is unknown or has no pickup zone come back unassignable.
func groupByPickupZone(items []CartItemRef, producers map[uuid.UUID]models.Producer) ([]*pickupGroup, []UnassignableItem) {
	groups := map[uuid.UUID]*pickupGroup{}
	ordered := []*pickupGroup{}
	unassignable := []UnassignableItem{}

	for _, item := range items {
		producer, ok := producers[item.ProducerID]
		if !ok {
			unassignable = append(unassignable, UnassignableItem{Item: item, Reason: ReasonProducerNotFound})
			continue
		}
		if producer.PickupZoneID == nil || *producer.PickupZoneID == uuid.Nil {
			unassignable = append(unassignable, UnassignableItem{Item: item, Reason: ReasonProducerMissingPickupZone})
			continue
		}
		zoneID := *producer.PickupZoneID
		group, ok := groups[zoneID]
		if !ok {
			group = &pickupGroup{zoneID: zoneID}
			groups[zoneID] = group
			ordered = append(ordered, group)
		}
		group.items = append(group.items, item)
		if item.Quantity > 0 {
			group.bottles += item.Quantity
		}
	}
	return ordered, unassignable
}

type palletKey struct {
	pickup, delivery uuid.UUID
}

// assemble builds the determination from loaded data. deliveryMatches must
// be non-empty; pallets may include ineligible rows, which are skipped.
func assemble(
	groups []*pickupGroup,
	unassignable []UnassignableItem,
	pickupZones map[uuid.UUID]models.Zone,
	deliveryMatches []DeliveryZoneMatch,
	pallets []models.Pallet,
	reserved map[uuid.UUID]int,
	matchedBy MatchedBy,
) Determination {
	byPair := map[palletKey][]models.Pallet{}
	for _, p := range pallets {
		if !p.IsBookable() {
			continue
		}
		key := palletKey{pickup: p.PickupZoneID, delivery: p.DeliveryZoneID}
		byPair[key] = append(byPair[key], p)
	}

	matchedRefs := make([]ZoneRef, 0, len(deliveryMatches))
	for _, m := range deliveryMatches {
		matchedRefs = append(matchedRefs, m.ZoneRef)
	}

	det := Determination{
		Groups:                 []GroupMatch{},
		AvailableDeliveryZones: deliveryMatches,
		Unassignable:           unassignable,
		ConfigurationGaps:      []ConfigurationGap{},
		MatchedBy:              matchedBy,
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := pickupZones[groups[i].zoneID].Name, pickupZones[groups[j].zoneID].Name
		if a != b {
			return a < b
		}
		return groups[i].zoneID.String() < groups[j].zoneID.String()
	})

	for _, group := range groups {
		pickupRef := ZoneRef{ID: group.zoneID, Name: pickupZones[group.zoneID].Name}

		candidates := []PalletCandidate{}
		for _, dz := range deliveryMatches {
			for _, p := range byPair[palletKey{pickup: group.zoneID, delivery: dz.ID}] {
				candidates = append(candidates, NewPalletCandidate(p, reserved[p.ID], group.bottles))
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return ComparePalletCandidates(candidates[i], candidates[j]) < 0
		})

		match := GroupMatch{
			PickupZone: pickupRef,
			Items:      group.items,
			Bottles:    group.bottles,
			Candidates: candidates,
		}
		if len(candidates) > 0 {
			match.DeliveryZone = refFor(deliveryMatches, candidates[0].DeliveryZoneID)
		} else {
			nearest := deliveryMatches[0].ZoneRef
			match.DeliveryZone = &nearest
			det.ConfigurationGaps = append(det.ConfigurationGaps, ConfigurationGap{
				PickupZone:    pickupRef,
				DeliveryZones: matchedRefs,
				Reason:        ReasonNoEligiblePallet,
			})
		}
		det.Groups = append(det.Groups, match)
	}

	return det
}

func refFor(matches []DeliveryZoneMatch, id uuid.UUID) *ZoneRef {
	for _, m := range matches {
		if m.ID == id {
			ref := m.ZoneRef
			return &ref
		}
	}
	return &ZoneRef{ID: id}
}

package zones

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/geo"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func radiusZone(name string, lat, lng, radius float64) models.Zone {
	return models.Zone{
		ID:       uuid.New(),
		Name:     name,
		Type:     enums.ZoneTypeDelivery,
		Center:   &types.GeographyPoint{Lat: lat, Lng: lng},
		RadiusKm: ptr(radius),
	}
}

func postalZone(name, country string, prefixes, cities []string) models.Zone {
	return models.Zone{
		ID:               uuid.New(),
		Name:             name,
		Type:             enums.ZoneTypeDelivery,
		CountryCode:      ptr(country),
		PostcodePrefixes: pq.StringArray(prefixes),
		Cities:           pq.StringArray(cities),
	}
}

func coords(lat, lng float64) types.DeliveryAddress {
	return types.DeliveryAddress{Lat: ptr(lat), Lng: ptr(lng)}
}

func TestZoneContainsRadiusInclusive(t *testing.T) {
	zone := radiusZone("Stockholm 50km", 59.3293, 18.0686, 50)
	if ok, _ := ZoneContains(zone, coords(59.3293, 18.0686)); !ok {
		t.Fatalf("center must match")
	}
	if ok, _ := ZoneContains(zone, coords(57.7089, 11.9746)); ok {
		t.Fatalf("Gothenburg is outside a 50km Stockholm zone")
	}
	zero := radiusZone("Point", 59.3293, 18.0686, 0)
	if ok, d := ZoneContains(zero, coords(59.3293, 18.0686)); !ok || d == nil || *d != 0 {
		t.Fatalf("zero radius matches its own center inclusively")
	}
}

func TestZoneContainsExactBoundary(t *testing.T) {
	center := types.GeographyPoint{Lat: 59.3293, Lng: 18.0686}
	uppsala := coords(59.8586, 17.6389)
	edge := geo.HaversineKm(center, types.GeographyPoint{Lat: 59.8586, Lng: 17.6389})

	ok, d := ZoneContains(radiusZone("edge", center.Lat, center.Lng, edge), uppsala)
	if !ok {
		t.Fatalf("point at exactly the radius must match")
	}
	if d == nil || *d != edge {
		t.Fatalf("expected distance %v got %v", edge, d)
	}
	if ok, _ := ZoneContains(radiusZone("short", center.Lat, center.Lng, edge-1e-9), uppsala); ok {
		t.Fatalf("point just past the radius must not match")
	}
	if ok, _ := ZoneContains(radiusZone("negative", center.Lat, center.Lng, -1), coords(center.Lat, center.Lng)); ok {
		t.Fatalf("negative radius never matches")
	}
}

func TestZoneContainsPostalRules(t *testing.T) {
	cases := []struct {
		name string
		zone models.Zone
		addr types.DeliveryAddress
		want bool
	}{
		{"prefix hit", postalZone("Sthlm", "SE", []string{"11", "12"}, nil), types.DeliveryAddress{CountryCode: "se", Postcode: "114 55"}, true},
		{"prefix miss", postalZone("Sthlm", "SE", []string{"11"}, nil), types.DeliveryAddress{CountryCode: "SE", Postcode: "41101"}, false},
		{"city hit", postalZone("Gbg", "SE", nil, []string{"Göteborg"}), types.DeliveryAddress{CountryCode: "SE", City: " göteborg "}, true},
		{"whole country", postalZone("Sweden", "SE", nil, nil), types.DeliveryAddress{CountryCode: "SE"}, true},
		{"wrong country", postalZone("Sweden", "SE", nil, nil), types.DeliveryAddress{CountryCode: "NO"}, false},
		{"no address country", postalZone("Sweden", "SE", nil, nil), types.DeliveryAddress{City: "Malmö"}, false},
		{"zone without country", models.Zone{Name: "Loose"}, types.DeliveryAddress{CountryCode: "SE"}, false},
	}
	for _, tc := range cases {
		if got, _ := ZoneContains(tc.zone, tc.addr); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPostalZonesMatchWhenCoordinatesPresent(t *testing.T) {
	zone := postalZone("Sweden", "SE", nil, nil)
	addr := coords(59.33, 18.06)
	addr.CountryCode = "SE"
	if ok, d := ZoneContains(zone, addr); !ok || d != nil {
		t.Fatalf("postal zone should match by postal rules even with coordinates")
	}
}

func TestRadiusZoneFallsBackToPostalWithoutCoordinates(t *testing.T) {
	zone := radiusZone("Stockholm 50km", 59.3293, 18.0686, 50)
	zone.CountryCode = ptr("SE")
	zone.Cities = pq.StringArray{"Stockholm"}
	if ok, _ := ZoneContains(zone, types.DeliveryAddress{CountryCode: "SE", City: "Stockholm"}); !ok {
		t.Fatalf("radius zone should match by postal rules when coordinates are missing")
	}
}

func TestMatchDeliveryZonesOrdersNearestFirst(t *testing.T) {
	far := radiusZone("Far", 59.0, 18.0, 100)
	near := radiusZone("Near", 59.33, 18.07, 100)
	country := postalZone("A Country", "SE", nil, nil)
	addr := coords(59.3293, 18.0686)
	addr.CountryCode = "SE"

	got := MatchDeliveryZones([]models.Zone{country, far, near}, addr)
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	if got[0].ID != near.ID || got[1].ID != far.ID || got[2].ID != country.ID {
		t.Fatalf("unexpected order %v", []string{got[0].Name, got[1].Name, got[2].Name})
	}
	if got[0].MatchedBy != MatchedByCoordinates || got[2].MatchedBy != MatchedByPostal {
		t.Fatalf("unexpected matchedBy %s/%s", got[0].MatchedBy, got[2].MatchedBy)
	}
}

func TestComparePalletCandidates(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	fuller := PalletCandidate{PalletID: uuid.New(), CreatedAt: base.Add(time.Hour)}
	fuller.PercentFilled = ptr(80)
	older := PalletCandidate{PalletID: uuid.New(), CreatedAt: base}
	older.PercentFilled = ptr(50)
	newer := PalletCandidate{PalletID: uuid.New(), CreatedAt: base.Add(2 * time.Hour)}
	newer.PercentFilled = ptr(50)

	if ComparePalletCandidates(fuller, older) >= 0 {
		t.Fatalf("fuller pallet must sort first")
	}
	if ComparePalletCandidates(older, newer) >= 0 {
		t.Fatalf("older pallet must sort first on equal fill")
	}
	a := PalletCandidate{PalletID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: base}
	b := PalletCandidate{PalletID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: base}
	if ComparePalletCandidates(a, b) >= 0 || ComparePalletCandidates(b, a) <= 0 || ComparePalletCandidates(a, a) != 0 {
		t.Fatalf("id must break ties")
	}
}

func TestGroupByPickupZoneReportsUnassignable(t *testing.T) {
	zone := uuid.New()
	withZone := models.Producer{ID: uuid.New(), PickupZoneID: &zone}
	withoutZone := models.Producer{ID: uuid.New()}
	items := []CartItemRef{
		{ItemID: uuid.New(), ProducerID: withZone.ID, Quantity: 6},
		{ItemID: uuid.New(), ProducerID: withoutZone.ID, Quantity: 6},
		{ItemID: uuid.New(), ProducerID: uuid.New(), Quantity: 6},
		{ItemID: uuid.New(), ProducerID: withZone.ID, Quantity: 6},
	}
	groups, unassignable := groupByPickupZone(items, map[uuid.UUID]models.Producer{
		withZone.ID:    withZone,
		withoutZone.ID: withoutZone,
	})
	if len(groups) != 1 || groups[0].bottles != 12 || len(groups[0].items) != 2 {
		t.Fatalf("unexpected groups %+v", groups)
	}
	if len(unassignable) != 2 {
		t.Fatalf("expected 2 unassignable items, got %d", len(unassignable))
	}
	if unassignable[0].Reason != ReasonProducerMissingPickupZone || unassignable[1].Reason != ReasonProducerNotFound {
		t.Fatalf("unexpected reasons %+v", unassignable)
	}
}

func TestAssembleReportsConfigurationGap(t *testing.T) {
	pickup := models.Zone{ID: uuid.New(), Name: "Languedoc", Type: enums.ZoneTypePickup}
	group := &pickupGroup{zoneID: pickup.ID, items: []CartItemRef{{Quantity: 6}}, bottles: 6}
	matches := []DeliveryZoneMatch{{ZoneRef: ZoneRef{ID: uuid.New(), Name: "Stockholm"}, MatchedBy: MatchedByPostal}}
	shipped := models.Pallet{
		ID:             uuid.New(),
		PickupZoneID:   pickup.ID,
		DeliveryZoneID: matches[0].ID,
		BottleCapacity: 24,
		Status:         enums.PalletStatusShipped,
	}

	det := assemble([]*pickupGroup{group}, nil, map[uuid.UUID]models.Zone{pickup.ID: pickup}, matches, []models.Pallet{shipped}, nil, MatchedByPostal)
	if len(det.Groups) != 1 || len(det.Groups[0].Candidates) != 0 {
		t.Fatalf("shipped pallet must not be a candidate")
	}
	if det.Groups[0].DeliveryZone == nil || det.Groups[0].DeliveryZone.ID != matches[0].ID {
		t.Fatalf("group without candidates falls back to nearest zone")
	}
	if len(det.ConfigurationGaps) != 1 || det.ConfigurationGaps[0].Reason != ReasonNoEligiblePallet {
		t.Fatalf("expected configuration gap, got %+v", det.ConfigurationGaps)
	}
}

func TestPalletCandidateJSONIsCamelCase(t *testing.T) {
	p := models.Pallet{ID: uuid.New(), Name: "Autumn run", BottleCapacity: 24, Status: enums.PalletStatusOpen, CostCents: 48000}
	raw, err := json.Marshal(NewPalletCandidate(p, 18, 6))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for key := range fields {
		if strings.Contains(key, "_") {
			t.Fatalf("snake_case key %q in %s", key, raw)
		}
	}
	for _, key := range []string{"reservedBottles", "remainingBottles", "percentFilled", "costPerBottleCents", "fitsGroup"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing %q in %s", key, raw)
		}
	}
	if fields["percentFilled"] != float64(75) {
		t.Fatalf("expected percentFilled 75 got %v", fields["percentFilled"])
	}
}

package zones

import (
	"time"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/pkg/enums"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

// ErrZonesUndeterminable means no delivery zone covers the address.
var ErrZonesUndeterminable = pkgerrors.New(pkgerrors.CodeStateConflict, "cannot proceed to checkout yet: no delivery zone covers this address")

// MatchedBy records which membership rule located the delivery zones.
type MatchedBy string

const (
	MatchedByCoordinates MatchedBy = "coordinates"
	MatchedByPostal      MatchedBy = "postal"
)

// Reasons attached to unassignable items and configuration gaps.
const (
	ReasonProducerNotFound          = "producer_not_found"
	ReasonProducerMissingPickupZone = "producer_missing_pickup_zone"
	ReasonNoEligiblePallet          = "no_eligible_pallet"
)

// CartItemRef is a cart line tagged with its producer.
type CartItemRef struct {
	ItemID     uuid.UUID `json:"itemId"`
	WineID     uuid.UUID `json:"wineId"`
	ProducerID uuid.UUID `json:"producerId"`
	Quantity   int       `json:"quantity"`
}

type MatchInput struct {
	Address types.DeliveryAddress
	Items   []CartItemRef
}

type ZoneRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DeliveryZoneMatch is a delivery zone covering the address. DistanceKm is
// set when the zone matched by radius.
type DeliveryZoneMatch struct {
	ZoneRef
	DistanceKm *float64  `json:"distanceKm,omitempty"`
	MatchedBy  MatchedBy `json:"matchedBy"`
}

// PalletCandidate is an eligible pallet with its fill state, shaped for the
// checkout payload.
type PalletCandidate struct {
	PalletID           uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	PickupZoneID       uuid.UUID          `json:"pickupZoneId"`
	DeliveryZoneID     uuid.UUID          `json:"deliveryZoneId"`
	BottleCapacity     int                `json:"bottleCapacity"`
	Status             enums.PalletStatus `json:"status"`
	CreatedAt          time.Time          `json:"createdAt"`
	FitsGroup          bool               `json:"fitsGroup"`
	ReservedBottles    int                `json:"reservedBottles"`
	RemainingBottles   int                `json:"remainingBottles"`
	PercentFilled      *int               `json:"percentFilled"`
	CostPerBottleCents int64              `json:"costPerBottleCents"`
}

// GroupMatch is the result for the items sharing one pickup zone.
type GroupMatch struct {
	PickupZone   ZoneRef           `json:"pickupZone"`
	DeliveryZone *ZoneRef          `json:"deliveryZone"`
	Items        []CartItemRef     `json:"items"`
	Bottles      int               `json:"bottles"`
	Candidates   []PalletCandidate `json:"candidates"`
}

type UnassignableItem struct {
	Item   CartItemRef `json:"item"`
	Reason string      `json:"reason"`
}

// ConfigurationGap is a pickup-zone group no pallet currently serves.
type ConfigurationGap struct {
	PickupZone    ZoneRef   `json:"pickupZone"`
	DeliveryZones []ZoneRef `json:"deliveryZones"`
	Reason        string    `json:"reason"`
}

// Determination is the full zone matching outcome.
type Determination struct {
	Groups                 []GroupMatch        `json:"groups"`
	AvailableDeliveryZones []DeliveryZoneMatch `json:"availableDeliveryZones"`
	Unassignable           []UnassignableItem  `json:"unassignable"`
	ConfigurationGaps      []ConfigurationGap  `json:"configurationGaps"`
	MatchedBy              MatchedBy           `json:"matchedBy"`
}

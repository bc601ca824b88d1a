package checkout

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/api/middleware"
	"github.com/palletwine/palletwine-backend/api/responses"
	"github.com/palletwine/palletwine-backend/api/validators"
	"github.com/palletwine/palletwine-backend/internal/zones"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

// ZoneService determines zones for a cart.
type ZoneService interface {
	Determine(ctx context.Context, input zones.MatchInput) (zones.Determination, error)
}

// CartLister loads a customer's persisted cart.
type CartLister interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error)
}

type zonesRequest struct {
	// nil means "use the persisted cart"
	CartItems       []cartItemPayload     `json:"cartItems" validate:"omitempty,dive"`
	DeliveryAddress types.DeliveryAddress `json:"deliveryAddress"`
}

type cartItemPayload struct {
	ItemID     uuid.UUID `json:"itemId"`
	WineID     uuid.UUID `json:"wineId" validate:"required"`
	ProducerID uuid.UUID `json:"producerId" validate:"required"`
	Quantity   int       `json:"quantity" validate:"gte=0"`
}

// zonesResponse keeps the single-zone fields of the first group at the top
// level for clients that only ever ship from one pickup zone.
type zonesResponse struct {
	PickupZoneID           *uuid.UUID                `json:"pickupZoneId"`
	DeliveryZoneID         *uuid.UUID                `json:"deliveryZoneId"`
	PickupZoneName         string                    `json:"pickupZoneName"`
	DeliveryZoneName       string                    `json:"deliveryZoneName"`
	AvailableDeliveryZones []zones.DeliveryZoneMatch `json:"availableDeliveryZones"`
	Pallets                []zones.PalletCandidate   `json:"pallets"`
	Groups                 []zones.GroupMatch        `json:"groups"`
	Unassignable           []zones.UnassignableItem  `json:"unassignable"`
	ConfigurationGaps      []zones.ConfigurationGap  `json:"configurationGaps"`
	MatchedBy              zones.MatchedBy           `json:"matchedBy"`
}

func newZonesResponse(det zones.Determination) zonesResponse {
	resp := zonesResponse{
		AvailableDeliveryZones: det.AvailableDeliveryZones,
		Pallets:                []zones.PalletCandidate{},
		Groups:                 det.Groups,
		Unassignable:           det.Unassignable,
		ConfigurationGaps:      det.ConfigurationGaps,
		MatchedBy:              det.MatchedBy,
	}
	if len(det.Groups) == 0 {
		return resp
	}
	first := det.Groups[0]
	pickupID := first.PickupZone.ID
	resp.PickupZoneID = &pickupID
	resp.PickupZoneName = first.PickupZone.Name
	if first.DeliveryZone != nil {
		deliveryID := first.DeliveryZone.ID
		resp.DeliveryZoneID = &deliveryID
		resp.DeliveryZoneName = first.DeliveryZone.Name
	}
	if first.Candidates != nil {
		resp.Pallets = first.Candidates
	}
	return resp
}

// DetermineZones resolves pickup and delivery zones plus candidate pallets
// for the caller's cart. Infrastructure failures block checkout.
func DetermineZones(svc ZoneService, carts CartLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "zone service unavailable"))
			return
		}

		customerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload zonesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := payload.items(r.Context(), carts, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		det, err := svc.Determine(r.Context(), zones.MatchInput{
			Address: sanitizeAddress(payload.DeliveryAddress),
			Items:   items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newZonesResponse(det))
	}
}

func (p zonesRequest) items(ctx context.Context, carts CartLister, customerID uuid.UUID) ([]zones.CartItemRef, error) {
	if p.CartItems != nil {
		refs := make([]zones.CartItemRef, 0, len(p.CartItems))
		for _, item := range p.CartItems {
			refs = append(refs, zones.CartItemRef{
				ItemID:     item.ItemID,
				WineID:     item.WineID,
				ProducerID: item.ProducerID,
				Quantity:   item.Quantity,
			})
		}
		return refs, nil
	}
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cartItems is required")
	}
	rows, err := carts.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	refs := make([]zones.CartItemRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, zones.CartItemRef{
			ItemID:     row.ID,
			WineID:     row.WineID,
			ProducerID: row.ProducerID,
			Quantity:   row.Quantity,
		})
	}
	return refs, nil
}

func sanitizeAddress(addr types.DeliveryAddress) types.DeliveryAddress {
	addr.Line = validators.SanitizeString(addr.Line, 512)
	addr.City = validators.SanitizeString(addr.City, 128)
	addr.Postcode = validators.SanitizeString(addr.Postcode, 32)
	addr.CountryCode = validators.SanitizeString(addr.CountryCode, 2)
	return addr
}

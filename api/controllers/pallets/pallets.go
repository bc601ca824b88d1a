package pallets

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/api/middleware"
	"github.com/palletwine/palletwine-backend/api/responses"
	"github.com/palletwine/palletwine-backend/api/validators"
	palletsvc "github.com/palletwine/palletwine-backend/internal/pallets"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/pagination"
)

const maxQuoteBottles = 10000

// Service is the pallet surface used by customer and admin controllers.
type Service interface {
	List(ctx context.Context, filter palletsvc.ListFilter, params pagination.Params) (palletsvc.PalletList, error)
	Get(ctx context.Context, id uuid.UUID) (palletsvc.Pallet, error)
	Create(ctx context.Context, input palletsvc.CreateInput) (palletsvc.Pallet, error)
	Book(ctx context.Context, input palletsvc.BookInput) (palletsvc.BookingResult, error)
	UpdateStatus(ctx context.Context, actor palletsvc.Actor, id uuid.UUID, next enums.PalletStatus) (palletsvc.Pallet, error)
	Reopen(ctx context.Context, actor palletsvc.Actor, id uuid.UUID, reason string) (palletsvc.Pallet, error)
	ShippingQuote(ctx context.Context, id uuid.UUID, bottles int) (palletsvc.ShippingQuote, error)
}

type bookingRequest struct {
	Items []palletsvc.BookingItem `json:"items" validate:"required,min=1,dive"`
}

// List returns bookable pallets, optionally narrowed to a zone pair.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		filter, err := zoneFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		palletID, err := validators.ParseUUIDParam(r, "palletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, err := svc.Get(r.Context(), palletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, p)
	}
}

// ShippingQuote prices ?bottles=N at the pallet's per-bottle rate.
func ShippingQuote(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		palletID, err := validators.ParseUUIDParam(r, "palletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bottles, err := validators.ParseQueryInt(r, "bottles", enums.DefaultQuantityStep, 1, maxQuoteBottles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.ShippingQuote(r.Context(), palletID, bottles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// Book reserves bottles on a pallet for the calling customer.
func Book(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		userID, role, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		palletID, err := validators.ParseUUIDParam(r, "palletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPalletID(logg.WithCustomerID(ctx, userID.String()), palletID.String())
		}
		result, err := svc.Book(ctx, palletsvc.BookInput{
			Actor:      palletsvc.Actor{UserID: userID, Role: role},
			CustomerID: userID,
			PalletID:   palletID,
			Items:      payload.Items,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func zoneFilter(r *http.Request) (palletsvc.ListFilter, error) {
	pickup, err := validators.ParseOptionalQueryUUID(r, "pickup_zone_id")
	if err != nil {
		return palletsvc.ListFilter{}, err
	}
	delivery, err := validators.ParseOptionalQueryUUID(r, "delivery_zone_id")
	if err != nil {
		return palletsvc.ListFilter{}, err
	}
	return palletsvc.ListFilter{PickupZoneID: pickup, DeliveryZoneID: delivery}, nil
}

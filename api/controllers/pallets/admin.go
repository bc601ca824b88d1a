package pallets

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/api/middleware"
	"github.com/palletwine/palletwine-backend/api/responses"
	"github.com/palletwine/palletwine-backend/api/validators"
	palletsvc "github.com/palletwine/palletwine-backend/internal/pallets"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,notblank"`
}

type reopenRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

type adminBookingRequest struct {
	CustomerID    uuid.UUID               `json:"customer_id" validate:"required"`
	Items         []palletsvc.BookingItem `json:"items" validate:"required,min=1,dive"`
	AllowOverbook bool                    `json:"allow_overbook"`
}

// AdminList returns every pallet, complete ones included unless
// include_complete=false.
func AdminList(svc Service, logg *logger.Logger) http.HandlerFunc {
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
		filter.IncludeComplete = !strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("include_complete")), "false")
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePalletStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
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

func AdminCreate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		var payload palletsvc.CreateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.Name = validators.SanitizeString(payload.Name, 128)

		p, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, p)
	}
}

// AdminUpdateStatus moves a pallet forward through its lifecycle.
func AdminUpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		actor, palletID, ok := adminTarget(w, r, logg)
		if !ok {
			return
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParsePalletStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		p, err := svc.UpdateStatus(r.Context(), actor, palletID, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, p)
	}
}

// AdminReopen clears completion on a pallet that has not been dispatched.
func AdminReopen(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		actor, palletID, ok := adminTarget(w, r, logg)
		if !ok {
			return
		}
		var payload reopenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, err := svc.Reopen(r.Context(), actor, palletID, validators.SanitizeString(payload.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, p)
	}
}

// AdminBook books on behalf of a customer and may exceed capacity.
func AdminBook(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pallet service unavailable"))
			return
		}
		actor, palletID, ok := adminTarget(w, r, logg)
		if !ok {
			return
		}
		var payload adminBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Book(r.Context(), palletsvc.BookInput{
			Actor:         actor,
			CustomerID:    payload.CustomerID,
			PalletID:      palletID,
			Items:         payload.Items,
			AllowOverbook: payload.AllowOverbook,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func adminTarget(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (palletsvc.Actor, uuid.UUID, bool) {
	userID, role, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return palletsvc.Actor{}, uuid.Nil, false
	}
	palletID, err := validators.ParseUUIDParam(r, "palletId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return palletsvc.Actor{}, uuid.Nil, false
	}
	return palletsvc.Actor{UserID: userID, Role: role}, palletID, true
}

package reservations

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/api/middleware"
	"github.com/palletwine/palletwine-backend/api/responses"
	"github.com/palletwine/palletwine-backend/api/validators"
	reservationsvc "github.com/palletwine/palletwine-backend/internal/reservations"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/pagination"
)

type Service interface {
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (reservationsvc.ReservationList, error)
	Cancel(ctx context.Context, customerID, reservationID uuid.UUID) (reservationsvc.Reservation, error)
}

// List pages through the caller's reservations, newest first.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		customerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForCustomer(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Cancel releases one of the caller's reservations. A completed pallet
// stays complete.
func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		customerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		reservationID, err := validators.ParseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Cancel(r.Context(), customerID, reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

package checkout

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/api/middleware"
	"github.com/palletwine/palletwine-backend/api/responses"
	"github.com/palletwine/palletwine-backend/api/validators"
	"github.com/palletwine/palletwine-backend/internal/cart"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
)

type CartValidator interface {
	ValidateCustomerCart(ctx context.Context, customerID uuid.UUID) (cart.Report, error)
	ValidateLines(ctx context.Context, customerID uuid.UUID, lines []cart.Line) (cart.Report, error)
}

type validateLinesRequest struct {
	Lines []validateLinePayload `json:"lines" validate:"required,dive"`
}

type validateLinePayload struct {
	ID         uuid.UUID `json:"id"`
	WineID     uuid.UUID `json:"wineId" validate:"required"`
	ProducerID uuid.UUID `json:"producerId" validate:"required"`
	Quantity   int       `json:"quantity" validate:"gte=0"`
	PriceBand  string    `json:"priceBand" validate:"max=32"`
}

// ValidateCart reports quantity-rule violations for the caller's persisted
// cart. Lookup failures, or no validator at all, yield a passing report.
func ValidateCart(svc CartValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		if svc == nil {
			responses.WriteSuccess(w, cart.PassReport())
			return
		}

		report, err := svc.ValidateCustomerCart(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ValidateCartLines validates lines supplied in the request body.
func ValidateCartLines(svc CartValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		if svc == nil {
			responses.WriteSuccess(w, cart.PassReport())
			return
		}

		var payload validateLinesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]cart.Line, 0, len(payload.Lines))
		for _, l := range payload.Lines {
			lines = append(lines, cart.Line{
				ID:         l.ID,
				WineID:     l.WineID,
				ProducerID: l.ProducerID,
				Quantity:   l.Quantity,
				PriceBand:  validators.SanitizeString(l.PriceBand, 32),
			})
		}

		report, err := svc.ValidateLines(r.Context(), customerID, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

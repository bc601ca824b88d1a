package reservations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/enums"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/outbox"
	"github.com/palletwine/palletwine-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Repository *Repository
	DB         txRunner
	Outbox     outboxPublisher
	Logger     *logger.Logger
}

// Service exposes customer operations on reservations.
type Service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("reservations repository required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: params.Repository, tx: params.DB, outbox: params.Outbox, logg: logg}, nil
}

var cancellableStatuses = []enums.ReservationStatus{
	enums.ReservationStatusPlaced,
	enums.ReservationStatusPendingPayment,
}

// Cancel withdraws a placed or pending_payment reservation. A completed
// pallet stays complete; freed bottles are not offered again.
func (s *Service) Cancel(ctx context.Context, customerID, reservationID uuid.UUID) (Reservation, error) {
	if customerID == uuid.Nil {
		return Reservation{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if reservationID == uuid.Nil {
		return Reservation{}, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	var out Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.Find(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if reservation.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		if !reservation.Status.IsCancellable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "reservation is %s and can no longer be cancelled", reservation.Status)
		}

		changed, err := repo.TransitionStatus(ctx, reservation.ID, cancellableStatuses, enums.ReservationStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel reservation")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation changed concurrently")
		}
		reservation.Status = enums.ReservationStatusCancelled

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         &outbox.ActorRef{UserID: customerID, Role: "customer"},
			Data: outbox.ReservationCancelledEvent{
				ReservationID: reservation.ID,
				PalletID:      reservation.PalletID,
				CustomerID:    reservation.CustomerID,
				Bottles:       reservation.Bottles(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation_cancelled")
		}
		out = FromModel(*reservation)
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reservation_id": out.ID.String(),
		"pallet_id":      out.PalletID.String(),
	})
	s.logg.Info(logCtx, "reservation cancelled")
	return out, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (ReservationList, error) {
	if customerID == uuid.Nil {
		return ReservationList{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	rows, next, err := s.repo.ListForCustomer(ctx, customerID, params)
	if err != nil {
		if _, parseErr := pagination.ParseCursor(params.Cursor); parseErr != nil {
			return ReservationList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid cursor")
		}
		return ReservationList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	list := ReservationList{Reservations: make([]Reservation, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Reservations = append(list.Reservations, FromModel(row))
	}
	return list, nil
}

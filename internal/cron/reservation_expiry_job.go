package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/internal/reservations"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
	"github.com/palletwine/palletwine-backend/pkg/outbox"
)

const (
	reservationExpiryJobName = "reservation-expiry"
	defaultReservationBatch  = 200
)

// ReservationExpiryJobParams configure the unpaid reservation sweeper.
type ReservationExpiryJobParams struct {
	Logger                   *logger.Logger
	DB                       txRunner
	OverdueReader            overdueReservationReader
	Outbox                   outboxEmitter
	Metrics                  *metrics.CronJobMetrics
	BatchSize                int
	TransactionalRepoFactory reservationRepoFactory
}

type overdueReservationReader interface {
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]models.OrderReservation, error)
}

type transactionalReservationRepo interface {
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.ReservationStatus, next enums.ReservationStatus) (bool, error)
}

type reservationRepoFactory func(tx *gorm.DB) transactionalReservationRepo

func defaultReservationRepo(tx *gorm.DB) transactionalReservationRepo {
	return reservations.NewRepository(tx)
}

// NewReservationExpiryJob builds the job that expires pending_payment
// reservations past their payment deadline.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.OverdueReader == nil {
		return nil, fmt.Errorf("overdue reservation reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReservationBatch
	}
	factory := params.TransactionalRepoFactory
	if factory == nil {
		factory = defaultReservationRepo
	}
	return &reservationExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		reader:      params.OverdueReader,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		batch:       batch,
		repoFactory: factory,
		now:         time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	reader      overdueReservationReader
	outbox      outboxEmitter
	metrics     *metrics.CronJobMetrics
	batch       int
	repoFactory reservationRepoFactory
	now         func() time.Time
}

func (j *reservationExpiryJob) Name() string { return reservationExpiryJobName }

// Run expires one batch. Rows left over are picked up on the next cycle.
func (j *reservationExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	overdue, err := j.reader.FindOverdue(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("query overdue reservations: %w", err)
	}

	var errs error
	expired := 0
	for _, reservation := range overdue {
		changed, err := j.expire(ctx, reservation, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire reservation %s: %w", reservation.ID, err))
			continue
		}
		if changed {
			expired++
		}
	}

	j.metrics.AddAffected(j.Name(), expired)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue": len(overdue),
		"expired": expired,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return errs
}

func (j *reservationExpiryJob) expire(ctx context.Context, reservation models.OrderReservation, now time.Time) (bool, error) {
	var changed bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		ok, err := repo.TransitionStatus(ctx, reservation.ID, []enums.ReservationStatus{enums.ReservationStatusPendingPayment}, enums.ReservationStatusExpired)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		changed = true

		var deadline time.Time
		if reservation.PaymentDeadline != nil {
			deadline = reservation.PaymentDeadline.UTC()
		}
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			OccurredAt:    now,
			Data: outbox.ReservationExpiredEvent{
				ReservationID:   reservation.ID,
				PalletID:        reservation.PalletID,
				CustomerID:      reservation.CustomerID,
				PaymentDeadline: deadline,
				ExpiredAt:       now,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

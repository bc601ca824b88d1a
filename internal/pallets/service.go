package pallets

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/internal/reservations"
	dbpkg "github.com/palletwine/palletwine-backend/pkg/db"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
	"github.com/palletwine/palletwine-backend/pkg/outbox"
	"github.com/palletwine/palletwine-backend/pkg/pagination"
	"github.com/palletwine/palletwine-backend/pkg/pallet"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Repository    *Repository
	Reservations  *reservations.Repository
	DB            txRunner
	Outbox        outboxPublisher
	Metrics       *metrics.PalletMetrics
	Logger        *logger.Logger
	PaymentWindow time.Duration
	AdminOverbook bool
}

// Service owns the pallet lifecycle: listing, booking, completion,
// status progression and reopen corrections.
type Service struct {
	repo          *Repository
	reservations  *reservations.Repository
	tx            txRunner
	outbox        outboxPublisher
	metrics       *metrics.PalletMetrics
	logg          *logger.Logger
	paymentWindow time.Duration
	adminOverbook bool
	now           func() time.Time
}

const defaultPaymentWindow = 72 * time.Hour

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("pallets repository required")
	}
	if params.Reservations == nil {
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
	window := params.PaymentWindow
	if window <= 0 {
		window = defaultPaymentWindow
	}
	return &Service{
		repo:          params.Repository,
		reservations:  params.Reservations,
		tx:            params.DB,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		logg:          logg,
		paymentWindow: window,
		adminOverbook: params.AdminOverbook,
		now:           time.Now,
	}, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, params pagination.Params) (PalletList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return PalletList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return PalletList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pallets")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	reserved, err := s.reservations.ReservedBottles(ctx, ids)
	if err != nil {
		return PalletList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reserved bottles")
	}
	list := PalletList{Pallets: make([]Pallet, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Pallets = append(list.Pallets, NewPallet(row, reserved[row.ID]))
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Pallet, error) {
	p, reserved, err := s.load(ctx, s.repo, s.reservations, id)
	if err != nil {
		return Pallet{}, err
	}
	return NewPallet(*p, reserved), nil
}

func (s *Service) load(ctx context.Context, repo *Repository, res *reservations.Repository, id uuid.UUID) (*models.Pallet, int, error) {
	if id == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "pallet id required")
	}
	p, err := repo.Find(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "pallet not found")
		}
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pallet")
	}
	reserved, err := res.ReservedBottlesForPallet(ctx, id)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reserved bottles")
	}
	return p, reserved, nil
}

// Create registers a new OPEN pallet between a pickup and a delivery zone.
func (s *Service) Create(ctx context.Context, input CreateInput) (Pallet, error) {
	if input.BottleCapacity <= 0 {
		return Pallet{}, pkgerrors.New(pkgerrors.CodeValidation, "bottle capacity must be positive")
	}
	if input.CostCents < 0 {
		return Pallet{}, pkgerrors.New(pkgerrors.CodeValidation, "cost must not be negative")
	}
	if input.Name == "" {
		return Pallet{}, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}

	zones, err := s.repo.FindZones(ctx, []uuid.UUID{input.PickupZoneID, input.DeliveryZoneID})
	if err != nil {
		return Pallet{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load zones")
	}
	byID := make(map[uuid.UUID]models.Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}
	if z, ok := byID[input.PickupZoneID]; !ok || z.Type != enums.ZoneTypePickup {
		return Pallet{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup_zone_id must reference a pickup zone")
	}
	if z, ok := byID[input.DeliveryZoneID]; !ok || z.Type != enums.ZoneTypeDelivery {
		return Pallet{}, pkgerrors.New(pkgerrors.CodeValidation, "delivery_zone_id must reference a delivery zone")
	}

	p := models.Pallet{
		Name:           input.Name,
		PickupZoneID:   input.PickupZoneID,
		DeliveryZoneID: input.DeliveryZoneID,
		BottleCapacity: input.BottleCapacity,
		CostCents:      input.CostCents,
		Status:         enums.PalletStatusOpen,
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return Pallet{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pallet")
	}
	return NewPallet(p, 0), nil
}

// Book reserves bottles on a pallet. Capacity is read then decided inside
// the transaction; completion is a conditional write so it applies once.
func (s *Service) Book(ctx context.Context, input BookInput) (BookingResult, error) {
	if input.CustomerID == uuid.Nil {
		return BookingResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if len(input.Items) == 0 {
		return BookingResult{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	requested := 0
	wineIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.WineID == uuid.Nil {
			return BookingResult{}, pkgerrors.New(pkgerrors.CodeValidation, "wine_id required")
		}
		if item.Quantity <= 0 {
			return BookingResult{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		requested += item.Quantity
		wineIDs = append(wineIDs, item.WineID)
	}
	overbookAllowed := input.AllowOverbook && s.adminOverbook && input.Actor.Role.CanOverbook()

	var result BookingResult
	var completedEvent *outbox.PalletCompletedEvent
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		result = BookingResult{}
		completedEvent = nil
		repo := s.repo.WithTx(tx)
		resRepo := s.reservations.WithTx(tx)

		p, reserved, err := s.load(ctx, repo, resRepo, input.PalletID)
		if err != nil {
			return err
		}
		if !p.IsBookable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "pallet is %s and not accepting bookings", bookingState(*p))
		}

		items, err := s.resolveItems(ctx, repo, *p, input.Items, wineIDs)
		if err != nil {
			return err
		}

		remaining := pallet.RemainingCapacity(reserved, p.BottleCapacity)
		if requested > remaining {
			if !overbookAllowed {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "only %d bottle(s) left on this pallet", remaining).
					WithDetails(map[string]int{"remaining_bottles": remaining, "requested_bottles": requested})
			}
			result.Overbooked = true
		}

		perBottle, err := pallet.CostPerBottleCents(p.CostCents, p.BottleCapacity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "pallet has no usable capacity")
		}
		reservation := models.OrderReservation{
			CustomerID:        input.CustomerID,
			PalletID:          p.ID,
			Status:            enums.ReservationStatusPlaced,
			ShippingCostCents: pallet.ShippingCostCents(requested, perBottle),
			Items:             items,
		}
		if err := resRepo.Create(ctx, &reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}

		actor := &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role.String()}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationPlaced,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         actor,
			Data: outbox.ReservationPlacedEvent{
				ReservationID:     reservation.ID,
				PalletID:          p.ID,
				CustomerID:        input.CustomerID,
				Bottles:           requested,
				ShippingCostCents: reservation.ShippingCostCents,
				Overbooked:        result.Overbooked,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation_placed")
		}

		after, err := resRepo.ReservedBottlesForPallet(ctx, p.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reserved bottles")
		}
		if pallet.ShouldMarkComplete(after, p.BottleCapacity) {
			event, err := s.complete(ctx, tx, repo, resRepo, p, after, actor)
			if err != nil {
				return err
			}
			completedEvent = event
		}

		reloaded, err := repo.Find(ctx, p.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload pallet")
		}
		stored, err := resRepo.Find(ctx, reservation.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload reservation")
		}
		result.Pallet = NewPallet(*reloaded, after)
		result.Reservation = reservations.FromModel(*stored)
		result.Completed = completedEvent != nil
		return nil
	})
	if err != nil {
		return BookingResult{}, err
	}

	s.metrics.AddBooked(requested)
	if result.Overbooked {
		s.metrics.IncOverbooked()
	}
	logCtx := s.logg.WithPalletID(ctx, result.Pallet.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"reservation_id": result.Reservation.ID.String(),
		"bottles":        requested,
		"overbooked":     result.Overbooked,
	})
	s.logg.Info(logCtx, "pallet booking placed")
	if completedEvent != nil {
		s.metrics.IncCompleted()
		s.logg.Info(s.logg.WithField(logCtx, "payment_deadline", completedEvent.PaymentDeadline), "pallet completed")
	}
	return result, nil
}

// complete applies the open to complete transition. It returns nil when a
// concurrent booking already completed the pallet.
func (s *Service) complete(
	ctx context.Context,
	tx *gorm.DB,
	repo *Repository,
	resRepo *reservations.Repository,
	p *models.Pallet,
	reserved int,
	actor *outbox.ActorRef,
) (*outbox.PalletCompletedEvent, error) {
	now := s.now().UTC()
	deadline := now.Add(s.paymentWindow)

	changed, err := repo.MarkComplete(ctx, p.ID, now, deadline)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark pallet complete")
	}
	if !changed {
		return nil, nil
	}
	ids, err := resRepo.AssignPaymentDeadlines(ctx, p.ID, deadline)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign payment deadlines")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	event := outbox.PalletCompletedEvent{
		PalletID:        p.ID,
		ReservedBottles: reserved,
		BottleCapacity:  p.BottleCapacity,
		CompletedAt:     now,
		PaymentDeadline: deadline,
		ReservationIDs:  ids,
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPalletCompleted,
		AggregateType: enums.AggregatePallet,
		AggregateID:   p.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data:          event,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit pallet_completed")
	}
	return &event, nil
}

// resolveItems checks every wine exists and ships from the pallet's pickup
// zone, and merges repeated wines.
func (s *Service) resolveItems(ctx context.Context, repo *Repository, p models.Pallet, requested []BookingItem, wineIDs []uuid.UUID) ([]models.OrderReservationItem, error) {
	wines, err := repo.FindWines(ctx, wineIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wines")
	}
	wineByID := make(map[uuid.UUID]models.Wine, len(wines))
	producerIDs := make([]uuid.UUID, 0, len(wines))
	for _, w := range wines {
		wineByID[w.ID] = w
		producerIDs = append(producerIDs, w.ProducerID)
	}
	producers, err := repo.FindProducers(ctx, producerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load producers")
	}
	producerByID := make(map[uuid.UUID]models.Producer, len(producers))
	for _, prod := range producers {
		producerByID[prod.ID] = prod
	}

	quantities := map[uuid.UUID]int{}
	for _, item := range requested {
		wine, ok := wineByID[item.WineID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "wine %s not found", item.WineID)
		}
		producer, ok := producerByID[wine.ProducerID]
		if !ok || producer.PickupZoneID == nil || *producer.PickupZoneID != p.PickupZoneID {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "wine %s does not ship from this pallet's pickup zone", wine.Name).
				WithDetails(map[string]string{"wine_id": wine.ID.String()})
		}
		quantities[item.WineID] += item.Quantity
	}

	items := make([]models.OrderReservationItem, 0, len(quantities))
	for wineID, qty := range quantities {
		items = append(items, models.OrderReservationItem{
			WineID:     wineID,
			ProducerID: wineByID[wineID].ProducerID,
			Quantity:   qty,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].WineID.String() < items[j].WineID.String() })
	return items, nil
}

func bookingState(p models.Pallet) string {
	if p.IsComplete {
		return "complete"
	}
	return string(p.Status)
}

// UpdateStatus advances the pallet along OPEN, CONSOLIDATING, SHIPPED,
// DELIVERED. Moving to the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, next enums.PalletStatus) (Pallet, error) {
	if !next.IsValid() {
		return Pallet{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid pallet status %q", next)
	}

	var out Pallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		resRepo := s.reservations.WithTx(tx)
		p, reserved, err := s.load(ctx, repo, resRepo, id)
		if err != nil {
			return err
		}
		if p.Status == next {
			out = NewPallet(*p, reserved)
			return nil
		}
		if !p.Status.CanTransitionTo(next) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "pallet cannot move from %s to %s", p.Status, next)
		}
		changed, err := repo.TransitionStatus(ctx, p.ID, p.Status, next)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pallet status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pallet changed concurrently")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPalletStatusChanged,
			AggregateType: enums.AggregatePallet,
			AggregateID:   p.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data:          outbox.PalletStatusChangedEvent{PalletID: p.ID, From: p.Status, To: next},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit pallet_status_changed")
		}
		p.Status = next
		out = NewPallet(*p, reserved)
		return nil
	})
	if err != nil {
		return Pallet{}, err
	}
	logCtx := s.logg.WithPalletID(ctx, out.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "status", out.Status), "pallet status updated")
	return out, nil
}

// Reopen is the administrative correction that clears completion. It is
// the only path from complete back to open.
func (s *Service) Reopen(ctx context.Context, actor Actor, id uuid.UUID, reason string) (Pallet, error) {
	var out Pallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		resRepo := s.reservations.WithTx(tx)
		p, reserved, err := s.load(ctx, repo, resRepo, id)
		if err != nil {
			return err
		}
		if p.Status.IsDispatched() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "pallet is %s and cannot be reopened", p.Status)
		}
		changed, err := repo.Reopen(ctx, p.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen pallet")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pallet changed concurrently")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPalletReopened,
			AggregateType: enums.AggregatePallet,
			AggregateID:   p.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data:          outbox.PalletReopenedEvent{PalletID: p.ID, ReservedBottles: reserved, Reason: reason},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit pallet_reopened")
		}
		reloaded, err := repo.Find(ctx, p.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload pallet")
		}
		out = NewPallet(*reloaded, reserved)
		return nil
	})
	if err != nil {
		return Pallet{}, err
	}
	s.logg.Warn(s.logg.WithPalletID(ctx, out.ID.String()), "pallet reopened by admin")
	return out, nil
}

// ShippingQuote prices bottles at the pallet's per-bottle rate.
func (s *Service) ShippingQuote(ctx context.Context, id uuid.UUID, bottles int) (ShippingQuote, error) {
	if bottles <= 0 {
		return ShippingQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "bottles must be positive")
	}
	p, reserved, err := s.load(ctx, s.repo, s.reservations, id)
	if err != nil {
		return ShippingQuote{}, err
	}
	perBottle, err := pallet.CostPerBottleCents(p.CostCents, p.BottleCapacity)
	if err != nil {
		return ShippingQuote{}, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "pallet has no usable capacity")
	}
	remaining := pallet.RemainingCapacity(reserved, p.BottleCapacity)
	return ShippingQuote{
		PalletID:           p.ID,
		Bottles:            bottles,
		CostPerBottleCents: perBottle.IntPart(),
		TotalCents:         pallet.ShippingCostCents(bottles, perBottle),
		RemainingBottles:   remaining,
		Fits:               p.IsBookable() && bottles <= remaining,
	}, nil
}

const maxBookingAttempts = 3

// withRetry reruns fn in a fresh transaction when the database reports a
// serialization failure or deadlock.
func (s *Service) withRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxBookingAttempts; attempt++ {
		err = s.tx.WithTx(ctx, fn)
		if err == nil || !pkgerrors.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "booking transaction conflicted; retrying")
	}
	return err
}

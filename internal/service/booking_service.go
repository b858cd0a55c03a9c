package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"studiobook/internal/config"
	"studiobook/internal/database"
	"studiobook/internal/domain"
	"studiobook/internal/events"
	"studiobook/internal/metrics"
	"studiobook/internal/models"
	"studiobook/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService owns the booking lifecycle: create, confirm, cancel,
// payment and schedule transitions. Confirm serializes on per-resource
// locks and the store re-verifies claims transactionally, so two racing
// confirms for the same slot cannot both win.
type BookingService struct {
	store    domain.BookingStore
	catalog  domain.Catalog
	checker  domain.AvailabilityChecker
	locks    domain.LockManager
	eventBus domain.EventPublisher
	logger   *zerolog.Logger

	minAdvanceDays int64
	confirmTimeout time.Duration
	lockTTL        time.Duration

	now func() time.Time
}

func NewBookingService(
	store domain.BookingStore,
	catalog domain.Catalog,
	checker domain.AvailabilityChecker,
	locks domain.LockManager,
	eventBus domain.EventPublisher,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		store:          store,
		catalog:        catalog,
		checker:        checker,
		locks:          locks,
		eventBus:       eventBus,
		logger:         logger,
		minAdvanceDays: int64(cfg.MinAdvanceDays),
		confirmTimeout: time.Duration(cfg.ConfirmTimeoutSeconds) * time.Second,
		lockTTL:        time.Duration(cfg.LockTTLSeconds) * time.Second,
		now:            time.Now,
	}
}

// Create validates the request, snapshots catalog prices into the line
// items, prices the booking and persists it as PENDING. No resources
// are claimed yet.
func (s *BookingService) Create(ctx context.Context, req *models.Booking) (*models.Booking, error) {
	now := s.now()
	if err := s.resolveAndValidate(ctx, req, now); err != nil {
		metrics.IncBookingOp("create", "rejected")
		return nil, err
	}

	breakdown, err := pricing.Compute(pricingInput(req))
	if err != nil {
		metrics.IncBookingOp("create", "rejected")
		return nil, err
	}
	req.Pricing = breakdown

	req.BookingNumber = newBookingNumber(now)
	req.Status = models.StatusPending
	req.PaymentStatus = models.PaymentPending
	req.CancelReason = ""

	if err := s.store.CreateBooking(ctx, req); err != nil {
		metrics.IncBookingOp("create", "error")
		return nil, storeErr(err)
	}

	s.publish(events.EventBookingCreated, req)
	metrics.IncBookingOp("create", "ok")
	s.logger.Info().
		Int64("booking_id", req.ID).
		Str("booking_number", req.BookingNumber).
		Int64("final_price", req.Pricing.FinalPrice).
		Msg("booking created")
	return req, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Under per-resource
// locks it re-checks availability, re-snapshots catalog prices, and
// persists the frozen price together with the resource claims in one
// transaction. The price frozen here is what the client owes, even if
// the catalog changes afterwards.
func (s *BookingService) Confirm(ctx context.Context, bookingID int64) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.checkLifecycleMove(booking, models.StatusConfirmed); err != nil {
		metrics.IncBookingOp("confirm", "rejected")
		return nil, err
	}

	release, err := s.acquireLocks(ctx, booking.ResourceClaims())
	if err != nil {
		metrics.IncBookingOp("confirm", "error")
		return nil, err
	}
	defer release()

	// Re-read under the locks: a concurrent cancel or confirm may have
	// moved the booking between the first read and lock acquisition.
	booking, err = s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err)
	}
	now := s.now()
	if err := s.checkLifecycleMove(booking, models.StatusConfirmed); err != nil {
		metrics.IncBookingOp("confirm", "rejected")
		return nil, err
	}
	if err := s.resolveAndValidate(ctx, booking, now); err != nil {
		metrics.IncBookingOp("confirm", "rejected")
		return nil, err
	}

	if err := s.checker.Check(ctx, booking); err != nil {
		var conflict *models.ResourceConflictError
		if errors.As(err, &conflict) {
			metrics.IncConfirmConflict()
			metrics.IncBookingOp("confirm", "conflict")
			return nil, err
		}
		metrics.IncBookingOp("confirm", "error")
		return nil, storeErr(err)
	}

	breakdown, err := pricing.Compute(pricingInput(booking))
	if err != nil {
		metrics.IncBookingOp("confirm", "rejected")
		return nil, err
	}
	booking.Pricing = breakdown

	capacities, err := s.checker.Capacities(ctx, booking)
	if err != nil {
		metrics.IncBookingOp("confirm", "error")
		return nil, storeErr(err)
	}

	if err := s.store.ConfirmWithClaims(ctx, booking, capacities); err != nil {
		var conflict *models.ResourceConflictError
		switch {
		case errors.As(err, &conflict):
			metrics.IncConfirmConflict()
			metrics.IncBookingOp("confirm", "conflict")
		case errors.Is(err, models.ErrBookingCancelled):
			metrics.IncBookingOp("confirm", "rejected")
		default:
			metrics.IncBookingOp("confirm", "error")
		}
		return nil, storeErr(err)
	}

	s.publish(events.EventBookingConfirmed, booking)
	metrics.IncBookingOp("confirm", "ok")
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("booking_number", booking.BookingNumber).
		Int64("final_price", booking.Pricing.FinalPrice).
		Msg("booking confirmed")
	return booking, nil
}

// Cancel moves a PENDING or CONFIRMED booking to CANCELLED and releases
// its resource claims. Cancelling an already cancelled booking is
// reported distinctly so callers can treat it as a no-op.
func (s *BookingService) Cancel(ctx context.Context, bookingID int64, reason string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.checkLifecycleMove(booking, models.StatusCancelled); err != nil {
		metrics.IncBookingOp("cancel", "rejected")
		return nil, err
	}

	// Same lock order as Confirm, so a cancel and a confirm for the
	// same booking never interleave mid-transaction.
	release, err := s.acquireLocks(ctx, booking.ResourceClaims())
	if err != nil {
		metrics.IncBookingOp("cancel", "error")
		return nil, err
	}
	defer release()

	booking, err = s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.checkLifecycleMove(booking, models.StatusCancelled); err != nil {
		metrics.IncBookingOp("cancel", "rejected")
		return nil, err
	}

	if err := s.store.CancelBooking(ctx, bookingID, booking.Version, reason); err != nil {
		metrics.IncBookingOp("cancel", "error")
		return nil, storeErr(err)
	}
	booking.Status = models.StatusCancelled
	booking.CancelReason = reason
	booking.Version++

	s.publish(events.EventBookingCancelled, booking)
	metrics.IncBookingOp("cancel", "ok")
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("reason", reason).
		Msg("booking cancelled")
	return booking, nil
}

// TransitionPayment moves the payment axis. The legal edges are fixed:
// pending -> partial/paid, partial -> paid/refunded, paid -> refunded.
func (s *BookingService) TransitionPayment(ctx context.Context, bookingID int64, to models.PaymentStatus) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !booking.PaymentStatus.CanTransition(to) {
		metrics.IncBookingOp("payment", "rejected")
		return nil, &models.StatusTransitionError{From: string(booking.PaymentStatus), To: string(to)}
	}

	if err := s.store.UpdatePaymentStatusWithVersion(ctx, bookingID, booking.Version, to); err != nil {
		metrics.IncBookingOp("payment", "error")
		return nil, storeErr(err)
	}
	booking.PaymentStatus = to
	booking.Version++

	s.publish(events.EventPaymentStatusChanged, booking)
	metrics.IncBookingOp("payment", "ok")
	return booking, nil
}

// MarkInProgress moves CONFIRMED -> IN_PROGRESS once the event window
// has opened. Attempts before the event start are rejected without a
// state change.
func (s *BookingService) MarkInProgress(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.timedTransition(ctx, bookingID, models.StatusInProgress, events.EventBookingInProgress,
		func(b *models.Booking) time.Time { return b.EventStart() })
}

// MarkCompleted moves IN_PROGRESS -> COMPLETED once the event window
// has closed.
func (s *BookingService) MarkCompleted(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.timedTransition(ctx, bookingID, models.StatusCompleted, events.EventBookingCompleted,
		func(b *models.Booking) time.Time { return b.EventEnd() })
}

func (s *BookingService) timedTransition(ctx context.Context, bookingID int64, to models.Status, eventType string, notBefore func(*models.Booking) time.Time) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.checkLifecycleMove(booking, to); err != nil {
		metrics.IncBookingOp(string(to), "rejected")
		return nil, err
	}
	if gate := notBefore(booking); s.now().Before(gate) {
		metrics.IncBookingOp(string(to), "rejected")
		return nil, &models.PrematureTransitionError{To: to, NotBefore: gate}
	}

	if err := s.store.UpdateStatusWithVersion(ctx, bookingID, booking.Version, to); err != nil {
		metrics.IncBookingOp(string(to), "error")
		return nil, storeErr(err)
	}
	booking.Status = to
	booking.Version++

	s.publish(eventType, booking)
	metrics.IncBookingOp(string(to), "ok")
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err)
	}
	return booking, nil
}

// Quote prices a request against the current catalog without
// persisting anything.
func (s *BookingService) Quote(ctx context.Context, req *models.Booking) (models.PriceBreakdown, error) {
	if err := s.resolveAndValidate(ctx, req, s.now()); err != nil {
		return models.PriceBreakdown{}, err
	}
	return pricing.Compute(pricingInput(req))
}

// checkLifecycleMove rejects illegal lifecycle edges. A cancelled
// booking gets the dedicated sentinel so callers can distinguish
// "already cancelled" from a plain illegal transition.
func (s *BookingService) checkLifecycleMove(b *models.Booking, to models.Status) error {
	if b.Status == models.StatusCancelled {
		return models.ErrBookingCancelled
	}
	if !b.Status.CanTransition(to) {
		return &models.StatusTransitionError{From: string(b.Status), To: string(to)}
	}
	return nil
}

// resolveAndValidate checks the request shape, re-snapshots catalog
// names and unit prices into the line items, and enforces per-entry
// lead times. Catalog lookups failing (unknown or inactive ids) are
// validation errors: the request named something that cannot be booked.
func (s *BookingService) resolveAndValidate(ctx context.Context, b *models.Booking, now time.Time) error {
	if strings.TrimSpace(b.Client.Name) == "" {
		return &models.ValidationError{Field: "client.name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(b.Client.Phone) == "" {
		return &models.ValidationError{Field: "client.phone", Reason: "must not be empty"}
	}
	if b.EventDate.IsZero() {
		return &models.ValidationError{Field: "event_date", Reason: "must be set"}
	}
	if b.EventTime != "" {
		if _, err := time.Parse(models.TimeFormat, b.EventTime); err != nil {
			return &models.ValidationError{Field: "event_time", Reason: "must be HH:MM"}
		}
	}
	if b.DiscountAmount < 0 {
		return &models.ValidationError{Field: "discount_amount", Reason: "must not be negative"}
	}

	pkg, err := s.catalog.GetPackage(ctx, b.PackageID)
	if err != nil {
		return &models.ValidationError{Field: "package_id", Reason: err.Error()}
	}
	b.PackageName = pkg.Name
	b.BasePrice = pkg.BasePrice
	if b.DurationHours == 0 {
		b.DurationHours = pkg.DurationHours
	}
	if b.DurationHours <= 0 {
		return &models.ValidationError{Field: "duration_hours", Reason: "must be positive"}
	}

	if !b.EventStart().After(now) {
		return &models.ValidationError{Field: "event_date", Reason: "must be in the future"}
	}
	minLead := s.minAdvanceDays
	if pkg.AdvanceDays > minLead {
		minLead = pkg.AdvanceDays
	}
	if daysUntil(now, b.EventDate) < minLead {
		return &models.ValidationError{Field: "event_date", Reason: fmt.Sprintf("requires at least %d days advance booking", minLead)}
	}

	for i := range b.AddOns {
		line := &b.AddOns[i]
		addOn, err := s.catalog.GetAddOn(ctx, line.AddOnID)
		if err != nil {
			return &models.ValidationError{Field: "add_ons", Reason: err.Error()}
		}
		line.Name = addOn.Name
		line.UnitPrice = addOn.UnitPrice
	}

	for i := range b.EquipmentRentals {
		rental := &b.EquipmentRentals[i]
		equipment, err := s.catalog.GetEquipment(ctx, rental.EquipmentID)
		if err != nil {
			return &models.ValidationError{Field: "equipment_rentals", Reason: err.Error()}
		}
		rental.Name = equipment.Name
		rental.DailyRate = equipment.DailyRate
		rental.SecurityDeposit = equipment.SecurityDeposit
		if rental.Quantity < 1 || rental.Quantity > equipment.StockQuantity {
			return &models.QuantityBoundsError{
				Line:     "equipment rental",
				ID:       rental.EquipmentID,
				Quantity: rental.Quantity,
				Min:      1,
				Max:      equipment.StockQuantity,
			}
		}
		if rental.Days() < 1 {
			return &models.ValidationError{Field: "equipment_rentals", Reason: "rental end before start"}
		}
		if daysUntil(now, rental.RentalStart) < equipment.AdvanceDays {
			return &models.ValidationError{Field: "equipment_rentals", Reason: fmt.Sprintf("equipment %d requires %d days advance booking", equipment.ID, equipment.AdvanceDays)}
		}
	}

	for i := range b.CateringOrders {
		order := &b.CateringOrders[i]
		svc, err := s.catalog.GetCateringService(ctx, order.CateringServiceID)
		if err != nil {
			return &models.ValidationError{Field: "catering_orders", Reason: err.Error()}
		}
		order.Name = svc.Name
		order.UnitPrice = svc.UnitPrice
		order.MinOrderQuantity = svc.MinOrderQuantity
		order.MaxOrderQuantity = svc.MaxOrderQuantity
		if daysUntil(now, b.EventDate) < svc.AdvanceDays {
			return &models.ValidationError{Field: "catering_orders", Reason: fmt.Sprintf("catering service %d requires %d days advance booking", svc.ID, svc.AdvanceDays)}
		}
	}

	return nil
}

// acquireLocks takes the booking's resource locks in sorted key order.
// A fixed order across all callers rules out lock-ordering deadlocks
// between overlapping bookings.
func (s *BookingService) acquireLocks(ctx context.Context, claims []models.ResourceClaim) (func(), error) {
	seen := make(map[string]bool, len(claims))
	keys := make([]string, 0, len(claims))
	for _, c := range claims {
		if !seen[c.ResourceID] {
			seen[c.ResourceID] = true
			keys = append(keys, c.ResourceID)
		}
	}
	sort.Strings(keys)

	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		release, err := s.locks.Acquire(ctx, key, s.lockTTL)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (s *BookingService) publish(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(booking)); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func pricingInput(b *models.Booking) pricing.Input {
	return pricing.Input{
		BasePrice:        b.BasePrice,
		AddOns:           b.AddOns,
		EquipmentRentals: b.EquipmentRentals,
		CateringOrders:   b.CateringOrders,
		DiscountAmount:   b.DiscountAmount,
		IncludeDeposits:  true,
	}
}

// newBookingNumber builds a human-readable unique reference like
// BK-20260830-A1B2C3.
func newBookingNumber(t time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("BK-%s-%s", t.Format("20060102"), strings.ToUpper(hex.EncodeToString(id[:3])))
}

func daysUntil(now, t time.Time) int64 {
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int64(b.Sub(a) / (24 * time.Hour))
}

// storeErr keeps domain errors intact and maps everything else the
// store can produce onto the service surface.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var conflict *models.ResourceConflictError
	switch {
	case errors.As(err, &conflict),
		errors.Is(err, models.ErrBookingCancelled),
		errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%w: %v", database.ErrStoreUnavailable, err)
}

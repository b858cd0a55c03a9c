package domain

import (
	"context"
	"time"

	"studiobook/internal/models"
)

// BookingStore is the persistence boundary for the booking aggregate
// and its resource claims.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error)
	// ConfirmWithClaims persists the frozen pricing, the CONFIRMED
	// status and the booking's resource claims in one transaction. The
	// transaction re-verifies the claims against committed state
	// (capacities keyed by resource id), so a conflicting confirm
	// fails even if callers raced past the lock.
	ConfirmWithClaims(ctx context.Context, booking *models.Booking, capacities map[string]int64) error
	// CancelBooking sets CANCELLED and releases all claims atomically.
	CancelBooking(ctx context.Context, id int64, fromVersion int64, reason string) error
	UpdateStatusWithVersion(ctx context.Context, id int64, fromVersion int64, status models.Status) error
	UpdatePaymentStatusWithVersion(ctx context.Context, id int64, fromVersion int64, payment models.PaymentStatus) error
	// FindActiveByResourceWindow returns the claims of CONFIRMED and
	// IN_PROGRESS bookings on resourceID that overlap the window.
	FindActiveByResourceWindow(ctx context.Context, resourceID string, window models.Window) ([]models.ActiveClaim, error)
	ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	ListBookingsByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Booking, error)
}

// Catalog is read-only reference data. Each lookup is a snapshot of the
// entry at call time; bookings snapshot the prices they were priced with.
type Catalog interface {
	GetPackage(ctx context.Context, id int64) (*models.Package, error)
	GetAddOn(ctx context.Context, id int64) (*models.AddOn, error)
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	GetCateringService(ctx context.Context, id int64) (*models.CateringService, error)
	ListPackages(ctx context.Context) ([]*models.Package, error)
}

// AvailabilityChecker decides whether a booking's resource claims fit
// alongside the committed claims. A clash is reported as a
// *models.ResourceConflictError naming the clashing booking ids.
type AvailabilityChecker interface {
	Check(ctx context.Context, booking *models.Booking) error
	// Capacities resolves every resource the booking claims to its
	// finite capacity, keyed by resource id.
	Capacities(ctx context.Context, booking *models.Booking) (map[string]int64, error)
}

// LockManager serializes confirm/cancel per contended resource. Acquire
// blocks until the key is held, ctx expires, or the backing store
// fails; the returned release is safe to call once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// EventPublisher fans domain events out to whoever subscribed.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers one notification to an external channel. Delivery
// failures are the worker's retry problem, not the engine's.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload []byte) error
}

// BookingService is the lifecycle manager surface the API layer uses.
type BookingService interface {
	Create(ctx context.Context, req *models.Booking) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID int64) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID int64, reason string) (*models.Booking, error)
	TransitionPayment(ctx context.Context, bookingID int64, to models.PaymentStatus) (*models.Booking, error)
	MarkInProgress(ctx context.Context, bookingID int64) (*models.Booking, error)
	MarkCompleted(ctx context.Context, bookingID int64) (*models.Booking, error)
	Get(ctx context.Context, bookingID int64) (*models.Booking, error)
	Quote(ctx context.Context, req *models.Booking) (models.PriceBreakdown, error)
}

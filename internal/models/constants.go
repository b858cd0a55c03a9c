package models

// Status is the booking lifecycle axis.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus is tracked independently of Status: the business
// confirms bookings before full payment is received.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// statusTransitions lists the legal lifecycle edges. COMPLETED and
// CANCELLED have no outgoing edges.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPartial, PaymentPaid},
	PaymentPartial: {PaymentPaid, PaymentRefunded},
	PaymentPaid:    {PaymentRefunded},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func (s Status) CanTransition(to Status) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further lifecycle moves are possible.
func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// Claims reports whether a booking in this status holds its resources.
// Only claims of confirmed and in-progress bookings count toward conflicts.
func (s Status) Claims() bool {
	return s == StatusConfirmed || s == StatusInProgress
}

func (p PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// ServiceCategory classifies a package by the kind of event it covers.
type ServiceCategory string

const (
	CategoryWedding   ServiceCategory = "wedding"
	CategoryCorporate ServiceCategory = "corporate"
	CategoryPersonal  ServiceCategory = "personal"
	CategoryEvent     ServiceCategory = "event"
)

// PackageType classifies the media a package produces.
type PackageType string

const (
	PackagePhotography PackageType = "photography"
	PackageVideography PackageType = "videography"
	PackageBoth        PackageType = "both"
)

const (
	// ResourceCalendar is the single provider calendar every package
	// booking occupies for its event window.
	ResourceCalendar = "calendar"

	// DateFormat is the wire and storage format for dates.
	DateFormat = "2006-01-02"

	// TimeFormat is the wire format for the event start time.
	TimeFormat = "15:04"
)

const (
	// LockTTL bounds how long a confirm may hold a resource lease.
	LockTTLSeconds = 30

	// ConfirmTimeout bounds the whole re-check/re-price/persist sequence.
	ConfirmTimeoutSeconds = 10

	// NotifyQueueSize is the buffered depth of the notifier queue.
	NotifyQueueSize = 256

	// ScheduleSweepMinutes is how often the schedule worker advances
	// bookings whose event window has started or ended.
	ScheduleSweepMinutes = 5
)

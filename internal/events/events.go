package events

import (
	"encoding/json"
	"sync"
	"time"

	"studiobook/internal/models"
)

const (
	EventBookingCreated       = "booking_created"
	EventBookingConfirmed     = "booking_confirmed"
	EventBookingCancelled     = "booking_cancelled"
	EventBookingInProgress    = "booking_in_progress"
	EventBookingCompleted     = "booking_completed"
	EventPaymentStatusChanged = "payment_status_changed"
)

// BookingEventPayload is the minimal booking snapshot event consumers
// get; a notification dispatcher forwards it without reading the store.
type BookingEventPayload struct {
	BookingID     int64                `json:"booking_id"`
	BookingNumber string               `json:"booking_number"`
	ClientName    string               `json:"client_name"`
	ClientPhone   string               `json:"client_phone"`
	PackageID     int64                `json:"package_id"`
	PackageName   string               `json:"package_name"`
	EventDate     time.Time            `json:"event_date"`
	EventTime     string               `json:"event_time"`
	Status        models.Status        `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	FinalPrice    int64                `json:"final_price"`
	Reason        string               `json:"reason,omitempty"`
}

// NewBookingPayload snapshots the fields consumers care about.
func NewBookingPayload(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		ClientName:    b.Client.Name,
		ClientPhone:   b.Client.Phone,
		PackageID:     b.PackageID,
		PackageName:   b.PackageName,
		EventDate:     b.EventDate,
		EventTime:     b.EventTime,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		FinalPrice:    b.Pricing.FinalPrice,
		Reason:        b.CancelReason,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

package models

import (
	"fmt"
	"time"
)

// ClientContact identifies the person the booking is for.
type ClientContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// AddOnLine is one selected add-on with the unit price snapshotted from
// the catalog at pricing time.
type AddOnLine struct {
	AddOnID   int64  `json:"add_on_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

func (l AddOnLine) Total() int64 {
	return l.UnitPrice * l.Quantity
}

// EquipmentRental is a rental of quantity units from an equipment stock
// pool over an inclusive date range.
type EquipmentRental struct {
	EquipmentID     int64     `json:"equipment_id"`
	Name            string    `json:"name"`
	Quantity        int64     `json:"quantity"`
	RentalStart     time.Time `json:"rental_start"`
	RentalEnd       time.Time `json:"rental_end"`
	DailyRate       int64     `json:"daily_rate"`
	SecurityDeposit int64     `json:"security_deposit"`
}

// Days returns the inclusive day count: a same-day rental is 1 day.
func (r EquipmentRental) Days() int64 {
	start := truncateToDay(r.RentalStart)
	end := truncateToDay(r.RentalEnd)
	if end.Before(start) {
		return 0
	}
	return int64(end.Sub(start)/(24*time.Hour)) + 1
}

func (r EquipmentRental) Total() int64 {
	return r.DailyRate * r.Days() * r.Quantity
}

// Window returns the claim window the rental occupies, end-exclusive on
// the day after the last rental day.
func (r EquipmentRental) Window() Window {
	return Window{
		Start: truncateToDay(r.RentalStart),
		End:   truncateToDay(r.RentalEnd).AddDate(0, 0, 1),
	}
}

// CateringOrder is one catering line; quantity bounds come from the
// catalog entry and are enforced by the pricing calculator.
type CateringOrder struct {
	CateringServiceID int64  `json:"catering_service_id"`
	Name              string `json:"name"`
	Quantity          int64  `json:"quantity"`
	UnitPrice         int64  `json:"unit_price"`
	MinOrderQuantity  int64  `json:"min_order_quantity"`
	MaxOrderQuantity  int64  `json:"max_order_quantity"`
}

func (o CateringOrder) Total() int64 {
	return o.UnitPrice * o.Quantity
}

// PriceBreakdown is the frozen result of one pricing computation.
type PriceBreakdown struct {
	BasePrice      int64 `json:"base_price"`
	AddOnTotal     int64 `json:"add_on_total"`
	RentalTotal    int64 `json:"rental_total"`
	CateringTotal  int64 `json:"catering_total"`
	DepositTotal   int64 `json:"deposit_total"`
	DiscountAmount int64 `json:"discount_amount"`
	FinalPrice     int64 `json:"final_price"`
}

// Booking is the aggregate root. Only the lifecycle manager mutates it.
type Booking struct {
	ID            int64         `json:"id"`
	BookingNumber string        `json:"booking_number"`
	Client        ClientContact `json:"client"`
	EventType     string        `json:"event_type"`
	EventDate     time.Time     `json:"event_date"`
	EventTime     string        `json:"event_time"` // HH:MM, provider-local
	DurationHours int64         `json:"duration_hours"`
	Location      string        `json:"location"`

	PackageID   int64 `json:"package_id"`
	PackageName string `json:"package_name"`
	// BasePrice is snapshotted from the catalog; re-snapshotted and
	// frozen at confirm time.
	BasePrice int64 `json:"base_price"`

	AddOns           []AddOnLine       `json:"add_ons,omitempty"`
	EquipmentRentals []EquipmentRental `json:"equipment_rentals,omitempty"`
	CateringOrders   []CateringOrder   `json:"catering_orders,omitempty"`

	DiscountAmount int64          `json:"discount_amount"`
	Pricing        PriceBreakdown `json:"pricing"`

	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	AdminNotes    string        `json:"admin_notes,omitempty"`
	CancelReason  string        `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Version       int64         `json:"version"`
}

// EventStart combines EventDate and EventTime. A missing or malformed
// EventTime (rejected at create) degrades to midnight.
func (b *Booking) EventStart() time.Time {
	day := truncateToDay(b.EventDate)
	t, err := time.Parse(TimeFormat, b.EventTime)
	if err != nil {
		return day
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

// EventEnd is the exclusive end of the provider-calendar slot.
func (b *Booking) EventEnd() time.Time {
	return b.EventStart().Add(time.Duration(b.DurationHours) * time.Hour)
}

// EventWindow is the calendar claim the package booking occupies.
func (b *Booking) EventWindow() Window {
	return Window{Start: b.EventStart(), End: b.EventEnd()}
}

// Window is a half-open [Start, End) time interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// ResourceClaim is one durable claim a confirmed booking holds: the
// provider calendar slot or part of an equipment stock pool.
type ResourceClaim struct {
	ResourceID string `json:"resource_id"`
	Quantity   int64  `json:"quantity"`
	Window     Window `json:"window"`
}

// Claims derives the booking's resource claims from its package slot and
// equipment rentals.
func (b *Booking) ResourceClaims() []ResourceClaim {
	claims := []ResourceClaim{{
		ResourceID: ResourceCalendar,
		Quantity:   1,
		Window:     b.EventWindow(),
	}}
	for _, r := range b.EquipmentRentals {
		claims = append(claims, ResourceClaim{
			ResourceID: EquipmentResource(r.EquipmentID),
			Quantity:   r.Quantity,
			Window:     r.Window(),
		})
	}
	return claims
}

// ActiveClaim is a claim row joined with its booking, as returned by
// the store's resource-window query. Only CONFIRMED and IN_PROGRESS
// bookings contribute active claims.
type ActiveClaim struct {
	BookingID  int64  `json:"booking_id"`
	ResourceID string `json:"resource_id"`
	Quantity   int64  `json:"quantity"`
	Window     Window `json:"window"`
}

// EquipmentResource is the lock/claim key for an equipment stock pool.
func EquipmentResource(equipmentID int64) string {
	return fmt.Sprintf("equipment:%d", equipmentID)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"studiobook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "bookings.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleBooking(number string, eventDate time.Time) *models.Booking {
	return &models.Booking{
		BookingNumber: number,
		Client:        models.ClientContact{Name: "Anna", Phone: "+15550100", Email: "anna@example.com"},
		EventType:     "wedding",
		EventDate:     eventDate,
		EventTime:     "14:00",
		DurationHours: 4,
		Location:      "Riverside Hall",
		PackageID:     1,
		PackageName:   "Wedding Classic",
		BasePrice:     50000,
		AddOns: []models.AddOnLine{
			{AddOnID: 10, Name: "Extra Album", UnitPrice: 5000, Quantity: 2},
		},
		EquipmentRentals: []models.EquipmentRental{
			{EquipmentID: 20, Name: "Lighting Kit", Quantity: 1, RentalStart: eventDate, RentalEnd: eventDate.AddDate(0, 0, 1), DailyRate: 2000, SecurityDeposit: 10000},
		},
		CateringOrders: []models.CateringOrder{
			{CateringServiceID: 30, Name: "Buffet", Quantity: 10, UnitPrice: 1500, MinOrderQuantity: 10, MaxOrderQuantity: 100},
		},
		DiscountAmount: 5000,
		Pricing: models.PriceBreakdown{
			BasePrice: 50000, AddOnTotal: 10000, RentalTotal: 4000,
			CateringTotal: 15000, DepositTotal: 10000, DiscountAmount: 5000, FinalPrice: 74000,
		},
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
	}
}

var testDate = time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := sampleBooking("BK-20260901-AAAAAA", testDate)
	require.NoError(t, db.CreateBooking(ctx, booking))
	assert.NotZero(t, booking.ID)
	assert.Equal(t, int64(1), booking.Version)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "BK-20260901-AAAAAA", got.BookingNumber)
	assert.Equal(t, "Anna", got.Client.Name)
	assert.Equal(t, "anna@example.com", got.Client.Email)
	assert.True(t, got.EventDate.Equal(testDate))
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)
	assert.Equal(t, int64(74000), got.Pricing.FinalPrice)
	assert.Equal(t, int64(50000), got.Pricing.BasePrice)

	require.Len(t, got.AddOns, 1)
	assert.Equal(t, int64(10), got.AddOns[0].AddOnID)
	require.Len(t, got.EquipmentRentals, 1)
	assert.Equal(t, int64(2), got.EquipmentRentals[0].Days())
	require.Len(t, got.CateringOrders, 1)
	assert.Equal(t, int64(30), got.CateringOrders[0].CateringServiceID)

	byNumber, err := db.GetBookingByNumber(ctx, "BK-20260901-AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, byNumber.ID)
}

func TestGetBookingNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetBooking(context.Background(), 999)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = db.GetBookingByNumber(context.Background(), "BK-00000000-000000")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestDuplicateBookingNumber(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := sampleBooking("BK-20260901-DUP001", testDate)
	require.NoError(t, db.CreateBooking(ctx, first))

	second := sampleBooking("BK-20260901-DUP001", testDate.AddDate(0, 0, 1))
	err := db.CreateBooking(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateBookingNumber)
}

func TestVersionedUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := sampleBooking("BK-20260901-VER001", testDate)
	require.NoError(t, db.CreateBooking(ctx, booking))

	require.NoError(t, db.UpdateStatusWithVersion(ctx, booking.ID, 1, models.StatusConfirmed))

	// stale version loses
	err := db.UpdateStatusWithVersion(ctx, booking.ID, 1, models.StatusInProgress)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	// missing row is reported distinctly
	err = db.UpdateStatusWithVersion(ctx, 999, 1, models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	require.NoError(t, db.UpdatePaymentStatusWithVersion(ctx, booking.ID, 2, models.PaymentPaid))
	err = db.UpdatePaymentStatusWithVersion(ctx, booking.ID, 2, models.PaymentRefunded)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, int64(3), got.Version)
}

func TestConfirmWithClaims(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	capacities := map[string]int64{models.ResourceCalendar: 1, models.EquipmentResource(20): 3}

	booking := sampleBooking("BK-20260901-CNF001", testDate)
	require.NoError(t, db.CreateBooking(ctx, booking))

	require.NoError(t, db.ConfirmWithClaims(ctx, booking, capacities))
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.Equal(t, int64(2), booking.Version)

	claims, err := db.FindActiveByResourceWindow(ctx, models.ResourceCalendar, booking.EventWindow())
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, booking.ID, claims[0].BookingID)
	assert.Equal(t, int64(1), claims[0].Quantity)

	// same calendar window cannot be claimed twice
	rival := sampleBooking("BK-20260901-CNF002", testDate)
	rival.EquipmentRentals = nil
	require.NoError(t, db.CreateBooking(ctx, rival))

	err = db.ConfirmWithClaims(ctx, rival, capacities)
	var conflict *models.ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.ResourceCalendar, conflict.ResourceID)
	assert.Contains(t, conflict.BookingIDs, booking.ID)

	// the loser's row is untouched
	got, err := db.GetBooking(ctx, rival.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestConfirmWithClaimsEquipmentPool(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	capacities := map[string]int64{models.ResourceCalendar: 1, models.EquipmentResource(20): 3}

	first := sampleBooking("BK-20260901-POOL01", testDate)
	first.EquipmentRentals[0].Quantity = 2
	require.NoError(t, db.CreateBooking(ctx, first))
	require.NoError(t, db.ConfirmWithClaims(ctx, first, capacities))

	// different day, overlapping rental window, pool has 1 unit left
	second := sampleBooking("BK-20260901-POOL02", testDate.AddDate(0, 0, 1))
	second.EquipmentRentals[0].Quantity = 2
	second.EquipmentRentals[0].RentalStart = testDate
	second.EquipmentRentals[0].RentalEnd = testDate.AddDate(0, 0, 1)
	require.NoError(t, db.CreateBooking(ctx, second))

	err := db.ConfirmWithClaims(ctx, second, capacities)
	var conflict *models.ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.EquipmentResource(20), conflict.ResourceID)

	second.EquipmentRentals[0].Quantity = 1
	require.NoError(t, db.ConfirmWithClaims(ctx, second, capacities))
}

func TestConfirmCancelledBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := sampleBooking("BK-20260901-CXL001", testDate)
	require.NoError(t, db.CreateBooking(ctx, booking))
	require.NoError(t, db.CancelBooking(ctx, booking.ID, 1, "client request"))

	err := db.ConfirmWithClaims(ctx, booking, map[string]int64{models.ResourceCalendar: 1})
	assert.ErrorIs(t, err, models.ErrBookingCancelled)
}

func TestCancelReleasesClaims(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	capacities := map[string]int64{models.ResourceCalendar: 1, models.EquipmentResource(20): 3}

	booking := sampleBooking("BK-20260901-REL001", testDate)
	require.NoError(t, db.CreateBooking(ctx, booking))
	require.NoError(t, db.ConfirmWithClaims(ctx, booking, capacities))

	require.NoError(t, db.CancelBooking(ctx, booking.ID, booking.Version, "weather"))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "weather", got.CancelReason)

	claims, err := db.FindActiveByResourceWindow(ctx, models.ResourceCalendar, booking.EventWindow())
	require.NoError(t, err)
	assert.Empty(t, claims)

	// the freed slot can be claimed again
	replacement := sampleBooking("BK-20260901-REL002", testDate)
	require.NoError(t, db.CreateBooking(ctx, replacement))
	assert.NoError(t, db.ConfirmWithClaims(ctx, replacement, capacities))
}

func TestCancelBookingVersionAndMissing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := sampleBooking("BK-20260901-CXL002", testDate)
	require.NoError(t, db.CreateBooking(ctx, booking))

	err := db.CancelBooking(ctx, booking.ID, 5, "stale")
	assert.ErrorIs(t, err, ErrConcurrentModification)

	err = db.CancelBooking(ctx, 999, 1, "missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestFindActiveByResourceWindowBounds(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	capacities := map[string]int64{models.ResourceCalendar: 1}

	booking := sampleBooking("BK-20260901-WIN001", testDate)
	booking.EquipmentRentals = nil
	require.NoError(t, db.CreateBooking(ctx, booking))
	require.NoError(t, db.ConfirmWithClaims(ctx, booking, capacities))

	window := booking.EventWindow() // 14:00-18:00

	// touching windows do not overlap
	before := models.Window{Start: window.Start.Add(-2 * time.Hour), End: window.Start}
	claims, err := db.FindActiveByResourceWindow(ctx, models.ResourceCalendar, before)
	require.NoError(t, err)
	assert.Empty(t, claims)

	after := models.Window{Start: window.End, End: window.End.Add(2 * time.Hour)}
	claims, err = db.FindActiveByResourceWindow(ctx, models.ResourceCalendar, after)
	require.NoError(t, err)
	assert.Empty(t, claims)

	overlapping := models.Window{Start: window.End.Add(-time.Minute), End: window.End.Add(time.Hour)}
	claims, err = db.FindActiveByResourceWindow(ctx, models.ResourceCalendar, overlapping)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, booking.ID, claims[0].BookingID)

	// pending bookings hold no claims
	pending := sampleBooking("BK-20260901-WIN002", testDate.AddDate(0, 0, 5))
	pending.EquipmentRentals = nil
	require.NoError(t, db.CreateBooking(ctx, pending))
	claims, err = db.FindActiveByResourceWindow(ctx, models.ResourceCalendar, pending.EventWindow())
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestListBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	early := sampleBooking("BK-20260901-LST001", testDate)
	late := sampleBooking("BK-20260901-LST002", testDate.AddDate(0, 0, 10))
	require.NoError(t, db.CreateBooking(ctx, early))
	require.NoError(t, db.CreateBooking(ctx, late))
	require.NoError(t, db.UpdateStatusWithVersion(ctx, late.ID, 1, models.StatusConfirmed))

	inRange, err := db.ListBookingsByDateRange(ctx, testDate, testDate.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, early.ID, inRange[0].ID)
	assert.Len(t, inRange[0].AddOns, 1)

	confirmed, err := db.ListBookingsByStatus(ctx, models.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, late.ID, confirmed[0].ID)

	both, err := db.ListBookingsByStatus(ctx, models.StatusPending, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, both, 2)

	none, err := db.ListBookingsByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

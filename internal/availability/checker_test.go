package availability

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"studiobook/internal/catalog"
	"studiobook/internal/database"
	"studiobook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventDate = time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)

func setupChecker(t *testing.T) (*Checker, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "availability.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.New(catalog.File{
		Packages: []models.Package{
			{ID: 1, Name: "Portrait Session", BasePrice: 20000, DurationHours: 2, IsActive: true},
		},
		Equipment: []models.Equipment{
			{ID: 20, Name: "Lighting Kit", DailyRate: 2000, StockQuantity: 3, IsActive: true},
		},
	})
	require.NoError(t, err)

	return NewChecker(db, cat, &logger), db
}

func booking(number string, date time.Time, rentalQty int64) *models.Booking {
	b := &models.Booking{
		BookingNumber: number,
		Client:        models.ClientContact{Name: "Anna", Phone: "+15550100"},
		EventType:     "portrait",
		EventDate:     date,
		EventTime:     "10:00",
		DurationHours: 2,
		PackageID:     1,
		PackageName:   "Portrait Session",
		BasePrice:     20000,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
	}
	if rentalQty > 0 {
		b.EquipmentRentals = []models.EquipmentRental{{
			EquipmentID: 20, Name: "Lighting Kit", Quantity: rentalQty,
			RentalStart: date, RentalEnd: date, DailyRate: 2000,
		}}
	}
	return b
}

func confirm(t *testing.T, db *database.DB, b *models.Booking) {
	t.Helper()
	capacities := map[string]int64{models.ResourceCalendar: 1, models.EquipmentResource(20): 3}
	require.NoError(t, db.ConfirmWithClaims(context.Background(), b, capacities))
}

func TestCheckFreeCalendar(t *testing.T) {
	checker, db := setupChecker(t)
	ctx := context.Background()

	b := booking("BK-20260901-AVL001", eventDate, 0)
	require.NoError(t, db.CreateBooking(ctx, b))

	assert.NoError(t, checker.Check(ctx, b))
}

func TestCheckCalendarConflict(t *testing.T) {
	checker, db := setupChecker(t)
	ctx := context.Background()

	held := booking("BK-20260901-AVL002", eventDate, 0)
	require.NoError(t, db.CreateBooking(ctx, held))
	confirm(t, db, held)

	rival := booking("BK-20260901-AVL003", eventDate, 0)
	require.NoError(t, db.CreateBooking(ctx, rival))

	err := checker.Check(ctx, rival)
	var conflict *models.ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.ResourceCalendar, conflict.ResourceID)
	assert.Equal(t, []int64{held.ID}, conflict.BookingIDs)

	// a different day is fine
	free := booking("BK-20260901-AVL004", eventDate.AddDate(0, 0, 1), 0)
	require.NoError(t, db.CreateBooking(ctx, free))
	assert.NoError(t, checker.Check(ctx, free))
}

func TestCheckIgnoresOwnClaims(t *testing.T) {
	checker, db := setupChecker(t)
	ctx := context.Background()

	held := booking("BK-20260901-AVL005", eventDate, 1)
	require.NoError(t, db.CreateBooking(ctx, held))
	confirm(t, db, held)

	// re-checking the holder against its own claims passes
	assert.NoError(t, checker.Check(ctx, held))
}

func TestCheckEquipmentPool(t *testing.T) {
	checker, db := setupChecker(t)
	ctx := context.Background()

	// two confirmed single-unit rentals leave one unit in the pool
	for i, number := range []string{"BK-20260901-AVL006", "BK-20260901-AVL007"} {
		held := booking(number, eventDate.AddDate(0, 0, i), 1)
		held.EquipmentRentals[0].RentalStart = eventDate
		held.EquipmentRentals[0].RentalEnd = eventDate.AddDate(0, 0, 2)
		require.NoError(t, db.CreateBooking(ctx, held))
		confirm(t, db, held)
	}

	fits := booking("BK-20260901-AVL008", eventDate.AddDate(0, 0, 2), 1)
	fits.EquipmentRentals[0].RentalStart = eventDate
	fits.EquipmentRentals[0].RentalEnd = eventDate.AddDate(0, 0, 2)
	require.NoError(t, db.CreateBooking(ctx, fits))
	assert.NoError(t, checker.Check(ctx, fits))

	over := booking("BK-20260901-AVL009", eventDate.AddDate(0, 0, 3), 2)
	over.EquipmentRentals[0].RentalStart = eventDate
	over.EquipmentRentals[0].RentalEnd = eventDate.AddDate(0, 0, 2)
	require.NoError(t, db.CreateBooking(ctx, over))

	err := checker.Check(ctx, over)
	var conflict *models.ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.EquipmentResource(20), conflict.ResourceID)
	assert.Len(t, conflict.BookingIDs, 2)
}

func TestCapacities(t *testing.T) {
	checker, _ := setupChecker(t)

	b := booking("BK-20260901-AVL010", eventDate, 1)
	capacities, err := checker.Capacities(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), capacities[models.ResourceCalendar])
	assert.Equal(t, int64(3), capacities[models.EquipmentResource(20)])

	// unknown equipment is a lookup error, not a silent zero
	b.EquipmentRentals[0].EquipmentID = 99
	_, err = checker.Capacities(context.Background(), b)
	assert.Error(t, err)
}

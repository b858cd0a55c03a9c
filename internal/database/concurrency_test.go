package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"studiobook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentConfirm(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	capacities := map[string]int64{models.ResourceCalendar: 1, models.EquipmentResource(20): 3}

	const numGoroutines = 8
	bookings := make([]*models.Booking, numGoroutines)
	for i := range bookings {
		b := sampleBooking(fmt.Sprintf("BK-20260901-RACE%02d", i), testDate)
		b.EquipmentRentals = nil
		require.NoError(t, db.CreateBooking(ctx, b))
		bookings[i] = b
	}

	var wg sync.WaitGroup
	results := make(chan error, numGoroutines)
	for _, b := range bookings {
		wg.Add(1)
		go func(b *models.Booking) {
			defer wg.Done()
			results <- db.ConfirmWithClaims(ctx, b, capacities)
		}(b)
	}
	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		default:
			var conflict *models.ResourceConflictError
			if errors.As(err, &conflict) {
				conflictCount++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}

	assert.Equal(t, 1, successCount, "exactly one confirm should claim the calendar slot")
	assert.Equal(t, numGoroutines-1, conflictCount)

	confirmed, err := db.ListBookingsByStatus(ctx, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)

	claims, err := db.FindActiveByResourceWindow(ctx, models.ResourceCalendar, bookings[0].EventWindow())
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestConcurrentEquipmentPoolDrain(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	capacities := map[string]int64{models.ResourceCalendar: 1, models.EquipmentResource(20): 3}

	// distinct calendar days, all draining the same 3-unit pool
	const numGoroutines = 6
	bookings := make([]*models.Booking, numGoroutines)
	for i := range bookings {
		b := sampleBooking(fmt.Sprintf("BK-20260901-POOL%02d", i), testDate.AddDate(0, 0, i))
		b.EquipmentRentals[0].Quantity = 1
		b.EquipmentRentals[0].RentalStart = testDate
		b.EquipmentRentals[0].RentalEnd = testDate.AddDate(0, 0, numGoroutines)
		require.NoError(t, db.CreateBooking(ctx, b))
		bookings[i] = b
	}

	var wg sync.WaitGroup
	results := make(chan error, numGoroutines)
	for _, b := range bookings {
		wg.Add(1)
		go func(b *models.Booking) {
			defer wg.Done()
			results <- db.ConfirmWithClaims(ctx, b, capacities)
		}(b)
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			var conflict *models.ResourceConflictError
			assert.ErrorAs(t, err, &conflict)
			assert.Equal(t, models.EquipmentResource(20), conflict.ResourceID)
		}
	}
	assert.Equal(t, 3, successCount, "pool of 3 admits exactly three one-unit rentals")
}

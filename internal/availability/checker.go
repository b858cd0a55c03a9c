// Package availability decides whether a booking's resource claims fit
// alongside the claims already committed by confirmed bookings.
package availability

import (
	"context"
	"fmt"

	"studiobook/internal/domain"
	"studiobook/internal/models"

	"github.com/rs/zerolog"
)

type Checker struct {
	store   domain.BookingStore
	catalog domain.Catalog
	logger  *zerolog.Logger
}

func NewChecker(store domain.BookingStore, catalog domain.Catalog, logger *zerolog.Logger) *Checker {
	return &Checker{store: store, catalog: catalog, logger: logger}
}

// Check walks the booking's claims and compares claimed quantities of
// overlapping CONFIRMED/IN_PROGRESS bookings against each resource's
// capacity. The booking's own prior claims are ignored so re-confirming
// is idempotent. A clash returns *models.ResourceConflictError naming
// every clashing booking; conflicts are never silently dropped.
func (c *Checker) Check(ctx context.Context, booking *models.Booking) error {
	capacities, err := c.Capacities(ctx, booking)
	if err != nil {
		return err
	}

	for _, claim := range booking.ResourceClaims() {
		active, err := c.store.FindActiveByResourceWindow(ctx, claim.ResourceID, claim.Window)
		if err != nil {
			return fmt.Errorf("query active claims for %s: %w", claim.ResourceID, err)
		}

		var claimed int64
		var holders []int64
		seen := make(map[int64]bool)
		for _, a := range active {
			if a.BookingID == booking.ID {
				continue
			}
			claimed += a.Quantity
			if !seen[a.BookingID] {
				seen[a.BookingID] = true
				holders = append(holders, a.BookingID)
			}
		}

		if claimed+claim.Quantity > capacities[claim.ResourceID] {
			c.logger.Debug().
				Str("resource", claim.ResourceID).
				Int64("claimed", claimed).
				Int64("requested", claim.Quantity).
				Int64("capacity", capacities[claim.ResourceID]).
				Ints64("holders", holders).
				Msg("availability conflict")
			return &models.ResourceConflictError{ResourceID: claim.ResourceID, BookingIDs: holders}
		}
	}
	return nil
}

// Capacities resolves each claimed resource to its finite capacity: 1
// for the provider calendar, the stock pool size for equipment.
func (c *Checker) Capacities(ctx context.Context, booking *models.Booking) (map[string]int64, error) {
	capacities := map[string]int64{models.ResourceCalendar: 1}
	for _, rental := range booking.EquipmentRentals {
		key := models.EquipmentResource(rental.EquipmentID)
		if _, ok := capacities[key]; ok {
			continue
		}
		equipment, err := c.catalog.GetEquipment(ctx, rental.EquipmentID)
		if err != nil {
			return nil, fmt.Errorf("resolve equipment %d: %w", rental.EquipmentID, err)
		}
		capacities[key] = equipment.StockQuantity
	}
	return capacities, nil
}

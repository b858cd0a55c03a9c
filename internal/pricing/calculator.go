// Package pricing computes a booking's price breakdown from
// catalog-resolved line items. It performs no I/O and never looks up
// the catalog itself; callers resolve unit prices first so one input
// always produces one output.
package pricing

import (
	"studiobook/internal/models"
)

// Input carries everything one price computation needs. All unit
// prices are already resolved against a catalog snapshot.
type Input struct {
	BasePrice        int64
	AddOns           []models.AddOnLine
	EquipmentRentals []models.EquipmentRental
	CateringOrders   []models.CateringOrder
	DiscountAmount   int64
	// IncludeDeposits adds equipment security deposits to the deposit
	// total; deposits never count toward the discountable subtotal.
	IncludeDeposits bool
}

// Compute validates every line item and returns the frozen breakdown.
// finalPrice = max(0, base + addOns + rentals + catering - discount).
func Compute(in Input) (models.PriceBreakdown, error) {
	if in.BasePrice < 0 {
		return models.PriceBreakdown{}, &models.ValidationError{Field: "base_price", Reason: "must not be negative"}
	}
	if in.DiscountAmount < 0 {
		return models.PriceBreakdown{}, &models.ValidationError{Field: "discount_amount", Reason: "must not be negative"}
	}

	var addOnTotal int64
	for _, line := range in.AddOns {
		if line.Quantity <= 0 {
			return models.PriceBreakdown{}, &models.ValidationError{Field: "add_on", Reason: "quantity must be positive"}
		}
		if line.UnitPrice < 0 {
			return models.PriceBreakdown{}, &models.ValidationError{Field: "add_on", Reason: "unit price must not be negative"}
		}
		addOnTotal += line.Total()
	}

	var rentalTotal, depositTotal int64
	for _, rental := range in.EquipmentRentals {
		if rental.Quantity <= 0 {
			return models.PriceBreakdown{}, &models.ValidationError{Field: "equipment_rental", Reason: "quantity must be positive"}
		}
		if rental.Days() < 1 {
			return models.PriceBreakdown{}, &models.ValidationError{Field: "equipment_rental", Reason: "rental end before start"}
		}
		rentalTotal += rental.Total()
		if in.IncludeDeposits {
			depositTotal += rental.SecurityDeposit * rental.Quantity
		}
	}

	var cateringTotal int64
	for _, order := range in.CateringOrders {
		if order.Quantity < order.MinOrderQuantity || order.Quantity > order.MaxOrderQuantity {
			return models.PriceBreakdown{}, &models.QuantityBoundsError{
				Line:     "catering order",
				ID:       order.CateringServiceID,
				Quantity: order.Quantity,
				Min:      order.MinOrderQuantity,
				Max:      order.MaxOrderQuantity,
			}
		}
		cateringTotal += order.Total()
	}

	subtotal := in.BasePrice + addOnTotal + rentalTotal + cateringTotal
	final := subtotal - in.DiscountAmount
	if final < 0 {
		final = 0
	}

	return models.PriceBreakdown{
		BasePrice:      in.BasePrice,
		AddOnTotal:     addOnTotal,
		RentalTotal:    rentalTotal,
		CateringTotal:  cateringTotal,
		DepositTotal:   depositTotal,
		DiscountAmount: in.DiscountAmount,
		FinalPrice:     final,
	}, nil
}

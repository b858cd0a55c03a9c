package pricing

import (
	"testing"
	"time"

	"studiobook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateFormat, s)
	require.NoError(t, err)
	return d
}

func TestComputeBasePlusAddOn(t *testing.T) {
	breakdown, err := Compute(Input{
		BasePrice: 5000,
		AddOns:    []models.AddOnLine{{AddOnID: 1, UnitPrice: 500, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), breakdown.BasePrice)
	assert.Equal(t, int64(500), breakdown.AddOnTotal)
	assert.Equal(t, int64(5500), breakdown.FinalPrice)
}

func TestComputeRentalInclusiveDays(t *testing.T) {
	breakdown, err := Compute(Input{
		EquipmentRentals: []models.EquipmentRental{{
			EquipmentID: 3,
			Quantity:    1,
			DailyRate:   2000,
			RentalStart: day(t, "2024-06-14"),
			RentalEnd:   day(t, "2024-06-16"),
		}},
	})
	require.NoError(t, err)
	// 3 inclusive days, not 2.
	assert.Equal(t, int64(6000), breakdown.RentalTotal)
	assert.Equal(t, int64(6000), breakdown.FinalPrice)
}

func TestComputeCateringBounds(t *testing.T) {
	order := models.CateringOrder{
		CateringServiceID: 9,
		UnitPrice:         150,
		MinOrderQuantity:  10,
		MaxOrderQuantity:  200,
	}

	t.Run("below minimum", func(t *testing.T) {
		order.Quantity = 5
		_, err := Compute(Input{CateringOrders: []models.CateringOrder{order}})
		var bounds *models.QuantityBoundsError
		require.ErrorAs(t, err, &bounds)
		assert.Equal(t, int64(9), bounds.ID)
		assert.Equal(t, int64(5), bounds.Quantity)
	})

	t.Run("above maximum", func(t *testing.T) {
		order.Quantity = 201
		_, err := Compute(Input{CateringOrders: []models.CateringOrder{order}})
		var bounds *models.QuantityBoundsError
		require.ErrorAs(t, err, &bounds)
	})

	t.Run("within bounds", func(t *testing.T) {
		order.Quantity = 50
		breakdown, err := Compute(Input{CateringOrders: []models.CateringOrder{order}})
		require.NoError(t, err)
		assert.Equal(t, int64(7500), breakdown.CateringTotal)
	})
}

func TestComputeDiscountClamp(t *testing.T) {
	breakdown, err := Compute(Input{
		BasePrice:      5000,
		AddOns:         []models.AddOnLine{{AddOnID: 1, UnitPrice: 500, Quantity: 1}},
		DiscountAmount: 6000,
	})
	require.NoError(t, err)
	// Discount exceeds subtotal: clamp to 0, never negative.
	assert.Equal(t, int64(0), breakdown.FinalPrice)
	assert.Equal(t, int64(6000), breakdown.DiscountAmount)
}

func TestComputeDeposits(t *testing.T) {
	in := Input{
		EquipmentRentals: []models.EquipmentRental{{
			EquipmentID:     3,
			Quantity:        2,
			DailyRate:       1000,
			SecurityDeposit: 5000,
			RentalStart:     day(t, "2024-06-14"),
			RentalEnd:       day(t, "2024-06-14"),
		}},
		IncludeDeposits: true,
	}
	breakdown, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), breakdown.RentalTotal)
	assert.Equal(t, int64(10000), breakdown.DepositTotal)
	// Deposits are held, not charged: they stay out of the final price.
	assert.Equal(t, int64(2000), breakdown.FinalPrice)
}

func TestComputeValidation(t *testing.T) {
	cases := []struct {
		name string
		in   Input
	}{
		{"negative base", Input{BasePrice: -1}},
		{"negative discount", Input{DiscountAmount: -1}},
		{"zero add-on quantity", Input{AddOns: []models.AddOnLine{{UnitPrice: 100, Quantity: 0}}}},
		{"negative add-on price", Input{AddOns: []models.AddOnLine{{UnitPrice: -100, Quantity: 1}}}},
		{"zero rental quantity", Input{EquipmentRentals: []models.EquipmentRental{{Quantity: 0, DailyRate: 100}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.in)
			var ve *models.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	t.Run("rental end before start", func(t *testing.T) {
		_, err := Compute(Input{EquipmentRentals: []models.EquipmentRental{{
			Quantity:    1,
			DailyRate:   100,
			RentalStart: day(t, "2024-06-16"),
			RentalEnd:   day(t, "2024-06-14"),
		}}})
		var ve *models.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestComputeDeterministic(t *testing.T) {
	in := Input{
		BasePrice: 120000,
		AddOns: []models.AddOnLine{
			{AddOnID: 1, UnitPrice: 2500, Quantity: 2},
			{AddOnID: 2, UnitPrice: 9000, Quantity: 1},
		},
		EquipmentRentals: []models.EquipmentRental{{
			EquipmentID: 4, Quantity: 1, DailyRate: 3000,
			RentalStart: day(t, "2024-07-01"), RentalEnd: day(t, "2024-07-03"),
		}},
		CateringOrders: []models.CateringOrder{{
			CateringServiceID: 2, UnitPrice: 800, Quantity: 40,
			MinOrderQuantity: 10, MaxOrderQuantity: 100,
		}},
		DiscountAmount: 15000,
	}

	first, err := Compute(in)
	require.NoError(t, err)
	second, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Spot-check the arithmetic: 120000 + 14000 + 9000 + 32000 - 15000.
	assert.Equal(t, int64(160000), first.FinalPrice)
}

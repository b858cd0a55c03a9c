// Package export renders booking ledgers as Excel workbooks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studiobook/internal/domain"
	"studiobook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var columns = []string{
	"Booking #", "Client", "Phone", "Event Type", "Event Date", "Time",
	"Package", "Status", "Payment", "Final Price", "Deposits", "Discount",
}

type Exporter struct {
	store  domain.BookingStore
	path   string
	logger *zerolog.Logger
}

func NewExporter(store domain.BookingStore, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{store: store, path: path, logger: logger}
}

// BookingsWorkbook builds a ledger of all bookings with an event date
// inside [start, end], one row per booking.
func (e *Exporter) BookingsWorkbook(ctx context.Context, start, end time.Time) (*excelize.File, error) {
	bookings, err := e.store.ListBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list bookings for export: %w", err)
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Bookings %s - %s",
		start.Format(models.DateFormat), end.Format(models.DateFormat)))
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, name)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for row, b := range bookings {
		values := []any{
			b.BookingNumber,
			b.Client.Name,
			b.Client.Phone,
			b.EventType,
			b.EventDate.Format(models.DateFormat),
			b.EventTime,
			b.PackageName,
			string(b.Status),
			string(b.PaymentStatus),
			b.Pricing.FinalPrice,
			b.Pricing.DepositTotal,
			b.Pricing.DiscountAmount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+3)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 22)
	_ = f.SetColWidth(sheetName, "B", lastCol, 16)

	return f, nil
}

// SaveBookings writes the ledger into the export directory and returns
// the file path.
func (e *Exporter) SaveBookings(ctx context.Context, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := e.BookingsWorkbook(ctx, start, end)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		start.Format(models.DateFormat), end.Format(models.DateFormat))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("bookings export written")
	return filePath, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studiobook/internal/models"
)

const bookingColumns = `id, booking_number, client_name, client_phone, COALESCE(client_email, ''),
        event_type, event_date, event_time, duration_hours, COALESCE(location, ''),
        package_id, package_name, base_price, discount_amount,
        add_on_total, rental_total, catering_total, deposit_total, final_price,
        status, payment_status, COALESCE(admin_notes, ''), COALESCE(cancel_reason, ''),
        created_at, updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	query := `INSERT INTO bookings (
                booking_number, client_name, client_phone, client_email,
                event_type, event_date, event_time, duration_hours, location,
                package_id, package_name, base_price, discount_amount,
                add_on_total, rental_total, catering_total, deposit_total, final_price,
                status, payment_status, admin_notes,
                created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		booking.BookingNumber,
		booking.Client.Name,
		booking.Client.Phone,
		booking.Client.Email,
		booking.EventType,
		booking.EventDate.Format(models.DateFormat),
		booking.EventTime,
		booking.DurationHours,
		booking.Location,
		booking.PackageID,
		booking.PackageName,
		booking.BasePrice,
		booking.DiscountAmount,
		booking.Pricing.AddOnTotal,
		booking.Pricing.RentalTotal,
		booking.Pricing.CateringTotal,
		booking.Pricing.DepositTotal,
		booking.Pricing.FinalPrice,
		booking.Status,
		booking.PaymentStatus,
		booking.AdminNotes,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", mapError(err))
	}
	booking.ID = id

	if err := insertLineItems(ctx, tx, booking); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", mapError(err))
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func insertLineItems(ctx context.Context, tx *sql.Tx, booking *models.Booking) error {
	for _, line := range booking.AddOns {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO booking_add_ons (booking_id, add_on_id, name, unit_price, quantity) VALUES (?, ?, ?, ?, ?)`,
			booking.ID, line.AddOnID, line.Name, line.UnitPrice, line.Quantity)
		if err != nil {
			return fmt.Errorf("insert add-on line: %w", mapError(err))
		}
	}
	for _, rental := range booking.EquipmentRentals {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO equipment_rentals (booking_id, equipment_id, name, quantity, rental_start, rental_end, daily_rate, security_deposit)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			booking.ID, rental.EquipmentID, rental.Name, rental.Quantity,
			rental.RentalStart.Format(models.DateFormat), rental.RentalEnd.Format(models.DateFormat),
			rental.DailyRate, rental.SecurityDeposit)
		if err != nil {
			return fmt.Errorf("insert rental line: %w", mapError(err))
		}
	}
	for _, order := range booking.CateringOrders {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO catering_orders (booking_id, catering_service_id, name, quantity, unit_price, min_order_quantity, max_order_quantity)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			booking.ID, order.CateringServiceID, order.Name, order.Quantity,
			order.UnitPrice, order.MinOrderQuantity, order.MaxOrderQuantity)
		if err != nil {
			return fmt.Errorf("insert catering line: %w", mapError(err))
		}
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return db.scanFullBooking(ctx, row)
}

func (db *DB) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_number = ?`, number)
	return db.scanFullBooking(ctx, row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var dateStr string
	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.Client.Name, &b.Client.Phone, &b.Client.Email,
		&b.EventType, &dateStr, &b.EventTime, &b.DurationHours, &b.Location,
		&b.PackageID, &b.PackageName, &b.BasePrice, &b.DiscountAmount,
		&b.Pricing.AddOnTotal, &b.Pricing.RentalTotal, &b.Pricing.CateringTotal,
		&b.Pricing.DepositTotal, &b.Pricing.FinalPrice,
		&b.Status, &b.PaymentStatus, &b.AdminNotes, &b.CancelReason,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, mapError(err)
	}

	b.EventDate, err = time.Parse(models.DateFormat, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse event date %s: %w", dateStr, err)
	}
	b.Pricing.BasePrice = b.BasePrice
	b.Pricing.DiscountAmount = b.DiscountAmount
	return &b, nil
}

func (db *DB) scanFullBooking(ctx context.Context, row rowScanner) (*models.Booking, error) {
	b, err := scanBooking(row)
	if err != nil {
		return nil, err
	}
	if err := db.loadLineItems(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (db *DB) loadLineItems(ctx context.Context, b *models.Booking) error {
	rows, err := db.db.QueryContext(ctx,
		`SELECT add_on_id, name, unit_price, quantity FROM booking_add_ons WHERE booking_id = ? ORDER BY id`, b.ID)
	if err != nil {
		return fmt.Errorf("load add-on lines: %w", mapError(err))
	}
	defer rows.Close()
	for rows.Next() {
		var line models.AddOnLine
		if err := rows.Scan(&line.AddOnID, &line.Name, &line.UnitPrice, &line.Quantity); err != nil {
			return fmt.Errorf("scan add-on line: %w", err)
		}
		b.AddOns = append(b.AddOns, line)
	}
	if err := rows.Err(); err != nil {
		return mapError(err)
	}

	rentalRows, err := db.db.QueryContext(ctx,
		`SELECT equipment_id, name, quantity, rental_start, rental_end, daily_rate, security_deposit
         FROM equipment_rentals WHERE booking_id = ? ORDER BY id`, b.ID)
	if err != nil {
		return fmt.Errorf("load rental lines: %w", mapError(err))
	}
	defer rentalRows.Close()
	for rentalRows.Next() {
		var r models.EquipmentRental
		var startStr, endStr string
		if err := rentalRows.Scan(&r.EquipmentID, &r.Name, &r.Quantity, &startStr, &endStr, &r.DailyRate, &r.SecurityDeposit); err != nil {
			return fmt.Errorf("scan rental line: %w", err)
		}
		if r.RentalStart, err = time.Parse(models.DateFormat, startStr); err != nil {
			return fmt.Errorf("parse rental start %s: %w", startStr, err)
		}
		if r.RentalEnd, err = time.Parse(models.DateFormat, endStr); err != nil {
			return fmt.Errorf("parse rental end %s: %w", endStr, err)
		}
		b.EquipmentRentals = append(b.EquipmentRentals, r)
	}
	if err := rentalRows.Err(); err != nil {
		return mapError(err)
	}

	cateringRows, err := db.db.QueryContext(ctx,
		`SELECT catering_service_id, name, quantity, unit_price, min_order_quantity, max_order_quantity
         FROM catering_orders WHERE booking_id = ? ORDER BY id`, b.ID)
	if err != nil {
		return fmt.Errorf("load catering lines: %w", mapError(err))
	}
	defer cateringRows.Close()
	for cateringRows.Next() {
		var o models.CateringOrder
		if err := cateringRows.Scan(&o.CateringServiceID, &o.Name, &o.Quantity, &o.UnitPrice, &o.MinOrderQuantity, &o.MaxOrderQuantity); err != nil {
			return fmt.Errorf("scan catering line: %w", err)
		}
		b.CateringOrders = append(b.CateringOrders, o)
	}
	return mapError(cateringRows.Err())
}

func (db *DB) UpdateStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.Status) error {
	result, err := db.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("update booking status: %w", mapError(err))
	}
	return checkVersioned(ctx, db.db, result, id)
}

func (db *DB) UpdatePaymentStatusWithVersion(ctx context.Context, id, fromVersion int64, payment models.PaymentStatus) error {
	result, err := db.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		payment, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("update payment status: %w", mapError(err))
	}
	return checkVersioned(ctx, db.db, result, id)
}

// checkVersioned distinguishes a lost optimistic-lock race from a
// missing row when a versioned update touched nothing.
func checkVersioned(ctx context.Context, db *sql.DB, result sql.Result, id int64) error {
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return mapError(err)
	}
	return ErrConcurrentModification
}

// CancelBooking sets CANCELLED and drops the booking's claims in one
// transaction so overlapping windows free up atomically.
func (db *DB) CancelBooking(ctx context.Context, id, fromVersion int64, reason string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancel_reason = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		models.StatusCancelled, reason, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		scanErr := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		return ErrConcurrentModification
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_claims WHERE booking_id = ?`, id); err != nil {
		return fmt.Errorf("release claims: %w", mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", mapError(err))
	}
	return nil
}

// ConfirmWithClaims freezes the booking's pricing, moves it to
// CONFIRMED and records its resource claims, all in one transaction.
// The per-resource capacity check runs against committed claims inside
// the transaction, so two racing confirms cannot both succeed.
func (db *DB) ConfirmWithClaims(ctx context.Context, booking *models.Booking, capacities map[string]int64) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status models.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, booking.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return mapError(err)
	}
	if status == models.StatusCancelled {
		return models.ErrBookingCancelled
	}

	for _, claim := range booking.ResourceClaims() {
		if err := verifyClaim(ctx, tx, booking.ID, claim, capacities[claim.ResourceID]); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, base_price = ?, discount_amount = ?,
            add_on_total = ?, rental_total = ?, catering_total = ?, deposit_total = ?, final_price = ?,
            version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		models.StatusConfirmed,
		booking.Pricing.BasePrice, booking.Pricing.DiscountAmount,
		booking.Pricing.AddOnTotal, booking.Pricing.RentalTotal,
		booking.Pricing.CateringTotal, booking.Pricing.DepositTotal, booking.Pricing.FinalPrice,
		time.Now(), booking.ID, booking.Version)
	if err != nil {
		return fmt.Errorf("confirm booking: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_claims WHERE booking_id = ?`, booking.ID); err != nil {
		return fmt.Errorf("clear stale claims: %w", mapError(err))
	}
	for _, claim := range booking.ResourceClaims() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resource_claims (booking_id, resource_id, quantity, window_start, window_end) VALUES (?, ?, ?, ?, ?)`,
			booking.ID, claim.ResourceID, claim.Quantity,
			claim.Window.Start.UTC().Format(time.RFC3339),
			claim.Window.End.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert claim: %w", mapError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit confirm: %w", mapError(err))
	}

	booking.Status = models.StatusConfirmed
	booking.Version++
	return nil
}

func verifyClaim(ctx context.Context, tx *sql.Tx, bookingID int64, claim models.ResourceClaim, capacity int64) error {
	if capacity <= 0 {
		capacity = 1
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT c.booking_id, c.quantity
         FROM resource_claims c
         JOIN bookings b ON b.id = c.booking_id
         WHERE c.resource_id = ?
           AND b.status IN (?, ?)
           AND c.booking_id != ?
           AND c.window_start < ?
           AND c.window_end > ?`,
		claim.ResourceID, models.StatusConfirmed, models.StatusInProgress, bookingID,
		claim.Window.End.UTC().Format(time.RFC3339),
		claim.Window.Start.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("verify claim: %w", mapError(err))
	}
	defer rows.Close()

	var claimed int64
	var holders []int64
	for rows.Next() {
		var holder, qty int64
		if err := rows.Scan(&holder, &qty); err != nil {
			return fmt.Errorf("scan claim: %w", err)
		}
		claimed += qty
		holders = append(holders, holder)
	}
	if err := rows.Err(); err != nil {
		return mapError(err)
	}

	if claimed+claim.Quantity > capacity {
		return &models.ResourceConflictError{ResourceID: claim.ResourceID, BookingIDs: holders}
	}
	return nil
}

func (db *DB) FindActiveByResourceWindow(ctx context.Context, resourceID string, window models.Window) ([]models.ActiveClaim, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT c.booking_id, c.resource_id, c.quantity, c.window_start, c.window_end
         FROM resource_claims c
         JOIN bookings b ON b.id = c.booking_id
         WHERE c.resource_id = ?
           AND b.status IN (?, ?)
           AND c.window_start < ?
           AND c.window_end > ?
         ORDER BY c.booking_id`,
		resourceID, models.StatusConfirmed, models.StatusInProgress,
		window.End.UTC().Format(time.RFC3339),
		window.Start.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("find active claims: %w", mapError(err))
	}
	defer rows.Close()

	var claims []models.ActiveClaim
	for rows.Next() {
		var c models.ActiveClaim
		var startStr, endStr string
		if err := rows.Scan(&c.BookingID, &c.ResourceID, &c.Quantity, &startStr, &endStr); err != nil {
			return nil, fmt.Errorf("scan active claim: %w", err)
		}
		if c.Window.Start, err = time.Parse(time.RFC3339, startStr); err != nil {
			return nil, fmt.Errorf("parse claim window start %s: %w", startStr, err)
		}
		if c.Window.End, err = time.Parse(time.RFC3339, endStr); err != nil {
			return nil, fmt.Errorf("parse claim window end %s: %w", endStr, err)
		}
		claims = append(claims, c)
	}
	return claims, mapError(rows.Err())
}

func (db *DB) ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE event_date >= ? AND event_date <= ? ORDER BY event_date, event_time`,
		start.Format(models.DateFormat), end.Format(models.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("list bookings by date range: %w", mapError(err))
	}
	defer rows.Close()
	return db.collectBookings(ctx, rows)
}

func (db *DB) ListBookingsByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status IN (?` +
		repeatPlaceholder(len(statuses)-1) + `) ORDER BY event_date, event_time`
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings by status: %w", mapError(err))
	}
	defer rows.Close()
	return db.collectBookings(ctx, rows)
}

func (db *DB) collectBookings(ctx context.Context, rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	for _, b := range bookings {
		if err := db.loadLineItems(ctx, b); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

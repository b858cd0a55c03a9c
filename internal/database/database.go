package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrDuplicateBookingNumber = errors.New("booking number already exists")
	ErrStoreUnavailable       = errors.New("booking store unavailable")
)

// DB is the SQLite-backed booking store.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// _txlock=immediate makes write transactions take the database lock
	// at BEGIN, so a racing confirm queues on the busy timeout instead
	// of failing halfway through its claim check.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("booking store initialized")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_number TEXT UNIQUE NOT NULL,
            client_name TEXT NOT NULL,
            client_phone TEXT NOT NULL,
            client_email TEXT,
            event_type TEXT NOT NULL,
            event_date TEXT NOT NULL,
            event_time TEXT NOT NULL,
            duration_hours INTEGER NOT NULL,
            location TEXT,
            package_id INTEGER NOT NULL,
            package_name TEXT NOT NULL,
            base_price INTEGER NOT NULL,
            discount_amount INTEGER NOT NULL DEFAULT 0,
            add_on_total INTEGER NOT NULL DEFAULT 0,
            rental_total INTEGER NOT NULL DEFAULT 0,
            catering_total INTEGER NOT NULL DEFAULT 0,
            deposit_total INTEGER NOT NULL DEFAULT 0,
            final_price INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            payment_status TEXT NOT NULL DEFAULT 'pending',
            admin_notes TEXT,
            cancel_reason TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS booking_add_ons (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            add_on_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            unit_price INTEGER NOT NULL,
            quantity INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS equipment_rentals (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            equipment_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            rental_start TEXT NOT NULL,
            rental_end TEXT NOT NULL,
            daily_rate INTEGER NOT NULL,
            security_deposit INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS catering_orders (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            catering_service_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            unit_price INTEGER NOT NULL,
            min_order_quantity INTEGER NOT NULL,
            max_order_quantity INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS resource_claims (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            resource_id TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            window_start TEXT NOT NULL,
            window_end TEXT NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_event_date ON bookings(event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_number ON bookings(booking_number)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_resource ON resource_claims(resource_id, window_start, window_end)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_booking ON resource_claims(booking_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// mapError translates driver errors into the store's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed: bookings.booking_number") {
		return ErrDuplicateBookingNumber
	}
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "unable to open") {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

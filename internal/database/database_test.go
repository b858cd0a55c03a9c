package database

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "bookings.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(sql.ErrNoRows), ErrBookingNotFound)
	assert.ErrorIs(t, mapError(errors.New("UNIQUE constraint failed: bookings.booking_number")), ErrDuplicateBookingNumber)
	assert.ErrorIs(t, mapError(errors.New("database is locked")), ErrStoreUnavailable)

	plain := errors.New("syntax error")
	assert.Equal(t, plain, mapError(plain))
}

package worker

import (
	"context"
	"errors"
	"time"

	"studiobook/internal/database"
	"studiobook/internal/domain"
	"studiobook/internal/models"

	"github.com/rs/zerolog"
)

// ScheduleWorker advances bookings whose event window has opened or
// closed: CONFIRMED -> IN_PROGRESS at the event start, IN_PROGRESS ->
// COMPLETED at the event end. Transitions race with API callers, so
// premature and version errors are expected and skipped.
type ScheduleWorker struct {
	store    domain.BookingStore
	service  domain.BookingService
	interval time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewScheduleWorker(store domain.BookingStore, service domain.BookingService, interval time.Duration, logger *zerolog.Logger) *ScheduleWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ScheduleWorker{
		store:    store,
		service:  service,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start sweeps on a ticker until ctx is cancelled.
func (w *ScheduleWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("schedule worker started")
	defer w.logger.Info().Msg("schedule worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the schedulable bookings.
func (w *ScheduleWorker) Sweep(ctx context.Context) {
	bookings, err := w.store.ListBookingsByStatus(ctx, models.StatusConfirmed, models.StatusInProgress)
	if err != nil {
		w.logger.Error().Err(err).Msg("schedule sweep: list bookings")
		return
	}

	now := w.now()
	for _, b := range bookings {
		switch {
		case b.Status == models.StatusConfirmed && !now.Before(b.EventStart()):
			if _, err := w.service.MarkInProgress(ctx, b.ID); err != nil && !expectedSweepError(err) {
				w.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("schedule sweep: mark in progress")
			}
		case b.Status == models.StatusInProgress && !now.Before(b.EventEnd()):
			if _, err := w.service.MarkCompleted(ctx, b.ID); err != nil && !expectedSweepError(err) {
				w.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("schedule sweep: mark completed")
			}
		}
	}
}

// expectedSweepError filters the races a sweep legitimately loses: an
// operator moved the booking first, or the clock disagrees by a tick.
func expectedSweepError(err error) bool {
	var (
		tErr *models.StatusTransitionError
		pErr *models.PrematureTransitionError
	)
	return errors.As(err, &tErr) || errors.As(err, &pErr) ||
		errors.Is(err, models.ErrBookingCancelled) ||
		errors.Is(err, database.ErrConcurrentModification)
}

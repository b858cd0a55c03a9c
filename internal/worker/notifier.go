package worker

import (
	"context"
	"time"

	"studiobook/internal/domain"
	"studiobook/internal/events"

	"github.com/rs/zerolog"
)

var notifyEventTypes = []string{
	events.EventBookingCreated,
	events.EventBookingConfirmed,
	events.EventBookingCancelled,
	events.EventBookingInProgress,
	events.EventBookingCompleted,
	events.EventPaymentStatusChanged,
}

type queuedNotification struct {
	eventType string
	payload   []byte
}

// NotifyWorker drains booking events off the bus and delivers them to
// a Notifier with retries. Event publication never blocks on delivery:
// the bus handler only enqueues, the worker goroutine does the I/O.
type NotifyWorker struct {
	notifier domain.Notifier
	retry    RetryPolicy
	queue    chan queuedNotification
	logger   *zerolog.Logger
}

func NewNotifyWorker(notifier domain.Notifier, queueSize int, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if queueSize <= 0 {
		queueSize = 128
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		notifier: notifier,
		retry:    retry,
		queue:    make(chan queuedNotification, queueSize),
		logger:   logger,
	}
}

// Subscribe registers the worker for every booking event type.
func (w *NotifyWorker) Subscribe(bus *events.EventBus) {
	for _, eventType := range notifyEventTypes {
		bus.Subscribe(eventType, w.enqueue)
	}
}

func (w *NotifyWorker) enqueue(event *events.Event) error {
	select {
	case w.queue <- queuedNotification{eventType: event.Type, payload: event.Payload}:
	default:
		w.logger.Warn().Str("event", event.Type).Msg("notification queue full, event dropped")
	}
	return nil
}

// Start runs the delivery loop until ctx is cancelled.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify worker started")
	defer w.logger.Info().Msg("notify worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-w.queue:
			w.deliver(ctx, n)
		}
	}
}

func (w *NotifyWorker) deliver(ctx context.Context, n queuedNotification) {
	for attempt := 1; ; attempt++ {
		err := w.notifier.Notify(ctx, n.eventType, n.payload)
		if err == nil {
			return
		}
		if attempt >= w.retry.MaxRetries {
			w.logger.Error().Err(err).
				Str("event", n.eventType).
				Int("attempts", attempt).
				Msg("notification dropped after retries")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retry.NextDelay(attempt)):
		}
	}
}

// LogNotifier writes notifications to the log. It is the default sink
// when no external channel is configured.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, eventType string, payload []byte) error {
	n.Logger.Info().Str("event", eventType).RawJSON("payload", payload).Msg("notification")
	return nil
}

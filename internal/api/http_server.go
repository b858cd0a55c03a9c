package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"studiobook/internal/config"
	"studiobook/internal/database"
	"studiobook/internal/domain"
	"studiobook/internal/export"
	"studiobook/internal/models"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking engine over HTTP.
type HTTPServer struct {
	cfg      config.APIConfig
	service  domain.BookingService
	store    domain.BookingStore
	catalog  domain.Catalog
	exporter *export.Exporter
	logger   *zerolog.Logger
	server   *http.Server
	auth     *HTTPAuth
}

func NewHTTPServer(
	cfg config.APIConfig,
	service domain.BookingService,
	store domain.BookingStore,
	catalog domain.Catalog,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		service:  service,
		store:    store,
		catalog:  catalog,
		exporter: exporter,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/api/v1/quote", srv.handleQuote)
	mux.HandleFunc("/api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("/api/v1/packages", srv.handlePackages)

	handler := loggingMiddleware(logger, srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBooking(w, r)
	case http.MethodGet:
		s.handleListBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.Booking
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.service.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if rawStatus := strings.TrimSpace(query.Get("status")); rawStatus != "" {
		statuses := make([]models.Status, 0, 2)
		for _, part := range strings.Split(rawStatus, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				statuses = append(statuses, models.Status(trimmed))
			}
		}
		bookings, err := s.store.ListBookingsByStatus(r.Context(), statuses...)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
		return
	}

	start, end, err := dateRange(query.Get("from"), query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookings, err := s.store.ListBookingsByDateRange(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	if parts[0] == "export" {
		s.handleExport(w, r)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		booking, err := s.service.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case len(parts) == 2 && actionMethodAllowed(parts[1], r.Method):
		s.handleBookingAction(w, r, id, parts[1])

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// actionMethodAllowed permits PATCH alongside POST for payment-status;
// the other actions are POST only.
func actionMethodAllowed(action, method string) bool {
	if method == http.MethodPost {
		return true
	}
	return action == "payment-status" && method == http.MethodPatch
}

func (s *HTTPServer) handleBookingAction(w http.ResponseWriter, r *http.Request, id int64, action string) {
	var (
		booking *models.Booking
		err     error
	)

	switch action {
	case "confirm":
		booking, err = s.service.Confirm(r.Context(), id)

	case "cancel":
		var body struct {
			Reason string `json:"reason"`
		}
		if decodeErr := decodeJSON(r, &body); decodeErr != nil && !errors.Is(decodeErr, errEmptyBody) {
			writeError(w, http.StatusBadRequest, decodeErr.Error())
			return
		}
		booking, err = s.service.Cancel(r.Context(), id, body.Reason)

	case "payment-status":
		var body struct {
			PaymentStatus models.PaymentStatus `json:"payment_status"`
		}
		if decodeErr := decodeJSON(r, &body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr.Error())
			return
		}
		booking, err = s.service.TransitionPayment(r.Context(), id, body.PaymentStatus)

	case "start":
		booking, err = s.service.MarkInProgress(r.Context(), id)

	case "complete":
		booking, err = s.service.MarkCompleted(r.Context(), id)

	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.Booking
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	breakdown, err := s.service.Quote(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// handleAvailability reports whether a calendar slot, and optionally a
// slice of an equipment pool, is free for a window.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	dateStr := strings.TrimSpace(query.Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse(models.DateFormat, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	timeStr := strings.TrimSpace(query.Get("time"))
	if timeStr == "" {
		timeStr = "00:00"
	}
	startOfDay, err := time.Parse(models.TimeFormat, timeStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time format; expected HH:MM")
		return
	}

	durationHours := int64(24)
	if raw := strings.TrimSpace(query.Get("duration_hours")); raw != "" {
		durationHours, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || durationHours <= 0 {
			writeError(w, http.StatusBadRequest, "invalid duration_hours")
			return
		}
	}

	start := date.Add(time.Duration(startOfDay.Hour())*time.Hour + time.Duration(startOfDay.Minute())*time.Minute)
	window := models.Window{Start: start, End: start.Add(time.Duration(durationHours) * time.Hour)}

	resourceID := models.ResourceCalendar
	capacity := int64(1)
	quantity := int64(1)
	if raw := strings.TrimSpace(query.Get("equipment_id")); raw != "" {
		equipmentID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid equipment_id")
			return
		}
		equipment, err := s.catalog.GetEquipment(r.Context(), equipmentID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		resourceID = models.EquipmentResource(equipmentID)
		capacity = equipment.StockQuantity
		if rawQty := strings.TrimSpace(query.Get("quantity")); rawQty != "" {
			quantity, err = strconv.ParseInt(rawQty, 10, 64)
			if err != nil || quantity < 1 {
				writeError(w, http.StatusBadRequest, "invalid quantity")
				return
			}
		}
	}

	claims, err := s.store.FindActiveByResourceWindow(r.Context(), resourceID, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var claimed int64
	holders := make([]int64, 0, len(claims))
	seen := make(map[int64]bool)
	for _, c := range claims {
		claimed += c.Quantity
		if !seen[c.BookingID] {
			seen[c.BookingID] = true
			holders = append(holders, c.BookingID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"resource_id":             resourceID,
		"available":               claimed+quantity <= capacity,
		"claimed":                 claimed,
		"capacity":                capacity,
		"conflicting_booking_ids": holders,
	})
}

func (s *HTTPServer) handlePackages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	packages, err := s.catalog.ListPackages(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	start, end, err := dateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	workbook, err := s.exporter.BookingsWorkbook(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer workbook.Close()

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		start.Format(models.DateFormat), end.Format(models.DateFormat))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if err := workbook.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("write export response")
	}
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return errEmptyBody
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func dateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	fromStr = strings.TrimSpace(fromStr)
	toStr = strings.TrimSpace(toStr)
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to are required")
	}
	start, err := time.Parse(models.DateFormat, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date; expected YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateFormat, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date; expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must not precede from")
	}
	return start, end, nil
}

// writeDomainError maps engine errors onto HTTP statuses. Conflicts
// carry the clashing booking ids in the body.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		vErr     *models.ValidationError
		qErr     *models.QuantityBoundsError
		tErr     *models.StatusTransitionError
		pErr     *models.PrematureTransitionError
		conflict *models.ResourceConflictError
	)

	switch {
	case errors.As(err, &vErr), errors.As(err, &qErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                   err.Error(),
			"resource_id":             conflict.ResourceID,
			"conflicting_booking_ids": conflict.BookingIDs,
		})
	case errors.As(err, &tErr), errors.As(err, &pErr),
		errors.Is(err, models.ErrBookingCancelled),
		errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

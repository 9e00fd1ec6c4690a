package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/sautiksau/bookingsync/internal/availability"
	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/calendar"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/logging"
)

type bookingResponse struct {
	ID              string    `json:"id"`
	ServiceID       string    `json:"serviceId"`
	Date            string    `json:"date"`
	StartTime       string    `json:"startTime"`
	EndTime         string    `json:"endTime"`
	CustomerName    string    `json:"customerName"`
	CustomerPhone   string    `json:"customerPhone,omitempty"`
	CustomerEmail   string    `json:"customerEmail,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Status          string    `json:"status"`
	Origin          string    `json:"origin"`
	ExternalEventID string    `json:"externalEventId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toBookingResponse(b *booking.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		ServiceID:       b.ServiceID,
		Date:            b.Date,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		CustomerEmail:   b.CustomerEmail,
		Notes:           b.Notes,
		Status:          string(b.Status),
		Origin:          string(b.Origin),
		ExternalEventID: b.ExternalEventID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

type createBookingRequest struct {
	ServiceID     string `json:"serviceId"`
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	CustomerEmail string `json:"customerEmail"`
	Notes         string `json:"notes"`
}

type rescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	// CustomerPhone authorizes the request when no admin password is sent.
	CustomerPhone string `json:"customerPhone,omitempty"`
}

type syncRequest struct {
	BookingID string `json:"bookingId"`
	Action    string `json:"action"`
}

type calendarIDRequest struct {
	CalendarID string `json:"calendarId"`
}

// handleAvailability serves GET /api/v1/availability.
func (a *API) handleAvailability(w http.ResponseWriter, r *http.Request) {
	duration, err := queryInt(r, "duration", 0)
	if err != nil || duration <= 0 {
		respondError(w, http.StatusBadRequest, "duration must be a positive number of minutes")
		return
	}
	days, err := queryInt(r, "days", a.horizonDays)
	if err != nil {
		respondError(w, http.StatusBadRequest, "days must be a number")
		return
	}

	seq, err := a.availability.Compute(r.Context(), duration, days)
	if err != nil {
		a.fail(w, "availability", err)
		return
	}

	out := make([]availability.DayAvailability, 0, days)
	for day := range seq {
		out = append(out, day)
	}
	respondJSON(w, http.StatusOK, out)
}

// handleCreateBooking serves POST /api/v1/bookings.
func (a *API) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := a.bookings.Create(r.Context(), booking.CreateInput(req))
	if err != nil {
		a.fail(w, "create_booking", err)
		return
	}
	a.metrics.RecordBookingCreated(r.Context())
	respondJSON(w, http.StatusCreated, toBookingResponse(b))
}

// handleGetBooking serves GET /api/v1/bookings/{id}.
func (a *API) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := a.bookings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.fail(w, "get_booking", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookingResponse(b))
}

// handleListBookings serves GET /api/v1/admin/bookings.
func (a *API) handleListBookings(w http.ResponseWriter, r *http.Request) {
	filter := booking.Filter{
		FromDate:   r.URL.Query().Get("from"),
		ToDate:     r.URL.Query().Get("to"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	for _, d := range []string{filter.FromDate, filter.ToDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(booking.DateFormat, d); err != nil {
			respondError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
			return
		}
	}

	list, err := a.bookings.List(r.Context(), filter)
	if err != nil {
		a.fail(w, "list_bookings", err)
		return
	}
	out := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingResponse(b))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleReschedule serves PATCH /api/v1/bookings/{id}/reschedule. Admins
// move any booking; customers move their own by sending its phone number.
func (a *API) handleReschedule(w http.ResponseWriter, r *http.Request) {
	password := r.Header.Get(AdminPasswordHeader)
	if password != "" && !a.checkAdmin(password) {
		a.unauthorized(w, r)
		return
	}

	var req rescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	var (
		b   *booking.Booking
		err error
	)
	switch {
	case password != "":
		b, err = a.bookings.Reschedule(r.Context(), id, req.Date, req.StartTime, req.EndTime)
	case req.CustomerPhone != "":
		b, err = a.bookings.RescheduleForCustomer(r.Context(), id, req.CustomerPhone, req.Date, req.StartTime, req.EndTime)
	default:
		a.unauthorized(w, r)
		return
	}
	if err != nil {
		a.fail(w, "reschedule_booking", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookingResponse(b))
}

// handleConfirm serves PATCH /api/v1/bookings/{id}/confirm.
func (a *API) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	action := a.startAudit(r, instrumentation.AuditBookingConfirm, id)

	b, err := a.bookings.Confirm(r.Context(), id)
	a.audit.Log(r.Context(), action.Complete(err))
	if err != nil {
		a.fail(w, "confirm_booking", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookingResponse(b))
}

// handleCancel serves PATCH /api/v1/bookings/{id}/cancel.
func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	action := a.startAudit(r, instrumentation.AuditBookingCancel, id)

	b, err := a.bookings.Cancel(r.Context(), id)
	a.audit.Log(r.Context(), action.Complete(err))
	if err != nil {
		a.fail(w, "cancel_booking", err)
		return
	}
	respondJSON(w, http.StatusOK, toBookingResponse(b))
}

// handleCalendarStatus serves GET /api/v1/admin/calendar/status.
func (a *API) handleCalendarStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.sync.Status(r.Context())
	if err != nil {
		a.fail(w, "calendar_status", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleCalendarImport serves POST /api/v1/admin/calendar/import. The import
// runs to completion even if the client disconnects.
func (a *API) handleCalendarImport(w http.ResponseWriter, r *http.Request) {
	action := a.startAudit(r, instrumentation.AuditImport, "")

	stats, err := a.sync.Import(r.Context())
	a.audit.Log(r.Context(), action.Complete(err))
	if err != nil {
		a.logger.Error("calendar import failed", logging.Err(err))
		respondJSON(w, http.StatusBadGateway, struct {
			Error string `json:"error"`
			Stats any    `json:"stats"`
		}{Error: "calendar import failed", Stats: stats})
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleCalendarSync serves POST /api/v1/admin/calendar/sync. Propagation
// runs in the background and the request is answered with 202.
func (a *API) handleCalendarSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	action := booking.SyncAction(req.Action)
	if strings.TrimSpace(req.BookingID) == "" || !action.Valid() {
		respondError(w, http.StatusBadRequest, "bookingId and action (create, update or delete) are required")
		return
	}

	audit := a.startAudit(r, instrumentation.AuditSyncTriggered, req.BookingID)
	a.audit.Log(r.Context(), audit.Complete(nil))

	ctx := context.WithoutCancel(r.Context())
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.sync.Propagate(ctx, req.BookingID, action)
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleSetCalendarID serves PUT /api/v1/admin/settings/calendar-id.
func (a *API) handleSetCalendarID(w http.ResponseWriter, r *http.Request) {
	var req calendarIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimSpace(req.CalendarID)
	if id == "" {
		respondError(w, http.StatusBadRequest, "calendarId is required")
		return
	}

	action := a.startAudit(r, instrumentation.AuditCalendarChange, id)
	err := a.settings.SetSetting(r.Context(), calendar.CalendarIDSetting, id)
	a.audit.Log(r.Context(), action.Complete(err))
	if err != nil {
		a.fail(w, "set_calendar_id", err)
		return
	}
	respondJSON(w, http.StatusOK, calendarIDRequest{CalendarID: id})
}

func (a *API) startAudit(r *http.Request, name, target string) *instrumentation.AdminAction {
	return instrumentation.NewAdminAction(name, r.RemoteAddr).
		WithTarget(target).
		WithSpanContext(r.Context())
}

// fail writes the error response for err, logging server-side failures.
func (a *API) fail(w http.ResponseWriter, operation string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithOperation(a.logger, operation).Error("request failed", logging.Err(err))
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

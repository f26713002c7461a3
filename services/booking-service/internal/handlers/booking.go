package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/michalsegal11/your-digital-companion/libs/events"
	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	"github.com/michalsegal11/your-digital-companion/libs/outbox"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/booking"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/metrics"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/model"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/storage"
)

const timeLayout = time.RFC3339

type BookingHandler struct {
	repo       *storage.BookingRepository
	outboxRepo *outbox.Repository
	planner    *booking.Planner
	logger     *slog.Logger
	metrics    *metrics.BookingMetrics
}

func NewBookingHandler(repo *storage.BookingRepository, outboxRepo *outbox.Repository, planner *booking.Planner, logger *slog.Logger, m *metrics.BookingMetrics) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		planner:    planner,
		logger:     logger,
		metrics:    m,
	}
}

// Routes registers the public booking flow and the back office endpoints.
func (h *BookingHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/public/cancellation", h.CancellationCheck)
	mux.HandleFunc("/api/v1/public/cancel", h.Cancel)

	mux.HandleFunc("/api/v1/appointments", h.List)
	mux.HandleFunc("/api/v1/appointments/status", h.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/reschedule-slots", h.RescheduleSlots)
	mux.HandleFunc("/api/v1/appointments/reschedule", h.Reschedule)
}

type appointmentItem struct {
	AppointmentID   string `json:"appointment_id"`
	ServiceID       string `json:"service_id"`
	ServiceName     string `json:"service_name,omitempty"`
	ClientName      string `json:"client_name"`
	ClientPhone     string `json:"client_phone,omitempty"`
	ClientEmail     string `json:"client_email,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	ReminderOptIn   bool   `json:"reminder_opt_in"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CancelReason    string `json:"cancellation_reason,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toItem(appt model.Appointment, loc *time.Location) appointmentItem {
	date, at := booking.LocalDateTime(appt.StartAt, loc)
	item := appointmentItem{
		AppointmentID:   appt.ID,
		ServiceID:       appt.ServiceID,
		ServiceName:     appt.ServiceName,
		ClientName:      appt.ClientName,
		ClientPhone:     appt.ClientPhone,
		ClientEmail:     appt.ClientEmail,
		Notes:           appt.Notes,
		Date:            date.String(),
		Time:            at.String(),
		DurationMinutes: appt.DurationMinutes(),
		Status:          string(appt.Status),
		ReminderOptIn:   appt.ReminderOptIn,
		CancelReason:    appt.CancelReason,
		CreatedAt:       appt.CreatedAt.UTC().Format(timeLayout),
	}
	if appt.CancelledAt != nil {
		item.CancelledAt = appt.CancelledAt.UTC().Format(timeLayout)
	}
	return item
}

func eventAppointment(appt model.Appointment, loc *time.Location) events.Appointment {
	date, at := booking.LocalDateTime(appt.StartAt, loc)
	return events.Appointment{
		AppointmentID:   appt.ID,
		ServiceID:       appt.ServiceID,
		ServiceName:     appt.ServiceName,
		ClientName:      appt.ClientName,
		ClientPhone:     appt.ClientPhone,
		Date:            date.String(),
		Time:            at.String(),
		DurationMinutes: appt.DurationMinutes(),
		StartAt:         appt.StartAt.UTC(),
		EndAt:           appt.EndAt.UTC(),
		Status:          string(appt.Status),
	}
}

func (h *BookingHandler) insertEvent(ctx context.Context, tx pgx.Tx, eventType, appointmentID string, payload any) error {
	evt, err := outbox.NewEvent(events.AggregateAppointment, appointmentID, eventType, payload)
	if err != nil {
		return err
	}
	_, err = h.outboxRepo.Insert(ctx, tx, evt)
	return err
}

// parseDateTime reads a salon-local date and time, answering 400 on malformed input.
func parseDateTime(w http.ResponseWriter, rawDate, rawTime string) (schedule.Date, schedule.Clock, bool) {
	date, err := schedule.ParseDate(rawDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return schedule.Date{}, 0, false
	}
	at, err := schedule.ParseClock(rawTime)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return schedule.Date{}, 0, false
	}
	return date, at, true
}

// appointmentID validates a client supplied appointment id, answering 400 when it is missing or not a UUID.
func appointmentID(w http.ResponseWriter, raw string) (string, bool) {
	raw = trim(raw)
	if raw == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid appointment_id", http.StatusBadRequest)
		return "", false
	}
	return id.String(), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(r, v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func errorBody(msg string) []byte {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return body
}

func trim(s string) string { return strings.TrimSpace(s) }

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/availability"
	"github.com/michalsegal11/your-digital-companion/libs/events"
	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	"github.com/michalsegal11/your-digital-companion/libs/policy"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/booking"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/model"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/storage"
)

type slotsResponse struct {
	Date            string                  `json:"date"`
	ServiceID       string                  `json:"service_id"`
	ServiceName     string                  `json:"service_name,omitempty"`
	DurationMinutes int                     `json:"duration_minutes"`
	WorkingHours    string                  `json:"working_hours"`
	IsWorkingDay    bool                    `json:"is_working_day"`
	HasEveningShift bool                    `json:"has_evening_shift"`
	ClosedReason    string                  `json:"closed_reason,omitempty"`
	Slots           []availability.TimeSlot `json:"slots"`
}

type bookRequest struct {
	ServiceID     string `json:"service_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ClientName    string `json:"client_name"`
	ClientPhone   string `json:"client_phone"`
	ClientEmail   string `json:"client_email"`
	Notes         string `json:"notes"`
	ReminderOptIn bool   `json:"reminder_opt_in"`
}

type bookResponse struct {
	AppointmentID   string `json:"appointment_id"`
	ServiceID       string `json:"service_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
}

type cancellationResponse struct {
	AppointmentID string `json:"appointment_id"`
	Permitted     bool   `json:"permitted"`
	Reason        string `json:"reason,omitempty"`
	Deadline      string `json:"deadline"`
	DeadlineHours int    `json:"deadline_hours"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	rawDate := trim(q.Get("date"))
	if rawDate == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseDate(rawDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	serviceID := trim(q.Get("service_id"))

	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		h.logger.Error("salon config unavailable", "err", err)
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	day, err := h.planner.Day(ctx, snap, date, serviceID)
	if err != nil {
		h.logger.Error("slot generation failed", "date", date.String(), "err", err)
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	cal := snap.Calendar()
	resp := slotsResponse{
		Date:            date.String(),
		ServiceID:       serviceID,
		ServiceName:     day.ServiceName,
		DurationMinutes: day.DurationMinutes,
		WorkingHours:    day.WorkingHours,
		IsWorkingDay:    cal.IsWorkingDay(date),
		HasEveningShift: cal.HasEveningShift(date),
		Slots:           day.Slots,
	}
	if reason, ok := cal.Blocked(date); ok {
		resp.ClosedReason = reason
	}

	available := 0
	for _, s := range day.Slots {
		if s.Available {
			available++
		}
	}
	h.metrics.ObserveSlots(resp.IsWorkingDay, available)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req bookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ServiceID = trim(req.ServiceID)
	req.ClientName = trim(req.ClientName)
	req.ClientPhone = trim(req.ClientPhone)
	if req.ServiceID == "" || req.ClientName == "" || req.ClientPhone == "" || trim(req.Date) == "" || trim(req.Time) == "" {
		http.Error(w, "service_id, date, time, client_name and client_phone are required", http.StatusBadRequest)
		return
	}
	date, at, ok := parseDateTime(w, req.Date, req.Time)
	if !ok {
		return
	}

	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		h.logger.Error("salon config unavailable", "err", err)
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	svc, found := snap.Service(req.ServiceID)
	if !found || !svc.Active {
		http.Error(w, "unknown service", http.StatusUnprocessableEntity)
		return
	}
	loc := snap.Location()
	startAt := date.At(at, loc)
	duration := availability.ServiceDurations(snap.Durations()).Lookup(svc.ID)

	appt := model.Appointment{
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		ClientName:    req.ClientName,
		ClientPhone:   req.ClientPhone,
		ClientEmail:   trim(req.ClientEmail),
		Notes:         trim(req.Notes),
		ReminderOptIn: req.ReminderOptIn,
		StartAt:       startAt,
		EndAt:         startAt.Add(time.Duration(duration) * time.Minute),
		Status:        model.StatusScheduled,
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := trim(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			h.metrics.ObserveBooking("replayed")
			if len(rec.ResponsePayload) > 0 {
				writeRaw(w, rec.StatusCode, rec.ResponsePayload)
				return
			}
			httpx.WriteJSON(w, rec.StatusCode, map[string]string{"appointment_id": rec.AppointmentID})
			return
		}
	}

	// reject answers with the same JSON body a replay of the idempotency key returns.
	reject := func(status int, msg, result string) {
		h.metrics.ObserveBooking(result)
		body := errorBody(msg)
		if idempotencyKey != "" {
			if err := h.repo.FinalizeIdempotency(ctx, tx, idempotencyKey, "", status, body); err == nil {
				_ = tx.Commit(ctx)
			} else {
				h.logger.Error("failed to finalize idempotency (error)", "err", err)
			}
		}
		writeRaw(w, status, body)
	}

	if startAt.Before(h.planner.Now()) {
		reject(http.StatusUnprocessableEntity, "requested time is in the past", "past")
		return
	}
	day, err := h.planner.Day(ctx, snap, date, svc.ID)
	if err != nil {
		// Dependency errors leave the idempotency key open so the client can retry.
		h.logger.Error("slot generation failed", "err", err)
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}
	if !availability.IsBookable(day.Slots, at) {
		reject(http.StatusUnprocessableEntity, "requested time is not available", "unavailable")
		return
	}

	id, err := h.repo.Create(ctx, tx, &appt)
	if err != nil {
		if storage.IsConflict(err) {
			h.metrics.ObserveBooking("conflict")
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		h.logger.Error("create appointment failed", "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	appt.ID = id

	evt := events.AppointmentBookedV1{Appointment: eventAppointment(appt, loc)}
	if appt.ReminderOptIn {
		evt.ReminderDate = policy.ReminderDate(date, snap.Settings.ReminderDaysBefore).String()
	}
	if err := h.insertEvent(ctx, tx, events.AppointmentBooked, id, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(bookResponse{
		AppointmentID:   id,
		ServiceID:       appt.ServiceID,
		Date:            date.String(),
		Time:            at.String(),
		DurationMinutes: duration,
		Status:          string(appt.Status),
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			h.metrics.ObserveBooking("conflict")
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveBooking("created")
	h.logger.Info("appointment booked", "appointment_id", id, "date", date.String(), "time", at.String(), "service_id", svc.ID)
	writeRaw(w, http.StatusCreated, respBody)
}

func (h *BookingHandler) CancellationCheck(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	id, ok := appointmentID(w, r.URL.Query().Get("appointment_id"))
	if !ok {
		return
	}

	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	appt, err := h.repo.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	hours := snap.Settings.CancellationDeadlineHours
	date, at := booking.LocalDateTime(appt.StartAt, snap.Location())
	decision := h.planner.CancellationPolicy(snap).Decide(date, at, hours)
	if appt.Status != model.StatusScheduled {
		decision.Permitted = false
		decision.Reason = "appointment is " + string(appt.Status)
	}
	httpx.WriteJSON(w, http.StatusOK, cancellationResponse{
		AppointmentID: appt.ID,
		Permitted:     decision.Permitted,
		Reason:        decision.Reason,
		Deadline:      decision.Deadline.UTC().Format(timeLayout),
		DeadlineHours: hours,
	})
}

// Cancel is the client-facing cancellation. It refuses once the configured deadline has passed.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, ok := appointmentID(w, req.AppointmentID)
	if !ok {
		return
	}
	req.AppointmentID = id
	req.Reason = trim(req.Reason)

	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if appt.Status == model.StatusCancelled && appt.CancelledAt != nil {
		writeCancelResponse(w, appt.ID, *appt.CancelledAt)
		return
	}
	if appt.Status != model.StatusScheduled {
		h.metrics.ObserveCancellation("invalid_status")
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	loc := snap.Location()
	date, at := booking.LocalDateTime(appt.StartAt, loc)
	decision := h.planner.CancellationPolicy(snap).Decide(date, at, snap.Settings.CancellationDeadlineHours)
	if !decision.Permitted {
		h.metrics.ObserveCancellation("too_late")
		http.Error(w, decision.Reason, http.StatusUnprocessableEntity)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}
	appt.Status = model.StatusCancelled
	if err := h.insertEvent(ctx, tx, events.AppointmentCancelled, appt.ID, events.AppointmentCancelledV1{
		Appointment: eventAppointment(appt, loc),
		CancelledAt: cancelledAt.UTC(),
		Reason:      req.Reason,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveCancellation("cancelled")
	h.logger.Info("appointment cancelled", "appointment_id", appt.ID)
	writeCancelResponse(w, appt.ID, cancelledAt)
}

func writeCancelResponse(w http.ResponseWriter, appointmentID string, cancelledAt time.Time) {
	httpx.WriteJSON(w, http.StatusOK, cancelResponse{
		AppointmentID: appointmentID,
		Status:        string(model.StatusCancelled),
		CancelledAt:   cancelledAt.UTC().Format(timeLayout),
	})
}

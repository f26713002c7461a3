package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/availability"
	"github.com/michalsegal11/your-digital-companion/libs/events"
	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/booking"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/model"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/storage"
)

const defaultListDays = 7

type listResponse struct {
	From         string            `json:"from"`
	To           string            `json:"to"`
	Appointments []appointmentItem `json:"appointments"`
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

type rescheduleSlotsResponse struct {
	AppointmentID   string                  `json:"appointment_id"`
	Date            string                  `json:"date"`
	CurrentDate     string                  `json:"current_date"`
	CurrentTime     string                  `json:"current_time"`
	ServiceID       string                  `json:"service_id"`
	DurationMinutes int                     `json:"duration_minutes"`
	WorkingHours    string                  `json:"working_hours"`
	Slots           []availability.TimeSlot `json:"slots"`
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ServiceID     string `json:"service_id"`
}

// List returns appointments whose local date falls in [from, to]. Both default to a week from today.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	loc := snap.Location()

	q := r.URL.Query()
	from := schedule.DateOf(h.planner.Now().In(loc))
	if raw := trim(q.Get("from")); raw != "" {
		if from, err = schedule.ParseDate(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	to := from.AddDays(defaultListDays)
	if raw := trim(q.Get("to")); raw != "" {
		if to, err = schedule.ParseDate(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if to.Before(from) {
		http.Error(w, "to must not be before from", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := trim(q.Get("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	appts, err := h.repo.ListBetween(ctx, from.At(0, loc), to.AddDays(1).At(0, loc), limit)
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt, loc))
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{From: from.String(), To: to.String(), Appointments: items})
}

// UpdateStatus moves an appointment through its lifecycle. Staff may cancel at any time.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, ok := appointmentID(w, req.AppointmentID)
	if !ok {
		return
	}
	req.AppointmentID = id
	next, ok := model.ParseStatus(trim(req.Status))
	if !ok {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	loc := snap.Location()

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
	if appt.Status == next {
		httpx.WriteJSON(w, http.StatusOK, toItem(appt, loc))
		return
	}
	if !model.CanTransition(appt.Status, next) {
		http.Error(w, "cannot change status from "+string(appt.Status)+" to "+string(next), http.StatusConflict)
		return
	}

	previous := appt.Status
	if next == model.StatusCancelled {
		reason := trim(req.Reason)
		cancelledAt, err := h.repo.Cancel(ctx, tx, appt.ID, reason)
		if err != nil {
			http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
			return
		}
		appt.Status = model.StatusCancelled
		appt.CancelledAt = &cancelledAt
		appt.CancelReason = reason
		err = h.insertEvent(ctx, tx, events.AppointmentCancelled, appt.ID, events.AppointmentCancelledV1{
			Appointment: eventAppointment(appt, loc),
			CancelledAt: cancelledAt.UTC(),
			Reason:      reason,
			ByAdmin:     true,
		})
		if err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	} else {
		if err := h.repo.UpdateStatus(ctx, tx, appt.ID, next); err != nil {
			http.Error(w, "failed to update status", http.StatusInternalServerError)
			return
		}
		appt.Status = next
	}
	err = h.insertEvent(ctx, tx, events.AppointmentStatusChanged, appt.ID, events.AppointmentStatusChangedV1{
		Appointment:    eventAppointment(appt, loc),
		PreviousStatus: string(previous),
	})
	if err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	if next == model.StatusCancelled {
		h.metrics.ObserveCancellation("admin")
	}
	h.logger.Info("appointment status changed", "appointment_id", appt.ID, "from", string(previous), "to", string(next))
	httpx.WriteJSON(w, http.StatusOK, toItem(appt, loc))
}

// RescheduleSlots lists the times an appointment can move to on date. Its current time stays selectable.
func (h *BookingHandler) RescheduleSlots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	id, ok := appointmentID(w, q.Get("appointment_id"))
	if !ok {
		return
	}

	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	loc := snap.Location()

	appt, err := h.repo.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	currentDate, currentTime := booking.LocalDateTime(appt.StartAt, loc)

	date := currentDate
	if raw := trim(q.Get("date")); raw != "" {
		if date, err = schedule.ParseDate(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	serviceID := appt.ServiceID
	if raw := trim(q.Get("service_id")); raw != "" {
		serviceID = raw
	}

	day, err := h.planner.DayWithDuration(ctx, snap, date, serviceID, rescheduleDuration(snap, appt, serviceID))
	if err != nil {
		h.logger.Error("slot generation failed", "err", err)
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}
	slots := availability.Available(day.Slots)
	if date == currentDate {
		slots = availability.SelectableForReschedule(day.Slots, currentTime)
	}

	httpx.WriteJSON(w, http.StatusOK, rescheduleSlotsResponse{
		AppointmentID:   appt.ID,
		Date:            date.String(),
		CurrentDate:     currentDate.String(),
		CurrentTime:     currentTime.String(),
		ServiceID:       serviceID,
		DurationMinutes: day.DurationMinutes,
		WorkingHours:    day.WorkingHours,
		Slots:           slots,
	})
}

// Reschedule moves an appointment to a new date and time, optionally changing the service.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req rescheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if trim(req.Date) == "" || trim(req.Time) == "" {
		http.Error(w, "appointment_id, date and time are required", http.StatusBadRequest)
		return
	}
	id, ok := appointmentID(w, req.AppointmentID)
	if !ok {
		return
	}
	req.AppointmentID = id
	date, at, ok := parseDateTime(w, req.Date, req.Time)
	if !ok {
		return
	}

	ctx := r.Context()
	snap, err := h.planner.Snapshot(ctx)
	if err != nil {
		http.Error(w, "salon configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	loc := snap.Location()

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
	if appt.Status != model.StatusScheduled {
		h.metrics.ObserveReschedule("invalid_status")
		http.Error(w, "only scheduled appointments can be rescheduled", http.StatusConflict)
		return
	}

	serviceID := appt.ServiceID
	if raw := trim(req.ServiceID); raw != "" {
		serviceID = raw
	}
	svc, found := snap.Service(serviceID)
	if serviceID != appt.ServiceID && (!found || !svc.Active) {
		http.Error(w, "unknown service", http.StatusUnprocessableEntity)
		return
	}

	previousDate, previousTime := booking.LocalDateTime(appt.StartAt, loc)
	if date == previousDate && at == previousTime && serviceID == appt.ServiceID {
		httpx.WriteJSON(w, http.StatusOK, toItem(appt, loc))
		return
	}

	startAt := date.At(at, loc)
	if startAt.Before(h.planner.Now()) {
		h.metrics.ObserveReschedule("past")
		http.Error(w, "requested time is in the past", http.StatusUnprocessableEntity)
		return
	}
	day, err := h.planner.DayWithDuration(ctx, snap, date, serviceID, rescheduleDuration(snap, appt, serviceID), appt.ID)
	if err != nil {
		h.logger.Error("slot generation failed", "err", err)
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}
	if !availability.IsBookable(day.Slots, at) {
		h.metrics.ObserveReschedule("unavailable")
		http.Error(w, "requested time is not available", http.StatusUnprocessableEntity)
		return
	}

	appt.ServiceID = serviceID
	if found {
		appt.ServiceName = svc.Name
	}
	appt.StartAt = startAt
	appt.EndAt = startAt.Add(time.Duration(day.DurationMinutes) * time.Minute)
	if err := h.repo.Reschedule(ctx, tx, &appt); err != nil {
		if storage.IsConflict(err) {
			h.metrics.ObserveReschedule("conflict")
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to reschedule appointment", http.StatusInternalServerError)
		return
	}
	err = h.insertEvent(ctx, tx, events.AppointmentRescheduled, appt.ID, events.AppointmentRescheduledV1{
		Appointment:  eventAppointment(appt, loc),
		PreviousDate: previousDate.String(),
		PreviousTime: previousTime.String(),
	})
	if err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			h.metrics.ObserveReschedule("conflict")
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveReschedule("rescheduled")
	h.logger.Info("appointment rescheduled", "appointment_id", appt.ID, "from", previousDate.String()+" "+previousTime.String(), "to", date.String()+" "+at.String())
	httpx.WriteJSON(w, http.StatusOK, toItem(appt, loc))
}

// rescheduleDuration is the catalogue duration of serviceID. An appointment keeping a service that
// is no longer active keeps the length it was booked with.
func rescheduleDuration(snap salonconfig.Snapshot, appt model.Appointment, serviceID string) int {
	if serviceID == appt.ServiceID {
		if svc, ok := snap.Service(serviceID); !ok || !svc.Active {
			return appt.DurationMinutes()
		}
	}
	return availability.ServiceDurations(snap.Durations()).Lookup(serviceID)
}

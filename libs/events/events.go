package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topics. Each event type is published to the topic of the same name.
const (
	AppointmentBooked        = "booking.appointment.booked.v1"
	AppointmentCancelled     = "booking.appointment.cancelled.v1"
	AppointmentRescheduled   = "booking.appointment.rescheduled.v1"
	AppointmentStatusChanged = "booking.appointment.status_changed.v1"

	ReminderDue    = "scheduler.reminder.due.v1"
	ReminderFailed = "scheduler.reminder.failed.v1"
)

const (
	AggregateAppointment = "appointment"
	AggregateReminder    = "reminder"
)

// Appointment is the common part of every appointment event. Date and Time are in the salon's timezone.
type Appointment struct {
	AppointmentID   string    `json:"appointment_id"`
	ServiceID       string    `json:"service_id"`
	ServiceName     string    `json:"service_name,omitempty"`
	ClientName      string    `json:"client_name"`
	ClientPhone     string    `json:"client_phone,omitempty"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	Status          string    `json:"status"`
}

type AppointmentBookedV1 struct {
	Appointment
	// ReminderDate is set when the client asked for a reminder.
	ReminderDate string `json:"reminder_date,omitempty"`
}

type AppointmentCancelledV1 struct {
	Appointment
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
	ByAdmin     bool      `json:"by_admin"`
}

type AppointmentRescheduledV1 struct {
	Appointment
	PreviousDate string `json:"previous_date"`
	PreviousTime string `json:"previous_time"`
}

type AppointmentStatusChangedV1 struct {
	Appointment
	PreviousStatus string `json:"previous_status"`
}

// ReminderDueV1 tells staff to remind the client of the appointment.
type ReminderDueV1 struct {
	Appointment
	RemindAt time.Time `json:"remind_at"`
}

// ReminderFailedV1 is emitted once a reminder exhausted its attempts.
type ReminderFailedV1 struct {
	Appointment
	RemindAt time.Time `json:"remind_at"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
}

// Decode unmarshals payload into T, naming the event type on failure.
func Decode[T any](eventType string, payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return v, nil
}

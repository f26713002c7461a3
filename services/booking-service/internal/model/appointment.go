package model

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusArrived   Status = "arrived"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusScheduled, StatusArrived, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransition allows scheduled to move to any other status and arrived to complete.
// Cancelled and completed are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusArrived || to == StatusCompleted || to == StatusCancelled
	case StatusArrived:
		return to == StatusCompleted
	default:
		return false
	}
}

// Blocking reports whether an appointment in this status occupies its slot.
func (s Status) Blocking() bool { return s != StatusCancelled }

type Appointment struct {
	ID            string
	ServiceID     string
	ServiceName   string
	ClientName    string
	ClientPhone   string
	ClientEmail   string
	Notes         string
	ReminderOptIn bool
	StartAt       time.Time
	EndAt         time.Time
	Status        Status
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

func (a Appointment) DurationMinutes() int {
	return int(a.EndAt.Sub(a.StartAt) / time.Minute)
}

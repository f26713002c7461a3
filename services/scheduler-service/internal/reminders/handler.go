package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/michalsegal11/your-digital-companion/libs/events"
	"github.com/michalsegal11/your-digital-companion/libs/kafkax"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/scheduler-service/internal/jobs"
)

// Topics lists the booking events that create, move or withdraw reminders.
var Topics = []string{
	events.AppointmentBooked,
	events.AppointmentCancelled,
	events.AppointmentRescheduled,
	events.AppointmentStatusChanged,
}

// Planner places reminders at a fixed time of day in the salon timezone.
type Planner struct {
	loc *time.Location
	at  schedule.Clock
}

func NewPlanner(loc *time.Location, at schedule.Clock) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{loc: loc, at: at}
}

// RemindAt returns when the reminder due on reminderDate fires. ok is false when that is not
// before the appointment starts.
func (p *Planner) RemindAt(reminderDate schedule.Date, start time.Time) (time.Time, bool) {
	t := reminderDate.At(p.at, p.loc)
	return t, t.Before(start)
}

type Store interface {
	Schedule(ctx context.Context, job jobs.Job) error
	Get(ctx context.Context, appointmentID string) (jobs.Job, error)
	Cancel(ctx context.Context, appointmentID string) (bool, error)
}

// Handler keeps reminder jobs in step with booking events. Malformed payloads are logged and dropped.
func Handler(logger *slog.Logger, store Store, planner *Planner) kafkax.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		switch meta.EventType {
		case events.AppointmentBooked:
			evt, err := events.Decode[events.AppointmentBookedV1](meta.EventType, msg.Value)
			if err != nil {
				logger.Error("invalid booking event", "event_type", meta.EventType, "err", err)
				return nil
			}
			if evt.ReminderDate == "" {
				return nil
			}
			date, err := schedule.ParseDate(evt.Date)
			if err != nil {
				logger.Error("invalid appointment date", "appointment_id", evt.AppointmentID, "err", err)
				return nil
			}
			reminderDate, err := schedule.ParseDate(evt.ReminderDate)
			if err != nil {
				logger.Error("invalid reminder date", "appointment_id", evt.AppointmentID, "err", err)
				return nil
			}
			return plan(ctx, logger, store, planner, evt.Appointment, reminderDate, daysBetween(reminderDate, date))

		case events.AppointmentRescheduled:
			evt, err := events.Decode[events.AppointmentRescheduledV1](meta.EventType, msg.Value)
			if err != nil {
				logger.Error("invalid booking event", "event_type", meta.EventType, "err", err)
				return nil
			}
			job, err := store.Get(ctx, evt.AppointmentID)
			if jobs.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			date, err := schedule.ParseDate(evt.Date)
			if err != nil {
				logger.Error("invalid appointment date", "appointment_id", evt.AppointmentID, "err", err)
				return nil
			}
			return plan(ctx, logger, store, planner, evt.Appointment, date.AddDays(-job.DaysBefore), job.DaysBefore)

		case events.AppointmentCancelled:
			evt, err := events.Decode[events.AppointmentCancelledV1](meta.EventType, msg.Value)
			if err != nil {
				logger.Error("invalid booking event", "event_type", meta.EventType, "err", err)
				return nil
			}
			return withdraw(ctx, logger, store, evt.AppointmentID)

		case events.AppointmentStatusChanged:
			evt, err := events.Decode[events.AppointmentStatusChangedV1](meta.EventType, msg.Value)
			if err != nil {
				logger.Error("invalid booking event", "event_type", meta.EventType, "err", err)
				return nil
			}
			if evt.Status == "scheduled" {
				return nil
			}
			return withdraw(ctx, logger, store, evt.AppointmentID)
		}
		return nil
	}
}

func plan(ctx context.Context, logger *slog.Logger, store Store, planner *Planner, appt events.Appointment, reminderDate schedule.Date, daysBefore int) error {
	remindAt, ok := planner.RemindAt(reminderDate, appt.StartAt)
	if !ok {
		logger.Info("reminder would not precede appointment", "appointment_id", appt.AppointmentID, "reminder_date", reminderDate.String())
		return withdraw(ctx, logger, store, appt.AppointmentID)
	}
	if err := store.Schedule(ctx, jobs.Job{
		AppointmentID: appt.AppointmentID,
		DaysBefore:    daysBefore,
		RemindAt:      remindAt,
		Appointment:   appt,
	}); err != nil {
		return err
	}
	logger.Info("reminder scheduled", "appointment_id", appt.AppointmentID, "remind_at", remindAt.UTC().Format(time.RFC3339))
	return nil
}

func withdraw(ctx context.Context, logger *slog.Logger, store Store, appointmentID string) error {
	ok, err := store.Cancel(ctx, appointmentID)
	if err != nil {
		return err
	}
	if ok {
		logger.Info("reminder withdrawn", "appointment_id", appointmentID)
	}
	return nil
}

func daysBetween(from, to schedule.Date) int {
	return int(to.At(0, time.UTC).Sub(from.At(0, time.UTC)).Hours() / 24)
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/michalsegal11/your-digital-companion/libs/events"
	"github.com/michalsegal11/your-digital-companion/libs/kafkax"
	"github.com/michalsegal11/your-digital-companion/services/notification-service/internal/storage"
)

// ErrSkip marks events that do not produce a notification.
var ErrSkip = errors.New("no notification for event")

// Topics lists the booking events this service consumes.
var Topics = []string{
	events.AppointmentBooked,
	events.AppointmentCancelled,
	events.AppointmentRescheduled,
	events.AppointmentStatusChanged,
	events.ReminderDue,
	events.ReminderFailed,
}

// Render turns a booking event into the notification shown to salon staff.
func Render(eventType string, payload []byte) (storage.Notification, error) {
	switch eventType {
	case events.AppointmentBooked:
		evt, err := events.Decode[events.AppointmentBookedV1](eventType, payload)
		if err != nil {
			return storage.Notification{}, err
		}
		msg := fmt.Sprintf("%s booked %s on %s at %s", evt.ClientName, serviceLabel(evt.Appointment), evt.Date, evt.Time)
		if evt.ReminderDate != "" {
			msg += fmt.Sprintf("; reminder due %s", evt.ReminderDate)
		}
		return storage.Notification{
			Type:          storage.TypeNewBooking,
			Title:         "New booking",
			Message:       msg,
			AppointmentID: evt.AppointmentID,
		}, nil

	case events.AppointmentCancelled:
		evt, err := events.Decode[events.AppointmentCancelledV1](eventType, payload)
		if err != nil {
			return storage.Notification{}, err
		}
		// Staff cancellations are reported through the status change event.
		if evt.ByAdmin {
			return storage.Notification{}, ErrSkip
		}
		msg := fmt.Sprintf("%s cancelled %s on %s at %s", evt.ClientName, serviceLabel(evt.Appointment), evt.Date, evt.Time)
		if evt.Reason != "" {
			msg += fmt.Sprintf(" (%s)", evt.Reason)
		}
		return storage.Notification{
			Type:          storage.TypeCancellation,
			Title:         "Appointment cancelled",
			Message:       msg,
			AppointmentID: evt.AppointmentID,
		}, nil

	case events.AppointmentRescheduled:
		evt, err := events.Decode[events.AppointmentRescheduledV1](eventType, payload)
		if err != nil {
			return storage.Notification{}, err
		}
		return storage.Notification{
			Type:  storage.TypeRescheduled,
			Title: "Appointment moved",
			Message: fmt.Sprintf("%s's %s moved from %s %s to %s %s",
				evt.ClientName, serviceLabel(evt.Appointment), evt.PreviousDate, evt.PreviousTime, evt.Date, evt.Time),
			AppointmentID: evt.AppointmentID,
		}, nil

	case events.AppointmentStatusChanged:
		evt, err := events.Decode[events.AppointmentStatusChangedV1](eventType, payload)
		if err != nil {
			return storage.Notification{}, err
		}
		return storage.Notification{
			Type:  storage.TypeStatusChanged,
			Title: "Appointment " + evt.Status,
			Message: fmt.Sprintf("%s on %s at %s changed from %s to %s",
				evt.ClientName, evt.Date, evt.Time, evt.PreviousStatus, evt.Status),
			AppointmentID: evt.AppointmentID,
		}, nil

	case events.ReminderDue:
		evt, err := events.Decode[events.ReminderDueV1](eventType, payload)
		if err != nil {
			return storage.Notification{}, err
		}
		return storage.Notification{
			Type:  storage.TypeReminder,
			Title: "Reminder due",
			Message: fmt.Sprintf("Remind %s%s of %s on %s at %s",
				evt.ClientName, phoneSuffix(evt.Appointment), serviceLabel(evt.Appointment), evt.Date, evt.Time),
			AppointmentID: evt.AppointmentID,
		}, nil

	case events.ReminderFailed:
		evt, err := events.Decode[events.ReminderFailedV1](eventType, payload)
		if err != nil {
			return storage.Notification{}, err
		}
		return storage.Notification{
			Type:  storage.TypeReminder,
			Title: "Reminder not sent",
			Message: fmt.Sprintf("The reminder for %s on %s at %s failed after %d attempts (%s)",
				evt.ClientName, evt.Date, evt.Time, evt.Attempts, evt.Reason),
			AppointmentID: evt.AppointmentID,
		}, nil
	}
	return storage.Notification{}, ErrSkip
}

func phoneSuffix(a events.Appointment) string {
	if a.ClientPhone == "" {
		return ""
	}
	return " (" + a.ClientPhone + ")"
}

func serviceLabel(a events.Appointment) string {
	if a.ServiceName != "" {
		return a.ServiceName
	}
	return a.ServiceID
}

// Inserter stores rendered notifications.
type Inserter interface {
	Insert(ctx context.Context, n storage.Notification) error
}

// Handler renders and stores each consumed booking event. Malformed payloads are dropped.
func Handler(logger *slog.Logger, store Inserter) kafkax.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		n, err := Render(meta.EventType, msg.Value)
		if errors.Is(err, ErrSkip) {
			return nil
		}
		if err != nil {
			logger.Error("invalid booking event", "event_type", meta.EventType, "err", err)
			return nil
		}
		n.EventID = meta.EventID
		if err := store.Insert(ctx, n); err != nil {
			return err
		}
		logger.Info("notification stored", "type", n.Type, "appointment_id", n.AppointmentID)
		return nil
	}
}

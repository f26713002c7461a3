package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/michalsegal11/your-digital-companion/libs/events"
	"github.com/michalsegal11/your-digital-companion/libs/kafkax"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/analytics-service/internal/storage"
)

// Topics lists the booking events that move daily metrics.
var Topics = []string{
	events.AppointmentBooked,
	events.AppointmentCancelled,
	events.AppointmentRescheduled,
}

type Applier interface {
	Apply(ctx context.Context, c storage.Change) (bool, error)
}

// ChangeFor maps a booking event onto per-day counter deltas. ok is false for events that change nothing.
func ChangeFor(eventType string, payload []byte) (storage.Change, bool, error) {
	switch eventType {
	case events.AppointmentBooked:
		evt, err := events.Decode[events.AppointmentBookedV1](eventType, payload)
		if err != nil {
			return storage.Change{}, false, err
		}
		day, err := schedule.ParseDate(evt.Date)
		if err != nil {
			return storage.Change{}, false, err
		}
		return change(evt.Appointment, evt.StartAt, storage.Delta{Day: day, Booked: 1}), true, nil

	case events.AppointmentCancelled:
		evt, err := events.Decode[events.AppointmentCancelledV1](eventType, payload)
		if err != nil {
			return storage.Change{}, false, err
		}
		day, err := schedule.ParseDate(evt.Date)
		if err != nil {
			return storage.Change{}, false, err
		}
		return change(evt.Appointment, evt.CancelledAt, storage.Delta{Day: day, Cancelled: 1}), true, nil

	case events.AppointmentRescheduled:
		evt, err := events.Decode[events.AppointmentRescheduledV1](eventType, payload)
		if err != nil {
			return storage.Change{}, false, err
		}
		to, err := schedule.ParseDate(evt.Date)
		if err != nil {
			return storage.Change{}, false, err
		}
		from, err := schedule.ParseDate(evt.PreviousDate)
		if err != nil {
			return storage.Change{}, false, err
		}
		if from == to {
			return change(evt.Appointment, evt.StartAt, storage.Delta{Day: to, Rescheduled: 1}), true, nil
		}
		return change(evt.Appointment, evt.StartAt,
			storage.Delta{Day: from, Booked: -1},
			storage.Delta{Day: to, Booked: 1, Rescheduled: 1},
		), true, nil
	}
	return storage.Change{}, false, nil
}

func change(a events.Appointment, at time.Time, deltas ...storage.Delta) storage.Change {
	return storage.Change{AppointmentID: a.AppointmentID, OccurredAt: at.UTC(), Deltas: deltas}
}

// Handler applies booking events to the daily metrics. Malformed payloads are logged and dropped.
func Handler(logger *slog.Logger, repo Applier) kafkax.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		c, ok, err := ChangeFor(meta.EventType, msg.Value)
		if err != nil {
			logger.Error("invalid booking payload", "event_type", meta.EventType, "err", err)
			return nil
		}
		if !ok {
			return nil
		}
		c.EventID = meta.EventID
		c.EventType = meta.EventType

		applied, err := repo.Apply(ctx, c)
		if err != nil {
			logger.Error("failed to update daily metrics", "err", err)
			return err
		}
		if applied {
			logger.Info("booking metric recorded", "appointment_id", c.AppointmentID, "event_type", c.EventType)
		}
		return nil
	}
}

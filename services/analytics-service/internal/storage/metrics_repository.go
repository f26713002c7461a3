package storage

import (
	"context"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

// Delta adjusts the counters of one salon-local day.
type Delta struct {
	Day         schedule.Date
	Booked      int
	Cancelled   int
	Rescheduled int
}

// Change is everything one booking event does to the daily metrics.
type Change struct {
	EventID       string
	EventType     string
	AppointmentID string
	OccurredAt    time.Time
	Deltas        []Delta
}

type DailyMetric struct {
	Day         schedule.Date `json:"day"`
	Booked      int           `json:"booked"`
	Cancelled   int           `json:"cancelled"`
	Rescheduled int           `json:"rescheduled"`
}

// Active is the number of appointments still expected on the day.
func (m DailyMetric) Active() int { return m.Booked - m.Cancelled }

type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// Apply records the event and its deltas atomically. It returns false when the event was already applied.
func (r *Repository) Apply(ctx context.Context, c Change) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO booking_events (event_id, event_type, appointment_id, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`, c.EventID, c.EventType, c.AppointmentID, c.OccurredAt.UTC())
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	for _, d := range c.Deltas {
		if _, err := tx.Exec(ctx, `
			INSERT INTO daily_appointment_metrics (day, booked_count, cancelled_count, rescheduled_count)
			VALUES ($1::date, $2, $3, $4)
			ON CONFLICT (day)
			DO UPDATE SET booked_count = daily_appointment_metrics.booked_count + EXCLUDED.booked_count,
			              cancelled_count = daily_appointment_metrics.cancelled_count + EXCLUDED.cancelled_count,
			              rescheduled_count = daily_appointment_metrics.rescheduled_count + EXCLUDED.rescheduled_count,
			              updated_at = now()
		`, d.Day.String(), d.Booked, d.Cancelled, d.Rescheduled); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

// Daily returns the days in [from, to] that have metrics, earliest first.
func (r *Repository) Daily(ctx context.Context, from, to schedule.Date) ([]DailyMetric, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD'), booked_count, cancelled_count, rescheduled_count
		FROM daily_appointment_metrics
		WHERE day >= $1::date AND day <= $2::date
		ORDER BY day ASC
	`, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DailyMetric{}
	for rows.Next() {
		var day string
		var m DailyMetric
		if err := rows.Scan(&day, &m.Booked, &m.Cancelled, &m.Rescheduled); err != nil {
			return nil, err
		}
		if m.Day, err = schedule.ParseDate(day); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

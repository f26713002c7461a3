package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

var ErrDuplicate = errors.New("already exists")

type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// WorkingHours loads the weekly template. Days without rows are closed.
func (r *Repository) WorkingHours(ctx context.Context) (schedule.WeeklyTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM salon_working_hours
		ORDER BY weekday ASC, start_minute ASC
	`)
	if err != nil {
		return schedule.WeeklyTemplate{}, err
	}
	defer rows.Close()

	byDay := map[time.Weekday]*schedule.DaySchedule{}
	var order []time.Weekday
	for rows.Next() {
		var weekday, start, end int
		if err := rows.Scan(&weekday, &start, &end); err != nil {
			return schedule.WeeklyTemplate{}, err
		}
		wd := time.Weekday(weekday)
		day, ok := byDay[wd]
		if !ok {
			day = &schedule.DaySchedule{Weekday: wd}
			byDay[wd] = day
			order = append(order, wd)
		}
		day.Shifts = append(day.Shifts, schedule.Shift{Start: schedule.Clock(start), End: schedule.Clock(end)})
	}
	if err := rows.Err(); err != nil {
		return schedule.WeeklyTemplate{}, err
	}

	days := make([]schedule.DaySchedule, 0, len(order))
	for _, wd := range order {
		days = append(days, *byDay[wd])
	}
	return schedule.NewWeeklyTemplate(days...)
}

// ReplaceWorkingHours swaps the whole template in one transaction.
func (r *Repository) ReplaceWorkingHours(ctx context.Context, tpl schedule.WeeklyTemplate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM salon_working_hours`); err != nil {
		return err
	}
	for _, day := range tpl.Days() {
		for _, shift := range day.Shifts {
			_, err := tx.Exec(ctx, `
				INSERT INTO salon_working_hours (weekday, start_minute, end_minute)
				VALUES ($1, $2, $3)
			`, int(day.Weekday), int(shift.Start), int(shift.End))
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListServices(ctx context.Context) ([]salonconfig.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, duration_minutes, price_agorot, is_active
		FROM salon_services
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []salonconfig.Service
	for rows.Next() {
		var s salonconfig.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceAgorot, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CreateService returns ErrDuplicate when the id is taken.
func (r *Repository) CreateService(ctx context.Context, svc salonconfig.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO salon_services (id, name, duration_minutes, price_agorot, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, svc.ID, svc.Name, svc.DurationMinutes, svc.PriceAgorot, svc.Active)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) UpdateService(ctx context.Context, svc salonconfig.Service) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE salon_services
		SET name = $2,
			duration_minutes = $3,
			price_agorot = $4,
			is_active = $5,
			updated_at = now()
		WHERE id = $1
	`, svc.ID, svc.Name, svc.DurationMinutes, svc.PriceAgorot, svc.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Settings returns the stored settings, or the defaults before anything was saved.
func (r *Repository) Settings(ctx context.Context) (salonconfig.Settings, error) {
	var s salonconfig.Settings
	err := r.pool.QueryRow(ctx, `
		SELECT cancellation_deadline_hours, reminder_days_before, timezone
		FROM salon_settings
		WHERE id = 1
	`).Scan(&s.CancellationDeadlineHours, &s.ReminderDaysBefore, &s.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return salonconfig.DefaultSnapshot().Settings, nil
	}
	return s, err
}

func (r *Repository) UpdateSettings(ctx context.Context, s salonconfig.Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO salon_settings (id, cancellation_deadline_hours, reminder_days_before, timezone)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET cancellation_deadline_hours = EXCLUDED.cancellation_deadline_hours,
			reminder_days_before = EXCLUDED.reminder_days_before,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, s.CancellationDeadlineHours, s.ReminderDaysBefore, s.Timezone)
	return err
}

// ListBlockedDates returns blocked dates on or after from, earliest first.
func (r *Repository) ListBlockedDates(ctx context.Context, from schedule.Date) ([]schedule.BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT blocked_on, reason
		FROM salon_blocked_dates
		WHERE blocked_on >= $1
		ORDER BY blocked_on ASC
	`, from.At(0, time.UTC))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.BlockedDate
	for rows.Next() {
		var on time.Time
		var b schedule.BlockedDate
		if err := rows.Scan(&on, &b.Reason); err != nil {
			return nil, err
		}
		b.Date = schedule.DateOf(on.UTC())
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BlockDate is an upsert; blocking an already blocked date replaces its reason.
func (r *Repository) BlockDate(ctx context.Context, b schedule.BlockedDate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO salon_blocked_dates (blocked_on, reason)
		VALUES ($1, $2)
		ON CONFLICT (blocked_on) DO UPDATE
		SET reason = EXCLUDED.reason
	`, b.Date.At(0, time.UTC), b.Reason)
	return err
}

func (r *Repository) UnblockDate(ctx context.Context, date schedule.Date) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM salon_blocked_dates
		WHERE blocked_on = $1
	`, date.At(0, time.UTC))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Snapshot assembles everything booking-service needs. Past blocked dates are left out.
func (r *Repository) Snapshot(ctx context.Context, today schedule.Date) (salonconfig.Snapshot, error) {
	tpl, err := r.WorkingHours(ctx)
	if err != nil {
		return salonconfig.Snapshot{}, err
	}
	services, err := r.ListServices(ctx)
	if err != nil {
		return salonconfig.Snapshot{}, err
	}
	settings, err := r.Settings(ctx)
	if err != nil {
		return salonconfig.Snapshot{}, err
	}
	blocked, err := r.ListBlockedDates(ctx, today)
	if err != nil {
		return salonconfig.Snapshot{}, err
	}
	return salonconfig.Snapshot{Template: tpl, Services: services, Settings: settings, BlockedDates: blocked}, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

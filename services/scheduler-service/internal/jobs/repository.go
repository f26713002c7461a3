package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/libs/events"
	otelx "github.com/michalsegal11/your-digital-companion/libs/otel"
)

// Job is the reminder of one appointment. Appointment is the latest event snapshot.
type Job struct {
	ID            int64
	AppointmentID string
	DaysBefore    int
	RemindAt      time.Time
	Appointment   events.Appointment
	Traceparent   string
	Tracestate    string
	Attempts      int
	MaxAttempts   int
	NextRunAt     time.Time
}

type Repository struct {
	pool        db.Querier
	maxAttempts int
}

func NewRepository(pool db.Querier, maxAttempts int) *Repository {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Repository{pool: pool, maxAttempts: maxAttempts}
}

// Schedule creates or replaces the appointment's reminder and makes it pending again.
func (r *Repository) Schedule(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job.Appointment)
	if err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err = r.pool.Exec(ctx, `
		INSERT INTO reminder_jobs (appointment_id, days_before, remind_at, appointment, next_run_at, max_attempts, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $3, $5, $6, $7)
		ON CONFLICT (appointment_id) DO UPDATE
		SET days_before = EXCLUDED.days_before,
		    remind_at = EXCLUDED.remind_at,
		    appointment = EXCLUDED.appointment,
		    next_run_at = EXCLUDED.next_run_at,
		    status = 'pending',
		    attempts = 0,
		    last_error = NULL,
		    traceparent = EXCLUDED.traceparent,
		    tracestate = EXCLUDED.tracestate,
		    updated_at = now()
	`, job.AppointmentID, job.DaysBefore, job.RemindAt.UTC(), payload, r.maxAttempts, traceparent, tracestate)
	return err
}

// Get returns the appointment's reminder in any status.
func (r *Repository) Get(ctx context.Context, appointmentID string) (Job, error) {
	return scanJob(r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM reminder_jobs
		WHERE appointment_id = $1
	`, appointmentID))
}

// Cancel withdraws a pending reminder. It reports whether one was pending.
func (r *Repository) Cancel(ctx context.Context, appointmentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'cancelled', updated_at = now()
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const jobColumns = `id, appointment_id, days_before, remind_at, appointment, traceparent, tracestate, attempts, max_attempts, next_run_at`

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+jobColumns+`
		FROM reminder_jobs
		WHERE status = 'pending' AND next_run_at <= $1
		ORDER BY next_run_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'processed', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt.UTC(), lastError)
	return err
}

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	var raw []byte
	if err := row.Scan(&j.ID, &j.AppointmentID, &j.DaysBefore, &j.RemindAt, &raw, &j.Traceparent, &j.Tracestate, &j.Attempts, &j.MaxAttempts, &j.NextRunAt); err != nil {
		return Job{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &j.Appointment); err != nil {
			return Job{}, err
		}
	}
	return j, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

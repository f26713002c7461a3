package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool db.Querier
}

type IdempotencyRecord struct {
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// BookedInterval is the [Start, End) range held by a non-cancelled appointment.
type BookedInterval struct {
	AppointmentID string
	Start         time.Time
	End           time.Time
}

func NewBookingRepository(pool db.Querier) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockIdempotencyKey row-locks key for the rest of tx. exists is true when the key was seen before.
func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, appointmentID string, statusCode int, response []byte) error {
	var apptID *string
	if appointmentID != "" {
		apptID = &appointmentID
	}
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $2,
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, apptID, statusCode, response)
	return err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(service_id, service_name, client_name, client_phone, client_email, notes, reminder_opt_in, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, appt.ServiceID, appt.ServiceName, appt.ClientName, appt.ClientPhone, appt.ClientEmail, appt.Notes,
		appt.ReminderOptIn, appt.StartAt, appt.EndAt, string(appt.Status)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

const appointmentColumns = `id, service_id, service_name, client_name, client_phone, client_email, notes, reminder_opt_in,
			start_at, end_at, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID))
}

func (r *BookingRepository) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, appointmentID))
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1
	`, appointmentID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Reschedule moves the appointment. The exclusion constraint rejects a move onto another booking.
func (r *BookingRepository) Reschedule(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET service_id = $2,
			service_name = $3,
			start_at = $4,
			end_at = $5,
			updated_at = now()
		WHERE id = $1
	`, appt.ID, appt.ServiceID, appt.ServiceName, appt.StartAt, appt.EndAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListBookedIntervals returns the intervals of non-cancelled appointments intersecting [from, to).
func (r *BookingRepository) ListBookedIntervals(ctx context.Context, from, to time.Time) ([]BookedInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_at, end_at
		FROM appointments
		WHERE status <> 'cancelled'
			AND start_at < $2
			AND end_at > $1
		ORDER BY start_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookedInterval
	for rows.Next() {
		var b BookedInterval
		if err := rows.Scan(&b.AppointmentID, &b.Start, &b.End); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBetween returns every appointment starting in [from, to), earliest first.
func (r *BookingRepository) ListBetween(ctx context.Context, from, to time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_at >= $1 AND start_at < $2
		ORDER BY start_at ASC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.ServiceID,
		&appt.ServiceName,
		&appt.ClientName,
		&appt.ClientPhone,
		&appt.ClientEmail,
		&appt.Notes,
		&appt.ReminderOptIn,
		&appt.StartAt,
		&appt.EndAt,
		&status,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.CancelledAt = cancelledAt
	return appt, nil
}

// IsConflict reports a violation of the no-overlap exclusion constraint.
func IsConflict(err error) bool {
	return db.IsExclusionViolation(err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

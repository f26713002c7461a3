package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/michalsegal11/your-digital-companion/libs/db"
)

const (
	TypeNewBooking    = "new_booking"
	TypeCancellation  = "cancellation"
	TypeRescheduled   = "rescheduled"
	TypeStatusChanged = "status_changed"
	TypeReminder      = "reminder"
)

type Notification struct {
	ID            string    `json:"id"`
	EventID       string    `json:"-"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"created_at"`
}

type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// Insert ignores a second notification for the same event id.
func (r *Repository) Insert(ctx context.Context, n Notification) error {
	var eventID *string
	if n.EventID != "" {
		eventID = &n.EventID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, type, title, message, appointment_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, n.Type, n.Title, n.Message, n.AppointmentID)
	return err
}

func (r *Repository) List(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, type, title, message, COALESCE(appointment_id, ''), read, created_at
		FROM notifications
		WHERE ($1 = false OR read = false)
		ORDER BY created_at DESC
		LIMIT $2
	`, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.AppointmentID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET read = true
		WHERE id::text = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkAllRead returns how many notifications changed.
func (r *Repository) MarkAllRead(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE read = false`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

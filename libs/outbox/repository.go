package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	otelx "github.com/michalsegal11/your-digital-companion/libs/otel"
)

const (
	insertEventSQL = `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	// SKIP LOCKED lets several publisher replicas drain the table concurrently.
	claimEventsSQL = `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markPublishedSQL = `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`
)

// Record is one stored row of outbox_events.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// Repository stores events in the same transaction as the state change that produced them.
type Repository struct {
	newID func() string
}

func NewRepository() *Repository {
	return &Repository{newID: uuid.NewString}
}

// Insert writes evt with the caller's trace context and returns its event id.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) (string, error) {
	id := r.newID()
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	if _, err := tx.Exec(ctx, insertEventSQL,
		id, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate,
	); err != nil {
		return "", err
	}
	return id, nil
}

// FetchUnpublished locks up to limit pending rows, oldest first.
func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, claimEventsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.AggregateType, &rec.AggregateID, &rec.EventType,
			&rec.Payload, &rec.Traceparent, &rec.Tracestate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		claimed = append(claimed, rec)
	}
	return claimed, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, markPublishedSQL, ids)
	return err
}

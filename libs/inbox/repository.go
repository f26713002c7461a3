package inbox

import (
	"context"
	"fmt"

	"github.com/michalsegal11/your-digital-companion/libs/db"
)

// Repository remembers which events a consumer has already handled, keyed by
// the event_id header the outbox publisher stamps on every message.
type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// Record reports whether eventID is seen for the first time.
func (r *Repository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("record inbox event %s: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Package inbox records consumed event ids so a redelivered event can be
// recognised and skipped.
package inbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/db"
)

// Repository writes to inbox_events through db, which is normally the
// transaction that also stores the event's side effects.
type Repository struct {
	db db.Execer
}

func NewRepository(execer db.Execer) *Repository {
	return &Repository{db: execer}
}

// Record returns true the first time eventID is seen and false for a
// duplicate. Duplicates do not raise an error, so a surrounding transaction
// stays usable.
func (r *Repository) Record(ctx context.Context, eventID uuid.UUID, eventType string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, apperr.FromDB("inbox.record", err)
	}
	return tag.RowsAffected() == 1, nil
}

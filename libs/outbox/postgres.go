package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/db"
	otelx "github.com/inkwell-labs/inkwell/libs/otel"
)

// PostgresStore is the outbox table. Append is the writer; FetchUnsent and
// MarkSent are used by the Poller.
type PostgresStore struct {
	db  db.DB
	now func() time.Time
}

func NewPostgresStore(pool db.DB) *PostgresStore {
	return &PostgresStore{db: pool, now: time.Now}
}

// Append inserts a pending record using the caller's transaction, so the
// record exists if and only if the surrounding transaction commits.
func (s *PostgresStore) Append(ctx context.Context, tx db.Execer, evt Event) (Record, error) {
	rec, err := newRecord(evt, s.now())
	if err != nil {
		return Record{}, err
	}
	rec.Traceparent, rec.Tracestate = otelx.TraceContextStrings(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.AggregateType, rec.AggregateID, rec.EventType, []byte(rec.Payload), rec.CreatedAt, rec.Traceparent, rec.Tracestate)
	if err != nil {
		return Record{}, apperr.FromDB("outbox.append", err)
	}
	return rec, nil
}

func (s *PostgresStore) FetchUnsent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, traceparent, tracestate
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.FromDB("outbox.fetch_unsent", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &payload, &rec.CreatedAt, &rec.Traceparent, &rec.Tracestate); err != nil {
			return nil, apperr.FromDB("outbox.fetch_unsent", err)
		}
		rec.Payload = payload
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromDB("outbox.fetch_unsent", err)
	}
	return records, nil
}

// MarkSent only moves sent_at forward from NULL; marking an already sent
// record is a no-op.
func (s *PostgresStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE outbox
		SET sent_at = $2
		WHERE id = $1 AND sent_at IS NULL
	`, id, at)
	return apperr.FromDB("outbox.mark_sent", err)
}

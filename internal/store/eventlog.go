// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// ErrNoEvents is returned by LastEventID when an aggregate has no events.
var ErrNoEvents = errors.New("no events recorded")

// EventLog is an append-only audit trail of dispatched domain events. It is
// subscribed to the dispatcher as a sink.
type EventLog struct {
	db DB
}

// NewEventLog creates an EventLog.
func NewEventLog(db DB) *EventLog {
	return &EventLog{db: db}
}

var _ core.Sink = (*EventLog)(nil)

// Handle implements core.Sink.
func (l *EventLog) Handle(ctx context.Context, event core.Event) error {
	return l.Append(ctx, event)
}

// Append persists an event. Appending the same event twice is a no-op.
func (l *EventLog) Append(ctx context.Context, event core.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return oops.Code("EVENT_APPEND_FAILED").
			With("operation", "marshal payload").
			With("event_id", event.ID.String()).
			Wrap(err)
	}

	_, err = l.db.Exec(ctx,
		`INSERT INTO domain_events (id, type, aggregate_type, aggregate_id, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID.String(),
		string(event.Type),
		event.AggregateType,
		event.AggregateID.String(),
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return oops.Code("EVENT_APPEND_FAILED").
			With("event_id", event.ID.String()).
			With("event_type", string(event.Type)).
			Wrap(err)
	}
	return nil
}

// Replay returns an aggregate's events after afterID in id order. The
// payload of each event is its raw JSON (json.RawMessage).
func (l *EventLog) Replay(ctx context.Context, aggregateID, afterID ulid.ULID, limit int) ([]core.Event, error) {
	rows, err := l.db.Query(ctx,
		`SELECT id, type, aggregate_type, aggregate_id, payload, occurred_at
		 FROM domain_events WHERE aggregate_id = $1 AND id > $2 ORDER BY id LIMIT $3`,
		aggregateID.String(), afterID.String(), limit)
	if err != nil {
		return nil, oops.Code("EVENT_REPLAY_FAILED").With("aggregate_id", aggregateID.String()).Wrap(err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var (
			e                      core.Event
			idStr, aggStr, typeStr string
			payload                []byte
		)
		if err := rows.Scan(&idStr, &typeStr, &e.AggregateType, &aggStr, &payload, &e.OccurredAt); err != nil {
			return nil, oops.Code("EVENT_REPLAY_FAILED").With("operation", "scan event row").Wrap(err)
		}
		if e.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("EVENT_REPLAY_FAILED").With("id", idStr).Errorf("corrupt event id: %w", err)
		}
		if e.AggregateID, err = ulid.Parse(aggStr); err != nil {
			return nil, oops.Code("EVENT_REPLAY_FAILED").With("aggregate_id", aggStr).Errorf("corrupt aggregate id: %w", err)
		}
		e.Type = core.EventType(typeStr)
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("EVENT_REPLAY_FAILED").With("operation", "iterate events").Wrap(err)
	}
	return events, nil
}

// LastEventID returns the most recent event id for an aggregate.
func (l *EventLog) LastEventID(ctx context.Context, aggregateID ulid.ULID) (ulid.ULID, error) {
	var idStr string
	err := l.db.QueryRow(ctx,
		`SELECT id FROM domain_events WHERE aggregate_id = $1 ORDER BY id DESC LIMIT 1`,
		aggregateID.String()).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.With("aggregate_id", aggregateID.String()).Wrap(ErrNoEvents)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("EVENT_QUERY_FAILED").With("aggregate_id", aggregateID.String()).Wrap(err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("EVENT_QUERY_FAILED").With("id", idStr).Errorf("corrupt event id: %w", err)
	}
	return id, nil
}

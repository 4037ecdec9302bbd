// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package core holds the shared kernel used by the account and project
// domains: identifiers, the clock, domain events and their dispatch, and the
// optimistic concurrency errors.
package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of domain event.
type EventType string

const (
	EventAccountRegistered EventType = "account.registered"
	EventProjectPublished  EventType = "project.published"
	EventOfferSubmitted    EventType = "offer.submitted"
	EventOfferAccepted     EventType = "offer.accepted"
	EventProjectCompleted  EventType = "project.completed"
	EventProjectCancelled  EventType = "project.cancelled"
)

// Aggregate type names carried on events.
const (
	AggregateAccount = "account"
	AggregateProject = "project"
)

// Event is an immutable record of something that happened to an aggregate.
// Payload holds the event-specific struct and must be JSON serializable.
type Event struct {
	ID            ulid.ULID
	Type          EventType
	AggregateType string
	AggregateID   ulid.ULID
	OccurredAt    time.Time
	Payload       any
}

// NewEvent builds an event occurring at the given time.
func NewEvent(typ EventType, aggregateType string, aggregateID ulid.ULID, payload any, at time.Time) Event {
	return Event{
		ID:            NewULIDAt(at),
		Type:          typ,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    at,
		Payload:       payload,
	}
}

// EventSource is implemented by aggregates that buffer domain events until
// they are persisted.
type EventSource interface {
	DrainEvents() []Event
}

// Recorder buffers events raised by an aggregate. The zero value is ready to
// use. It is not safe for concurrent use; aggregates are not shared.
type Recorder struct {
	pending []Event
}

// Record appends an event to the buffer.
func (r *Recorder) Record(e Event) {
	r.pending = append(r.pending, e)
}

// Pending returns a copy of the buffered events without clearing them.
func (r *Recorder) Pending() []Event {
	out := make([]Event, len(r.pending))
	copy(out, r.pending)
	return out
}

// Drain returns the buffered events and empties the buffer.
func (r *Recorder) Drain() []Event {
	out := r.pending
	r.pending = nil
	return out
}

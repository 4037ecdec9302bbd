// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversToAllSinksInOrder(t *testing.T) {
	d := NewDispatcher(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	var got []string
	d.Subscribe("first", SinkFunc(func(_ context.Context, e Event) error {
		got = append(got, "first:"+string(e.Type))
		return nil
	}))
	d.Subscribe("second", SinkFunc(func(_ context.Context, e Event) error {
		got = append(got, "second:"+string(e.Type))
		return nil
	}))

	now := time.Now()
	d.Dispatch(context.Background(),
		NewEvent(EventProjectPublished, AggregateProject, NewULID(), nil, now),
		NewEvent(EventOfferSubmitted, AggregateProject, NewULID(), nil, now),
	)

	assert.Equal(t, []string{
		"first:project.published",
		"second:project.published",
		"first:offer.submitted",
		"second:offer.submitted",
	}, got)
}

func TestDispatcher_SwallowsFailuresAndPanics(t *testing.T) {
	var logs bytes.Buffer
	d := NewDispatcher(slog.New(slog.NewJSONHandler(&logs, nil)))

	var failures []string
	d.OnError(func(sink string, _ Event, _ error) {
		failures = append(failures, sink)
	})

	delivered := 0
	d.Subscribe("broken", SinkFunc(func(context.Context, Event) error {
		return errors.New("smtp unavailable")
	}))
	d.Subscribe("panicky", SinkFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	d.Subscribe("healthy", SinkFunc(func(context.Context, Event) error {
		delivered++
		return nil
	}))

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), NewEvent(EventAccountRegistered, AggregateAccount, NewULID(), nil, time.Now()))
	})

	assert.Equal(t, 1, delivered, "healthy sink still receives the event")
	assert.Equal(t, []string{"broken", "panicky"}, failures)
	assert.Contains(t, logs.String(), "smtp unavailable")
	assert.Contains(t, logs.String(), "EVENT_SINK_PANIC")
}

func TestDispatcher_NoSinks(t *testing.T) {
	d := NewDispatcher(nil)
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), NewEvent(EventProjectCompleted, AggregateProject, NewULID(), nil, time.Now()))
	})
}

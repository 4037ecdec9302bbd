// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

// Sink receives dispatched domain events.
type Sink interface {
	Handle(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f SinkFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher hands committed events to whoever is listening. Repositories call
// it after a successful save.
type Publisher interface {
	Dispatch(ctx context.Context, events ...Event)
}

// ErrorHook observes sink failures, e.g. to count them.
type ErrorHook func(sink string, event Event, err error)

type namedSink struct {
	name string
	sink Sink
}

// Dispatcher fans events out to subscribed sinks. Delivery is fire-and-forget:
// a failing or panicking sink is logged and never affects the caller or the
// remaining sinks.
type Dispatcher struct {
	mu     sync.RWMutex
	sinks  []namedSink
	logger *slog.Logger
	onErr  ErrorHook
}

// NewDispatcher creates a dispatcher that logs sink failures to logger.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// OnError installs a hook invoked for every sink failure.
func (d *Dispatcher) OnError(hook ErrorHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onErr = hook
}

// Subscribe registers a sink under a name used in logs.
func (d *Dispatcher) Subscribe(name string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, namedSink{name: name, sink: sink})
}

// Dispatch delivers each event to every sink in subscription order.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	d.mu.RLock()
	sinks := make([]namedSink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, e := range events {
		for _, s := range sinks {
			if err := d.deliver(ctx, s, e); err != nil {
				d.fail(ctx, s.name, e, err)
			}
		}
	}
}

// fail logs a delivery failure and hands it to the error hook.
func (d *Dispatcher) fail(ctx context.Context, sink string, e Event, err error) {
	d.mu.RLock()
	hook := d.onErr
	d.mu.RUnlock()

	errutil.LogErrorContext(ctx, d.logger.With(
		"sink", sink,
		"event_type", string(e.Type),
		"event_id", e.ID.String(),
	), "event sink failed", err)
	if hook != nil {
		hook(sink, e, err)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s namedSink, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("EVENT_SINK_PANIC").
				With("sink", s.name).
				Errorf("sink panicked: %v", r)
		}
	}()
	return s.sink.Handle(ctx, e)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package core

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/oops"
)

// DefaultQueueCapacity is the number of pending Dispatch calls an
// AsyncDispatcher buffers before callers start to wait.
const DefaultQueueCapacity = 256

// QueueSink names the pseudo-sink reported to the error hook when events are
// dropped before reaching any real sink.
const QueueSink = "queue"

type queued struct {
	ctx    context.Context
	events []Event
}

// AsyncDispatcher moves sink delivery off the caller's goroutine. Events are
// queued with a context detached from the caller's cancellation and delivered
// in order by a single worker. Close drains what is already queued.
type AsyncDispatcher struct {
	next  *Dispatcher
	queue chan queued
	done  chan struct{}

	stopping chan struct{}
	once     sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewAsyncDispatcher starts the delivery worker. A capacity below one uses
// DefaultQueueCapacity.
func NewAsyncDispatcher(next *Dispatcher, capacity int) *AsyncDispatcher {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	d := &AsyncDispatcher{
		next:     next,
		queue:    make(chan queued, capacity),
		done:     make(chan struct{}),
		stopping: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *AsyncDispatcher) run() {
	defer close(d.done)
	for q := range d.queue {
		d.next.Dispatch(q.ctx, q.events...)
	}
}

// Dispatch enqueues events and returns. When the queue is full it waits until
// there is room or ctx is done; in the latter case the events are dropped and
// reported to the error hook under QueueSink.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, events ...Event) {
	if len(events) == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, events, oops.Code("EVENT_DISPATCHER_CLOSED").Errorf("dispatcher is closed"))
		return
	}

	q := queued{ctx: context.WithoutCancel(ctx), events: slices.Clone(events)}
	select {
	case d.queue <- q:
	case <-ctx.Done():
		d.drop(ctx, events, oops.Code("EVENT_QUEUE_FULL").
			With("capacity", cap(d.queue)).
			Wrapf(ctx.Err(), "event queue full"))
	case <-d.stopping:
		d.drop(ctx, events, oops.Code("EVENT_DISPATCHER_CLOSED").Errorf("dispatcher is closing"))
	}
}

func (d *AsyncDispatcher) drop(ctx context.Context, events []Event, err error) {
	for _, e := range events {
		d.next.fail(ctx, QueueSink, e, err)
	}
}

// Pending reports how many Dispatch calls are waiting for the worker.
func (d *AsyncDispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting events and waits for the queue to drain. When ctx
// ends first it returns EVENT_DRAIN_TIMEOUT; the worker keeps delivering in
// the background and a later Close can wait again.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		close(d.stopping)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return oops.Code("EVENT_DRAIN_TIMEOUT").
			With("pending", len(d.queue)).
			Wrapf(ctx.Err(), "draining event queue")
	}
}

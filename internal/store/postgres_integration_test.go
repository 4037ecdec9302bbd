// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/store"
	"github.com/craftsmenplatform/craftsmen/internal/store/storetest"
)

var _ = Describe("EventLog", func() {
	var (
		pg  *storetest.Postgres
		log *store.EventLog
	)

	BeforeEach(func() {
		var err error
		pg, err = storetest.StartPostgres(context.Background())
		Expect(err).NotTo(HaveOccurred())
		log = store.NewEventLog(pg.Pool)
	})

	AfterEach(func() {
		pg.Close()
	})

	newEvent := func(aggID ulid.ULID, at time.Time) core.Event {
		return core.NewEvent(core.EventOfferSubmitted, core.AggregateProject, aggID,
			map[string]string{"price": "1250.00 CZK"}, at)
	}

	Describe("Append", func() {
		It("stores events and ignores duplicates", func() {
			ctx := context.Background()
			aggID := core.NewULID()
			event := newEvent(aggID, time.Now().UTC())

			Expect(log.Append(ctx, event)).To(Succeed())
			Expect(log.Append(ctx, event)).To(Succeed())

			events, err := log.Replay(ctx, aggID, ulid.ULID{}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].ID).To(Equal(event.ID))

			var payload map[string]string
			Expect(json.Unmarshal(events[0].Payload.(json.RawMessage), &payload)).To(Succeed())
			Expect(payload).To(HaveKeyWithValue("price", "1250.00 CZK"))
		})
	})

	Describe("Replay", func() {
		var (
			aggID ulid.ULID
			ids   []ulid.ULID
		)

		BeforeEach(func() {
			ctx := context.Background()
			aggID = core.NewULID()
			start := time.Now().UTC()
			ids = make([]ulid.ULID, 5)
			for i := range 5 {
				event := newEvent(aggID, start.Add(time.Duration(i)*time.Millisecond))
				ids[i] = event.ID
				Expect(log.Append(ctx, event)).To(Succeed())
			}
		})

		It("replays all events from the beginning", func() {
			events, err := log.Replay(context.Background(), aggID, ulid.ULID{}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(5))
		})

		It("replays events after a specific ID", func() {
			events, err := log.Replay(context.Background(), aggID, ids[1], 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
		})

		It("respects the limit", func() {
			events, err := log.Replay(context.Background(), aggID, ulid.ULID{}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(2))
		})

		It("returns nothing for an unknown aggregate", func() {
			events, err := log.Replay(context.Background(), core.NewULID(), ulid.ULID{}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})

		It("reports the last event", func() {
			last, err := log.LastEventID(context.Background(), aggID)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(Equal(ids[4]))
		})
	})

	Describe("LastEventID", func() {
		It("returns ErrNoEvents for an aggregate without events", func() {
			_, err := log.LastEventID(context.Background(), core.NewULID())
			Expect(err).To(MatchError(store.ErrNoEvents))
		})
	})
})

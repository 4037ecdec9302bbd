// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

func TestMetrics_AuthObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.LoginSucceeded()
	m.LoginFailed("bad_password")
	m.LoginFailed("bad_password")
	m.LoginFailed("AUTH_ACCOUNT_LOCKED")
	m.AccountLocked()
	m.TokenRefreshed()
	m.RefreshTokenReused()

	assert.InDelta(t, 1, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success", "")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("failure", "bad_password")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LockoutsTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokenRefreshesTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokenReuseTotal), 0)
}

func TestMetrics_EventSinkCountsDispatchedEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	d := core.NewDispatcher(discard)
	d.Subscribe("metrics", m.EventSink())
	d.Subscribe("broken", core.SinkFunc(func(context.Context, core.Event) error {
		return errors.New("boom")
	}))
	d.OnError(m.SinkFailed)

	now := time.Now()
	id := core.NewULID()
	d.Dispatch(context.Background(),
		core.NewEvent(core.EventProjectPublished, core.AggregateProject, id, nil, now),
		core.NewEvent(core.EventOfferSubmitted, core.AggregateProject, id, nil, now),
		core.NewEvent(core.EventOfferSubmitted, core.AggregateProject, id, nil, now),
	)

	assert.InDelta(t, 1, testutil.ToFloat64(m.DomainEventsTotal.WithLabelValues("project.published")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.DomainEventsTotal.WithLabelValues("offer.submitted")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.SinkFailuresTotal.WithLabelValues("broken")), 0)
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveHTTP("GET", "/api/projects/{id}", 404, 5*time.Millisecond)
	m.ObserveHTTP("GET", "/api/projects/{id}", 200, 7*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/projects/{id}", "404")), 0)
	count, err := testutil.GatherAndCount(reg, "craftsmen_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

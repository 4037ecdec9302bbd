// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
)

const namespace = "craftsmen"

// Metrics holds the platform's custom Prometheus collectors. It implements
// auth.Observer and provides a core.Sink counting dispatched domain events.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	LockoutsTotal       prometheus.Counter
	TokenRefreshesTotal prometheus.Counter
	TokenReuseTotal     prometheus.Counter
	DomainEventsTotal   *prometheus.CounterVec
	SinkFailuresTotal   *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the platform metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome and failure reason",
			},
			[]string{"outcome", "reason"},
		),
		LockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated failed logins",
		}),
		TokenRefreshesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Successful refresh token rotations",
		}),
		TokenReuseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_token_reuse_total",
			Help:      "Presentations of an already rotated refresh token",
		}),
		DomainEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domain_events_total",
				Help:      "Dispatched domain events by type",
			},
			[]string{"type"},
		),
		SinkFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_sink_failures_total",
				Help:      "Domain event deliveries that failed, by sink",
			},
			[]string{"sink"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.LoginsTotal,
		m.LockoutsTotal,
		m.TokenRefreshesTotal,
		m.TokenReuseTotal,
		m.DomainEventsTotal,
		m.SinkFailuresTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// LoginSucceeded implements auth.Observer.
func (m *Metrics) LoginSucceeded() {
	m.LoginsTotal.WithLabelValues("success", "").Inc()
}

// LoginFailed implements auth.Observer.
func (m *Metrics) LoginFailed(reason string) {
	m.LoginsTotal.WithLabelValues("failure", reason).Inc()
}

// AccountLocked implements auth.Observer.
func (m *Metrics) AccountLocked() { m.LockoutsTotal.Inc() }

// TokenRefreshed implements auth.Observer.
func (m *Metrics) TokenRefreshed() { m.TokenRefreshesTotal.Inc() }

// RefreshTokenReused implements auth.Observer.
func (m *Metrics) RefreshTokenReused() { m.TokenReuseTotal.Inc() }

// EventSink returns a sink that counts every dispatched event.
func (m *Metrics) EventSink() core.Sink {
	return core.SinkFunc(func(_ context.Context, e core.Event) error {
		m.DomainEventsTotal.WithLabelValues(string(e.Type)).Inc()
		return nil
	})
}

// SinkFailed is a core.ErrorHook counting failed deliveries.
func (m *Metrics) SinkFailed(sink string, _ core.Event, _ error) {
	m.SinkFailuresTotal.WithLabelValues(sink).Inc()
}

// ObserveHTTP records one served request. route is the router pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var _ auth.Observer = (*Metrics)(nil)

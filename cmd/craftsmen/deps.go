// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package main

import (
	"context"

	"github.com/craftsmenplatform/craftsmen/internal/notify"
	"github.com/craftsmenplatform/craftsmen/internal/store"
)

// Pool is the database handle serve needs: repository access, a readiness
// ping and shutdown. *pgxpool.Pool satisfies it.
type Pool interface {
	store.DB
	Ping(ctx context.Context) error
	Close()
}

// Server is a listener with the Start/Stop lifecycle shared by the API and
// observability servers.
type Server interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolOpener connects to the database.
	// Default: store.Open
	PoolOpener func(ctx context.Context, cfg store.PoolConfig) (Pool, error)

	// KafkaWriterFactory creates the writer behind the event publisher. It is
	// only called when brokers are configured.
	// Default: notify.NewKafkaWriter
	KafkaWriterFactory func(cfg notify.KafkaConfig) notify.MessageWriter

	// Started, when set, receives the bound API address once serving.
	Started func(apiAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolOpener == nil {
		out.PoolOpener = func(ctx context.Context, cfg store.PoolConfig) (Pool, error) {
			return store.Open(ctx, cfg)
		}
	}
	if out.KafkaWriterFactory == nil {
		out.KafkaWriterFactory = func(cfg notify.KafkaConfig) notify.MessageWriter {
			return notify.NewKafkaWriter(cfg)
		}
	}
	return &out
}

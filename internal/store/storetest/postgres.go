// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package storetest starts disposable PostgreSQL instances for integration
// tests.
package storetest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/craftsmenplatform/craftsmen/internal/store"
)

// Postgres is a running, fully migrated database container.
type Postgres struct {
	Pool      *pgxpool.Pool
	URL       string
	container *postgres.PostgresContainer
}

// StartPostgres runs a postgres:16-alpine container and applies every
// migration. Callers must call Close.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("craftsmen_test"),
		postgres.WithUsername("craftsmen"),
		postgres.WithPassword("craftsmen"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, oops.With("operation", "start container").Wrap(err)
	}

	pg := &Postgres{container: container}
	if err := pg.init(ctx); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return pg, nil
}

func (p *Postgres) init(ctx context.Context) error {
	url, err := p.container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return oops.With("operation", "connection string").Wrap(err)
	}
	p.URL = url

	migrator, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()
	if err := migrator.Up(); err != nil {
		return err
	}

	p.Pool, err = store.Open(ctx, store.PoolConfig{URL: url, MaxConns: 8})
	return err
}

// Truncate empties every application table between tests.
func (p *Postgres) Truncate(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx,
		`TRUNCATE accounts, refresh_tokens, projects, offers, project_images, domain_events CASCADE`)
	return oops.With("operation", "truncate").Wrap(err)
}

// Close releases the pool and terminates the container.
func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
	_ = p.container.Terminate(context.Background())
}

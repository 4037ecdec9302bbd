// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// pgx/v5 driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// schemaChanger is the part of *migrate.Migrate the Migrator uses.
type schemaChanger interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the schema migrations embedded in the binary.
type Migrator struct {
	m schemaChanger
}

// NewMigrator opens a migrator against databaseURL. Both postgres:// and
// postgresql:// URLs are accepted.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "open embedded migrations").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, driverURL(databaseURL))
	if err != nil {
		_ = source.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

// driverURL rewrites a libpq-style URL to the pgx5 scheme golang-migrate
// registers for pgx/v5.
func driverURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	if err := ignoreNoChange(m.m.Up()); err != nil {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls the schema back to version 0. Every table and row is dropped.
func (m *Migrator) Down() error {
	if err := ignoreNoChange(m.m.Down()); err != nil {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps moves n migrations up, or down when n is negative.
func (m *Migrator) Steps(n int) error {
	if err := ignoreNoChange(m.m.Steps(n)); err != nil {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version reports the applied schema version and whether the last migration
// failed halfway. An empty schema is version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without running
// anything. It is meant for recovery after a failed migration was repaired
// by hand.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").With("version", version).Errorf("version must be non-negative")
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the migration source and database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations lists the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	_, pending, err := m.split("list pending migrations")
	return pending, err
}

// AppliedMigrations lists the versions at or below the current one, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	applied, _, err := m.split("list applied migrations")
	return applied, err
}

func (m *Migrator) split(operation string) (applied, pending []uint, err error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, nil, oops.With("operation", operation).Wrap(err)
	}
	files, err := embeddedMigrations()
	if err != nil {
		return nil, nil, oops.With("operation", operation).Wrap(err)
	}
	for _, f := range files {
		if f.version <= current {
			applied = append(applied, f.version)
		} else {
			pending = append(pending, f.version)
		}
	}
	return applied, pending, nil
}

// MigrationName returns the base name ("000002_projects") of the embedded
// migration with the given version, or "" when there is none.
func MigrationName(version uint) (string, error) {
	files, err := embeddedMigrations()
	if err != nil {
		return "", err
	}
	i, found := slices.BinarySearchFunc(files, version, func(f migrationFile, v uint) int {
		return cmp.Compare(f.version, v)
	})
	if !found {
		return "", nil
	}
	return files[i].name, nil
}

type migrationFile struct {
	version uint
	name    string
}

// embeddedMigrations indexes the up migrations once; the result is shared
// and must not be modified.
var embeddedMigrations = sync.OnceValues(func() ([]migrationFile, error) {
	return scanMigrations(migrationsFS, "migrations")
})

// scanMigrations parses NNNNNN_name.up.sql file names under dir, sorted by
// version. Files without a numeric prefix are ignored.
func scanMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("dir", dir).Wrap(err)
	}

	var files []migrationFile
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: uint(v), name: name})
	}
	slices.SortFunc(files, func(a, b migrationFile) int {
		return cmp.Compare(a.version, b.version)
	})
	return files, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

type fakeMigrator struct {
	version  uint
	dirty    bool
	applied  []uint
	pending  []uint
	upErr    error
	calls    []string
	steps    int
	forced   int
	closed   bool
	closeErr error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	if f.upErr != nil {
		return f.upErr
	}
	if len(f.pending) > 0 {
		f.version = f.pending[len(f.pending)-1]
		f.applied = append(f.applied, f.pending...)
		f.pending = nil
	}
	return nil
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	f.version = 0
	return nil
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, nil
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return nil
}

func (f *fakeMigrator) PendingMigrations() ([]uint, error) { return f.pending, nil }

func (f *fakeMigrator) AppliedMigrations() ([]uint, error) { return f.applied, nil }

func (f *fakeMigrator) Close() error {
	f.closed = true
	return f.closeErr
}

func runMigrate(t *testing.T, m *fakeMigrator, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://test@localhost/craftsmen")

	cmd := newMigrateCmd(func(url string) (migrator, error) {
		assert.Equal(t, "postgres://test@localhost/craftsmen", url)
		return m, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateUp(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		m := &fakeMigrator{version: 1, applied: []uint{1}, pending: []uint{2, 3}}
		out, err := runMigrate(t, m, "up")
		require.NoError(t, err)

		assert.Equal(t, []string{"up"}, m.calls)
		assert.Contains(t, out, "Applying 2 migration(s)...")
		assert.Contains(t, out, "Migrations completed successfully")
		assert.Contains(t, out, "Schema version: 000003_domain_events")
		assert.True(t, m.closed)
	})

	t.Run("bare migrate runs up", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}}
		out, err := runMigrate(t, m)
		require.NoError(t, err)
		assert.Equal(t, []string{"up"}, m.calls)
		assert.Contains(t, out, "Schema version: 000001_accounts")
	})

	t.Run("up to date skips migrate", func(t *testing.T) {
		m := &fakeMigrator{version: 3, applied: []uint{1, 2, 3}}
		out, err := runMigrate(t, m, "up")
		require.NoError(t, err)
		assert.Empty(t, m.calls)
		assert.Contains(t, out, "Schema is up to date")
	})

	t.Run("failure is wrapped", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}, upErr: errors.New("syntax error")}
		_, err := runMigrate(t, m, "up")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "syntax error")
		assert.True(t, m.closed)
	})
}

func TestMigrateDown(t *testing.T) {
	t.Run("requires confirmation", func(t *testing.T) {
		m := &fakeMigrator{version: 3}
		_, err := runMigrate(t, m, "down")
		errutil.AssertErrorCode(t, err, "MIGRATION_NOT_CONFIRMED")
		assert.Empty(t, m.calls)
		assert.False(t, m.closed, "migrator must not be opened without confirmation")
	})

	t.Run("rolls back with --yes", func(t *testing.T) {
		m := &fakeMigrator{version: 3}
		out, err := runMigrate(t, m, "down", "--yes")
		require.NoError(t, err)
		assert.Equal(t, []string{"down"}, m.calls)
		assert.Contains(t, out, "All migrations rolled back")
	})
}

func TestMigrateSteps(t *testing.T) {
	for _, arg := range []string{"0", "abc"} {
		t.Run("rejects "+arg, func(t *testing.T) {
			m := &fakeMigrator{}
			_, err := runMigrate(t, m, "steps", arg)
			errutil.AssertErrorCode(t, err, "INVALID_STEPS")
			assert.Empty(t, m.calls)
		})
	}

	t.Run("negative rolls back", func(t *testing.T) {
		m := &fakeMigrator{version: 2}
		out, err := runMigrate(t, m, "steps", "--", "-1")
		require.NoError(t, err)
		assert.Equal(t, -1, m.steps)
		assert.Contains(t, out, "Schema version: 000002_projects")
	})
}

func TestMigrateForce(t *testing.T) {
	for _, arg := range []string{"abc", "-2"} {
		t.Run("rejects "+arg, func(t *testing.T) {
			m := &fakeMigrator{}
			_, err := runMigrate(t, m, "force", "--", arg)
			errutil.AssertErrorCode(t, err, "INVALID_VERSION")
			assert.Empty(t, m.calls)
		})
	}

	t.Run("sets version", func(t *testing.T) {
		m := &fakeMigrator{version: 3, dirty: true}
		out, err := runMigrate(t, m, "force", "2")
		require.NoError(t, err)
		assert.Equal(t, 2, m.forced)
		assert.Contains(t, out, "Schema version forced to 2")
	})
}

func TestMigrateStatus(t *testing.T) {
	t.Run("lists pending", func(t *testing.T) {
		m := &fakeMigrator{version: 1, applied: []uint{1}, pending: []uint{2, 3}}
		out, err := runMigrate(t, m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Schema version: 000001_accounts")
		assert.Contains(t, out, "Applied: 1")
		assert.Contains(t, out, "  pending 000002_projects")
		assert.Contains(t, out, "  pending 000003_domain_events")
	})

	t.Run("empty dirty schema", func(t *testing.T) {
		m := &fakeMigrator{dirty: true}
		out, err := runMigrate(t, m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Schema version: 0 (empty) (dirty)")
		assert.Contains(t, out, "No pending migrations")
	})

	t.Run("close error is only a warning", func(t *testing.T) {
		m := &fakeMigrator{closeErr: errors.New("conn reset")}
		out, err := runMigrate(t, m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "warning: closing migrator: conn reset")
	})
}

func TestMigrate_ConnectionErrors(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		configFile = ""
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("DATABASE_URL", "")
		t.Setenv("CRAFTSMEN_DATABASE_URL", "")

		called := false
		cmd := newMigrateCmd(func(string) (migrator, error) {
			called = true
			return &fakeMigrator{}, nil
		})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"status"})

		errutil.AssertErrorCode(t, cmd.Execute(), "CONFIG_INVALID")
		assert.False(t, called)
	})

	t.Run("factory failure", func(t *testing.T) {
		configFile = ""
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("DATABASE_URL", "postgres://test@localhost/craftsmen")

		cmd := newMigrateCmd(func(string) (migrator, error) {
			return nil, errors.New("connection refused")
		})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"up"})

		err := cmd.Execute()
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestDescribeVersion(t *testing.T) {
	assert.Equal(t, "0 (empty)", describeVersion(0))
	assert.Equal(t, "000002_projects", describeVersion(2))
	assert.Equal(t, "99", describeVersion(99))
}

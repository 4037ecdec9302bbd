// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package errutil

import (
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

// TestingT is the subset of testing.TB the assertions need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

func asOops(t TestingT, err error) (oops.OopsError, bool) {
	t.Helper()
	if !assert.Error(t, err) {
		return oops.OopsError{}, false
	}
	oopsErr, ok := oops.AsOops(err)
	return oopsErr, assert.True(t, ok, "expected an oops error, got %T: %v", err, err)
}

// AssertErrorCode fails unless err is an oops error whose code is code.
func AssertErrorCode(t TestingT, err error, code string) {
	t.Helper()
	if oopsErr, ok := asOops(t, err); ok {
		assert.Equal(t, code, oopsErr.Code(), "error: %v", err)
	}
}

// AssertErrorContext fails unless err carries key=value in its oops context.
func AssertErrorContext(t TestingT, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := asOops(t, err)
	if !ok {
		return
	}
	ctx := oopsErr.Context()
	if assert.Contains(t, ctx, key) {
		assert.Equal(t, value, ctx[key], "context %q", key)
	}
}

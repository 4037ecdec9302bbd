// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package core

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often a load-mutate-save cycle is re-run after a
// version conflict.
type RetryPolicy struct {
	Attempts  uint64
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries three times starting at 10ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 10 * time.Millisecond}
}

// RetryOnConflict runs fn and re-runs it while it fails with ErrConflict.
// Any other error is returned immediately. When attempts are exhausted the
// last conflict error is returned.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	base := policy.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	backoff := retry.WithMaxRetries(policy.Attempts, retry.NewExponential(base))

	//nolint:wrapcheck // fn errors are returned as-is so codes survive
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package project implements the project marketplace: customers publish
// projects, craftsmen bid on them with offers, and the customer accepts one
// offer and later completes the job.
//
// Project is the aggregate root. Offers and images are owned by it and only
// change through Project methods, which is how the single accepted offer
// invariant is kept: accepting one offer rejects every other pending offer
// in the same mutation. Service wraps the aggregate in load, mutate and save
// cycles with ownership checks and retries on version conflicts.
package project

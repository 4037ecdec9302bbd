// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/craftsmenplatform/craftsmen/internal/money"
)

// Published is raised when a draft project opens for offers.
type Published struct {
	ProjectID   ulid.ULID `json:"project_id"`
	CustomerID  ulid.ULID `json:"customer_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// OfferSubmitted is raised when a craftsman bids on a project.
type OfferSubmitted struct {
	ProjectID   ulid.ULID   `json:"project_id"`
	OfferID     ulid.ULID   `json:"offer_id"`
	CustomerID  ulid.ULID   `json:"customer_id"`
	CraftsmanID ulid.ULID   `json:"craftsman_id"`
	Price       money.Money `json:"price"`
}

// Accepted is raised when the customer accepts an offer. Rejected
// lists the offers that were rejected as a result.
type Accepted struct {
	ProjectID   ulid.ULID   `json:"project_id"`
	OfferID     ulid.ULID   `json:"offer_id"`
	CustomerID  ulid.ULID   `json:"customer_id"`
	CraftsmanID ulid.ULID   `json:"craftsman_id"`
	Price       money.Money `json:"price"`
	Rejected    []ulid.ULID `json:"rejected_offer_ids"`
}

// Completed is raised when work on a project is finished.
type Completed struct {
	ProjectID   ulid.ULID `json:"project_id"`
	CustomerID  ulid.ULID `json:"customer_id"`
	OfferID     ulid.ULID `json:"offer_id"`
	CraftsmanID ulid.ULID `json:"craftsman_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Cancelled is raised when a project is cancelled.
type Cancelled struct {
	ProjectID  ulid.ULID   `json:"project_id"`
	CustomerID ulid.ULID   `json:"customer_id"`
	Reason     string      `json:"reason"`
	Rejected   []ulid.ULID `json:"rejected_offer_ids"`
}

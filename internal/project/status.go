// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"strings"

	"github.com/samber/oops"
)

// Status is the lifecycle state of a project.
//
//	Draft ──Publish──▶ Published ──AcceptOffer──▶ InProgress ──Complete──▶ Completed
//	  │                    │                          │
//	  └────────────────────┴─────────Cancel───────────┴──▶ Cancelled
type Status string

// Project statuses.
const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus parses a status name. Both snake case and the camel case
// spelling used by older clients ("InProgress") are accepted.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	switch norm {
	case "draft":
		return StatusDraft, nil
	case "published":
		return StatusPublished, nil
	case "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", oops.Code(CodeInvalidStatus).With("status", s).Errorf("invalid project status")
	}
}

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

// Offer statuses. AutoRejected is only found on offers stored by earlier
// releases; offers rejected by an acceptance or cancellation are Rejected.
const (
	OfferPending      OfferStatus = "pending"
	OfferAccepted     OfferStatus = "accepted"
	OfferRejected     OfferStatus = "rejected"
	OfferWithdrawn    OfferStatus = "withdrawn"
	OfferAutoRejected OfferStatus = "auto_rejected"
)

// ParseOfferStatus parses a stored offer status.
func ParseOfferStatus(s string) (OfferStatus, error) {
	switch st := OfferStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case OfferPending, OfferAccepted, OfferRejected, OfferWithdrawn, OfferAutoRejected:
		return st, nil
	default:
		return "", oops.Code(CodeInvalidStatus).With("status", s).Errorf("invalid offer status")
	}
}

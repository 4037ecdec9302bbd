// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/money"
)

// MaxOfferDescriptionLength bounds an offer description in characters.
const MaxOfferDescriptionLength = 2000

// Rejection reasons recorded on offers.
const (
	ReasonOtherOfferAccepted = "another offer was accepted"
	ReasonProjectCancelled   = "project cancelled"
)

// Offer is a craftsman's bid on a project. Offers are owned by their Project
// and are only ever changed through Project methods; callers receive copies.
type Offer struct {
	id                    ulid.ULID
	projectID             ulid.ULID
	craftsmanID           ulid.ULID
	price                 money.Money
	description           string
	estimatedDurationDays int
	timeline              *Timeline
	status                OfferStatus
	acceptedAt            *time.Time
	rejectedAt            *time.Time
	withdrawnAt           *time.Time
	rejectionReason       string
	createdAt             time.Time
	updatedAt             time.Time
}

// OfferParams is the input for submitting an offer.
type OfferParams struct {
	CraftsmanID ulid.ULID
	Price       money.Money
	Description string
	// EstimatedDurationDays is optional; zero means not given.
	EstimatedDurationDays int
	Timeline              *Timeline
}

func newOffer(projectID ulid.ULID, p OfferParams, now time.Time) (*Offer, error) {
	if core.IsZeroID(p.CraftsmanID) {
		return nil, oops.Code(CodeInvalidOffer).Errorf("craftsman is required")
	}
	if p.Price.Currency() == "" || !p.Price.IsPositive() {
		return nil, oops.Code(CodeInvalidOffer).
			With("price", p.Price.String()).
			Errorf("offer price must be positive")
	}
	desc := strings.TrimSpace(p.Description)
	if utf8.RuneCountInString(desc) > MaxOfferDescriptionLength {
		return nil, oops.Code(CodeInvalidOffer).
			With("max", MaxOfferDescriptionLength).
			Errorf("offer description must be at most %d characters", MaxOfferDescriptionLength)
	}
	if p.EstimatedDurationDays < 0 {
		return nil, oops.Code(CodeInvalidOffer).
			With("estimated_duration_days", p.EstimatedDurationDays).
			Errorf("estimated duration must be positive")
	}
	var timeline *Timeline
	if p.Timeline != nil {
		tl, err := NewTimeline(p.Timeline.Start, p.Timeline.End)
		if err != nil {
			return nil, err
		}
		timeline = &tl
	}

	return &Offer{
		id:                    core.NewULIDAt(now),
		projectID:             projectID,
		craftsmanID:           p.CraftsmanID,
		price:                 p.Price,
		description:           desc,
		estimatedDurationDays: p.EstimatedDurationDays,
		timeline:              timeline,
		status:                OfferPending,
		createdAt:             now,
		updatedAt:             now,
	}, nil
}

func (o *Offer) ID() ulid.ULID               { return o.id }
func (o *Offer) ProjectID() ulid.ULID        { return o.projectID }
func (o *Offer) CraftsmanID() ulid.ULID      { return o.craftsmanID }
func (o *Offer) Price() money.Money          { return o.price }
func (o *Offer) Description() string         { return o.description }
func (o *Offer) EstimatedDurationDays() int  { return o.estimatedDurationDays }
func (o *Offer) Status() OfferStatus         { return o.status }
func (o *Offer) RejectionReason() string     { return o.rejectionReason }
func (o *Offer) CreatedAt() time.Time        { return o.createdAt }
func (o *Offer) UpdatedAt() time.Time        { return o.updatedAt }
func (o *Offer) AcceptedAt() *time.Time      { return copyTime(o.acceptedAt) }
func (o *Offer) RejectedAt() *time.Time      { return copyTime(o.rejectedAt) }
func (o *Offer) WithdrawnAt() *time.Time     { return copyTime(o.withdrawnAt) }
func (o *Offer) IsPending() bool             { return o.status == OfferPending }
func (o *Offer) IsAccepted() bool            { return o.status == OfferAccepted }

// IsRejected reports whether the offer was turned down, either explicitly
// or as a consequence of another offer being accepted.
func (o *Offer) IsRejected() bool {
	return o.status == OfferRejected || o.status == OfferAutoRejected
}

// Timeline returns the proposed timeline, if any.
func (o *Offer) Timeline() (Timeline, bool) {
	if o.timeline == nil {
		return Timeline{}, false
	}
	return *o.timeline, true
}

// The transitions below are reachable only through Project, which checks
// the offer is pending first. Calling them otherwise is a bug.

func (o *Offer) mustBePending(op string) {
	if o.status != OfferPending {
		panic(fmt.Sprintf("project: %s offer %s in status %s", op, o.id, o.status))
	}
}

func (o *Offer) accept(now time.Time) {
	o.mustBePending("accept")
	o.status = OfferAccepted
	at := now
	o.acceptedAt = &at
	o.updatedAt = now
}

func (o *Offer) reject(reason string, now time.Time) {
	o.mustBePending("reject")
	o.status = OfferRejected
	o.rejectionReason = reason
	at := now
	o.rejectedAt = &at
	o.updatedAt = now
}

func (o *Offer) withdraw(now time.Time) {
	o.mustBePending("withdraw")
	o.status = OfferWithdrawn
	at := now
	o.withdrawnAt = &at
	o.updatedAt = now
}

// OfferState is the persisted form of an Offer.
type OfferState struct {
	ID                    ulid.ULID
	ProjectID             ulid.ULID
	CraftsmanID           ulid.ULID
	Price                 money.Money
	Description           string
	EstimatedDurationDays int
	Timeline              *Timeline
	Status                OfferStatus
	AcceptedAt            *time.Time
	RejectedAt            *time.Time
	WithdrawnAt           *time.Time
	RejectionReason       string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// State snapshots the offer.
func (o *Offer) State() OfferState {
	var tl *Timeline
	if o.timeline != nil {
		c := *o.timeline
		tl = &c
	}
	return OfferState{
		ID:                    o.id,
		ProjectID:             o.projectID,
		CraftsmanID:           o.craftsmanID,
		Price:                 o.price,
		Description:           o.description,
		EstimatedDurationDays: o.estimatedDurationDays,
		Timeline:              tl,
		Status:                o.status,
		AcceptedAt:            copyTime(o.acceptedAt),
		RejectedAt:            copyTime(o.rejectedAt),
		WithdrawnAt:           copyTime(o.withdrawnAt),
		RejectionReason:       o.rejectionReason,
		CreatedAt:             o.createdAt,
		UpdatedAt:             o.updatedAt,
	}
}

func restoreOffer(s OfferState) *Offer {
	var tl *Timeline
	if s.Timeline != nil {
		c := *s.Timeline
		tl = &c
	}
	return &Offer{
		id:                    s.ID,
		projectID:             s.ProjectID,
		craftsmanID:           s.CraftsmanID,
		price:                 s.Price,
		description:           s.Description,
		estimatedDurationDays: s.EstimatedDurationDays,
		timeline:              tl,
		status:                s.Status,
		acceptedAt:            copyTime(s.AcceptedAt),
		rejectedAt:            copyTime(s.RejectedAt),
		withdrawnAt:           copyTime(s.WithdrawnAt),
		rejectionReason:       s.RejectionReason,
		createdAt:             s.CreatedAt,
		updatedAt:             s.UpdatedAt,
	}
}

// snapshot returns a copy safe to hand to callers.
func (o *Offer) snapshot() Offer {
	return *restoreOffer(o.State())
}

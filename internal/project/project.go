// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// Field limits, in characters.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
)

// Project is the aggregate root for a customer's job posting. It owns its
// offers and images; at most one offer is ever accepted.
type Project struct {
	id                 ulid.ULID
	customerID         ulid.ULID
	title              string
	description        string
	budget             Budget
	schedule           Schedule
	status             Status
	publishedAt        *time.Time
	completedAt        *time.Time
	cancelledAt        *time.Time
	cancellationReason string
	acceptedOfferID    *ulid.ULID
	offers             []*Offer
	images             []Image
	deletedAt          *time.Time
	deletedBy          string
	createdAt          time.Time
	updatedAt          time.Time
	version            int

	events core.Recorder
}

var _ core.Deletable = (*Project)(nil)

// Details are the customer-editable fields of a project.
type Details struct {
	Title       string
	Description string
	Budget      Budget
	Schedule    Schedule
}

// NewParams is the input for creating a project.
type NewParams struct {
	CustomerID ulid.ULID
	Details
}

// New creates a draft project.
func New(p NewParams, now time.Time) (*Project, error) {
	if core.IsZeroID(p.CustomerID) {
		return nil, oops.Code(CodeInvalidCustomer).Errorf("customer is required")
	}
	title, desc, err := validateText(p.Title, p.Description)
	if err != nil {
		return nil, err
	}
	if err := validateBudget(p.Budget); err != nil {
		return nil, err
	}
	if err := validateSchedule(p.Schedule); err != nil {
		return nil, err
	}

	return &Project{
		id:          core.NewULIDAt(now),
		customerID:  p.CustomerID,
		title:       title,
		description: desc,
		budget:      p.Budget,
		schedule:    p.Schedule,
		status:      StatusDraft,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

func validateText(title, description string) (string, string, error) {
	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n == 0 || n > MaxTitleLength {
		return "", "", oops.Code(CodeInvalidTitle).
			With("max", MaxTitleLength).
			Errorf("title must be 1 to %d characters", MaxTitleLength)
	}
	description = strings.TrimSpace(description)
	if n := utf8.RuneCountInString(description); n == 0 || n > MaxDescriptionLength {
		return "", "", oops.Code(CodeInvalidDescription).
			With("max", MaxDescriptionLength).
			Errorf("description must be 1 to %d characters", MaxDescriptionLength)
	}
	return title, description, nil
}

// validateBudget re-checks a Budget, which may have been built as a struct
// literal rather than through NewBudget.
func validateBudget(b Budget) error {
	_, err := NewBudget(b.min, b.max)
	return err
}

func validateSchedule(s Schedule) error {
	_, err := NewSchedule(s.preferredStart, s.deadline)
	return err
}

func (p *Project) ID() ulid.ULID              { return p.id }
func (p *Project) CustomerID() ulid.ULID      { return p.customerID }
func (p *Project) Title() string              { return p.title }
func (p *Project) Description() string        { return p.description }
func (p *Project) Budget() Budget             { return p.budget }
func (p *Project) Schedule() Schedule         { return p.schedule }
func (p *Project) Status() Status             { return p.status }
func (p *Project) CancellationReason() string { return p.cancellationReason }
func (p *Project) DeletedBy() string          { return p.deletedBy }
func (p *Project) CreatedAt() time.Time       { return p.createdAt }
func (p *Project) UpdatedAt() time.Time       { return p.updatedAt }
func (p *Project) PublishedAt() *time.Time    { return copyTime(p.publishedAt) }
func (p *Project) CompletedAt() *time.Time    { return copyTime(p.completedAt) }
func (p *Project) CancelledAt() *time.Time    { return copyTime(p.cancelledAt) }
func (p *Project) DeletedAt() *time.Time      { return copyTime(p.deletedAt) }
func (p *Project) IsDeleted() bool            { return p.deletedAt != nil }

// IsOwnedBy reports whether id is the customer who posted the project.
func (p *Project) IsOwnedBy(id ulid.ULID) bool { return p.customerID == id }

// HasAcceptedOffer reports whether an offer has been accepted.
func (p *Project) HasAcceptedOffer() bool { return p.acceptedOfferID != nil }

// AcceptedOfferID returns the accepted offer's id if there is one.
func (p *Project) AcceptedOfferID() (ulid.ULID, bool) {
	if p.acceptedOfferID == nil {
		return ulid.ULID{}, false
	}
	return *p.acceptedOfferID, true
}

// Offers returns copies of the project's offers in submission order.
func (p *Project) Offers() []Offer {
	out := make([]Offer, 0, len(p.offers))
	for _, o := range p.offers {
		out = append(out, o.snapshot())
	}
	return out
}

// Offer returns a copy of one offer.
func (p *Project) Offer(id ulid.ULID) (Offer, bool) {
	o := p.findOffer(id)
	if o == nil {
		return Offer{}, false
	}
	return o.snapshot(), true
}

// Images returns the attached images.
func (p *Project) Images() []Image { return slices.Clone(p.images) }

func (p *Project) Version() int     { return p.version }
func (p *Project) SetVersion(v int) { p.version = v }

// PendingEvents returns buffered events without clearing them.
func (p *Project) PendingEvents() []core.Event { return p.events.Pending() }

// DrainEvents returns and clears buffered events. Repositories call it
// after a successful commit.
func (p *Project) DrainEvents() []core.Event { return p.events.Drain() }

func (p *Project) findOffer(id ulid.ULID) *Offer {
	for _, o := range p.offers {
		if o.id == id {
			return o
		}
	}
	return nil
}

func (p *Project) record(typ core.EventType, payload any, now time.Time) {
	p.events.Record(core.NewEvent(typ, core.AggregateProject, p.id, payload, now))
}

func (p *Project) touch(now time.Time) { p.updatedAt = now }

// Update replaces the editable fields. Only drafts can be edited.
func (p *Project) Update(u Details, now time.Time) error {
	if p.status != StatusDraft {
		return errInvalidState("update", p.status)
	}
	title, desc, err := validateText(u.Title, u.Description)
	if err != nil {
		return err
	}
	if err := validateBudget(u.Budget); err != nil {
		return err
	}
	if err := validateSchedule(u.Schedule); err != nil {
		return err
	}
	p.title = title
	p.description = desc
	p.budget = u.Budget
	p.schedule = u.Schedule
	p.touch(now)
	return nil
}

// Publish opens a draft project for offers.
func (p *Project) Publish(now time.Time) error {
	if p.status != StatusDraft {
		return errInvalidState("publish", p.status)
	}
	p.status = StatusPublished
	at := now
	p.publishedAt = &at
	p.touch(now)
	p.record(core.EventProjectPublished, Published{
		ProjectID:   p.id,
		CustomerID:  p.customerID,
		Title:       p.title,
		PublishedAt: now,
	}, now)
	return nil
}

// AddOffer records a pending bid. Bids are accepted only while the project
// is published; the owner cannot bid, and a craftsman may hold only one
// pending offer per project.
func (p *Project) AddOffer(params OfferParams, now time.Time) (Offer, error) {
	if p.status != StatusPublished {
		return Offer{}, errInvalidState("submit an offer on", p.status)
	}
	if params.CraftsmanID == p.customerID {
		return Offer{}, oops.Code(CodeOwnProjectOffer).Errorf("cannot submit an offer on your own project")
	}
	for _, o := range p.offers {
		if o.craftsmanID == params.CraftsmanID && o.IsPending() {
			return Offer{}, oops.Code(CodeDuplicateOffer).
				With("offer_id", o.id.String()).
				Errorf("craftsman already has a pending offer on this project")
		}
	}
	if cur := p.budget.Currency(); cur != "" && params.Price.Currency() != "" && params.Price.Currency() != cur {
		return Offer{}, oops.Code(CodeOfferCurrencyMismatch).
			With("budget_currency", cur).
			With("offer_currency", params.Price.Currency()).
			Errorf("offer currency must match the project budget")
	}

	offer, err := newOffer(p.id, params, now)
	if err != nil {
		return Offer{}, err
	}
	p.offers = append(p.offers, offer)
	p.touch(now)
	p.record(core.EventOfferSubmitted, OfferSubmitted{
		ProjectID:   p.id,
		OfferID:     offer.id,
		CustomerID:  p.customerID,
		CraftsmanID: offer.craftsmanID,
		Price:       offer.price,
	}, now)
	return offer.snapshot(), nil
}

// AcceptOffer accepts one pending offer and rejects every other pending
// offer in the same step. The project moves to in progress.
func (p *Project) AcceptOffer(offerID ulid.ULID, now time.Time) error {
	if p.acceptedOfferID != nil {
		return oops.Code(CodeOfferAlreadyAccepted).
			With("accepted_offer_id", p.acceptedOfferID.String()).
			Errorf("an offer has already been accepted")
	}
	if p.status != StatusPublished {
		return errInvalidState("accept an offer on", p.status)
	}
	target := p.findOffer(offerID)
	if target == nil {
		return errOfferNotFound(offerID.String())
	}
	if !target.IsPending() {
		return oops.Code(CodeOfferNotPending).
			With("offer_id", offerID.String()).
			With("status", string(target.status)).
			Errorf("only pending offers can be accepted")
	}

	target.accept(now)
	rejected := p.rejectPending(ReasonOtherOfferAccepted, now)
	id := target.id
	p.acceptedOfferID = &id
	p.status = StatusInProgress
	p.touch(now)
	p.record(core.EventOfferAccepted, Accepted{
		ProjectID:   p.id,
		OfferID:     target.id,
		CustomerID:  p.customerID,
		CraftsmanID: target.craftsmanID,
		Price:       target.price,
		Rejected:    rejected,
	}, now)
	return nil
}

func (p *Project) rejectPending(reason string, now time.Time) []ulid.ULID {
	var rejected []ulid.ULID
	for _, o := range p.offers {
		if o.IsPending() {
			o.reject(reason, now)
			rejected = append(rejected, o.id)
		}
	}
	return rejected
}

func (p *Project) pendingOffer(offerID ulid.ULID) (*Offer, error) {
	o := p.findOffer(offerID)
	if o == nil {
		return nil, errOfferNotFound(offerID.String())
	}
	if !o.IsPending() {
		return nil, oops.Code(CodeOfferNotPending).
			With("offer_id", offerID.String()).
			With("status", string(o.status)).
			Errorf("offer is no longer pending")
	}
	return o, nil
}

// RejectOffer declines a single pending offer while the project is open.
func (p *Project) RejectOffer(offerID ulid.ULID, reason string, now time.Time) error {
	if p.status != StatusPublished {
		return errInvalidState("reject an offer on", p.status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return oops.Code(CodeInvalidReason).Errorf("rejection reason is required")
	}
	o, err := p.pendingOffer(offerID)
	if err != nil {
		return err
	}
	o.reject(reason, now)
	p.touch(now)
	return nil
}

// WithdrawOffer lets a craftsman take back their own pending offer.
func (p *Project) WithdrawOffer(offerID, craftsmanID ulid.ULID, now time.Time) error {
	o, err := p.pendingOffer(offerID)
	if err != nil {
		return err
	}
	if o.craftsmanID != craftsmanID {
		return oops.Code(CodeForbidden).
			With("offer_id", offerID.String()).
			Errorf("only the craftsman who submitted an offer can withdraw it")
	}
	o.withdraw(now)
	p.touch(now)
	return nil
}

// Complete finishes an in-progress project.
func (p *Project) Complete(now time.Time) error {
	if p.status != StatusInProgress {
		return errInvalidState("complete", p.status)
	}
	if p.acceptedOfferID == nil {
		return oops.Code(CodeInvalidState).Errorf("cannot complete a project without an accepted offer")
	}
	accepted := p.findOffer(*p.acceptedOfferID)
	if accepted == nil {
		return errOfferNotFound(p.acceptedOfferID.String())
	}
	p.status = StatusCompleted
	at := now
	p.completedAt = &at
	p.touch(now)
	p.record(core.EventProjectCompleted, Completed{
		ProjectID:   p.id,
		CustomerID:  p.customerID,
		OfferID:     accepted.id,
		CraftsmanID: accepted.craftsmanID,
		CompletedAt: now,
	}, now)
	return nil
}

// Cancel closes the project from any non-terminal state and rejects all
// pending offers.
func (p *Project) Cancel(reason string, now time.Time) error {
	if p.status.IsTerminal() {
		return errInvalidState("cancel", p.status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return oops.Code(CodeInvalidReason).Errorf("cancellation reason is required")
	}
	rejected := p.rejectPending(ReasonProjectCancelled, now)
	p.status = StatusCancelled
	at := now
	p.cancelledAt = &at
	p.cancellationReason = reason
	p.touch(now)
	p.record(core.EventProjectCancelled, Cancelled{
		ProjectID:  p.id,
		CustomerID: p.customerID,
		Reason:     reason,
		Rejected:   rejected,
	}, now)
	return nil
}

// AddImage attaches an image. Images can be managed until the project
// reaches a terminal state.
func (p *Project) AddImage(rawURL string, now time.Time) (Image, error) {
	if p.status.IsTerminal() {
		return Image{}, errInvalidState("add an image to", p.status)
	}
	if len(p.images) >= MaxImages {
		return Image{}, oops.Code(CodeTooManyImages).
			With("max", MaxImages).
			Errorf("a project can have at most %d images", MaxImages)
	}
	u, err := ValidateImageURL(rawURL)
	if err != nil {
		return Image{}, err
	}
	img := Image{ID: core.NewULIDAt(now), URL: u, CreatedAt: now}
	p.images = append(p.images, img)
	p.touch(now)
	return img, nil
}

// RemoveImage detaches an image.
func (p *Project) RemoveImage(imageID ulid.ULID, now time.Time) error {
	if p.status.IsTerminal() {
		return errInvalidState("remove an image from", p.status)
	}
	i := slices.IndexFunc(p.images, func(img Image) bool { return img.ID == imageID })
	if i < 0 {
		return oops.Code(CodeImageNotFound).With("image_id", imageID.String()).Errorf("image not found")
	}
	p.images = slices.Delete(p.images, i, i+1)
	p.touch(now)
	return nil
}

// MarkDeleted soft-deletes the project. Only drafts and cancelled projects
// can be deleted; anything with live or finished work is kept.
func (p *Project) MarkDeleted(by string, now time.Time) error {
	if p.IsDeleted() {
		return oops.Code(CodeAlreadyDeleted).Errorf("project is already deleted")
	}
	if p.status != StatusDraft && p.status != StatusCancelled {
		return errInvalidState("delete", p.status)
	}
	at := now
	p.deletedAt = &at
	p.deletedBy = strings.TrimSpace(by)
	p.touch(now)
	return nil
}

// State is the persisted form of a Project.
type State struct {
	ID                 ulid.ULID
	CustomerID         ulid.ULID
	Title              string
	Description        string
	Budget             Budget
	Schedule           Schedule
	Status             Status
	PublishedAt        *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	AcceptedOfferID    *ulid.ULID
	Offers             []OfferState
	Images             []Image
	DeletedAt          *time.Time
	DeletedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int
}

// State snapshots the project, its offers and images.
func (p *Project) State() State {
	offers := make([]OfferState, 0, len(p.offers))
	for _, o := range p.offers {
		offers = append(offers, o.State())
	}
	var accepted *ulid.ULID
	if p.acceptedOfferID != nil {
		id := *p.acceptedOfferID
		accepted = &id
	}
	return State{
		ID:                 p.id,
		CustomerID:         p.customerID,
		Title:              p.title,
		Description:        p.description,
		Budget:             p.budget,
		Schedule:           p.schedule,
		Status:             p.status,
		PublishedAt:        copyTime(p.publishedAt),
		CompletedAt:        copyTime(p.completedAt),
		CancelledAt:        copyTime(p.cancelledAt),
		CancellationReason: p.cancellationReason,
		AcceptedOfferID:    accepted,
		Offers:             offers,
		Images:             slices.Clone(p.images),
		DeletedAt:          copyTime(p.deletedAt),
		DeletedBy:          p.deletedBy,
		CreatedAt:          p.createdAt,
		UpdatedAt:          p.updatedAt,
		Version:            p.version,
	}
}

// Restore rebuilds a project loaded from storage without validation.
func Restore(s State) *Project {
	p := &Project{
		id:                 s.ID,
		customerID:         s.CustomerID,
		title:              s.Title,
		description:        s.Description,
		budget:             s.Budget,
		schedule:           s.Schedule,
		status:             s.Status,
		publishedAt:        copyTime(s.PublishedAt),
		completedAt:        copyTime(s.CompletedAt),
		cancelledAt:        copyTime(s.CancelledAt),
		cancellationReason: s.CancellationReason,
		images:             slices.Clone(s.Images),
		deletedAt:          copyTime(s.DeletedAt),
		deletedBy:          s.DeletedBy,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
		version:            s.Version,
	}
	if s.AcceptedOfferID != nil {
		id := *s.AcceptedOfferID
		p.acceptedOfferID = &id
	}
	for _, st := range s.Offers {
		p.offers = append(p.offers, restoreOffer(st))
	}
	return p
}

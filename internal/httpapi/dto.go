// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package httpapi

import (
	"time"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/money"
	"github.com/craftsmenplatform/craftsmen/internal/project"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,max=128"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Role      string `json:"role" validate:"omitempty,max=20"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=128"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type authResponse struct {
	AccountID             string    `json:"userId"`
	Email                 string    `json:"email"`
	Role                  auth.Role `json:"role"`
	EmailVerified         bool      `json:"emailVerified"`
	TokenType             string    `json:"tokenType"`
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

func newAuthResponse(r *auth.AuthResult) authResponse {
	return authResponse{
		AccountID:             r.AccountID.String(),
		Email:                 r.Email,
		Role:                  r.Role,
		EmailVerified:         r.EmailVerified,
		TokenType:             "Bearer",
		AccessToken:           r.AccessToken,
		AccessTokenExpiresAt:  r.AccessTokenExpiresAt,
		RefreshToken:          r.RefreshToken,
		RefreshTokenExpiresAt: r.RefreshTokenExpiresAt,
	}
}

type accountResponse struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	Phone         string      `json:"phone,omitempty"`
	Address       *addressDTO `json:"address,omitempty"`
	AvatarURL     string      `json:"avatarUrl,omitempty"`
	Role          auth.Role   `json:"role"`
	EmailVerified bool        `json:"emailVerified"`
	Active        bool        `json:"active"`
	LockedUntil   *time.Time  `json:"lockedUntil,omitempty"`
	LastLoginAt   *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func newAccountResponse(a *auth.Account) accountResponse {
	var address *addressDTO
	if addr := a.Address(); !addr.IsZero() {
		address = &addressDTO{
			Street:  addr.Street,
			City:    addr.City,
			State:   addr.State,
			ZipCode: addr.ZipCode,
			Country: addr.Country,
		}
	}
	return accountResponse{
		ID:            a.ID().String(),
		Email:         a.Email(),
		FirstName:     a.FirstName(),
		LastName:      a.LastName(),
		Phone:         a.Phone().String(),
		Address:       address,
		AvatarURL:     a.AvatarURL(),
		Role:          a.Role(),
		EmailVerified: a.IsEmailVerified(),
		Active:        a.IsActive(),
		LockedUntil:   a.LockedUntil(),
		LastLoginAt:   a.LastLoginAt(),
		CreatedAt:     a.CreatedAt(),
	}
}

type addressDTO struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state,omitempty" validate:"max=100"`
	ZipCode string `json:"zipCode" validate:"required,max=20"`
	Country string `json:"country" validate:"required,max=100"`
}

// profileRequest is a partial update: omitted fields keep their values.
type profileRequest struct {
	FirstName *string     `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string     `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string     `json:"phone" validate:"omitempty,max=30"`
	Address   *addressDTO `json:"address" validate:"omitempty"`
	AvatarURL *string     `json:"avatarUrl" validate:"omitempty,max=2048"`
}

func (p profileRequest) toUpdate() auth.ProfileUpdate {
	u := auth.ProfileUpdate{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		AvatarURL: p.AvatarURL,
	}
	if p.Address != nil {
		u.Address = &auth.Address{
			Street:  p.Address.Street,
			City:    p.Address.City,
			State:   p.Address.State,
			ZipCode: p.Address.ZipCode,
			Country: p.Address.Country,
		}
	}
	return u
}

type roleRequest struct {
	Role string `json:"role" validate:"required,max=20"`
}

type moneyRequest struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

func (m *moneyRequest) toMoney() (*money.Money, error) {
	if m == nil {
		return nil, nil
	}
	currency := m.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}
	v, err := money.Parse(m.Amount, currency)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type projectRequest struct {
	Title          string        `json:"title" validate:"required,max=200"`
	Description    string        `json:"description" validate:"required,max=5000"`
	BudgetMin      *moneyRequest `json:"budgetMin" validate:"omitempty"`
	BudgetMax      *moneyRequest `json:"budgetMax" validate:"omitempty"`
	PreferredStart *time.Time    `json:"preferredStartDate"`
	Deadline       *time.Time    `json:"deadline"`
}

func (p projectRequest) toDetails() (project.Details, error) {
	lo, err := p.BudgetMin.toMoney()
	if err != nil {
		return project.Details{}, err
	}
	hi, err := p.BudgetMax.toMoney()
	if err != nil {
		return project.Details{}, err
	}
	budget, err := project.NewBudget(lo, hi)
	if err != nil {
		return project.Details{}, err
	}
	schedule, err := project.NewSchedule(p.PreferredStart, p.Deadline)
	if err != nil {
		return project.Details{}, err
	}
	return project.Details{
		Title:       p.Title,
		Description: p.Description,
		Budget:      budget,
		Schedule:    schedule,
	}, nil
}

type offerRequest struct {
	Price                 moneyRequest `json:"price" validate:"required"`
	Description           string       `json:"description" validate:"max=2000"`
	EstimatedDurationDays int          `json:"estimatedDurationDays" validate:"gte=0"`
	TimelineStart         *time.Time   `json:"timelineStart"`
	TimelineEnd           *time.Time   `json:"timelineEnd"`
}

func (o offerRequest) toParams() (project.OfferParams, error) {
	price, err := o.Price.toMoney()
	if err != nil {
		return project.OfferParams{}, err
	}
	params := project.OfferParams{
		Price:                 *price,
		Description:           o.Description,
		EstimatedDurationDays: o.EstimatedDurationDays,
	}
	if o.TimelineStart != nil || o.TimelineEnd != nil {
		var start, end time.Time
		if o.TimelineStart != nil {
			start = *o.TimelineStart
		}
		if o.TimelineEnd != nil {
			end = *o.TimelineEnd
		}
		tl, err := project.NewTimeline(start, end)
		if err != nil {
			return project.OfferParams{}, err
		}
		params.Timeline = &tl
	}
	return params, nil
}

type imageRequest struct {
	URL string `json:"url" validate:"required,url,max=2048"`
}

type budgetResponse struct {
	Min *money.Money `json:"min,omitempty"`
	Max *money.Money `json:"max,omitempty"`
}

func newBudgetResponse(b project.Budget) budgetResponse {
	var out budgetResponse
	if m, ok := b.Min(); ok {
		out.Min = &m
	}
	if m, ok := b.Max(); ok {
		out.Max = &m
	}
	return out
}

type offerResponse struct {
	ID                    string              `json:"id"`
	CraftsmanID           string              `json:"craftsmanId"`
	Price                 money.Money         `json:"price"`
	Description           string              `json:"description,omitempty"`
	EstimatedDurationDays int                 `json:"estimatedDurationDays,omitempty"`
	TimelineStart         *time.Time          `json:"timelineStart,omitempty"`
	TimelineEnd           *time.Time          `json:"timelineEnd,omitempty"`
	Status                project.OfferStatus `json:"status"`
	RejectionReason       string              `json:"rejectionReason,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
	AcceptedAt            *time.Time          `json:"acceptedAt,omitempty"`
	RejectedAt            *time.Time          `json:"rejectedAt,omitempty"`
	WithdrawnAt           *time.Time          `json:"withdrawnAt,omitempty"`
}

func newOfferResponse(o *project.Offer) offerResponse {
	out := offerResponse{
		ID:                    o.ID().String(),
		CraftsmanID:           o.CraftsmanID().String(),
		Price:                 o.Price(),
		Description:           o.Description(),
		EstimatedDurationDays: o.EstimatedDurationDays(),
		Status:                o.Status(),
		RejectionReason:       o.RejectionReason(),
		CreatedAt:             o.CreatedAt(),
		AcceptedAt:            o.AcceptedAt(),
		RejectedAt:            o.RejectedAt(),
		WithdrawnAt:           o.WithdrawnAt(),
	}
	if tl, ok := o.Timeline(); ok {
		out.TimelineStart, out.TimelineEnd = &tl.Start, &tl.End
	}
	return out
}

type imageResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

type projectResponse struct {
	ID                 string          `json:"id"`
	CustomerID         string          `json:"customerId"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Budget             budgetResponse  `json:"budget"`
	PreferredStart     *time.Time      `json:"preferredStartDate,omitempty"`
	Deadline           *time.Time      `json:"deadline,omitempty"`
	Status             project.Status  `json:"status"`
	AcceptedOfferID    *string         `json:"acceptedOfferId,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	OfferCount         int             `json:"offerCount"`
	Offers             []offerResponse `json:"offers"`
	Images             []imageResponse `json:"images"`
	PublishedAt        *time.Time      `json:"publishedAt,omitempty"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Version            int             `json:"version"`
}

// newProjectResponse renders p for viewer. Owners and admins see every
// offer, a craftsman sees only their own and anonymous viewers see none.
func newProjectResponse(p *project.Project, viewer *Principal) projectResponse {
	offers := p.Offers()
	out := projectResponse{
		ID:                 p.ID().String(),
		CustomerID:         p.CustomerID().String(),
		Title:              p.Title(),
		Description:        p.Description(),
		Budget:             newBudgetResponse(p.Budget()),
		PreferredStart:     p.Schedule().PreferredStart(),
		Deadline:           p.Schedule().Deadline(),
		Status:             p.Status(),
		CancellationReason: p.CancellationReason(),
		OfferCount:         len(offers),
		Offers:             []offerResponse{},
		Images:             []imageResponse{},
		PublishedAt:        p.PublishedAt(),
		CompletedAt:        p.CompletedAt(),
		CancelledAt:        p.CancelledAt(),
		CreatedAt:          p.CreatedAt(),
		UpdatedAt:          p.UpdatedAt(),
		Version:            p.Version(),
	}
	if id, ok := p.AcceptedOfferID(); ok {
		s := id.String()
		out.AcceptedOfferID = &s
	}
	for i := range offers {
		o := &offers[i]
		if canSeeOffer(p, o, viewer) {
			out.Offers = append(out.Offers, newOfferResponse(o))
		}
	}
	for _, img := range p.Images() {
		out.Images = append(out.Images, imageResponse{ID: img.ID.String(), URL: img.URL, CreatedAt: img.CreatedAt})
	}
	return out
}

func canSeeOffer(p *project.Project, o *project.Offer, viewer *Principal) bool {
	if viewer == nil {
		return false
	}
	if viewer.Role == auth.RoleAdmin || p.IsOwnedBy(viewer.AccountID) {
		return true
	}
	return o.CraftsmanID() == viewer.AccountID
}

type summaryResponse struct {
	ID             string         `json:"id"`
	CustomerID     string         `json:"customerId"`
	Title          string         `json:"title"`
	Status         project.Status `json:"status"`
	Budget         budgetResponse `json:"budget"`
	PreferredStart *time.Time     `json:"preferredStartDate,omitempty"`
	Deadline       *time.Time     `json:"deadline,omitempty"`
	OfferCount     int            `json:"offerCount"`
	PublishedAt    *time.Time     `json:"publishedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type pagination struct {
	CurrentPage     int  `json:"currentPage"`
	PageSize        int  `json:"pageSize"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

type pagedResponse struct {
	Data       []summaryResponse `json:"data"`
	Pagination pagination        `json:"pagination"`
}

func newPagedResponse(page project.Page) pagedResponse {
	out := pagedResponse{
		Data: make([]summaryResponse, 0, len(page.Items)),
		Pagination: pagination{
			CurrentPage:     page.Page,
			PageSize:        page.PageSize,
			TotalCount:      page.Total,
			TotalPages:      page.TotalPages(),
			HasPreviousPage: page.HasPrevious(),
			HasNextPage:     page.HasNext(),
		},
	}
	for _, s := range page.Items {
		out.Data = append(out.Data, summaryResponse{
			ID:             s.ID.String(),
			CustomerID:     s.CustomerID.String(),
			Title:          s.Title,
			Status:         s.Status,
			Budget:         newBudgetResponse(s.Budget),
			PreferredStart: s.Schedule.PreferredStart(),
			Deadline:       s.Schedule.Deadline(),
			OfferCount:     s.OfferCount,
			PublishedAt:    s.PublishedAt,
			CreatedAt:      s.CreatedAt,
		})
	}
	return out
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/shopspring/decimal"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/project"
)

func viewer(r *http.Request) *Principal {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return &p
	}
	return nil
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := restrictListing(&filter, viewer(r)); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	a.writePage(w, r, filter)
}

func (a *API) myProjects(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	filter.CustomerID = &p.AccountID
	a.writePage(w, r, filter)
}

func (a *API) writePage(w http.ResponseWriter, r *http.Request, filter project.ListFilter) {
	page, err := a.projects.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPagedResponse(page))
}

// restrictListing keeps drafts private. Other callers only browse published
// projects unless they ask for a later status explicitly.
func restrictListing(f *project.ListFilter, v *Principal) error {
	if v != nil && v.Role == auth.RoleAdmin {
		return nil
	}
	if v != nil && f.CustomerID != nil && *f.CustomerID == v.AccountID {
		return nil
	}
	if f.Status == nil {
		published := project.StatusPublished
		f.Status = &published
		return nil
	}
	if *f.Status == project.StatusDraft {
		return oops.Code(CodeForbidden).Errorf("draft projects are only visible to their owner")
	}
	return nil
}

func parseListFilter(q url.Values) (project.ListFilter, error) {
	var f project.ListFilter
	invalid := func(field, value string, err error) error {
		return oops.Code(project.CodeInvalidFilter).With(field, value).Wrapf(err, "invalid %s", field)
	}

	if v := q.Get("status"); v != "" {
		s, err := project.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &s
	}
	if v := q.Get("customerId"); v != "" {
		id, err := ulid.ParseStrict(v)
		if err != nil {
			return f, invalid("customerId", v, err)
		}
		f.CustomerID = &id
	}
	for _, bound := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minBudget", &f.MinBudget}, {"maxBudget", &f.MaxBudget}} {
		v := q.Get(bound.name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, invalid(bound.name, v, err)
		}
		*bound.dst = &d
	}
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"createdAfter", &f.CreatedAfter}, {"createdBefore", &f.CreatedBefore}} {
		v := q.Get(bound.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, invalid(bound.name, v, err)
		}
		*bound.dst = &t
	}
	for _, n := range []struct {
		names []string
		dst   *int
	}{{[]string{"pageNumber", "page"}, &f.Page}, {[]string{"pageSize"}, &f.PageSize}} {
		for _, name := range n.names {
			v := q.Get(name)
			if v == "" {
				continue
			}
			i, err := strconv.Atoi(v)
			if err != nil {
				return f, invalid(name, v, err)
			}
			*n.dst = i
			break
		}
	}
	if v := q.Get("sort"); v != "" {
		orderBy, desc, err := project.ParseSort(v)
		if err != nil {
			return f, err
		}
		f.OrderBy, f.Descending = orderBy, desc
	}
	return f, nil
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, err := a.projects.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	v := viewer(r)
	if p.Status() == project.StatusDraft && (v == nil || !v.Actor().Admin && !p.IsOwnedBy(v.AccountID)) {
		writeCodeError(w, http.StatusNotFound, project.CodeNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(p, v))
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	details, err := req.toDetails()
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	created, err := a.projects.Create(r.Context(), p.Actor(), details)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.Header().Set("Location", "/api/projects/"+created.ID().String())
	writeJSON(w, http.StatusCreated, newProjectResponse(created, &p))
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	details, err := req.toDetails()
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	a.projectCommand(w, r, func(actor project.Actor, id ulid.ULID) (*project.Project, error) {
		return a.projects.Update(r.Context(), actor, id, details)
	})
}

func (a *API) publishProject(w http.ResponseWriter, r *http.Request) {
	a.projectCommand(w, r, func(actor project.Actor, id ulid.ULID) (*project.Project, error) {
		return a.projects.Publish(r.Context(), actor, id)
	})
}

func (a *API) completeProject(w http.ResponseWriter, r *http.Request) {
	a.projectCommand(w, r, func(actor project.Actor, id ulid.ULID) (*project.Project, error) {
		return a.projects.Complete(r.Context(), actor, id)
	})
}

func (a *API) cancelProject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	a.projectCommand(w, r, func(actor project.Actor, id ulid.ULID) (*project.Project, error) {
		return a.projects.Cancel(r.Context(), actor, id, req.Reason)
	})
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	if err := a.projects.Delete(r.Context(), p.Actor(), id); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	img, err := a.projects.AddImage(r.Context(), p.Actor(), id, req.URL)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, imageResponse{ID: img.ID.String(), URL: img.URL, CreatedAt: img.CreatedAt})
}

func (a *API) removeImage(w http.ResponseWriter, r *http.Request) {
	imageID, err := urlID(r, "imageID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	a.projectCommand(w, r, func(actor project.Actor, id ulid.ULID) (*project.Project, error) {
		return a.projects.RemoveImage(r.Context(), actor, id, imageID)
	})
}

func (a *API) submitOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	offer, err := a.projects.SubmitOffer(r.Context(), p.Actor(), id, params)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOfferResponse(&offer))
}

func (a *API) acceptOffer(w http.ResponseWriter, r *http.Request) {
	a.offerCommand(w, r, func(actor project.Actor, id, offerID ulid.ULID) (*project.Project, error) {
		return a.projects.AcceptOffer(r.Context(), actor, id, offerID)
	})
}

func (a *API) rejectOffer(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	a.offerCommand(w, r, func(actor project.Actor, id, offerID ulid.ULID) (*project.Project, error) {
		return a.projects.RejectOffer(r.Context(), actor, id, offerID, req.Reason)
	})
}

func (a *API) withdrawOffer(w http.ResponseWriter, r *http.Request) {
	a.offerCommand(w, r, func(actor project.Actor, id, offerID ulid.ULID) (*project.Project, error) {
		return a.projects.WithdrawOffer(r.Context(), actor, id, offerID)
	})
}

func (a *API) offerCommand(w http.ResponseWriter, r *http.Request, fn func(project.Actor, ulid.ULID, ulid.ULID) (*project.Project, error)) {
	offerID, err := urlID(r, "offerID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	a.projectCommand(w, r, func(actor project.Actor, id ulid.ULID) (*project.Project, error) {
		return fn(actor, id, offerID)
	})
}

// projectCommand runs fn for the project named in the URL and renders the
// resulting project.
func (a *API) projectCommand(w http.ResponseWriter, r *http.Request, fn func(project.Actor, ulid.ULID) (*project.Project, error)) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	updated, err := fn(p.Actor(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(updated, &p))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

//go:build integration

package integration

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/project"
)

type projectView struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	AcceptedOfferID *string `json:"acceptedOfferId"`
	Offers          []struct {
		ID          string `json:"id"`
		CraftsmanID string `json:"craftsmanId"`
		Status      string `json:"status"`
	} `json:"offers"`
}

type offerView struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func newProjectBody(title string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Renovate the attic into a bedroom",
		"budgetMin":   map[string]string{"amount": "80000", "currency": "CZK"},
		"budgetMax":   map[string]string{"amount": "150000", "currency": "CZK"},
	}
}

func newOfferBody(amount string) map[string]any {
	return map[string]any{
		"price":                 map[string]string{"amount": amount, "currency": "CZK"},
		"description":           "Drywall, insulation and flooring",
		"estimatedDurationDays": 21,
	}
}

func eventTypes(aggregateID string) []core.EventType {
	id, err := ulid.Parse(aggregateID)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	events, err := env.events.Replay(context.Background(), id, ulid.ULID{}, 100)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	types := make([]core.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

var _ = Describe("Marketplace", func() {
	Describe("project lifecycle", func() {
		var customer, craftsman, rival session

		BeforeEach(func() {
			customer = register("zakaznik@example.com", "customer")
			craftsman = register("truhlar@example.com", "craftsman")
			rival = register("zednik@example.com", "craftsman")
		})

		It("runs from draft through accepted offer to completion", func() {
			resp := call(http.MethodPost, "/api/projects", customer.AccessToken, newProjectBody("Attic bedroom"))
			Expect(resp.status).To(Equal(http.StatusCreated), string(resp.body))
			var p projectView
			resp.decode(&p)
			Expect(p.Status).To(Equal("draft"))

			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/publish", customer.AccessToken, nil)
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))

			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/offers", craftsman.AccessToken, newOfferBody("120000"))
			Expect(resp.status).To(Equal(http.StatusCreated), string(resp.body))
			var winning offerView
			resp.decode(&winning)

			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/offers", rival.AccessToken, newOfferBody("99000"))
			Expect(resp.status).To(Equal(http.StatusCreated), string(resp.body))
			var losing offerView
			resp.decode(&losing)

			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/offers/"+winning.ID+"/accept", customer.AccessToken, nil)
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))
			resp.decode(&p)
			Expect(p.Status).To(Equal("in_progress"))
			Expect(p.AcceptedOfferID).To(HaveValue(Equal(winning.ID)))

			statuses := map[string]string{}
			for _, o := range p.Offers {
				statuses[o.ID] = o.Status
			}
			Expect(statuses).To(Equal(map[string]string{winning.ID: "accepted", losing.ID: "rejected"}))

			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/complete", customer.AccessToken, nil)
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))

			By("reading the project back from the database")
			resp = call(http.MethodGet, "/api/projects/"+p.ID, "", nil)
			Expect(resp.status).To(Equal(http.StatusOK))
			resp.decode(&p)
			Expect(p.Status).To(Equal("completed"))

			By("checking the event log")
			Expect(eventTypes(p.ID)).To(Equal([]core.EventType{
				core.EventProjectPublished,
				core.EventOfferSubmitted,
				core.EventOfferSubmitted,
				core.EventOfferAccepted,
				core.EventProjectCompleted,
			}))
			Expect(testutil.ToFloat64(env.metrics.DomainEventsTotal.WithLabelValues(string(core.EventOfferAccepted)))).
				To(BeNumerically(">=", 1))
		})

		It("rejects a second offer from the same craftsman", func() {
			resp := call(http.MethodPost, "/api/projects", customer.AccessToken, newProjectBody("Fence"))
			var p projectView
			resp.decode(&p)
			call(http.MethodPost, "/api/projects/"+p.ID+"/publish", customer.AccessToken, nil)

			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/offers", craftsman.AccessToken, newOfferBody("90000"))
			Expect(resp.status).To(Equal(http.StatusCreated))
			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/offers", craftsman.AccessToken, newOfferBody("85000"))
			Expect(resp.status).To(Equal(http.StatusConflict))
			Expect(resp.errorCode()).To(Equal(project.CodeDuplicateOffer))
		})

		It("records the cancellation reason", func() {
			resp := call(http.MethodPost, "/api/projects", customer.AccessToken, newProjectBody("Garage door"))
			var p projectView
			resp.decode(&p)
			call(http.MethodPost, "/api/projects/"+p.ID+"/publish", customer.AccessToken, nil)

			resp = call(http.MethodPost, "/api/projects/"+p.ID+"/cancel", customer.AccessToken,
				map[string]string{"reason": "bought a new house"})
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))

			var cancelled struct {
				Status             string `json:"status"`
				CancellationReason string `json:"cancellationReason"`
			}
			call(http.MethodGet, "/api/projects/"+p.ID, customer.AccessToken, nil).decode(&cancelled)
			Expect(cancelled.Status).To(Equal("cancelled"))
			Expect(cancelled.CancellationReason).To(Equal("bought a new house"))
			Expect(eventTypes(p.ID)).To(ContainElement(core.EventProjectCancelled))
		})

		It("lists published projects page by page", func() {
			for _, title := range []string{"Kitchen", "Bathroom", "Roof"} {
				resp := call(http.MethodPost, "/api/projects", customer.AccessToken, newProjectBody(title))
				var p projectView
				resp.decode(&p)
				call(http.MethodPost, "/api/projects/"+p.ID+"/publish", customer.AccessToken, nil)
			}
			call(http.MethodPost, "/api/projects", customer.AccessToken, newProjectBody("Still a draft"))

			var page struct {
				Data []struct {
					Title string `json:"title"`
				} `json:"data"`
				Pagination struct {
					TotalCount int `json:"totalCount"`
				} `json:"pagination"`
			}
			resp := call(http.MethodGet, "/api/projects?sort=title&pageSize=2", "", nil)
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))
			resp.decode(&page)
			Expect(page.Pagination.TotalCount).To(Equal(3))
			Expect(page.Data).To(HaveLen(2))
			Expect(page.Data[0].Title).To(Equal("Bathroom"))
			Expect(page.Data[1].Title).To(Equal("Kitchen"))

			resp = call(http.MethodGet, "/api/projects/my", customer.AccessToken, nil)
			resp.decode(&page)
			Expect(page.Pagination.TotalCount).To(Equal(4))
		})
	})

	Describe("authentication", func() {
		It("persists the account and emits a registration event", func() {
			s := register("nova@example.com", "customer")
			Expect(eventTypes(s.UserID)).To(Equal([]core.EventType{core.EventAccountRegistered}))

			resp := login("NOVA@example.com", password)
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))
		})

		It("revokes every session when a rotated refresh token is reused", func() {
			s := register("reuse@example.com", "craftsman")

			resp := call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": s.RefreshToken})
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))
			var rotated session
			resp.decode(&rotated)

			resp = call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": s.RefreshToken})
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
			Expect(resp.errorCode()).To(Equal(auth.CodeTokenRevoked))

			resp = call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": rotated.RefreshToken})
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
		})

		It("locks after repeated failures until an admin unlocks", func() {
			s := register("locked@example.com", "customer")
			for range auth.DefaultLockoutThreshold {
				Expect(login("locked@example.com", "Wrong123!").status).To(Equal(http.StatusUnauthorized))
			}

			resp := login("locked@example.com", password)
			Expect(resp.status).To(Equal(http.StatusLocked))
			Expect(resp.errorCode()).To(Equal(auth.CodeAccountLocked))

			resp = call(http.MethodPost, "/api/admin/accounts/"+s.UserID+"/unlock", adminToken(), nil)
			Expect(resp.status).To(Equal(http.StatusNoContent), string(resp.body))

			Expect(login("locked@example.com", password).status).To(Equal(http.StatusOK))
		})

		It("refuses logins to deactivated accounts", func() {
			s := register("gone@example.com", "craftsman")
			resp := call(http.MethodPost, "/api/admin/accounts/"+s.UserID+"/deactivate", adminToken(),
				map[string]string{"reason": "fraud report"})
			Expect(resp.status).To(Equal(http.StatusNoContent), string(resp.body))

			resp = login("gone@example.com", password)
			Expect(resp.status).To(Equal(http.StatusForbidden))
			Expect(resp.errorCode()).To(Equal(auth.CodeAccountDeactivated))
		})
	})
})

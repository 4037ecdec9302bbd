// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/shopspring/decimal"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	authpg "github.com/craftsmenplatform/craftsmen/internal/auth/postgres"
	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/money"
	"github.com/craftsmenplatform/craftsmen/internal/project"
	"github.com/craftsmenplatform/craftsmen/internal/project/postgres"
)

var _ = Describe("ProjectRepository", func() {
	var (
		ctx        context.Context
		repo       *postgres.ProjectRepository
		now        time.Time
		customerID ulid.ULID
		crafters   []ulid.ULID
	)

	seedAccount := func(email string, craftsman bool) ulid.ULID {
		params := auth.NewAccountParams{Email: email, PasswordHash: "hash", FirstName: "A", LastName: "B"}
		var (
			a   *auth.Account
			err error
		)
		if craftsman {
			a, err = auth.NewCraftsman(params, now)
		} else {
			a, err = auth.NewCustomer(params, now)
		}
		Expect(err).NotTo(HaveOccurred())
		Expect(authpg.NewAccountRepository(pg.Pool, nil).Create(ctx, a)).To(Succeed())
		return a.ID()
	}

	czk := func(v int64) *money.Money {
		m := money.MustNew(decimal.NewFromInt(v), "CZK")
		return &m
	}

	newProject := func(title string, lo, hi int64) *project.Project {
		b, err := project.NewBudget(czk(lo), czk(hi))
		Expect(err).NotTo(HaveOccurred())
		p, err := project.New(project.NewParams{
			CustomerID: customerID,
			Details:    project.Details{Title: title, Description: "Work needed", Budget: b},
		}, now)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewProjectRepository(pg.Pool, nil)
		now = time.Now().UTC().Truncate(time.Microsecond)
		customerID = seedAccount("customer@example.com", false)
		crafters = []ulid.ULID{
			seedAccount("one@example.com", true),
			seedAccount("two@example.com", true),
		}
	})

	It("round-trips a project with offers and images", func() {
		p := newProject("Kitchen", 50000, 120000)
		Expect(p.Publish(now)).To(Succeed())
		offer, err := p.AddOffer(project.OfferParams{
			CraftsmanID:           crafters[0],
			Price:                 *czk(80000),
			Description:           "Full renovation",
			EstimatedDurationDays: 14,
		}, now)
		Expect(err).NotTo(HaveOccurred())
		_, err = p.AddImage("https://example.com/kitchen.jpg", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, p)).To(Succeed())

		loaded, err := repo.GetByID(ctx, p.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Status()).To(Equal(project.StatusPublished))
		Expect(loaded.Version()).To(Equal(1))
		lo, ok := loaded.Budget().Min()
		Expect(ok).To(BeTrue())
		Expect(lo.String()).To(Equal("50000.00 CZK"))
		Expect(loaded.Images()).To(HaveLen(1))

		got, ok := loaded.Offer(offer.ID())
		Expect(ok).To(BeTrue())
		Expect(got.Price().String()).To(Equal("80000.00 CZK"))
		Expect(got.EstimatedDurationDays()).To(Equal(14))
		Expect(got.IsPending()).To(BeTrue())
	})

	It("persists acceptance and the rejection cascade", func() {
		p := newProject("Roof", 10000, 90000)
		Expect(p.Publish(now)).To(Succeed())
		first, err := p.AddOffer(project.OfferParams{CraftsmanID: crafters[0], Price: *czk(40000)}, now)
		Expect(err).NotTo(HaveOccurred())
		second, err := p.AddOffer(project.OfferParams{CraftsmanID: crafters[1], Price: *czk(45000)}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, p)).To(Succeed())

		loaded, err := repo.GetByID(ctx, p.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.AcceptOffer(first.ID(), now)).To(Succeed())
		Expect(repo.Save(ctx, loaded)).To(Succeed())

		reloaded, err := repo.GetByID(ctx, p.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Status()).To(Equal(project.StatusInProgress))
		Expect(reloaded.Version()).To(Equal(2))
		rejected, ok := reloaded.Offer(second.ID())
		Expect(ok).To(BeTrue())
		Expect(rejected.Status()).To(Equal(project.OfferRejected))
		Expect(rejected.RejectionReason()).To(Equal(project.ReasonOtherOfferAccepted))
	})

	It("rejects a concurrent second acceptance", func() {
		p := newProject("Fence", 1000, 9000)
		Expect(p.Publish(now)).To(Succeed())
		first, err := p.AddOffer(project.OfferParams{CraftsmanID: crafters[0], Price: *czk(4000)}, now)
		Expect(err).NotTo(HaveOccurred())
		second, err := p.AddOffer(project.OfferParams{CraftsmanID: crafters[1], Price: *czk(5000)}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, p)).To(Succeed())

		a, err := repo.GetByID(ctx, p.ID())
		Expect(err).NotTo(HaveOccurred())
		b, err := repo.GetByID(ctx, p.ID())
		Expect(err).NotTo(HaveOccurred())

		Expect(a.AcceptOffer(first.ID(), now)).To(Succeed())
		Expect(b.AcceptOffer(second.ID(), now)).To(Succeed())
		Expect(repo.Save(ctx, a)).To(Succeed())
		Expect(repo.Save(ctx, b)).To(MatchError(core.ErrConflict))

		final, err := repo.GetByID(ctx, p.ID())
		Expect(err).NotTo(HaveOccurred())
		accepted, ok := final.AcceptedOfferID()
		Expect(ok).To(BeTrue())
		Expect(accepted).To(Equal(first.ID()))
	})

	It("lists live projects with budget filters and offer counts", func() {
		small := newProject("Small", 1000, 5000)
		Expect(small.Publish(now)).To(Succeed())
		_, err := small.AddOffer(project.OfferParams{CraftsmanID: crafters[0], Price: *czk(3000)}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, small)).To(Succeed())

		large := newProject("Large", 100000, 200000)
		Expect(large.Publish(now.Add(time.Second))).To(Succeed())
		Expect(repo.Create(ctx, large)).To(Succeed())

		gone := newProject("Gone", 1000, 2000)
		Expect(gone.MarkDeleted(customerID.String(), now)).To(Succeed())
		Expect(repo.Create(ctx, gone)).To(Succeed())

		minBudget := decimal.NewFromInt(4000)
		maxBudget := decimal.NewFromInt(50000)
		page, err := repo.List(ctx, project.ListFilter{MinBudget: &minBudget, MaxBudget: &maxBudget})
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Total).To(Equal(1))
		Expect(page.Items[0].Title).To(Equal("Small"))
		Expect(page.Items[0].OfferCount).To(Equal(1))

		all, err := repo.List(ctx, project.ListFilter{OrderBy: project.OrderTitle})
		Expect(err).NotTo(HaveOccurred())
		Expect(all.Total).To(Equal(2))
		Expect(all.Items[0].Title).To(Equal("Large"))
	})

	It("hides soft-deleted projects", func() {
		p := newProject("Shed", 1000, 2000)
		Expect(repo.Create(ctx, p)).To(Succeed())

		loaded, err := repo.GetByID(ctx, p.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.MarkDeleted(customerID.String(), now)).To(Succeed())
		Expect(repo.Save(ctx, loaded)).To(Succeed())

		_, err = repo.GetByID(ctx, p.ID())
		Expect(err).To(MatchError(core.ErrNotFound))
	})
})

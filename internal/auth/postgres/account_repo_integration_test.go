// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/auth/postgres"
	"github.com/craftsmenplatform/craftsmen/internal/core"
)

var _ = Describe("AccountRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.AccountRepository
		now  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewAccountRepository(pg.Pool, nil)
		now = time.Now().UTC().Truncate(time.Microsecond)
	})

	newAccount := func(email string) *auth.Account {
		a, err := auth.NewCraftsman(auth.NewAccountParams{
			Email:        email,
			PasswordHash: "hash",
			FirstName:    "Petr",
			LastName:     "Dvořák",
		}, now)
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	It("round-trips an account with refresh tokens", func() {
		account := newAccount("petr@example.com")
		tok, err := auth.NewRefreshToken(account.ID(), "plain-token", now.Add(time.Hour), "10.0.0.1", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.AddRefreshToken(tok, auth.DefaultPolicy(), now)).To(Succeed())
		Expect(repo.Create(ctx, account)).To(Succeed())

		loaded, err := repo.GetByEmail(ctx, "petr@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.ID()).To(Equal(account.ID()))
		Expect(loaded.Role()).To(Equal(auth.RoleCraftsman))
		Expect(loaded.Version()).To(Equal(1))
		Expect(loaded.RefreshTokens()).To(HaveLen(1))

		byToken, err := repo.GetByRefreshToken(ctx, "plain-token")
		Expect(err).NotTo(HaveOccurred())
		Expect(byToken.ID()).To(Equal(account.ID()))
	})

	It("rejects a duplicate email", func() {
		Expect(repo.Create(ctx, newAccount("dup@example.com"))).To(Succeed())
		err := repo.Create(ctx, newAccount("dup@example.com"))
		Expect(err).To(MatchError(auth.ErrEmailTaken))
	})

	It("persists token rotation", func() {
		account := newAccount("rotate@example.com")
		tok, err := auth.NewRefreshToken(account.ID(), "first", now.Add(time.Hour), "10.0.0.1", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.AddRefreshToken(tok, auth.DefaultPolicy(), now)).To(Succeed())
		Expect(repo.Create(ctx, account)).To(Succeed())

		loaded, err := repo.GetByID(ctx, account.ID())
		Expect(err).NotTo(HaveOccurred())
		next, err := auth.NewRefreshToken(account.ID(), "second", now.Add(time.Hour), "10.0.0.1", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.RotateRefreshToken("first", next, auth.DefaultPolicy(), now)).To(Succeed())
		Expect(repo.Save(ctx, loaded)).To(Succeed())

		reloaded, err := repo.GetByRefreshToken(ctx, "first")
		Expect(err).NotTo(HaveOccurred())
		old, ok := reloaded.FindRefreshToken("first")
		Expect(ok).To(BeTrue())
		Expect(old.WasRotated()).To(BeTrue())
		Expect(reloaded.ActiveRefreshTokens(now)).To(HaveLen(1))
		Expect(reloaded.Version()).To(Equal(2))
	})

	It("detects concurrent modification", func() {
		account := newAccount("race@example.com")
		Expect(repo.Create(ctx, account)).To(Succeed())

		first, err := repo.GetByID(ctx, account.ID())
		Expect(err).NotTo(HaveOccurred())
		second, err := repo.GetByID(ctx, account.ID())
		Expect(err).NotTo(HaveOccurred())

		Expect(first.VerifyEmail(now)).To(Succeed())
		Expect(repo.Save(ctx, first)).To(Succeed())

		Expect(second.Deactivate("spam", now)).To(Succeed())
		Expect(repo.Save(ctx, second)).To(MatchError(core.ErrConflict))
	})

	It("persists profile changes", func() {
		account := newAccount("profile@example.com")
		Expect(repo.Create(ctx, account)).To(Succeed())

		loaded, err := repo.GetByID(ctx, account.ID())
		Expect(err).NotTo(HaveOccurred())
		phone, avatar := "+420 777 123 456", "https://cdn.example.com/petr.png"
		Expect(loaded.UpdateProfile(auth.ProfileUpdate{
			Phone:     &phone,
			Address:   &auth.Address{Street: "Dlouhá 12", City: "Praha", ZipCode: "110 00", Country: "CZ", State: "Praha"},
			AvatarURL: &avatar,
		}, now)).To(Succeed())
		_, err = loaded.ChangeRole(auth.RoleCustomer, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Save(ctx, loaded)).To(Succeed())

		reloaded, err := repo.GetByID(ctx, account.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Phone()).To(Equal(auth.PhoneNumber("+420777123456")))
		Expect(reloaded.Address().State).To(Equal("Praha"))
		Expect(reloaded.AvatarURL()).To(Equal(avatar))
		Expect(reloaded.Role()).To(Equal(auth.RoleCustomer))
	})

	It("prunes refresh tokens past the retention window", func() {
		account := newAccount("prune@example.com")
		old, err := auth.NewRefreshToken(account.ID(), "old", now.Add(-48*time.Hour), "10.0.0.1", now.Add(-72*time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(account.AddRefreshToken(old, auth.DefaultPolicy(), now.Add(-72*time.Hour))).To(Succeed())
		Expect(repo.Create(ctx, account)).To(Succeed())

		short := postgres.NewAccountRepository(pg.Pool, nil, postgres.WithTokenRetention(24*time.Hour))
		loaded, err := short.GetByID(ctx, account.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.RefreshTokens()).To(BeEmpty())

		Expect(loaded.VerifyEmail(now)).To(Succeed())
		Expect(short.Save(ctx, loaded)).To(Succeed())

		var n int
		Expect(pg.Pool.QueryRow(ctx, `SELECT count(*) FROM refresh_tokens WHERE account_id = $1`,
			account.ID().String()).Scan(&n)).To(Succeed())
		Expect(n).To(BeZero())
	})

	It("hides soft-deleted accounts", func() {
		account := newAccount("gone@example.com")
		Expect(repo.Create(ctx, account)).To(Succeed())
		Expect(account.MarkDeleted("admin", now)).To(Succeed())
		Expect(repo.Save(ctx, account)).To(Succeed())

		_, err := repo.GetByID(ctx, account.ID())
		Expect(err).To(MatchError(core.ErrNotFound))
	})
})

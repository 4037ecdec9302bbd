// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/craftsmenplatform/craftsmen/internal/store"
	"github.com/craftsmenplatform/craftsmen/internal/store/storetest"
)

var _ = Describe("Migrator", func() {
	var (
		pg       *storetest.Postgres
		migrator *store.Migrator
	)

	BeforeEach(func() {
		var err error
		pg, err = storetest.StartPostgres(context.Background())
		Expect(err).NotTo(HaveOccurred())
		migrator, err = store.NewMigrator(pg.URL)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(migrator.Close()).To(Succeed())
		pg.Close()
	})

	version := func() uint {
		v, dirty, err := migrator.Version()
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		ExpectWithOffset(1, dirty).To(BeFalse())
		return v
	}

	It("walks the schema down and back up", func() {
		latest := version()
		Expect(latest).To(BeNumerically(">", 0))
		Expect(migrator.PendingMigrations()).To(BeEmpty())

		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(version()).To(Equal(latest - 1))
		Expect(migrator.PendingMigrations()).To(Equal([]uint{latest}))

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(version()).To(Equal(latest))

		Expect(migrator.Down()).To(Succeed())
		Expect(version()).To(BeZero())
		Expect(migrator.AppliedMigrations()).To(BeEmpty())

		Expect(migrator.Up()).To(Succeed())
		Expect(version()).To(Equal(latest))
		Expect(migrator.Up()).To(Succeed(), "a second Up is a no-op")
	})

	It("forces a version without running migrations", func() {
		Expect(migrator.Force(2)).To(Succeed())
		Expect(version()).To(Equal(uint(2)))

		_, err := pg.Pool.Exec(context.Background(), `SELECT 1 FROM domain_events LIMIT 1`)
		Expect(err).NotTo(HaveOccurred(), "tables of later migrations are untouched")
	})
})

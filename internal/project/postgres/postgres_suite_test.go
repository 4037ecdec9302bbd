// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/craftsmenplatform/craftsmen/internal/store/storetest"
)

var pg *storetest.Postgres

func TestProjectPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Project Postgres Suite")
}

var _ = BeforeSuite(func() {
	var err error
	pg, err = storetest.StartPostgres(context.Background())
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pg != nil {
		pg.Close()
	}
})

var _ = BeforeEach(func() {
	Expect(pg.Truncate(context.Background())).To(Succeed())
})

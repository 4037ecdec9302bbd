// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

//go:build tools

// Package main pins tool and test dependencies to go.mod.
package main

import (
	// ginkgo CLI for the integration suites
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "github.com/onsi/gomega"
	_ "github.com/stretchr/testify/require"
)

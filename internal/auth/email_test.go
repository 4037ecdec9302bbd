// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"lower-cases", "A@X.COM", "a@x.com", false},
		{"trims", "  a@x.com\t", "a@x.com", false},
		{"subdomain", "jan@mail.example.cz", "jan@mail.example.cz", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"no at", "ax.com", "", true},
		{"no dot in domain", "a@x", "", true},
		{"inner space", "a b@x.com", "", true},
		{"too long", strings.Repeat("a", 250) + "@x.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.NormalizeEmail(tt.in)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, auth.CodeInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

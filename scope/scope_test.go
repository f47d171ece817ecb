// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSatisfied(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		requested []string
		granted   []string
		want      bool
	}{
		{
			name:    "empty-requested-empty-granted",
			want:    true,
			granted: nil,
		},
		{
			name:    "empty-requested",
			granted: []string{"email"},
			want:    true,
		},
		{
			name:      "missing-one",
			requested: []string{"drive.readonly"},
			want:      false,
		},
		{
			name:      "exact",
			requested: []string{"email", "profile"},
			granted:   []string{"profile", "email"},
			want:      true,
		},
		{
			name:      "superset",
			requested: []string{"email"},
			granted:   []string{"openid", "profile", "email"},
			want:      true,
		},
		{
			name:      "partial",
			requested: []string{"email", "drive.readonly"},
			granted:   []string{"email"},
			want:      false,
		},
		{
			name:      "case-sensitive",
			requested: []string{"Email"},
			granted:   []string{"email"},
			want:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSatisfied(tt.requested, tt.granted))
			// a sign-in failing the check reports what's missing
			assert.Equal(t, tt.want, len(Missing(tt.requested, tt.granted)) == 0)
		})
	}
}

func TestMissing(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Nil(Missing(nil, []string{"email"}))
	assert.Equal([]string{"drive.readonly", "calendar"}, Missing([]string{"email", "drive.readonly", "calendar", "drive.readonly"}, []string{"email"}))
}

func TestParseJoin(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal([]string{"openid", "email"}, Parse("  openid   email "))
	assert.Empty(Parse(""))
	assert.Equal("openid email", Join([]string{"openid", "", "email", "openid"}))
	assert.Nil(Dedup(nil))
	assert.Equal([]string{}, Dedup([]string{" ", ""}))
}

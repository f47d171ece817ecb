// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		baseURL   string
		clientID  string
		opts      []Option
		want      *Config
		wantErr   bool
		wantIsErr error
	}{
		{
			name:     "valid",
			baseURL:  "https://tenant.example.com/",
			clientID: "client",
			opts:     []Option{WithScope("openid offline_access"), WithAudience("api")},
			want: &Config{
				BaseURL:  "https://tenant.example.com",
				ClientID: "client",
				Scope:    "openid offline_access",
				Audience: "api",
			},
		},
		{
			name:      "missing-client-id",
			baseURL:   "https://tenant.example.com",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "missing-base-url",
			clientID:  "client",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "bad-scheme",
			baseURL:   "ftp://tenant.example.com",
			clientID:  "client",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "no-host",
			baseURL:   "https://",
			clientID:  "client",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.baseURL, tt.clientID, tt.opts...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_Validate_nil(t *testing.T) {
	t.Parallel()
	var c *Config
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilParameter)
}

func TestConfig_HTTPClient(t *testing.T) {
	t.Parallel()
	t.Run("system-ca", func(t *testing.T) {
		c := &Config{BaseURL: "https://example.com", ClientID: "client"}
		hc, err := c.HTTPClient()
		require.NoError(t, err)
		assert.NotNil(t, hc.Transport)
	})
	t.Run("bad-ca", func(t *testing.T) {
		c := &Config{BaseURL: "https://example.com", ClientID: "client", CACert: "not a pem"}
		_, err := c.HTTPClient()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCACert)
	})
	t.Run("default-scope", func(t *testing.T) {
		c := &Config{}
		assert.Equal(t, DefaultScope, c.scope())
	})
}

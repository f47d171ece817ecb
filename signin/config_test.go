// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"testing"

	"github.com/hashicorp/fedsignin/exchange"
	"github.com/hashicorp/fedsignin/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	gf := native.ConsentGatewayFactory(func(native.GatewayRequest) (native.Platform, error) {
		return native.NewTestPlatform(), nil
	})
	ex := &testExchanger{}
	tests := []struct {
		name      string
		gf        native.GatewayFactory
		ex        exchange.Exchanger
		opts      []Option
		want      *Config
		wantErr   bool
		wantIsErr error
	}{
		{
			name: "defaults",
			gf:   gf,
			ex:   ex,
			want: &Config{
				Exchanger:         ex,
				Target:            DefaultTarget,
				RememberLastLogin: true,
			},
		},
		{
			name: "with-options",
			gf:   gf,
			ex:   ex,
			opts: []Option{
				WithTarget("custom-connection"),
				WithScopes("email", "profile"),
				WithRememberLastLogin(false),
				WithRequiredPermissions("GET_ACCOUNTS"),
				nil,
			},
			want: &Config{
				Exchanger:           ex,
				Target:              "custom-connection",
				Scopes:              []string{"email", "profile"},
				RequiredPermissions: []string{"GET_ACCOUNTS"},
			},
		},
		{
			name:      "missing-gateway-factory",
			ex:        ex,
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "missing-exchanger",
			gf:        gf,
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "empty-target",
			gf:        gf,
			ex:        ex,
			opts:      []Option{WithTarget("")},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "orchestrator-options-ignored",
			gf:   gf,
			ex:   ex,
			opts: []Option{WithBindingKey("ignored"), WithLogger(nil)},
			want: &Config{
				Exchanger:         ex,
				Target:            DefaultTarget,
				RememberLastLogin: true,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.gf, tt.ex, tt.opts...)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(got)
				if tt.wantIsErr != nil {
					assert.ErrorIs(err, tt.wantIsErr)
				}
				return
			}
			require.NoError(err)
			assert.NotNil(got.GatewayFactory)
			got.GatewayFactory = nil
			assert.Equal(tt.want, got)
		})
	}
}

func Test_getOrchestratorOpts(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	opts := getOrchestratorOpts()
	assert.NotNil(opts.withLogger)
	assert.NotNil(opts.withExecutor)
	assert.NotNil(opts.withClock)
	assert.Nil(opts.withBindingStore)
	assert.Nil(opts.withMetrics)
	assert.Equal(DefaultTarget, opts.withBindingKey)
	assert.Equal(DefaultBindingTTL, opts.withBindingTTL)
	assert.Equal(DefaultBindingExpirySkew, opts.withExpirySkew)

	// nil values fall back to the defaults
	opts = getOrchestratorOpts(WithLogger(nil), WithExecutor(nil), WithClock(nil), WithBindingKey(""))
	assert.NotNil(opts.withLogger)
	assert.NotNil(opts.withExecutor)
	assert.NotNil(opts.withClock)
	assert.Equal(DefaultTarget, opts.withBindingKey)

	store := NewMemoryStore()
	opts = getOrchestratorOpts(WithBindingStore(store), WithBindingKey("key"), WithExpirySkew(0), WithTarget("ignored"))
	assert.Same(store, opts.withBindingStore)
	assert.Equal("key", opts.withBindingKey)
	assert.Zero(opts.withExpirySkew)
}

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testConsentRC    = 9001
	testResolutionRC = 9002
)

type testListener struct {
	mu      sync.Mutex
	results []Result
}

func (l *testListener) listen(_ context.Context, r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *testListener) Results() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Result(nil), l.results...)
}

func testGateway(t *testing.T, p *TestPlatform, discard bool) (*ConsentGateway, *TestHost, *testListener) {
	t.Helper()
	h := &TestHost{}
	l := &testListener{}
	g, err := NewConsentGateway(p, GatewayRequest{
		Host:               h,
		Scopes:             []string{"openid", "email"},
		SessionID:          "test-session",
		DiscardOnReconnect: discard,
		Listener:           l.listen,
	}, WithExecutor(SyncExecutor))
	require.NoError(t, err)
	return g, h, l
}

func TestNewConsentGateway(t *testing.T) {
	t.Parallel()
	h := &TestHost{}
	listener := func(context.Context, Result) {}
	tests := []struct {
		name      string
		platform  Platform
		req       GatewayRequest
		wantErr   bool
		wantIsErr error
	}{
		{
			name:     "valid",
			platform: NewTestPlatform(),
			req:      GatewayRequest{Host: h, Listener: listener},
		},
		{
			name:      "nil-platform",
			req:       GatewayRequest{Host: h, Listener: listener},
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "nil-host",
			platform:  NewTestPlatform(),
			req:       GatewayRequest{Listener: listener},
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "nil-listener",
			platform:  NewTestPlatform(),
			req:       GatewayRequest{Host: h},
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			g, err := NewConsentGateway(tt.platform, tt.req)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(g)
				if tt.wantIsErr != nil {
					assert.ErrorIs(err, tt.wantIsErr)
				}
				return
			}
			require.NoError(err)
			assert.NotNil(g)
		})
	}
}

func TestConsentGatewayFactory(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	req := GatewayRequest{Host: &TestHost{}, Listener: func(context.Context, Result) {}}

	var got GatewayRequest
	f := ConsentGatewayFactory(func(r GatewayRequest) (Platform, error) {
		got = r
		return NewTestPlatform(), nil
	})
	g, err := f(req)
	require.NoError(err)
	assert.NotNil(g)
	assert.Equal(req.Host, got.Host)

	_, err = ConsentGatewayFactory(nil)(req)
	assert.ErrorIs(err, ErrNilParameter)

	_, err = ConsentGatewayFactory(func(GatewayRequest) (Platform, error) {
		return nil, errors.New("no platform")
	})(req)
	assert.ErrorContains(err, "no platform")
}

func TestConsentGateway_ConnectAndRequestAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("connects-then-launches-consent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		g, h, l := testGateway(t, p, false)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		assert.Equal(1, p.Connects())
		launches := h.Launches()
		require.Len(launches, 1)
		assert.Equal(testConsentRC, launches[0].RequestCode)
		assert.Equal(LaunchConsent, launches[0].Request.Kind)
		assert.Empty(l.Results())
		assert.Equal(0, p.SignOuts())
	})
	t.Run("already-connected", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetConnected(true)
		g, h, _ := testGateway(t, p, false)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		assert.Equal(0, p.Connects())
		assert.Len(h.Launches(), 1)
	})
	t.Run("connecting", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetConnecting(true)
		g, h, _ := testGateway(t, p, false)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		assert.Equal(0, p.Connects())
		assert.Empty(h.Launches())
	})
	t.Run("discard-last-login", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		g, h, _ := testGateway(t, p, true)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		assert.Equal(1, p.SignOuts())
		assert.Len(h.Launches(), 1)
	})
	t.Run("equal-request-codes", func(t *testing.T) {
		g, _, _ := testGateway(t, NewTestPlatform(), false)
		err := g.ConnectAndRequestAccount(ctx, testConsentRC, testConsentRC)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("disconnected", func(t *testing.T) {
		g, _, _ := testGateway(t, NewTestPlatform(), false)
		g.Disconnect()
		err := g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC)
		assert.ErrorIs(t, err, ErrDisconnected)
	})
	t.Run("connection-failure-with-resolution", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		res := &LaunchRequest{Kind: LaunchRecovery, Status: StatusServiceUpdating}
		p.SetResolution(StatusServiceUpdating, res)
		p.SetConnectFailure(&ConnectionFailure{Status: StatusServiceUpdating})
		g, h, l := testGateway(t, p, false)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		assert.Empty(h.Launches())
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultError, results[0].Kind)
		assert.Error(results[0].Err)
		require.NotNil(results[0].Recovery)
		assert.True(results[0].Recovery.Resolvable())
		assert.Equal(testResolutionRC, results[0].Recovery.RequestCode)
		assert.Equal(res, results[0].Recovery.Request)
	})
	t.Run("connection-failure-unresolvable", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetConnectFailure(&ConnectionFailure{Status: StatusServiceInvalid, Err: errors.New("bad signature")})
		g, _, l := testGateway(t, p, false)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		results := l.Results()
		require.Len(results, 1)
		assert.False(results[0].Recovery.Resolvable())
		assert.ErrorContains(results[0].Err, "bad signature")
	})
	t.Run("consent-request-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetConsentError(errors.New("no consent url"))
		g, h, l := testGateway(t, p, false)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		assert.Empty(h.Launches())
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultError, results[0].Kind)
		assert.ErrorContains(results[0].Err, "no consent url")
	})
	t.Run("host-launch-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		g, h, l := testGateway(t, p, false)
		h.SetError(errors.New("no browser"))
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		results := l.Results()
		require.Len(results, 1)
		assert.ErrorContains(results[0].Err, "no browser")
		// nothing is awaiting consent, so a late result is consumed and ignored
		assert.True(g.ParseResult(ctx, testConsentRC, ResultOK, nil))
		assert.Len(l.Results(), 1)
	})
}

func TestConsentGateway_ParseResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	payload := url.Values{"code": []string{"test-code"}}

	connected := func(t *testing.T, p *TestPlatform) (*ConsentGateway, *testListener) {
		t.Helper()
		g, _, l := testGateway(t, p, false)
		require.NoError(t, g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		return g, l
	}

	t.Run("account", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		g, l := connected(t, p)
		require.True(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultAccount, results[0].Kind)
		assert.Equal("test-platform-token", results[0].Account.Token)
		assert.Equal([]Payload{payload}, p.Payloads())
	})
	t.Run("cancelled", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		g, l := connected(t, p)
		require.True(g.ParseResult(ctx, testConsentRC, ResultCanceled, nil))
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultCancelled, results[0].Kind)
		assert.Empty(p.Payloads())
	})
	t.Run("denied", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetParseError(ErrConsentDenied)
		g, l := connected(t, p)
		require.True(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultCancelled, results[0].Kind)
	})
	t.Run("parse-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetParseError(errors.New("bad id token"))
		g, l := connected(t, p)
		require.True(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultError, results[0].Kind)
		assert.Nil(results[0].Recovery)
		assert.ErrorContains(results[0].Err, "bad id token")
	})
	t.Run("no-account", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetAccount(nil)
		g, l := connected(t, p)
		require.True(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultError, results[0].Kind)
	})
	t.Run("other-request-code", func(t *testing.T) {
		assert := assert.New(t)
		g, l := connected(t, NewTestPlatform())
		assert.False(g.ParseResult(ctx, testResolutionRC, ResultOK, payload))
		assert.False(g.ParseResult(ctx, 1, ResultOK, payload))
		assert.Empty(l.Results())
	})
	t.Run("duplicate", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		g, l := connected(t, NewTestPlatform())
		require.True(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		require.True(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		assert.Len(l.Results(), 1)
	})
	t.Run("after-disconnect", func(t *testing.T) {
		assert := assert.New(t)
		g, l := connected(t, NewTestPlatform())
		g.Disconnect()
		assert.False(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		assert.Empty(l.Results())
	})
}

func TestConsentGateway_DisconnectDropsLateResults(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()

	var pending []func()
	deferred := func(fn func()) { pending = append(pending, fn) }

	p := NewTestPlatform()
	h := &TestHost{}
	l := &testListener{}
	g, err := NewConsentGateway(p, GatewayRequest{Host: h, Listener: l.listen}, WithExecutor(deferred))
	require.NoError(err)
	require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
	for len(pending) > 0 {
		fn := pending[0]
		pending = pending[1:]
		fn()
	}
	require.Len(h.Launches(), 1)

	require.True(g.ParseResult(ctx, testConsentRC, ResultOK, nil))
	g.Disconnect()
	for len(pending) > 0 {
		fn := pending[0]
		pending = pending[1:]
		fn()
	}
	assert.Empty(l.Results())
	assert.Equal(1, p.Disconnects())

	g.Disconnect()
	assert.Equal(1, p.Disconnects())
}

func TestConsentGateway_SignOutAndReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		g, _, _ := testGateway(t, p, false)
		require.NoError(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC))
		require.NoError(g.SignOutAndReset(ctx))
		assert.Equal(1, p.SignOuts())
		assert.Equal(1, p.Disconnects())
		assert.False(p.IsConnected())
		assert.ErrorIs(g.ConnectAndRequestAccount(ctx, testConsentRC, testResolutionRC), ErrDisconnected)
	})
	t.Run("sign-out-error", func(t *testing.T) {
		assert := assert.New(t)
		p := NewTestPlatform()
		p.SetSignOutError(errors.New("revoke failed"))
		g, _, _ := testGateway(t, p, false)
		err := g.SignOutAndReset(ctx)
		assert.ErrorContains(err, "revoke failed")
		assert.Equal(1, p.Disconnects())
	})
}

func TestConsentGateway_CapabilityStatus(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	p := NewTestPlatform()
	g, _, _ := testGateway(t, p, false)
	assert.Equal(StatusSuccess, g.CapabilityStatus(context.Background()))
	p.SetAvailability(StatusServiceDisabled)
	assert.Equal(StatusServiceDisabled, g.CapabilityStatus(context.Background()))

	a := g.RecoveryAction(StatusSuccess, testResolutionRC)
	assert.Nil(a.Request)
	assert.False(a.Resolvable())
}

func TestConsentGateway_AwaitConsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	payload := url.Values{"code": []string{"test-code"}}

	t.Run("result-without-launch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		g, h, l := testGateway(t, p, false)
		require.NoError(g.AwaitConsent(ctx, testConsentRC, testResolutionRC))
		assert.Equal(1, p.Connects())
		assert.Empty(h.Launches())
		assert.Equal(0, p.ConsentRequests())

		require.True(g.ParseResult(ctx, testConsentRC, ResultOK, payload))
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultAccount, results[0].Kind)
	})
	t.Run("already-connected", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetConnected(true)
		g, h, _ := testGateway(t, p, false)
		require.NoError(g.AwaitConsent(ctx, testConsentRC, testResolutionRC))
		assert.Equal(0, p.Connects())
		assert.Empty(h.Launches())
	})
	t.Run("connection-failure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := NewTestPlatform()
		p.SetConnectFailure(&ConnectionFailure{Status: StatusNetworkError})
		g, _, l := testGateway(t, p, false)
		require.NoError(g.AwaitConsent(ctx, testConsentRC, testResolutionRC))
		results := l.Results()
		require.Len(results, 1)
		assert.Equal(ResultError, results[0].Kind)
		assert.Equal(StatusNetworkError, results[0].Recovery.Status)
	})
	t.Run("equal-request-codes", func(t *testing.T) {
		g, _, _ := testGateway(t, NewTestPlatform(), false)
		assert.ErrorIs(t, g.AwaitConsent(ctx, testConsentRC, testConsentRC), ErrInvalidParameter)
	})
}

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"sync"
)

// TestPlatform is a scriptable Platform for tests. Connect reports its
// outcome synchronously. The zero value is not usable, use NewTestPlatform.
type TestPlatform struct {
	mu sync.Mutex

	availability   Status
	connectFailure *ConnectionFailure
	account        *Account
	parseErr       error
	consentErr     error
	consentState   []byte
	signOutErr     error
	resolutions    map[Status]*LaunchRequest

	connected  bool
	connecting bool

	connects    int
	disconnects int
	signOuts    int
	consents    int
	payloads    []Payload
}

// ensure that TestPlatform implements the Platform interface
var _ Platform = (*TestPlatform)(nil)

// NewTestPlatform returns a platform which is available, connects and
// returns a default account.
func NewTestPlatform() *TestPlatform {
	return &TestPlatform{
		availability: StatusSuccess,
		account: &Account{
			Token:         "test-platform-token",
			GrantedScopes: []string{"openid", "email", "profile"},
			Subject:       "test-subject",
			Email:         "test@example.com",
		},
		resolutions: map[Status]*LaunchRequest{},
	}
}

// SetAvailability sets the status Availability returns.
func (p *TestPlatform) SetAvailability(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availability = s
}

// SetConnectFailure makes Connect fail with f. A nil f makes it succeed.
func (p *TestPlatform) SetConnectFailure(f *ConnectionFailure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectFailure = f
}

// SetConnected sets whether the platform is already connected.
func (p *TestPlatform) SetConnected(c bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = c
}

// SetConnecting sets whether a connection is in progress.
func (p *TestPlatform) SetConnecting(c bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connecting = c
}

// SetAccount sets the account ParseConsent returns.
func (p *TestPlatform) SetAccount(a *Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account = a
}

// SetParseError sets the error ParseConsent returns.
func (p *TestPlatform) SetParseError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parseErr = err
}

// SetConsentError sets the error ConsentRequest returns.
func (p *TestPlatform) SetConsentError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consentErr = err
}

// SetConsentState sets the State of the requests ConsentRequest returns.
func (p *TestPlatform) SetConsentState(state []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consentState = state
}

// SetSignOutError sets the error SignOut returns.
func (p *TestPlatform) SetSignOutError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutErr = err
}

// SetResolution sets the UI ResolutionRequest returns for s.
func (p *TestPlatform) SetResolution(s Status, req *LaunchRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolutions[s] = req
}

// Availability implements Platform.
func (p *TestPlatform) Availability(_ context.Context) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availability
}

// Connect implements Platform.
func (p *TestPlatform) Connect(ctx context.Context, cb ConnectionCallbacks) {
	p.mu.Lock()
	p.connects++
	f := p.connectFailure
	p.connected = f == nil
	p.connecting = false
	p.mu.Unlock()
	if f != nil {
		cb.OnConnectionFailed(ctx, *f)
		return
	}
	cb.OnConnected(ctx)
}

// IsConnected implements Platform.
func (p *TestPlatform) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// IsConnecting implements Platform.
func (p *TestPlatform) IsConnecting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connecting
}

// Disconnect implements Platform.
func (p *TestPlatform) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	p.connected = false
}

// ConsentRequest implements Platform.
func (p *TestPlatform) ConsentRequest(_ context.Context) (*LaunchRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consents++
	if p.consentErr != nil {
		return nil, p.consentErr
	}
	return &LaunchRequest{
		Kind:  LaunchConsent,
		URL:   "https://consent.example.com",
		State: append([]byte(nil), p.consentState...),
	}, nil
}

// ResolutionRequest implements Platform.
func (p *TestPlatform) ResolutionRequest(s Status) *LaunchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolutions[s]
}

// ParseConsent implements Platform.
func (p *TestPlatform) ParseConsent(_ context.Context, payload Payload) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	if p.account == nil {
		return nil, nil
	}
	a := *p.account
	return &a, nil
}

// SignOut implements Platform.
func (p *TestPlatform) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return p.signOutErr
}

// Connects returns the number of Connect calls.
func (p *TestPlatform) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}

// Disconnects returns the number of Disconnect calls.
func (p *TestPlatform) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// SignOuts returns the number of SignOut calls.
func (p *TestPlatform) SignOuts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

// ConsentRequests returns the number of ConsentRequest calls.
func (p *TestPlatform) ConsentRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consents
}

// Payloads returns the payloads passed to ParseConsent.
func (p *TestPlatform) Payloads() []Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Payload(nil), p.payloads...)
}

// TestLaunch is a launch recorded by a TestHost.
type TestLaunch struct {
	RequestCode int
	Request     *LaunchRequest
}

// TestHost is a Host which records its launches.
type TestHost struct {
	mu       sync.Mutex
	launches []TestLaunch
	err      error
}

// ensure that TestHost implements the Host interface
var _ Host = (*TestHost)(nil)

// Launch implements Host.
func (h *TestHost) Launch(_ context.Context, requestCode int, req *LaunchRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.launches = append(h.launches, TestLaunch{RequestCode: requestCode, Request: req})
	return nil
}

// SetError makes Launch fail with err.
func (h *TestHost) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Launches returns the recorded launches.
func (h *TestHost) Launches() []TestLaunch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TestLaunch(nil), h.launches...)
}

// SyncExecutor runs fn on the calling goroutine. Use it with WithExecutor
// to make gateway deliveries deterministic in tests.
func SyncExecutor(fn func()) { fn() }

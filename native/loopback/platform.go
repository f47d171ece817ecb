// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package loopback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/fedsignin/native"
	"github.com/hashicorp/fedsignin/scope"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// Platform is a native.Platform backed by an OIDC identity provider. The
// consent UI is the provider's authorization page opened in the system
// browser; the provider redirects back to a listener on the loopback
// interface.
type Platform struct {
	conf     *Config
	client   *http.Client
	scopes   []string
	state    string
	nonce    string
	logger   hclog.Logger
	onResult ResultHandler

	mu          sync.Mutex
	provider    *oidc.Provider
	server      *http.Server
	redirectURL string
	connecting  bool
	verifier    string
	forcePrompt bool

	// restored is the consent state of an earlier platform of this session,
	// applied by the next Connect.
	restored *consentState
}

// ensure that Platform implements the native.Platform interface
var _ native.Platform = (*Platform)(nil)

// consentState is what a pending consent depends on: the provider redirects
// to RedirectURL and the code is only redeemed with Verifier.
type consentState struct {
	Verifier    string `json:"verifier"`
	RedirectURL string `json:"redirect_url"`
}

func parseConsentState(b []byte) (*consentState, error) {
	var st consentState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("platform state is invalid: %s: %w", err, ErrInvalidParameter)
	}
	if st.Verifier == "" {
		return nil, fmt.Errorf("platform state verifier is empty: %w", ErrInvalidParameter)
	}
	u, err := url.Parse(st.RedirectURL)
	if err != nil || u.Scheme != "http" || u.Path == "" {
		return nil, fmt.Errorf("platform state redirect url %q is invalid: %w", st.RedirectURL, ErrInvalidParameter)
	}
	if err := validateListenAddr(u.Host); err != nil {
		return nil, fmt.Errorf("platform state redirect url: %w", err)
	}
	return &st, nil
}

// NewPlatform creates a platform for the session described by req. When
// req.PlatformState is set, the first Connect listens on the redirect URL
// of the restored consent and its code is redeemed with the restored
// verifier.
//
// Supported options: WithLogger, WithResultHandler
func NewPlatform(c *Config, req native.GatewayRequest, opt ...Option) (*Platform, error) {
	const op = "loopback.NewPlatform"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("%s: session id is empty: %w", op, ErrInvalidParameter)
	}
	if req.Nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	if req.SessionID == req.Nonce {
		return nil, fmt.Errorf("%s: session id and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	var restored *consentState
	if len(req.PlatformState) > 0 {
		if restored, err = parseConsentState(req.PlatformState); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	opts := getPlatformOpts(opt...)
	return &Platform{
		conf:     c,
		client:   client,
		scopes:   withOpenID(req.Scopes),
		state:    req.SessionID,
		nonce:    req.Nonce,
		logger:   opts.withLogger,
		onResult: opts.withResultHandler,
		restored: restored,
	}, nil
}

// Factory returns a native.PlatformFactory creating a Platform per session.
func Factory(c *Config, opt ...Option) native.PlatformFactory {
	return func(req native.GatewayRequest) (native.Platform, error) {
		return NewPlatform(c, req, opt...)
	}
}

// Availability implements native.Platform. It runs OIDC discovery against
// the issuer.
func (p *Platform) Availability(ctx context.Context) native.Status {
	if _, err := p.discover(ctx); err != nil {
		s := statusFor(err)
		p.logger.Debug("identity provider is unavailable", "issuer", p.conf.Issuer, "status", s, "error", err)
		return s
	}
	return native.StatusSuccess
}

// Connect implements native.Platform. It starts the redirect listener and
// reports the outcome to cb before returning.
func (p *Platform) Connect(ctx context.Context, cb native.ConnectionCallbacks) {
	const op = "loopback.(Platform).Connect"
	p.mu.Lock()
	if p.server != nil {
		p.mu.Unlock()
		cb.OnConnected(ctx)
		return
	}
	p.connecting = true
	restored := p.restored
	p.mu.Unlock()

	addr, path := p.conf.listenAddr(), p.conf.callbackPath()
	if restored != nil {
		// parseConsentState already validated the URL
		u, _ := url.Parse(restored.RedirectURL)
		addr, path = u.Host, u.Path
	}

	fail := func(s native.Status, err error) {
		p.mu.Lock()
		p.connecting = false
		p.mu.Unlock()
		cb.OnConnectionFailed(ctx, native.ConnectionFailure{Status: s, Err: fmt.Errorf("%s: %w", op, err)})
	}
	if _, err := p.discover(ctx); err != nil {
		fail(statusFor(err), err)
		return
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		fail(native.StatusInternalError, fmt.Errorf("unable to start redirect listener: %w", err))
		return
	}
	mux := http.NewServeMux()
	mux.Handle(path, p.callbackHandler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	redirectURL := fmt.Sprintf("http://%s%s", l.Addr().String(), path)
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("redirect listener stopped", "error", err)
		}
	}()

	p.mu.Lock()
	p.server = srv
	p.redirectURL = redirectURL
	p.connecting = false
	if restored != nil {
		p.verifier = restored.Verifier
		p.restored = nil
	}
	p.mu.Unlock()
	p.logger.Debug("redirect listener started", "redirect_url", redirectURL, "restored", restored != nil)
	cb.OnConnected(ctx)
}

// IsConnected implements native.Platform.
func (p *Platform) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.server != nil
}

// IsConnecting implements native.Platform.
func (p *Platform) IsConnecting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connecting
}

// Disconnect implements native.Platform. It stops the redirect listener.
func (p *Platform) Disconnect() {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.redirectURL = ""
	p.verifier = ""
	p.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Close(); err != nil {
		p.logger.Warn("unable to stop redirect listener", "error", err)
	}
}

// RedirectURL returns the URL of the redirect listener, or an empty string
// when the platform isn't connected.
func (p *Platform) RedirectURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.redirectURL
}

// ConsentRequest implements native.Platform. The launch URL is the
// provider's authorization URL for this session. The request's State holds
// the PKCE verifier and redirect URL, which NewPlatform restores.
func (p *Platform) ConsentRequest(_ context.Context) (*native.LaunchRequest, error) {
	const op = "loopback.(Platform).ConsentRequest"
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil || p.provider == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConnected)
	}
	p.verifier = oauth2.GenerateVerifier()
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(p.nonce),
		oauth2.S256ChallengeOption(p.verifier),
	}
	if p.forcePrompt {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("prompt", "select_account"))
		p.forcePrompt = false
	}
	if locales := p.conf.uiLocales(); locales != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("ui_locales", locales))
	}
	authURL := p.oauth2Config().AuthCodeURL(p.state, authCodeOpts...)
	state, err := json.Marshal(consentState{Verifier: p.verifier, RedirectURL: p.redirectURL})
	if err != nil {
		return nil, fmt.Errorf("%s: unable to encode consent state: %w", op, err)
	}
	return &native.LaunchRequest{
		Kind: native.LaunchConsent,
		URL:  authURL,
		Params: map[string]string{
			"redirect_uri": p.redirectURL,
		},
		State: state,
	}, nil
}

// ResolutionRequest implements native.Platform. Recoverable problems are
// network related; the resolution is to open the issuer in the browser.
func (p *Platform) ResolutionRequest(s native.Status) *native.LaunchRequest {
	if !s.IsRecoverable() {
		return nil
	}
	return &native.LaunchRequest{
		Kind:   native.LaunchRecovery,
		URL:    p.conf.Issuer,
		Status: s,
	}
}

// ParseConsent implements native.Platform. It exchanges the authorization
// code and verifies the id_token, which becomes the account's token.
func (p *Platform) ParseConsent(ctx context.Context, payload native.Payload) (*native.Account, error) {
	const op = "loopback.(Platform).ParseConsent"
	if payload == nil {
		return nil, fmt.Errorf("%s: payload is nil: %w", op, ErrNilParameter)
	}
	if payload.Get("state") != p.state {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidState)
	}
	if e := payload.Get("error"); e != "" {
		if e == "access_denied" {
			return nil, fmt.Errorf("%s: %w", op, native.ErrConsentDenied)
		}
		return nil, fmt.Errorf("%s: %s: %s: %w", op, e, payload.Get("error_description"), ErrProviderError)
	}
	code := payload.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCode)
	}

	p.mu.Lock()
	if p.server == nil || p.provider == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrNotConnected)
	}
	provider, verifier := p.provider, p.verifier
	oc := p.oauth2Config()
	p.mu.Unlock()

	oidcCtx := oidc.ClientContext(ctx, p.client)
	var exchangeOpts []oauth2.AuthCodeOption
	if verifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(verifier))
	}
	tk, err := oc.Exchange(oidcCtx, code, exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}
	rawIDToken, ok := tk.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingIDToken)
	}
	idToken, err := provider.Verifier(&oidc.Config{
		ClientID:             p.conf.ClientID,
		SupportedSigningAlgs: p.conf.algs(),
	}).Verify(oidcCtx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid id_token: %w", op, err)
	}
	if idToken.Nonce != p.nonce {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to parse id_token claims: %w", op, err)
	}

	granted := p.scopes
	if s, ok := tk.Extra("scope").(string); ok && s != "" {
		granted = scope.Parse(s)
	}
	return &native.Account{
		Token:         rawIDToken,
		GrantedScopes: granted,
		Subject:       idToken.Subject,
		Email:         claims.Email,
	}, nil
}

// SignOut implements native.Platform. The provider's browser session can't
// be revoked from here, so the next consent asks the user to select an
// account instead.
func (p *Platform) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forcePrompt = true
	return nil
}

// discover runs OIDC discovery once per platform.
func (p *Platform) discover(ctx context.Context) (*oidc.Provider, error) {
	const op = "loopback.(Platform).discover"
	p.mu.Lock()
	provider := p.provider
	p.mu.Unlock()
	if provider != nil {
		return provider, nil
	}
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, p.client), p.conf.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.mu.Lock()
	p.provider = provider
	p.mu.Unlock()
	return provider, nil
}

// oauth2Config must be called with p.mu held.
func (p *Platform) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.conf.ClientID,
		ClientSecret: p.conf.ClientSecret,
		RedirectURL:  p.redirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       p.scopes,
	}
}

// statusFor classifies a discovery failure. Transport failures are
// recoverable, a provider that answers with something other than a valid
// discovery document is not.
func statusFor(err error) native.Status {
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return native.StatusNetworkError
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return native.StatusNetworkError
	default:
		return native.StatusServiceInvalid
	}
}

func withOpenID(scopes []string) []string {
	out := []string{oidc.ScopeOpenID}
	for _, s := range scope.Dedup(scopes) {
		if s != oidc.ScopeOpenID {
			out = append(out, s)
		}
	}
	return out
}

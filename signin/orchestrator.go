// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/fedsignin/exchange"
	"github.com/hashicorp/fedsignin/native"
	"github.com/hashicorp/fedsignin/scope"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-uuid"
	"github.com/jonboulle/clockwork"
)

// Orchestrator runs federated sign-in flows: it checks that the native
// consent provider is available, has the user consent through it, verifies
// the granted scopes and exchanges the platform token for a session
// credential with the identity API.
//
// One flow (session) is active at a time. Outcomes are delivered to the
// flow's Callback, never through return values, and a superseded or
// cleared session never delivers anything.
type Orchestrator struct {
	gatewayFactory native.GatewayFactory
	exchanger      exchange.Exchanger
	logger         hclog.Logger
	execute        func(func())
	store          BindingStore
	bindingKey     string
	bindingTTL     time.Duration
	expirySkew     time.Duration
	clock          clockwork.Clock
	metrics        *metrics

	// storeMu orders binding writes, so a save of an earlier phase can't
	// land after the session's binding was deleted.
	storeMu sync.Mutex

	mu          sync.Mutex
	scopes      []string
	target      string
	remember    bool
	permissions []string
	gateway     native.Gateway
	session     *session
	phase       Phase

	// seq numbers sessions, the newest one is the only one attach publishes.
	seq uint64
}

// session is one sign-in flow. Fields other than phase, host, cb, recovery
// and platformState are immutable once the session is published.
type session struct {
	seq          uint64
	id           string
	nonce        string
	host         native.Host
	gateway      native.Gateway
	scopes       []string
	target       string
	remember     bool
	resolutionRC int
	consentRC    int
	createdAt    time.Time

	// ctx is cancelled when the session ends.
	ctx    context.Context
	cancel context.CancelFunc

	phase    Phase
	cb       Callback
	recovery *native.RecoveryAction

	// platformState is the state of the last consent launched for the
	// session, persisted so another gateway can complete that consent.
	platformState []byte
}

// NewOrchestrator creates a new Orchestrator.
//
// Supported options: WithLogger, WithExecutor, WithBindingStore,
// WithBindingKey, WithBindingTTL, WithExpirySkew, WithClock, WithMetrics
func NewOrchestrator(c *Config, opt ...Option) (*Orchestrator, error) {
	const op = "signin.NewOrchestrator"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getOrchestratorOpts(opt...)
	m, err := newMetrics(opts.withMetrics)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to register metrics: %w", op, err)
	}
	return &Orchestrator{
		gatewayFactory: c.GatewayFactory,
		exchanger:      c.Exchanger,
		logger:         opts.withLogger,
		execute:        opts.withExecutor,
		store:          opts.withBindingStore,
		bindingKey:     opts.withBindingKey,
		bindingTTL:     opts.withBindingTTL,
		expirySkew:     opts.withExpirySkew,
		clock:          opts.withClock,
		metrics:        m,
		scopes:         append([]string(nil), c.Scopes...),
		target:         c.Target,
		remember:       c.RememberLastLogin,
		permissions:    append([]string(nil), c.RequiredPermissions...),
	}, nil
}

// SetRequiredCapabilities sets the scopes the user must grant in the next
// flow. An empty, non-nil list accepts whatever is granted.
func (o *Orchestrator) SetRequiredCapabilities(scopes []string) error {
	const op = "signin.(Orchestrator).SetRequiredCapabilities"
	if scopes == nil {
		return fmt.Errorf("%s: scopes are nil: %w", op, ErrNilParameter)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scopes = append([]string{}, scopes...)
	return nil
}

// RequiredCapabilities returns the scopes the user must grant.
func (o *Orchestrator) RequiredCapabilities() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string{}, o.scopes...)
}

// SetExchangeTarget sets the identity API connection for the next flow.
func (o *Orchestrator) SetExchangeTarget(target string) error {
	const op = "signin.(Orchestrator).SetExchangeTarget"
	if target == "" {
		return fmt.Errorf("%s: target is empty: %w", op, ErrInvalidParameter)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.target = target
	return nil
}

// ExchangeTarget returns the identity API connection.
func (o *Orchestrator) ExchangeTarget() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// SetRememberLastLogin sets whether the next flow reuses the last platform
// login or asks the user to select an account again.
func (o *Orchestrator) SetRememberLastLogin(remember bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.remember = remember
}

// SetRequiredPermissions sets the host permissions which must be granted
// before a flow starts.
func (o *Orchestrator) SetRequiredPermissions(permissions []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permissions = append([]string(nil), permissions...)
}

// RequiredPermissions returns the host permissions which must be granted
// before a flow starts.
func (o *Orchestrator) RequiredPermissions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.permissions...)
}

// Phase returns where the orchestrator is in the current flow. After a flow
// ends it returns the flow's terminal phase until the next Start or Clear.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// SessionID returns the id of the active session, or an empty string.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return ""
	}
	return o.session.id
}

// Start begins a new flow, replacing any active one without notifying it.
// The previous gateway is disconnected before the new one is created.
//
// capabilityRequestCode is the request code recovery actions are launched
// with; consentRequestCode the one the consent UI is launched with. Their
// results must be passed to Resume.
//
// Start only returns an error for invalid arguments or when the session's
// gateway can't be created; every outcome of the flow is delivered to cb.
func (o *Orchestrator) Start(ctx context.Context, host native.Host, cb Callback, capabilityRequestCode, consentRequestCode int) error {
	const op = "signin.(Orchestrator).Start"
	switch {
	case host == nil:
		return fmt.Errorf("%s: host is nil: %w", op, ErrNilParameter)
	case cb == nil:
		return fmt.Errorf("%s: callback is nil: %w", op, ErrNilParameter)
	case capabilityRequestCode == consentRequestCode:
		return fmt.Errorf("%s: capability and consent request codes are equal: %w", op, ErrInvalidParameter)
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return fmt.Errorf("%s: unable to generate session id: %w", op, err)
	}
	nonce, err := uuid.GenerateUUID()
	if err != nil {
		return fmt.Errorf("%s: unable to generate nonce: %w", op, err)
	}

	o.mu.Lock()
	s := o.newSessionLocked(ctx, id, nonce, host, cb, capabilityRequestCode, consentRequestCode)
	o.mu.Unlock()

	published, err := o.attach(s, PhaseCapabilityChecking)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !published {
		o.logger.Debug("sign-in superseded before it started", "session_id", s.id)
		return nil
	}
	o.logger.Debug("sign-in started", "session_id", s.id, "target", s.target, "scopes", s.scopes)
	o.metrics.flowStarted()
	o.persist(s)
	o.execute(func() { o.checkCapability(s) })
	return nil
}

// Reattach restores the flow persisted in the binding store, after the
// process which started it was recreated. It reports whether a flow was
// restored; the flow's outcome is delivered to cb.
//
// A restored flow waiting for consent resumes with the result passed to
// Resume; the platform state of the launched consent is handed to the new
// gateway. A flow waiting for recovery delivers its recovery action to cb
// again. Any other flow starts over with a capability check. Expired
// bindings are discarded. An active session is never replaced; reattaching
// to it swaps its host and callback.
func (o *Orchestrator) Reattach(ctx context.Context, host native.Host, cb Callback) (bool, error) {
	const op = "signin.(Orchestrator).Reattach"
	switch {
	case host == nil:
		return false, fmt.Errorf("%s: host is nil: %w", op, ErrNilParameter)
	case cb == nil:
		return false, fmt.Errorf("%s: callback is nil: %w", op, ErrNilParameter)
	case o.store == nil:
		return false, nil
	}
	b, err := o.store.Load(ctx, o.bindingKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%s: unable to load binding: %w", op, err)
	}
	if b.IsExpired(o.clock.Now(), o.expirySkew) {
		o.logger.Debug("discarding expired binding", "session_id", b.SessionID)
		if err := o.store.Delete(ctx, b.Key, b.SessionID); err != nil {
			return false, fmt.Errorf("%s: unable to delete expired binding: %w", op, err)
		}
		return false, nil
	}

	o.mu.Lock()
	if cur := o.session; cur != nil {
		if cur.id == b.SessionID {
			cur.host = host
			cur.cb = cb
			o.mu.Unlock()
			o.execute(func() { o.redeliverRecovery(cur) })
			return true, nil
		}
		o.mu.Unlock()
		o.logger.Warn("not reattaching over an active session", "session_id", cur.id, "binding_session_id", b.SessionID)
		return false, nil
	}
	s := o.newSessionLocked(ctx, b.SessionID, b.Nonce, host, cb, b.ResolutionRequestCode, b.ConsentRequestCode)
	s.scopes = append([]string{}, b.Scopes...)
	s.target = b.Target
	s.remember = b.RememberLastLogin
	s.createdAt = b.CreatedAt
	o.mu.Unlock()

	phase := b.Phase
	switch phase {
	case PhaseConsentPending:
		s.platformState = append([]byte(nil), b.PlatformState...)
	case PhaseErrorResolutionPending:
	default:
		// a token exchange can't be resumed, the platform token is gone
		phase = PhaseCapabilityChecking
	}
	published, err := o.attach(s, phase)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !published {
		return false, nil
	}
	o.logger.Debug("sign-in reattached", "session_id", s.id, "phase", phase)

	switch phase {
	case PhaseConsentPending:
		if err := s.gateway.AwaitConsent(s.ctx, s.consentRC, s.resolutionRC); err != nil {
			o.complete(s, PhaseFailed, nil, fmt.Errorf("%s: %w: %w", op, ErrSignInFailed, err))
		}
	case PhaseErrorResolutionPending:
		action := s.gateway.RecoveryAction(b.RecoveryStatus, s.resolutionRC)
		o.mu.Lock()
		s.recovery = action
		o.mu.Unlock()
		o.execute(func() { o.redeliverRecovery(s) })
	default:
		o.persist(s)
		o.execute(func() { o.checkCapability(s) })
	}
	return true, nil
}

// newSessionLocked supersedes the active session and returns its
// replacement, which isn't published yet. The superseded gateway is
// disconnected by attach. o.mu must be held.
func (o *Orchestrator) newSessionLocked(ctx context.Context, id, nonce string, host native.Host, cb Callback, resolutionRC, consentRC int) *session {
	if old := o.session; old != nil {
		old.cancel()
		o.logger.Debug("superseding sign-in session", "session_id", old.id)
	}
	o.session = nil
	o.seq++
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &session{
		seq:          o.seq,
		id:           id,
		nonce:        nonce,
		host:         host,
		cb:           cb,
		scopes:       append([]string{}, o.scopes...),
		target:       o.target,
		remember:     o.remember,
		resolutionRC: resolutionRC,
		consentRC:    consentRC,
		createdAt:    o.clock.Now(),
		ctx:          sctx,
		cancel:       cancel,
	}
}

// attach disconnects the previous gateway, creates the session's gateway
// and publishes the session in phase. It reports whether s was published;
// it isn't when a newer session was created meanwhile, and s is ended.
func (o *Orchestrator) attach(s *session, phase Phase) (bool, error) {
	o.mu.Lock()
	if s.seq != o.seq {
		o.mu.Unlock()
		s.cancel()
		return false, nil
	}
	old := o.gateway
	o.gateway = nil
	o.mu.Unlock()
	if old != nil {
		old.Disconnect()
	}

	var platformState []byte
	if phase == PhaseConsentPending {
		platformState = s.platformState
	}
	gw, err := o.gatewayFactory(native.GatewayRequest{
		Host:               sessionHost{o: o, s: s, initial: s.host},
		Scopes:             s.scopes,
		SessionID:          s.id,
		Nonce:              s.nonce,
		DiscardOnReconnect: !s.remember,
		Listener:           o.listener(s),
		PlatformState:      platformState,
	})
	if err != nil {
		s.cancel()
		return false, fmt.Errorf("unable to create gateway: %w", err)
	}

	o.mu.Lock()
	if s.seq != o.seq {
		o.mu.Unlock()
		o.logger.Debug("dropping gateway of a superseded session", "session_id", s.id)
		s.cancel()
		gw.Disconnect()
		return false, nil
	}
	defer o.mu.Unlock()
	s.gateway = gw
	s.phase = phase
	o.gateway = gw
	o.session = s
	o.phase = phase
	return true, nil
}

// sessionHost is the native.Host of a session's gateway. It launches
// through the session's current host, which Reattach may swap, and
// persists the platform state of consent launches before the consent UI
// shows. Once the session ended, recovery actions it handed out still
// launch through the host it was attached with.
type sessionHost struct {
	o       *Orchestrator
	s       *session
	initial native.Host
}

// Launch implements native.Host.
func (h sessionHost) Launch(ctx context.Context, requestCode int, req *native.LaunchRequest) error {
	h.o.mu.Lock()
	host, active := h.s.host, h.o.session == h.s
	saveState := active && req != nil && req.Kind == native.LaunchConsent && len(req.State) > 0
	if saveState {
		h.s.platformState = append([]byte(nil), req.State...)
	}
	h.o.mu.Unlock()
	if host == nil {
		host = h.initial
	}
	if saveState {
		h.o.persist(h.s)
	}
	return host.Launch(ctx, requestCode, req)
}

// Resume is the re-entry point for the results of native UI launched for
// the active session. It reports whether requestCode was consumed. Results
// of recovery actions are consumed by the orchestrator, everything else is
// offered to the session's gateway.
func (o *Orchestrator) Resume(ctx context.Context, requestCode int, resultCode native.ResultCode, payload native.Payload) bool {
	o.mu.Lock()
	s := o.session
	if s == nil {
		o.mu.Unlock()
		o.logger.Debug("ignoring result, no sign-in session is running", "request_code", requestCode)
		return false
	}
	if requestCode != s.resolutionRC {
		gw := s.gateway
		o.mu.Unlock()
		return gw.ParseResult(s.ctx, requestCode, resultCode, payload)
	}

	if s.phase != PhaseErrorResolutionPending {
		o.mu.Unlock()
		o.logger.Warn("ignoring recovery result, no recovery is pending", "session_id", s.id, "result_code", resultCode)
		return true
	}
	if resultCode == native.ResultOK {
		s.phase = PhaseCapabilityChecking
		s.recovery = nil
		o.phase = s.phase
		o.mu.Unlock()
		o.logger.Debug("recovery resolved, checking capability again", "session_id", s.id)
		o.persist(s)
		o.execute(func() { o.checkCapability(s) })
		return true
	}
	recovery := s.recovery
	o.mu.Unlock()
	var status native.Status
	if recovery != nil {
		status = recovery.Status
	}
	o.complete(s, PhaseFailed, nil, &CapabilityError{
		Status:   status,
		Recovery: recovery,
		Err:      fmt.Errorf("recovery ended with result %s", resultCode),
	})
	return true
}

// Clear ends the active flow without notifying it, signs the gateway out of
// the platform and releases the host. It's safe to call at any time.
func (o *Orchestrator) Clear(ctx context.Context) error {
	const op = "signin.(Orchestrator).Clear"
	s, gw := o.detach()

	var result *multierror.Error
	if s != nil {
		s.cancel()
		o.logger.Debug("sign-in cleared", "session_id", s.id)
		if err := o.forget(ctx, s); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: unable to delete binding: %w", op, err))
		}
	}
	if gw != nil {
		if err := gw.SignOutAndReset(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: unable to sign out: %w", op, err))
		}
	}
	return result.ErrorOrNil()
}

// Suspend detaches the active flow without ending it: the gateway is
// disconnected but not signed out and the flow's binding is kept, so the
// flow can be reattached by another Orchestrator. Nothing is delivered to
// the flow's callback. It's safe to call at any time.
func (o *Orchestrator) Suspend() {
	s, gw := o.detach()
	if s != nil {
		s.cancel()
		o.logger.Debug("sign-in suspended", "session_id", s.id)
	}
	if gw != nil {
		gw.Disconnect()
	}
}

// detach unpublishes the active session and gateway and abandons sessions
// which are still being attached.
func (o *Orchestrator) detach() (*session, native.Gateway) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, gw := o.session, o.gateway
	o.session = nil
	o.gateway = nil
	o.phase = PhaseIdle
	o.seq++
	if s != nil {
		s.host = nil
		s.cb = nil
	}
	return s, gw
}

func (o *Orchestrator) checkCapability(s *session) {
	if !o.isPhase(s, PhaseCapabilityChecking) {
		o.logger.Trace("dropping capability check of a superseded session", "session_id", s.id)
		return
	}
	status := s.gateway.CapabilityStatus(s.ctx)
	if status == native.StatusSuccess {
		if !o.transition(s, PhaseCapabilityChecking, PhaseConsentPending) {
			return
		}
		o.persist(s)
		if err := s.gateway.ConnectAndRequestAccount(s.ctx, s.consentRC, s.resolutionRC); err != nil {
			o.complete(s, PhaseFailed, nil, fmt.Errorf("%w: unable to request account: %w", ErrSignInFailed, err))
		}
		return
	}

	o.logger.Warn("native consent provider availability check failed", "session_id", s.id, "status", status)
	action := s.gateway.RecoveryAction(status, s.resolutionRC)
	if action.Resolvable() {
		o.offerRecovery(s, PhaseCapabilityChecking, action)
		return
	}
	o.complete(s, PhaseFailed, nil, &CapabilityError{Status: status, Recovery: action})
}

// listener receives the results of s's gateway.
func (o *Orchestrator) listener(s *session) native.Listener {
	return func(_ context.Context, r native.Result) {
		o.onResult(s, r)
	}
}

func (o *Orchestrator) onResult(s *session, r native.Result) {
	o.mu.Lock()
	current, phase := o.session == s, s.phase
	o.mu.Unlock()
	if !current {
		o.logger.Warn("dropping native result of a superseded session", "session_id", s.id, "kind", r.Kind)
		return
	}

	switch {
	case phase == PhaseErrorResolutionPending && r.Kind == native.ResultError:
		o.logger.Warn("dropping error while a recovery is pending", "session_id", s.id, "error", r.Err)
	case phase != PhaseConsentPending:
		o.logger.Warn("dropping unexpected native result", "session_id", s.id, "kind", r.Kind, "phase", phase)

	case r.Kind == native.ResultCancelled:
		o.logger.Debug("user cancelled the consent", "session_id", s.id)
		o.complete(s, PhaseCancelled, nil, ErrUserCancelled)

	case r.Kind == native.ResultError && r.Recovery.Resolvable():
		o.offerRecovery(s, PhaseConsentPending, r.Recovery)
	case r.Kind == native.ResultError && r.Recovery != nil:
		o.complete(s, PhaseFailed, nil, &CapabilityError{Status: r.Recovery.Status, Recovery: r.Recovery, Err: r.Err})
	case r.Kind == native.ResultError:
		err := r.Err
		if err == nil {
			err = errors.New("native consent provider reported an error")
		}
		o.complete(s, PhaseFailed, nil, fmt.Errorf("%w: %w", ErrSignInFailed, err))

	case r.Kind == native.ResultAccount && r.Account != nil:
		o.checkScopes(s, r.Account)
	default:
		o.complete(s, PhaseFailed, nil, fmt.Errorf("%w: native result %s has no account", ErrSignInFailed, r.Kind))
	}
}

func (o *Orchestrator) checkScopes(s *session, acct *native.Account) {
	if !o.transition(s, PhaseConsentPending, PhaseScopeChecking) {
		return
	}
	if !scope.IsSatisfied(s.scopes, acct.GrantedScopes) {
		missing := scope.Missing(s.scopes, acct.GrantedScopes)
		o.logger.Warn("some scopes were not granted", "session_id", s.id, "missing", missing)
		o.complete(s, PhaseFailed, nil, &ScopeError{Missing: missing})
		return
	}
	if !o.transition(s, PhaseScopeChecking, PhaseTokenExchanging) {
		return
	}
	o.persist(s)
	token := acct.Token
	o.execute(func() { o.exchange(s, token) })
}

func (o *Orchestrator) exchange(s *session, platformToken string) {
	if !o.isPhase(s, PhaseTokenExchanging) {
		return
	}
	o.logger.Debug("exchanging platform token", "session_id", s.id, "target", s.target)
	cred, err := o.exchanger.Exchange(s.ctx, platformToken, s.target)
	if err != nil {
		o.complete(s, PhaseFailed, nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err))
		return
	}
	o.complete(s, PhaseSucceeded, cred, nil)
}

// offerRecovery moves s from phase to PhaseErrorResolutionPending and hands
// the action to the caller.
func (o *Orchestrator) offerRecovery(s *session, from Phase, action *native.RecoveryAction) {
	o.mu.Lock()
	if o.session != s || s.phase != from {
		o.mu.Unlock()
		return
	}
	s.phase = PhaseErrorResolutionPending
	s.recovery = action
	o.phase = s.phase
	cb := o.callbackLocked(s)
	o.mu.Unlock()

	o.logger.Debug("offering recovery", "session_id", s.id, "action", action)
	o.persist(s)
	o.metrics.recoveryOffered()
	cb.OnRecovery(action)
}

// redeliverRecovery hands s's pending recovery to its current callback,
// after the callback was replaced by Reattach.
func (o *Orchestrator) redeliverRecovery(s *session) {
	o.mu.Lock()
	if o.session != s || s.phase != PhaseErrorResolutionPending || s.recovery == nil {
		o.mu.Unlock()
		return
	}
	action := s.recovery
	cb := o.callbackLocked(s)
	o.mu.Unlock()

	o.logger.Debug("offering pending recovery again", "session_id", s.id, "action", action)
	cb.OnRecovery(action)
}

// complete ends s in a terminal phase and delivers the outcome, once.
func (o *Orchestrator) complete(s *session, phase Phase, cred *exchange.Credential, err error) {
	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		o.logger.Warn("dropping outcome of a superseded session", "session_id", s.id, "phase", phase)
		return
	}
	cb := o.callbackLocked(s)
	s.phase = phase
	s.cb = nil
	s.host = nil
	o.session = nil
	o.phase = phase
	o.mu.Unlock()

	s.cancel()
	if ferr := o.forget(context.Background(), s); ferr != nil {
		o.logger.Warn("unable to delete binding", "session_id", s.id, "error", ferr)
	}
	o.metrics.flowCompleted(err)
	if err != nil {
		o.logger.Debug("sign-in failed", "session_id", s.id, "phase", phase, "error", err)
		cb.OnFailure(err)
		return
	}
	o.logger.Debug("sign-in succeeded", "session_id", s.id)
	cb.OnSuccess(cred)
}

// callbackLocked returns s's callback, or one which only logs if s isn't
// the active session. o.mu must be held.
func (o *Orchestrator) callbackLocked(s *session) Callback {
	if o.session != s || s.cb == nil {
		return noSessionCallback{logger: o.logger}
	}
	return s.cb
}

func (o *Orchestrator) isPhase(s *session, phase Phase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session == s && s.phase == phase
}

func (o *Orchestrator) transition(s *session, from, to Phase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != s || s.phase != from {
		return false
	}
	s.phase = to
	o.phase = to
	return true
}

// persist saves s's binding if s is still active.
func (o *Orchestrator) persist(s *session) {
	if o.store == nil {
		return
	}
	o.storeMu.Lock()
	defer o.storeMu.Unlock()

	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		return
	}
	b := &Binding{
		Key:                   o.bindingKey,
		SessionID:             s.id,
		Nonce:                 s.nonce,
		ResolutionRequestCode: s.resolutionRC,
		ConsentRequestCode:    s.consentRC,
		Scopes:                append([]string{}, s.scopes...),
		Target:                s.target,
		RememberLastLogin:     s.remember,
		Phase:                 s.phase,
		PlatformState:         append([]byte(nil), s.platformState...),
		CreatedAt:             s.createdAt,
		ExpiresAt:             s.createdAt.Add(o.bindingTTL),
	}
	if s.recovery != nil {
		b.RecoveryStatus = s.recovery.Status
	}
	o.mu.Unlock()

	if err := o.store.Save(s.ctx, b); err != nil {
		o.logger.Warn("unable to persist sign-in session", "session_id", s.id, "error", err)
	}
}

func (o *Orchestrator) forget(ctx context.Context, s *session) error {
	if o.store == nil {
		return nil
	}
	o.storeMu.Lock()
	defer o.storeMu.Unlock()
	return o.store.Delete(ctx, o.bindingKey, s.id)
}

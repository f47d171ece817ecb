// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// ConsentGateway is the Gateway for a Platform. It connects, launches the
// platform's consent UI through the Host and turns consent results into
// Listener results.
type ConsentGateway struct {
	platform Platform
	host     Host
	listener Listener
	discard  bool
	logger   hclog.Logger
	execute  func(func())

	mu              sync.Mutex
	consentRC       int
	resolutionRC    int
	awaitingConsent bool
	launchOnConnect bool
	closed          bool
}

// ensure that ConsentGateway implements the Gateway interface
var _ Gateway = (*ConsentGateway)(nil)

// NewConsentGateway creates a gateway for p, bound to req.
//
// Supported options: WithLogger, WithExecutor
func NewConsentGateway(p Platform, req GatewayRequest, opt ...Option) (*ConsentGateway, error) {
	const op = "native.NewConsentGateway"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: platform is nil: %w", op, ErrNilParameter)
	case req.Host == nil:
		return nil, fmt.Errorf("%s: host is nil: %w", op, ErrNilParameter)
	case req.Listener == nil:
		return nil, fmt.Errorf("%s: listener is nil: %w", op, ErrNilParameter)
	}
	opts := getGatewayOpts(opt...)
	return &ConsentGateway{
		platform: p,
		host:     req.Host,
		listener: req.Listener,
		discard:  req.DiscardOnReconnect,
		logger:   opts.withLogger,
		execute:  opts.withExecutor,
	}, nil
}

// ConsentGatewayFactory returns a GatewayFactory which builds a
// ConsentGateway over a new Platform for every session.
func ConsentGatewayFactory(pf PlatformFactory, opt ...Option) GatewayFactory {
	return func(req GatewayRequest) (Gateway, error) {
		const op = "native.ConsentGatewayFactory"
		if pf == nil {
			return nil, fmt.Errorf("%s: platform factory is nil: %w", op, ErrNilParameter)
		}
		p, err := pf(req)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create platform: %w", op, err)
		}
		return NewConsentGateway(p, req, opt...)
	}
}

// CapabilityStatus implements Gateway.
func (g *ConsentGateway) CapabilityStatus(ctx context.Context) Status {
	return g.platform.Availability(ctx)
}

// RecoveryAction implements Gateway.
func (g *ConsentGateway) RecoveryAction(s Status, requestCode int) *RecoveryAction {
	var req *LaunchRequest
	if s != StatusSuccess {
		req = g.platform.ResolutionRequest(s)
	}
	return NewRecoveryAction(s, requestCode, req, g.host)
}

// ConnectAndRequestAccount implements Gateway. If the platform is already
// connected the consent UI is launched right away, otherwise it's launched
// once the platform reports it connected.
func (g *ConsentGateway) ConnectAndRequestAccount(ctx context.Context, consentRequestCode, resolutionRequestCode int) error {
	const op = "native.(ConsentGateway).ConnectAndRequestAccount"
	if err := g.bind(consentRequestCode, resolutionRequestCode, true, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case g.platform.IsConnected():
		g.execute(func() { g.requestAccount(ctx) })
	case g.platform.IsConnecting():
		g.logger.Trace("platform connection already in progress")
	default:
		g.platform.Connect(ctx, g)
	}
	return nil
}

// AwaitConsent implements Gateway.
func (g *ConsentGateway) AwaitConsent(ctx context.Context, consentRequestCode, resolutionRequestCode int) error {
	const op = "native.(ConsentGateway).AwaitConsent"
	if err := g.bind(consentRequestCode, resolutionRequestCode, false, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !g.platform.IsConnected() && !g.platform.IsConnecting() {
		g.platform.Connect(ctx, g)
	}
	return nil
}

func (g *ConsentGateway) bind(consentRC, resolutionRC int, launch, awaiting bool) error {
	if consentRC == resolutionRC {
		return fmt.Errorf("consent and resolution request codes are equal: %w", ErrInvalidParameter)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrDisconnected
	}
	g.consentRC = consentRC
	g.resolutionRC = resolutionRC
	g.launchOnConnect = launch
	g.awaitingConsent = awaiting
	return nil
}

// OnConnected implements ConnectionCallbacks.
func (g *ConsentGateway) OnConnected(ctx context.Context) {
	g.mu.Lock()
	launch := g.launchOnConnect
	g.mu.Unlock()
	if !launch {
		g.logger.Trace("connected, awaiting consent result")
		return
	}
	g.execute(func() { g.requestAccount(ctx) })
}

// OnConnectionFailed implements ConnectionCallbacks.
func (g *ConsentGateway) OnConnectionFailed(ctx context.Context, f ConnectionFailure) {
	g.mu.Lock()
	rc := g.resolutionRC
	g.mu.Unlock()
	g.logger.Debug("platform connection failed", "status", f.Status, "error", f.Err)
	action := g.RecoveryAction(f.Status, rc)
	err := f.Err
	if err == nil {
		err = fmt.Errorf("platform connection failed with status %s", f.Status)
	}
	g.deliver(ctx, ErrorResult(action, err))
}

func (g *ConsentGateway) requestAccount(ctx context.Context) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	rc := g.consentRC
	g.mu.Unlock()

	if g.discard {
		if err := g.platform.SignOut(ctx); err != nil {
			g.logger.Warn("unable to discard last platform login", "error", err)
		}
	}
	req, err := g.platform.ConsentRequest(ctx)
	if err != nil {
		g.deliver(ctx, ErrorResult(nil, fmt.Errorf("unable to build consent request: %w", err)))
		return
	}
	req.Kind = LaunchConsent

	g.mu.Lock()
	g.awaitingConsent = true
	g.mu.Unlock()
	if err := g.host.Launch(ctx, rc, req); err != nil {
		g.mu.Lock()
		g.awaitingConsent = false
		g.mu.Unlock()
		g.deliver(ctx, ErrorResult(nil, fmt.Errorf("unable to launch consent: %w", err)))
	}
}

// ParseResult implements Gateway. It only claims the consent request code;
// resolution results belong to whoever launched the RecoveryAction.
func (g *ConsentGateway) ParseResult(ctx context.Context, requestCode int, resultCode ResultCode, payload Payload) bool {
	g.mu.Lock()
	if g.closed || requestCode != g.consentRC {
		g.mu.Unlock()
		return false
	}
	if !g.awaitingConsent {
		g.mu.Unlock()
		g.logger.Warn("ignoring consent result nobody is waiting for", "request_code", requestCode)
		return true
	}
	g.awaitingConsent = false
	g.mu.Unlock()

	if resultCode != ResultOK {
		g.logger.Debug("consent ui was cancelled", "result_code", resultCode)
		g.deliver(ctx, CancelledResult())
		return true
	}
	g.execute(func() {
		acct, err := g.platform.ParseConsent(ctx, payload)
		switch {
		case errors.Is(err, ErrConsentDenied):
			g.deliver(ctx, CancelledResult())
		case err != nil:
			g.deliver(ctx, ErrorResult(nil, err))
		case acct == nil:
			g.deliver(ctx, ErrorResult(nil, errors.New("platform returned no account")))
		default:
			g.deliver(ctx, AccountResult(acct))
		}
	})
	return true
}

// SignOutAndReset implements Gateway.
func (g *ConsentGateway) SignOutAndReset(ctx context.Context) error {
	const op = "native.(ConsentGateway).SignOutAndReset"
	g.mu.Lock()
	g.closed = true
	g.awaitingConsent = false
	g.mu.Unlock()

	defer g.platform.Disconnect()
	if err := g.platform.SignOut(ctx); err != nil {
		return fmt.Errorf("%s: unable to sign out: %w", op, err)
	}
	return nil
}

// Disconnect implements Gateway.
func (g *ConsentGateway) Disconnect() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.awaitingConsent = false
	g.mu.Unlock()
	g.platform.Disconnect()
}

func (g *ConsentGateway) deliver(ctx context.Context, r Result) {
	g.execute(func() {
		g.mu.Lock()
		closed := g.closed
		g.mu.Unlock()
		if closed {
			g.logger.Debug("dropping result from disconnected gateway", "kind", r.Kind)
			return
		}
		g.listener(ctx, r)
	})
}

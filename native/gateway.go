// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import "context"

// Gateway wraps a native consent provider for one sign-in session.
//
// All sign-in outcomes reach the gateway's Listener asynchronously; no
// Gateway method reports an account, cancellation or connection error
// through its return values.
type Gateway interface {
	// CapabilityStatus checks whether the consent provider is available.
	CapabilityStatus(ctx context.Context) Status

	// RecoveryAction returns the handle on the platform UI which resolves
	// s. The action's outcome is reported with requestCode.
	RecoveryAction(s Status, requestCode int) *RecoveryAction

	// ConnectAndRequestAccount connects to the consent provider, then
	// launches the consent UI with consentRequestCode. Connection problems
	// are reported with recovery actions bound to resolutionRequestCode.
	ConnectAndRequestAccount(ctx context.Context, consentRequestCode, resolutionRequestCode int) error

	// AwaitConsent connects to the consent provider and waits for the
	// result of a consent UI launched earlier in the same session, by a
	// gateway which no longer exists. The consent UI isn't launched again.
	AwaitConsent(ctx context.Context, consentRequestCode, resolutionRequestCode int) error

	// ParseResult consumes the result of a launched consent UI and reports
	// whether requestCode belonged to this gateway.
	ParseResult(ctx context.Context, requestCode int, resultCode ResultCode, payload Payload) bool

	// SignOutAndReset forgets the platform account and disconnects. The
	// gateway can't be used afterwards.
	SignOutAndReset(ctx context.Context) error

	// Disconnect drops the connection to the consent provider without
	// signing out. Results which arrive afterwards are discarded.
	Disconnect()
}

// GatewayRequest holds what a gateway is bound to for one session.
type GatewayRequest struct {
	// Host launches the native UI.
	Host Host

	// Scopes are the requested scopes.
	Scopes []string

	// SessionID identifies the sign-in session. Platforms which round trip
	// opaque state should use it, so results can be matched to a session.
	SessionID string

	// Nonce binds platform identity tokens to the session.
	Nonce string

	// DiscardOnReconnect forces the user to pick an account again instead
	// of reusing the last platform login.
	DiscardOnReconnect bool

	// Listener receives the gateway's results.
	Listener Listener

	// PlatformState is the LaunchRequest.State of a consent launched by an
	// earlier gateway of the same session. Platforms restore it so the
	// pending consent can still be completed.
	PlatformState []byte
}

// GatewayFactory creates the Gateway for a new sign-in session.
type GatewayFactory func(req GatewayRequest) (Gateway, error)

// ConnectionCallbacks receive the outcome of Platform.Connect.
type ConnectionCallbacks interface {
	OnConnected(ctx context.Context)
	OnConnectionFailed(ctx context.Context, f ConnectionFailure)
}

// ConnectionFailure describes why a Platform could not connect.
type ConnectionFailure struct {
	Status Status
	Err    error
}

// Platform is the client surface of a native consent provider.
type Platform interface {
	// Availability checks whether the consent provider can be used.
	Availability(ctx context.Context) Status

	// Connect starts connecting and reports the outcome to cb.
	Connect(ctx context.Context, cb ConnectionCallbacks)

	IsConnected() bool
	IsConnecting() bool

	// Disconnect drops the connection.
	Disconnect()

	// ConsentRequest returns the consent UI to launch.
	ConsentRequest(ctx context.Context) (*LaunchRequest, error)

	// ResolutionRequest returns the UI which resolves s, or nil if there
	// is none.
	ResolutionRequest(s Status) *LaunchRequest

	// ParseConsent turns the payload of a completed consent UI into the
	// platform account. It returns ErrConsentDenied if the user declined.
	// It may block on network calls.
	ParseConsent(ctx context.Context, payload Payload) (*Account, error)

	// SignOut forgets the platform account so the next consent prompts
	// for an account again.
	SignOut(ctx context.Context) error
}

// PlatformFactory creates the Platform for a new sign-in session.
type PlatformFactory func(req GatewayRequest) (Platform, error)

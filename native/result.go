// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"fmt"
	"net/url"
)

// Payload is the data a host hands back with a native UI result.
type Payload = url.Values

// LaunchKind identifies which native UI a LaunchRequest is for.
type LaunchKind int

const (
	LaunchConsent LaunchKind = iota
	LaunchRecovery
)

func (k LaunchKind) String() string {
	switch k {
	case LaunchConsent:
		return "consent"
	case LaunchRecovery:
		return "recovery"
	default:
		return fmt.Sprintf("launch(%d)", int(k))
	}
}

// LaunchRequest describes a native UI the host must show. The host reports
// the outcome later, with the request code it was launched for.
type LaunchRequest struct {
	Kind LaunchKind

	// URL is where browser based platforms send the user.
	URL string

	// Status is the availability status a recovery UI resolves.
	Status Status

	// Params carries platform specific launch parameters.
	Params map[string]string

	// State is opaque platform state the launched consent depends on, such
	// as a PKCE verifier. Owners persist it so the consent can be completed
	// by a later gateway; it must never be shown to the user.
	State []byte
}

// Host launches native UI on behalf of a gateway. Launch must not block
// until the UI completes; the outcome is reported separately through the
// owner's re-entry point with the same requestCode.
type Host interface {
	Launch(ctx context.Context, requestCode int, req *LaunchRequest) error
}

// HostFunc adapts a func to the Host interface.
type HostFunc func(ctx context.Context, requestCode int, req *LaunchRequest) error

// Launch calls f.
func (f HostFunc) Launch(ctx context.Context, requestCode int, req *LaunchRequest) error {
	return f(ctx, requestCode, req)
}

// RecoveryAction is a handle on the platform UI which resolves an
// availability or connection problem. Its outcome is reported with
// RequestCode.
type RecoveryAction struct {
	Status      Status
	RequestCode int

	// Request is the platform UI to launch. It's nil when the platform has
	// nothing to show for Status.
	Request *LaunchRequest

	host Host
}

// NewRecoveryAction creates a RecoveryAction which is launched through
// host.
func NewRecoveryAction(s Status, requestCode int, req *LaunchRequest, host Host) *RecoveryAction {
	return &RecoveryAction{
		Status:      s,
		RequestCode: requestCode,
		Request:     req,
		host:        host,
	}
}

// Resolvable reports whether launching the action can fix the problem.
func (r *RecoveryAction) Resolvable() bool {
	return r != nil && r.Status.IsRecoverable() && r.Request != nil
}

// Launch shows the recovery UI. The result is reported with RequestCode.
func (r *RecoveryAction) Launch(ctx context.Context) error {
	const op = "native.(RecoveryAction).Launch"
	switch {
	case r == nil:
		return fmt.Errorf("%s: recovery action is nil: %w", op, ErrNilParameter)
	case r.Request == nil:
		return fmt.Errorf("%s: no recovery ui for %s: %w", op, r.Status, ErrNotResolvable)
	case r.host == nil:
		return fmt.Errorf("%s: host is nil: %w", op, ErrNilParameter)
	}
	if err := r.host.Launch(ctx, r.RequestCode, r.Request); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *RecoveryAction) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("RecoveryAction{Status: %s, RequestCode: %d, Resolvable: %t}", r.Status, r.RequestCode, r.Resolvable())
}

// Account is the platform identity returned by a completed consent.
type Account struct {
	// Token is the platform identity token exchanged for a session
	// credential.
	Token string

	// GrantedScopes are the scopes the user actually granted.
	GrantedScopes []string

	Subject string
	Email   string
}

func (a Account) String() string {
	tok := `""`
	if a.Token != "" {
		tok = "[REDACTED]"
	}
	return fmt.Sprintf("Account{Subject: %q, Email: %q, Token: %s, GrantedScopes: %v}", a.Subject, a.Email, tok, a.GrantedScopes)
}

// ResultKind tags a Result.
type ResultKind int

const (
	ResultAccount ResultKind = iota
	ResultCancelled
	ResultError
)

func (k ResultKind) String() string {
	switch k {
	case ResultAccount:
		return "account"
	case ResultCancelled:
		return "cancelled"
	case ResultError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is what a gateway reports to its Listener: an Account, a
// cancellation or an error. An error may carry a RecoveryAction.
type Result struct {
	Kind     ResultKind
	Account  *Account
	Recovery *RecoveryAction
	Err      error
}

// AccountResult reports a completed consent.
func AccountResult(a *Account) Result { return Result{Kind: ResultAccount, Account: a} }

// CancelledResult reports that the user cancelled the consent.
func CancelledResult() Result { return Result{Kind: ResultCancelled} }

// ErrorResult reports a failure, with an optional recovery action.
func ErrorResult(r *RecoveryAction, err error) Result {
	return Result{Kind: ResultError, Recovery: r, Err: err}
}

// Listener receives the results of a gateway. It's always called
// asynchronously with respect to the gateway call that produced the result.
type Listener func(ctx context.Context, r Result)

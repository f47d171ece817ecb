// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/fedsignin/native"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrNotFound         = errors.New("not found")
)

// Sign-in failures delivered to Callback.OnFailure wrap exactly one of these.
var (
	// ErrCapabilityUnavailable means the native consent provider can't be
	// used on this host. The failure is a *CapabilityError.
	ErrCapabilityUnavailable = errors.New("native consent provider unavailable")

	// ErrScopesNotGranted means the user didn't grant every requested
	// scope. The failure is a *ScopeError.
	ErrScopesNotGranted = errors.New("requested scopes were not granted")

	// ErrUserCancelled means the user dismissed or declined the consent.
	ErrUserCancelled = errors.New("sign-in cancelled by the user")

	// ErrExchangeFailed means the identity API rejected the platform token
	// or couldn't be reached.
	ErrExchangeFailed = errors.New("token exchange failed")

	// ErrSignInFailed is any other native sign-in failure.
	ErrSignInFailed = errors.New("native sign-in failed")
)

// CapabilityError is the failure delivered when the native consent provider
// is unavailable and the user can't, or didn't, resolve it.
type CapabilityError struct {
	Status native.Status

	// Recovery is the handle on the platform UI for Status. It may not be
	// resolvable.
	Recovery *native.RecoveryAction

	// Err is the underlying cause, if any.
	Err error
}

func (e *CapabilityError) Error() string {
	msg := fmt.Sprintf("%s: status %s", ErrCapabilityUnavailable, e.Status)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

// Unwrap returns ErrCapabilityUnavailable and the cause.
func (e *CapabilityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCapabilityUnavailable}
	}
	return []error{ErrCapabilityUnavailable, e.Err}
}

// ScopeError is the failure delivered when the user didn't grant every
// requested scope.
type ScopeError struct {
	Missing []string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrScopesNotGranted, strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrScopesNotGranted.
func (e *ScopeError) Unwrap() error {
	return ErrScopesNotGranted
}

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrDisconnected is returned when a gateway is used after it was
	// disconnected or signed out.
	ErrDisconnected = errors.New("gateway disconnected")

	// ErrConsentDenied is returned by a Platform when the user declined the
	// consent UI. Gateways report it as a cancellation.
	ErrConsentDenied = errors.New("consent denied")

	// ErrNotResolvable is returned when launching a RecoveryAction which has
	// no platform UI to launch.
	ErrNotResolvable = errors.New("recovery action is not resolvable")
)

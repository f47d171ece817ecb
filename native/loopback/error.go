// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package loopback

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidCACert    = errors.New("invalid CA certificate")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")

	// ErrNotConnected is returned when a consent is requested or parsed
	// before the platform connected.
	ErrNotConnected = errors.New("platform not connected")

	// ErrInvalidState is returned when a consent response's state doesn't
	// match the session it's parsed for.
	ErrInvalidState = errors.New("invalid response state")

	ErrMissingCode    = errors.New("authorization code is missing")
	ErrMissingIDToken = errors.New("id_token is missing")
	ErrInvalidNonce   = errors.New("invalid id_token nonce")

	// ErrProviderError is returned when the identity provider redirects
	// back with an error other than access_denied.
	ErrProviderError = errors.New("identity provider returned an error")
)

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidCACert    = errors.New("invalid CA certificate")
	ErrRequestFailed    = errors.New("exchange request failed")
	ErrInvalidResponse  = errors.New("invalid exchange response")
	ErrRejected         = errors.New("exchange rejected")
)

// Error is the structured error returned by the identity API when it
// refuses to exchange a platform token. It matches ErrRejected with
// errors.Is.
type Error struct {
	// StatusCode is the http status code of the response.
	StatusCode int

	// Code is the machine readable error code (for example
	// "invalid_grant" or "access_denied").
	Code string

	// Description is the human readable description, if the API sent one.
	Description string
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s (%d)", e.Code, e.StatusCode)
	default:
		return fmt.Sprintf("identity api returned status %d", e.StatusCode)
	}
}

// Is reports whether target is ErrRejected.
func (e *Error) Is(target error) bool {
	return target == ErrRejected
}

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/fedsignin/native"
	"github.com/stretchr/testify/assert"
)

func TestCapabilityError(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	tests := []struct {
		name        string
		err         *CapabilityError
		wantMsg     string
		wantIsCause bool
	}{
		{
			name:    "status-only",
			err:     &CapabilityError{Status: native.StatusUnsupported},
			wantMsg: "native consent provider unavailable: status unsupported",
		},
		{
			name:        "with-cause",
			err:         &CapabilityError{Status: native.StatusNetworkError, Err: cause},
			wantMsg:     "native consent provider unavailable: status network-error: connection refused",
			wantIsCause: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			wrapped := fmt.Errorf("sign-in: %w", tt.err)
			assert.Equal(tt.wantMsg, tt.err.Error())
			assert.ErrorIs(wrapped, ErrCapabilityUnavailable)
			assert.Equal(tt.wantIsCause, errors.Is(wrapped, cause))
			assert.NotErrorIs(wrapped, ErrScopesNotGranted)

			var capErr *CapabilityError
			assert.ErrorAs(wrapped, &capErr)
			assert.Equal(tt.err.Status, capErr.Status)
		})
	}
}

func TestScopeError(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	err := &ScopeError{Missing: []string{"drive.readonly", "calendar"}}
	assert.Equal("requested scopes were not granted: drive.readonly, calendar", err.Error())
	assert.ErrorIs(err, ErrScopesNotGranted)
	assert.NotErrorIs(err, ErrCapabilityUnavailable)
}

func Test_outcome(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", want: OutcomeSuccess},
		{name: "cancelled", err: ErrUserCancelled, want: OutcomeCancelled},
		{name: "capability", err: &CapabilityError{Status: native.StatusServiceMissing}, want: OutcomeCapabilityUnavailable},
		{name: "scopes", err: &ScopeError{Missing: []string{"email"}}, want: OutcomeScopesNotGranted},
		{name: "exchange", err: fmt.Errorf("%w: rejected", ErrExchangeFailed), want: OutcomeExchangeFailed},
		{name: "other", err: fmt.Errorf("%w: boom", ErrSignInFailed), want: OutcomeFailed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, outcome(tt.err))
		})
	}
}

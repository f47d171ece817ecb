// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsRecoverable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusSuccess, false},
		{StatusServiceMissing, true},
		{StatusServiceUpdating, true},
		{StatusServiceVersionUpdateRequired, true},
		{StatusServiceDisabled, true},
		{StatusNetworkError, true},
		{StatusServiceInvalid, false},
		{StatusUnsupported, false},
		{StatusInternalError, false},
		{Status(99), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.status.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.IsRecoverable())
		})
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("success", StatusSuccess.String())
	assert.Equal("service-version-update-required", StatusServiceVersionUpdateRequired.String())
	assert.Equal("status(42)", Status(42).String())
	assert.Equal("ok", ResultOK.String())
	assert.Equal("canceled", ResultCanceled.String())
	assert.Equal("result(7)", ResultCode(7).String())
}

func TestRecoveryAction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	req := &LaunchRequest{Kind: LaunchRecovery, Status: StatusServiceMissing}

	t.Run("resolvable", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h := &TestHost{}
		a := NewRecoveryAction(StatusServiceMissing, 7, req, h)
		assert.True(a.Resolvable())
		require.NoError(a.Launch(ctx))
		launches := h.Launches()
		require.Len(launches, 1)
		assert.Equal(7, launches[0].RequestCode)
		assert.Equal(req, launches[0].Request)
	})
	t.Run("unrecoverable-status", func(t *testing.T) {
		a := NewRecoveryAction(StatusServiceInvalid, 7, req, &TestHost{})
		assert.False(t, a.Resolvable())
	})
	t.Run("no-request", func(t *testing.T) {
		assert := assert.New(t)
		a := NewRecoveryAction(StatusNetworkError, 7, nil, &TestHost{})
		assert.False(a.Resolvable())
		assert.ErrorIs(a.Launch(ctx), ErrNotResolvable)
	})
	t.Run("nil-host", func(t *testing.T) {
		a := NewRecoveryAction(StatusServiceMissing, 7, req, nil)
		assert.ErrorIs(t, a.Launch(ctx), ErrNilParameter)
	})
	t.Run("nil-action", func(t *testing.T) {
		assert := assert.New(t)
		var a *RecoveryAction
		assert.False(a.Resolvable())
		assert.ErrorIs(a.Launch(ctx), ErrNilParameter)
		assert.Equal("<nil>", a.String())
	})
	t.Run("host-error", func(t *testing.T) {
		h := &TestHost{}
		h.SetError(errors.New("no activity"))
		a := NewRecoveryAction(StatusServiceMissing, 7, req, h)
		assert.ErrorContains(t, a.Launch(ctx), "no activity")
	})
}

func TestAccount_String(t *testing.T) {
	t.Parallel()
	a := Account{Token: "secret-token", Subject: "alice", Email: "alice@example.com"}
	assert.NotContains(t, a.String(), "secret-token")
	assert.Contains(t, a.String(), "[REDACTED]")
	assert.Contains(t, Account{}.String(), `Token: ""`)
}

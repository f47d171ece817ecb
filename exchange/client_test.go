// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()
	t.Run("nil-config", func(t *testing.T) {
		_, err := NewClient(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("invalid-config", func(t *testing.T) {
		_, err := NewClient(&Config{BaseURL: "https://example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("invalid-ca", func(t *testing.T) {
		_, err := NewClient(&Config{BaseURL: "https://example.com", ClientID: "c", CACert: "bad"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCACert)
	})
	t.Run("with-http-client", func(t *testing.T) {
		hc := &http.Client{}
		c, err := NewClient(&Config{BaseURL: "https://example.com", ClientID: "c", CACert: "bad"}, WithHTTPClient(hc), WithLogger(hclog.NewNullLogger()))
		require.NoError(t, err)
		assert.Same(t, hc, c.client)
	})
}

func TestClient_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		srv := StartTestServer(t)
		want := Credential{
			AccessToken:  "at",
			IDToken:      "idt",
			TokenType:    "Bearer",
			RefreshToken: "rt",
			ExpiresIn:    60,
			Scope:        "openid",
		}
		srv.SetReplyCredential(want)
		c, err := NewClient(srv.Config(t))
		require.NoError(err)

		got, err := c.Exchange(ctx, "platform-token", "google-oauth2")
		require.NoError(err)
		assert.Equal(want.AccessToken, got.AccessToken)
		assert.Equal(want.IDToken, got.IDToken)
		assert.Equal(want.TokenType, got.TokenType)
		assert.Equal(want.RefreshToken, got.RefreshToken)
		assert.Equal(want.ExpiresIn, got.ExpiresIn)
		assert.False(got.ReceivedAt.IsZero())

		reqs := srv.Requests()
		require.Len(reqs, 1)
		assert.Equal(TestRequest{
			ClientID:    srv.ClientID(),
			AccessToken: "platform-token",
			Connection:  "google-oauth2",
			Scope:       DefaultScope,
		}, reqs[0])
	})
	t.Run("rejected", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		srv := StartTestServer(t)
		srv.SetReplyError(http.StatusForbidden, "unauthorized", "connection disabled")
		c, err := NewClient(srv.Config(t))
		require.NoError(err)

		_, err = c.Exchange(ctx, "platform-token", "google-oauth2")
		require.Error(err)
		assert.ErrorIs(err, ErrRejected)
		var exErr *Error
		require.True(errors.As(err, &exErr))
		assert.Equal(http.StatusForbidden, exErr.StatusCode)
		assert.Equal("unauthorized", exErr.Code)
		assert.Equal("connection disabled", exErr.Description)
	})
	t.Run("wrong-client", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		srv := StartTestServer(t)
		conf := srv.Config(t)
		conf.ClientID = "someone-else"
		c, err := NewClient(conf)
		require.NoError(err)
		_, err = c.Exchange(ctx, "platform-token", "google-oauth2")
		var exErr *Error
		require.True(errors.As(err, &exErr))
		assert.Equal(http.StatusUnauthorized, exErr.StatusCode)
	})
	t.Run("empty-credential", func(t *testing.T) {
		require := require.New(t)
		srv := StartTestServer(t)
		srv.SetReplyCredential(Credential{TokenType: "Bearer"})
		c, err := NewClient(srv.Config(t))
		require.NoError(err)
		_, err = c.Exchange(ctx, "platform-token", "google-oauth2")
		require.Error(err)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
	t.Run("invalid-parameters", func(t *testing.T) {
		require := require.New(t)
		c, err := NewClient(&Config{BaseURL: "https://example.com", ClientID: "c"})
		require.NoError(err)
		_, err = c.Exchange(ctx, "", "conn")
		assert.ErrorIs(t, err, ErrInvalidParameter)
		_, err = c.Exchange(ctx, "tok", "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("untrusted-ca", func(t *testing.T) {
		require := require.New(t)
		srv := StartTestServer(t)
		c, err := NewClient(&Config{BaseURL: srv.Addr(), ClientID: srv.ClientID()})
		require.NoError(err)
		_, err = c.Exchange(ctx, "platform-token", "google-oauth2")
		require.Error(err)
		assert.ErrorIs(t, err, ErrRequestFailed)
	})
	t.Run("cancelled-context", func(t *testing.T) {
		require := require.New(t)
		srv := StartTestServer(t)
		c, err := NewClient(srv.Config(t))
		require.NoError(err)
		cctx, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)
		_, err = c.Exchange(cctx, "platform-token", "google-oauth2")
		require.Error(err)
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.Empty(t, srv.Requests())
	})
}

func TestError_Error(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("invalid_grant (401): bad token", (&Error{StatusCode: 401, Code: "invalid_grant", Description: "bad token"}).Error())
	assert.Equal("invalid_grant (401)", (&Error{StatusCode: 401, Code: "invalid_grant"}).Error())
	assert.Equal("identity api returned status 502", (&Error{StatusCode: 502}).Error())
}

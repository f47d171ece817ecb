// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

// TestServer is a local identity API which supports the access token
// exchange endpoint, for tests.
type TestServer struct {
	httpServer *httptest.Server
	caCert     string
	logger     hclog.Logger

	mu            sync.Mutex
	clientID      string
	replyCred     Credential
	replyStatus   int
	replyErr      *errorResponse
	requests      []TestRequest
	acceptedToken string
}

// TestRequest is an exchange request recorded by the TestServer.
type TestRequest struct {
	ClientID    string
	AccessToken string
	Connection  string
	Scope       string
	Audience    string
}

// StartTestServer creates a disposable TLS TestServer which is closed when
// the test completes.
//
// Supported options: WithLogger
func StartTestServer(t *testing.T, opt ...Option) *TestServer {
	t.Helper()
	require := require.New(t)
	opts := getTestServerOpts(opt...)

	s := &TestServer{
		logger:   opts.withLogger,
		clientID: "test-client-id",
		replyCred: Credential{
			AccessToken:  "test-access-token",
			IDToken:      "test-id-token",
			TokenType:    "Bearer",
			RefreshToken: "test-refresh-token",
			ExpiresIn:    86400,
		},
	}
	s.httpServer = httptest.NewUnstartedServer(s)
	s.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	s.httpServer.StartTLS()
	t.Cleanup(s.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: s.httpServer.Certificate().Raw})
	require.NoError(err)
	s.caCert = buf.String()
	return s
}

// Addr returns the base URL of the test server.
func (s *TestServer) Addr() string { return s.httpServer.URL }

// CACert returns the pem-encoded CA certificate of the test server.
func (s *TestServer) CACert() string { return s.caCert }

// ClientID returns the client id the server accepts.
func (s *TestServer) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// SetClientID configures the client id the server accepts.
func (s *TestServer) SetClientID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = id
}

// SetAcceptedToken restricts the platform tokens the server accepts to
// token. An empty token accepts any platform token.
func (s *TestServer) SetAcceptedToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceptedToken = token
}

// SetReplyCredential configures the credential issued on success.
func (s *TestServer) SetReplyCredential(c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyCred = c
	s.replyErr = nil
	s.replyStatus = 0
}

// SetReplyError forces every exchange to fail with the status code and the
// error code/description.
func (s *TestServer) SetReplyError(status int, code, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyStatus = status
	s.replyErr = &errorResponse{Error: code, ErrorDescription: description}
}

// Requests returns the exchange requests received so far.
func (s *TestServer) Requests() []TestRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TestRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Config returns a Config for the test server.
func (s *TestServer) Config(t *testing.T) *Config {
	t.Helper()
	c, err := NewConfig(s.Addr(), s.ClientID(), WithCACert(s.CACert()))
	require.NoError(t, err)
	return c
}

// ServeHTTP implements the test server's http.Handler.
func (s *TestServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if req.URL.Path != TokenPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in exchangeRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	s.requests = append(s.requests, TestRequest{
		ClientID:    in.ClientID,
		AccessToken: in.AccessToken,
		Connection:  in.Connection,
		Scope:       in.Scope,
		Audience:    in.Audience,
	})
	s.logger.Debug("exchange request", "connection", in.Connection)

	switch {
	case s.replyErr != nil:
		s.writeError(w, s.replyStatus, s.replyErr.Error, s.replyErr.ErrorDescription)
		return
	case in.ClientID != s.clientID:
		s.writeError(w, http.StatusUnauthorized, "access_denied", "unknown client")
		return
	case in.Connection == "":
		s.writeError(w, http.StatusBadRequest, "invalid_request", "missing connection")
		return
	case s.acceptedToken != "" && in.AccessToken != s.acceptedToken:
		s.writeError(w, http.StatusUnauthorized, "invalid_grant", "platform token rejected")
		return
	}
	_ = json.NewEncoder(w).Encode(&s.replyCred)
}

func (s *TestServer) writeError(w http.ResponseWriter, status int, code, description string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&errorResponse{Error: code, ErrorDescription: description})
}

type testServerOptions struct {
	withLogger hclog.Logger
}

func getTestServerOpts(opt ...Option) testServerOptions {
	opts := testServerOptions{withLogger: hclog.NewNullLogger()}
	ApplyOpts(&opts, opt...)
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	return opts
}

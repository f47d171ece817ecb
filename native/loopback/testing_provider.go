// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package loopback

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a local OIDC identity provider for tests. Its /auth
// endpoint consents immediately and redirects back with a code, so an HTTP
// client following redirects plays the part of the browser.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	jwks       *jose.JSONWebKeySet

	mu              sync.Mutex
	clientID        string
	clientSecret    string
	expectedCode    string
	replySubject    string
	replyEmail      string
	replyScope      string
	customClaims    map[string]interface{}
	denyConsent     bool
	omitIDToken     bool
	disableDiscover bool

	lastNonce         string
	lastRedirectURI   string
	lastCodeChallenge string
	lastAuthQuery     url.Values

	ecdsaPublicKey  string
	ecdsaPrivateKey string
}

// StartTestProvider creates a disposable TestProvider which is stopped when
// the test finishes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		clientID:     "test-client-id",
		expectedCode: "test-auth-code",
		replySubject: "alice-subject",
		replyEmail:   "alice@example.com",
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's issuer URL.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the provider's HTTPS
// server.
func (p *TestProvider) CACert() string { return p.caCert }

// ClientID returns the client the provider accepts.
func (p *TestProvider) ClientID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID
}

// SetClientCreds configures the client the provider accepts. An empty
// secret accepts public clients.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the code returned from /auth and accepted
// by /token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedCode = code
}

// SetReplyScope makes /token return scope as the granted scopes. By default
// no scope is returned.
func (p *TestProvider) SetReplyScope(scope string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyScope = scope
}

// SetCustomClaims sets claims added to (or overriding) the issued id_token's
// claims.
func (p *TestProvider) SetCustomClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// DenyConsent makes /auth redirect back with access_denied.
func (p *TestProvider) DenyConsent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denyConsent = true
}

// OmitIDTokens forces an error state where /token does not return an
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// DisableDiscovery makes the discovery endpoint return 404.
func (p *TestProvider) DisableDiscovery() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableDiscover = true
}

// LastAuthQuery returns the query of the last /auth request.
func (p *TestProvider) LastAuthQuery() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthQuery
}

// Config returns a Config for the provider.
func (p *TestProvider) Config(t *testing.T, opt ...Option) *Config {
	t.Helper()
	opt = append([]Option{WithCACert(p.CACert()), WithSupportedSigningAlgs(ES256)}, opt...)
	c, err := NewConfig(p.Addr(), p.ClientID(), "", opt...)
	require.NoError(t, err)
	return c
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)
	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.disableDiscover {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		reply := struct {
			Issuer        string   `json:"issuer"`
			AuthEndpoint  string   `json:"authorization_endpoint"`
			TokenEndpoint string   `json:"token_endpoint"`
			JWKSURI       string   `json:"jwks_uri"`
			Algs          []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:        p.Addr(),
			AuthEndpoint:  p.Addr() + "/auth",
			TokenEndpoint: p.Addr() + "/token",
			JWKSURI:       p.Addr() + "/certs",
			Algs:          []string{string(ES256)},
		}
		p.writeJSON(w, &reply)

	case "/auth":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		p.lastAuthQuery = qv
		redirectURI := qv.Get("redirect_uri")
		switch {
		case redirectURI == "":
			w.WriteHeader(http.StatusBadRequest)
			return
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "unknown client")
			return
		case !strings.Contains(" "+qv.Get("scope")+" ", " openid "):
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		case p.denyConsent:
			p.writeAuthErrorResponse(w, req, "access_denied", "the user denied consent")
			return
		}
		p.lastNonce = qv.Get("nonce")
		p.lastRedirectURI = redirectURI
		p.lastCodeChallenge = qv.Get("code_challenge")

		http.Redirect(w, req, redirectURI+
			"?state="+url.QueryEscape(qv.Get("state"))+
			"&code="+url.QueryEscape(p.expectedCode), http.StatusFound)

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, p.jwks)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		clientID, clientSecret, ok := req.BasicAuth()
		if ok {
			clientID, _ = url.QueryUnescape(clientID)
			clientSecret, _ = url.QueryUnescape(clientSecret)
		} else {
			clientID, clientSecret = req.FormValue("client_id"), req.FormValue("client_secret")
		}
		switch {
		case req.FormValue("grant_type") != "authorization_code":
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case clientID != p.clientID || (p.clientSecret != "" && clientSecret != p.clientSecret):
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		case req.FormValue("redirect_uri") != p.lastRedirectURI:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case req.FormValue("code") != p.expectedCode:
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
			return
		case p.lastCodeChallenge != "" && s256(req.FormValue("code_verifier")) != p.lastCodeChallenge:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match")
			return
		}

		now := time.Now()
		stdClaims := jwt.Claims{
			Subject:   p.replySubject,
			Issuer:    p.Addr(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			Expiry:    jwt.NewNumericDate(now.Add(5 * time.Minute)),
			Audience:  jwt.Audience{p.clientID},
		}
		privateClaims := map[string]interface{}{
			"nonce": p.lastNonce,
			"email": p.replyEmail,
		}
		for k, v := range p.customClaims {
			privateClaims[k] = v
		}
		idToken, err := signJWT(p.ecdsaPrivateKey, stdClaims, privateClaims)
		if err != nil {
			p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}

		reply := struct {
			AccessToken string `json:"access_token"`
			IDToken     string `json:"id_token,omitempty"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
			Scope       string `json:"scope,omitempty"`
		}{
			AccessToken: "test-provider-access-token",
			IDToken:     idToken,
			TokenType:   "Bearer",
			ExpiresIn:   300,
			Scope:       p.replyScope,
		}
		if p.omitIDToken {
			reply.IDToken = ""
		}
		p.writeJSON(w, &reply)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				Algorithm: string(ES256),
				Use:       "sig",
			},
		},
	}
}

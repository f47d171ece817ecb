// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	// DefaultScope is requested when the Config does not specify a scope.
	DefaultScope = "openid"

	// TokenPath is the identity API path of the exchange endpoint.
	TokenPath = "/oauth/access_token"
)

// Config represents the configuration of the identity API that issues
// session credentials in exchange for platform tokens.
type Config struct {
	// BaseURL is the https base URL of the identity API (required).
	BaseURL string

	// ClientID is the identity API client the credential is issued for
	// (required).
	ClientID string

	// Scope is the scope requested for the session credential.
	Scope string

	// Audience is an optional audience for the session credential.
	Audience string

	// CACert is an optional PEM encoded CA certificate used when sending
	// requests to the identity API.
	CACert string
}

// NewConfig composes a new config for the identity API.
//
// Supported options: WithCACert, WithScope, WithAudience
func NewConfig(baseURL, clientID string, opt ...Option) (*Config, error) {
	const op = "exchange.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		ClientID: clientID,
		Scope:    opts.withScope,
		Audience: opts.withAudience,
		CACert:   opts.withCACert,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the config.  It doesn't verify the identity API is reachable.
func (c *Config) Validate() error {
	const op = "exchange.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%s: base url is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%s: base url %q is invalid: %s: %w", op, c.BaseURL, err, ErrInvalidParameter)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s: base url scheme %q is not supported: %w", op, u.Scheme, ErrInvalidParameter)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: base url %q has no host: %w", op, c.BaseURL, ErrInvalidParameter)
	}
	return nil
}

// HTTPClient creates a new http client for the identity API which will use
// the CACert if provided, otherwise the installed system CA chain.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "exchange.(Config).HTTPClient"
	tr := cleanhttp.DefaultPooledTransport()
	if c.CACert != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.CACert)); !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}
	return &http.Client{
		Transport: tr,
	}, nil
}

func (c *Config) tokenURL() string {
	return c.BaseURL + TokenPath
}

func (c *Config) scope() string {
	if c.Scope == "" {
		return DefaultScope
	}
	return c.Scope
}

type configOptions struct {
	withCACert   string
	withScope    string
	withAudience string
}

func configDefaults() configOptions {
	return configOptions{}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package loopback

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/language"
)

const (
	// DefaultListenAddr lets the OS pick a free loopback port.
	DefaultListenAddr = "127.0.0.1:0"

	// DefaultCallbackPath is the path the identity provider redirects to.
	DefaultCallbackPath = "/callback"
)

// Config represents the configuration of an OIDC identity provider used as
// a native consent platform. Consent happens in the system browser and the
// provider redirects back to a listener on the loopback interface.
type Config struct {
	// Issuer is the provider's issuer URL, used for discovery (required).
	Issuer string

	// ClientID is the client registered with the provider (required).
	ClientID string

	// ClientSecret is optional; native clients are usually public clients
	// which rely on PKCE instead.
	ClientSecret string

	// SupportedSigningAlgs are the algorithms accepted for id_token
	// signatures.
	SupportedSigningAlgs []Alg

	// CACert is an optional PEM encoded CA certificate used when sending
	// requests to the provider.
	CACert string

	// ListenAddr is the loopback address the redirect listener binds to.
	ListenAddr string

	// CallbackPath is the path of the redirect listener.
	CallbackPath string

	// UILocales are the end user's preferred languages for the consent UI.
	UILocales []language.Tag
}

// NewConfig composes a new config for an identity provider.
//
// Supported options: WithCACert, WithSupportedSigningAlgs, WithListenAddr,
// WithCallbackPath, WithUILocales
func NewConfig(issuer, clientID, clientSecret string, opt ...Option) (*Config, error) {
	const op = "loopback.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:               issuer,
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		CACert:               opts.withCACert,
		ListenAddr:           opts.withListenAddr,
		CallbackPath:         opts.withCallbackPath,
		UILocales:            opts.withUILocales,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the config.  It doesn't verify the provider is reachable. Every
// problem found is reported.
func (c *Config) Validate() error {
	const op = "loopback.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.Issuer == "" {
		result = multierror.Append(result, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter))
	} else {
		u, err := url.Parse(c.Issuer)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("%s: issuer %q is invalid: %s: %w", op, c.Issuer, err, ErrInvalidParameter))
		case u.Scheme != "https" && u.Scheme != "http":
			result = multierror.Append(result, fmt.Errorf("%s: issuer %q scheme is not http or https: %w", op, c.Issuer, ErrInvalidParameter))
		}
	}
	if len(c.SupportedSigningAlgs) == 0 {
		result = multierror.Append(result, fmt.Errorf("%s: supported algorithms is empty: %w", op, ErrInvalidParameter))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("%s: %s: %w", op, a, ErrUnsupportedAlg))
		}
	}
	if err := validateListenAddr(c.listenAddr()); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if !strings.HasPrefix(c.callbackPath(), "/") {
		result = multierror.Append(result, fmt.Errorf("%s: callback path %q must start with /: %w", op, c.CallbackPath, ErrInvalidParameter))
	}
	return result.ErrorOrNil()
}

// HTTPClient creates a new http client for the provider which will use the
// CACert if provided, otherwise the installed system CA chain.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "loopback.(Config).HTTPClient"
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

func (c *Config) listenAddr() string {
	if c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

func (c *Config) callbackPath() string {
	if c.CallbackPath == "" {
		return DefaultCallbackPath
	}
	return c.CallbackPath
}

func (c *Config) algs() []string {
	algs := make([]string, 0, len(c.SupportedSigningAlgs))
	for _, a := range c.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	return algs
}

func (c *Config) uiLocales() string {
	if len(c.UILocales) == 0 {
		return ""
	}
	tags := make([]string, 0, len(c.UILocales))
	for _, t := range c.UILocales {
		tags = append(tags, t.String())
	}
	return strings.Join(tags, " ")
}

// validateListenAddr only allows loopback addresses, the redirect carries an
// authorization code.
func validateListenAddr(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("listen address %q is invalid: %s: %w", addr, err, ErrInvalidParameter)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("listen address %q is not a loopback address: %w", addr, ErrInvalidParameter)
	}
	return nil
}

type configOptions struct {
	withCACert               string
	withSupportedSigningAlgs []Alg
	withListenAddr           string
	withCallbackPath         string
	withUILocales            []language.Tag
}

func configDefaults() configOptions {
	return configOptions{
		withSupportedSigningAlgs: []Alg{RS256, ES256},
	}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

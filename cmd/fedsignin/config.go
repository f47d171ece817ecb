// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/fedsignin/exchange"
	"github.com/hashicorp/fedsignin/native/loopback"
	"github.com/hashicorp/fedsignin/scope"
	"github.com/hashicorp/fedsignin/signin"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout       = 2 * time.Minute
	defaultRetryDelay    = 5 * time.Second
	defaultMaxRecoveries = 3
)

// config is the YAML configuration of the login command.
type config struct {
	// Issuer is the OIDC issuer of the identity platform.
	Issuer       string   `yaml:"issuer"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	CACertFile   string   `yaml:"ca_cert_file"`
	ListenAddr   string   `yaml:"listen_addr"`
	CallbackPath string   `yaml:"callback_path"`
	UILocales    []string `yaml:"ui_locales"`
	// SigningAlgs the id_token may be signed with, RS256 by default.
	SigningAlgs []string `yaml:"signing_algs"`

	// Scopes the user must grant.
	Scopes            []string `yaml:"scopes"`
	RememberLastLogin *bool    `yaml:"remember_last_login"`

	Exchange exchangeConfig `yaml:"exchange"`

	// BindingStore is the path of the SQLite database sessions are
	// persisted in, so an interrupted login can be resumed.
	BindingStore string `yaml:"binding_store"`

	Timeout       time.Duration `yaml:"timeout"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRecoveries int           `yaml:"max_recoveries"`
}

type exchangeConfig struct {
	BaseURL    string `yaml:"base_url"`
	ClientID   string `yaml:"client_id"`
	Target     string `yaml:"target"`
	Scope      string `yaml:"scope"`
	Audience   string `yaml:"audience"`
	CACertFile string `yaml:"ca_cert_file"`
}

// loadConfig reads the configuration at path. An empty path returns the
// defaults.
func loadConfig(path string) (*config, error) {
	const op = "loadConfig"
	c := &config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read config: %w", op, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: unable to parse %s: %w", op, path, err)
		}
	}
	c.setDefaults()
	return c, nil
}

func (c *config) setDefaults() {
	if c.Exchange.Target == "" {
		c.Exchange.Target = signin.DefaultTarget
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	// a negative max_recoveries disables retries
	if c.MaxRecoveries == 0 {
		c.MaxRecoveries = defaultMaxRecoveries
	}
	if c.RememberLastLogin == nil {
		remember := true
		c.RememberLastLogin = &remember
	}
	c.Scopes = scope.Dedup(c.Scopes)
}

// validate reports every missing setting at once.
func (c *config) validate() error {
	var result *multierror.Error
	if c.Issuer == "" {
		result = multierror.Append(result, errors.New("issuer is required"))
	}
	if c.ClientID == "" {
		result = multierror.Append(result, errors.New("client_id is required"))
	}
	if c.Exchange.BaseURL == "" {
		result = multierror.Append(result, errors.New("exchange.base_url is required"))
	}
	if c.Exchange.ClientID == "" {
		result = multierror.Append(result, errors.New("exchange.client_id is required"))
	}
	return result.ErrorOrNil()
}

func (c *config) loopbackConfig() (*loopback.Config, error) {
	const op = "(config).loopbackConfig"
	var opts []loopback.Option
	if c.CACertFile != "" {
		pem, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read ca_cert_file: %w", op, err)
		}
		opts = append(opts, loopback.WithCACert(string(pem)))
	}
	if len(c.SigningAlgs) > 0 {
		algs := make([]loopback.Alg, 0, len(c.SigningAlgs))
		for _, a := range c.SigningAlgs {
			algs = append(algs, loopback.Alg(a))
		}
		opts = append(opts, loopback.WithSupportedSigningAlgs(algs...))
	}
	if c.ListenAddr != "" {
		opts = append(opts, loopback.WithListenAddr(c.ListenAddr))
	}
	if c.CallbackPath != "" {
		opts = append(opts, loopback.WithCallbackPath(c.CallbackPath))
	}
	if len(c.UILocales) > 0 {
		tags := make([]language.Tag, 0, len(c.UILocales))
		for _, l := range c.UILocales {
			tag, err := language.Parse(l)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid ui locale %q: %w", op, l, err)
			}
			tags = append(tags, tag)
		}
		opts = append(opts, loopback.WithUILocales(tags...))
	}
	lc, err := loopback.NewConfig(c.Issuer, c.ClientID, c.ClientSecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return lc, nil
}

func (c *config) exchangeClient(logger hclog.Logger) (*exchange.Client, error) {
	const op = "(config).exchangeClient"
	var opts []exchange.Option
	if c.Exchange.CACertFile != "" {
		pem, err := os.ReadFile(c.Exchange.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read exchange.ca_cert_file: %w", op, err)
		}
		opts = append(opts, exchange.WithCACert(string(pem)))
	}
	if c.Exchange.Scope != "" {
		opts = append(opts, exchange.WithScope(c.Exchange.Scope))
	}
	if c.Exchange.Audience != "" {
		opts = append(opts, exchange.WithAudience(c.Exchange.Audience))
	}
	ec, err := exchange.NewConfig(c.Exchange.BaseURL, c.Exchange.ClientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := exchange.NewClient(ec, exchange.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

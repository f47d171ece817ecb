// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"fmt"

	"github.com/hashicorp/fedsignin/exchange"
	"github.com/hashicorp/fedsignin/native"
)

// DefaultTarget is the exchange target used when none is configured.
const DefaultTarget = "google-oauth2"

// Config represents the configuration of an Orchestrator.
type Config struct {
	// GatewayFactory creates the native gateway of each session (required).
	GatewayFactory native.GatewayFactory

	// Exchanger exchanges platform tokens for session credentials
	// (required).
	Exchanger exchange.Exchanger

	// Target is the exchange target, the identity API connection which
	// must honor the platform token (required).
	Target string

	// Scopes are the scopes the user must grant. An empty list accepts
	// whatever is granted.
	Scopes []string

	// RememberLastLogin reuses the last platform login instead of asking
	// the user to select an account again.
	RememberLastLogin bool

	// RequiredPermissions are the host permissions which must be granted
	// before a sign-in starts. They're reported, not enforced.
	RequiredPermissions []string
}

// NewConfig composes a new config for an Orchestrator.
//
// Supported options: WithTarget, WithScopes, WithRememberLastLogin,
// WithRequiredPermissions
func NewConfig(gf native.GatewayFactory, ex exchange.Exchanger, opt ...Option) (*Config, error) {
	const op = "signin.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		GatewayFactory:      gf,
		Exchanger:           ex,
		Target:              opts.withTarget,
		Scopes:              opts.withScopes,
		RememberLastLogin:   opts.withRememberLastLogin,
		RequiredPermissions: opts.withRequiredPermissions,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the config.
func (c *Config) Validate() error {
	const op = "signin.(Config).Validate"
	switch {
	case c == nil:
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	case c.GatewayFactory == nil:
		return fmt.Errorf("%s: gateway factory is nil: %w", op, ErrNilParameter)
	case c.Exchanger == nil:
		return fmt.Errorf("%s: exchanger is nil: %w", op, ErrNilParameter)
	case c.Target == "":
		return fmt.Errorf("%s: exchange target is empty: %w", op, ErrInvalidParameter)
	}
	return nil
}

type configOptions struct {
	withTarget              string
	withScopes              []string
	withRememberLastLogin   bool
	withRequiredPermissions []string
}

func configDefaults() configOptions {
	return configOptions{
		withTarget:            DefaultTarget,
		withRememberLastLogin: true,
	}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

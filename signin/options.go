// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithTarget provides the exchange target (the identity API connection).
//
// Valid for: Config
func WithTarget(target string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTarget = target
		}
	}
}

// WithScopes provides the scopes the user must grant.
//
// Valid for: Config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithRememberLastLogin sets whether the last platform login is reused.
//
// Valid for: Config
func WithRememberLastLogin(remember bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRememberLastLogin = remember
		}
	}
}

// WithRequiredPermissions provides the host permissions which must be
// granted before a sign-in starts.
//
// Valid for: Config
func WithRequiredPermissions(permissions ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRequiredPermissions = permissions
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: Orchestrator, Registry
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		switch o := o.(type) {
		case *orchestratorOptions:
			o.withLogger = l
		case *registryOptions:
			o.withLogger = l
		}
	}
}

// WithExecutor provides an optional executor which runs the orchestrator's
// continuations. The default runs each in a new goroutine.
//
// Valid for: Orchestrator
func WithExecutor(fn func(func())) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withExecutor = fn
		}
	}
}

// WithBindingStore provides a store which persists sessions so they can be
// reattached with Orchestrator.Reattach.
//
// Valid for: Orchestrator
func WithBindingStore(s BindingStore) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withBindingStore = s
		}
	}
}

// WithBindingKey provides the key the orchestrator's session is persisted
// under. Orchestrators sharing a store need distinct keys.
//
// Valid for: Orchestrator
func WithBindingKey(key string) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withBindingKey = key
		}
	}
}

// WithBindingTTL overrides how long a persisted session can be reattached.
//
// Valid for: Orchestrator
func WithBindingTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withBindingTTL = d
		}
	}
}

// WithExpirySkew overrides the time skew used when checking a binding's
// expiration.
//
// Valid for: Orchestrator
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withExpirySkew = d
		}
	}
}

// WithClock changes the clock used for binding expiration.
//
// Valid for: Orchestrator
func WithClock(clock clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withClock = clock
		}
	}
}

// WithMetrics registers the orchestrator's counters, or the registry's
// gauge, with r.
//
// Valid for: Orchestrator, Registry
func WithMetrics(r prometheus.Registerer) Option {
	return func(o interface{}) {
		switch o := o.(type) {
		case *orchestratorOptions:
			o.withMetrics = r
		case *registryOptions:
			o.withMetrics = r
		}
	}
}

type orchestratorOptions struct {
	withLogger       hclog.Logger
	withExecutor     func(func())
	withBindingStore BindingStore
	withBindingKey   string
	withBindingTTL   time.Duration
	withExpirySkew   time.Duration
	withClock        clockwork.Clock
	withMetrics      prometheus.Registerer
}

func orchestratorDefaults() orchestratorOptions {
	return orchestratorOptions{
		withLogger:     hclog.NewNullLogger(),
		withExecutor:   func(fn func()) { go fn() },
		withBindingKey: DefaultTarget,
		withBindingTTL: DefaultBindingTTL,
		withExpirySkew: DefaultBindingExpirySkew,
		withClock:      clockwork.NewRealClock(),
	}
}

func getOrchestratorOpts(opt ...Option) orchestratorOptions {
	opts := orchestratorDefaults()
	ApplyOpts(&opts, opt...)
	defaults := orchestratorDefaults()
	if opts.withLogger == nil {
		opts.withLogger = defaults.withLogger
	}
	if opts.withExecutor == nil {
		opts.withExecutor = defaults.withExecutor
	}
	if opts.withClock == nil {
		opts.withClock = defaults.withClock
	}
	if opts.withBindingKey == "" {
		opts.withBindingKey = defaults.withBindingKey
	}
	return opts
}

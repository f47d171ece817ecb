// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry resolves the Orchestrator which handles a (strategy, connection)
// pair. An orchestrator registered with an empty connection handles every
// connection of its strategy.
type Registry struct {
	logger     hclog.Logger
	registered prometheus.Gauge

	mu        sync.RWMutex
	providers map[registryKey]*Orchestrator
}

type registryKey struct {
	strategy   string
	connection string
}

// NewRegistry creates an empty Registry.
//
// Supported options: WithLogger, WithMetrics
func NewRegistry(opt ...Option) (*Registry, error) {
	const op = "signin.NewRegistry"
	opts := getRegistryOpts(opt...)
	r := &Registry{
		logger:    opts.withLogger,
		providers: map[registryKey]*Orchestrator{},
	}
	if opts.withMetrics != nil {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "providers_registered",
			Help:      "Orchestrators registered with the provider registry.",
		})
		var err error
		if r.registered, err = register(opts.withMetrics, g); err != nil {
			return nil, fmt.Errorf("%s: unable to register metrics: %w", op, err)
		}
	}
	return r, nil
}

// Register makes o the handler of strategy and connection. It's an error
// to register the same pair twice.
func (r *Registry) Register(strategy, connection string, o *Orchestrator) error {
	const op = "signin.(Registry).Register"
	strategy = strings.TrimSpace(strategy)
	switch {
	case strategy == "":
		return fmt.Errorf("%s: strategy is empty: %w", op, ErrInvalidParameter)
	case o == nil:
		return fmt.Errorf("%s: orchestrator is nil: %w", op, ErrNilParameter)
	}
	k := registryKey{strategy: strategy, connection: strings.TrimSpace(connection)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[k]; ok {
		return fmt.Errorf("%s: %s/%s is already registered: %w", op, k.strategy, k.connection, ErrInvalidParameter)
	}
	r.providers[k] = o
	r.setGauge()
	r.logger.Debug("registered provider", "strategy", k.strategy, "connection", k.connection)
	return nil
}

// Unregister removes the handler of strategy and connection, if any.
func (r *Registry) Unregister(strategy, connection string) {
	k := registryKey{strategy: strings.TrimSpace(strategy), connection: strings.TrimSpace(connection)}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, k)
	r.setGauge()
}

// ProviderFor returns the orchestrator registered for strategy and
// connection, falling back to the one registered for the whole strategy.
func (r *Registry) ProviderFor(strategy, connection string) (*Orchestrator, bool) {
	strategy, connection = strings.TrimSpace(strategy), strings.TrimSpace(connection)
	if strategy == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.providers[registryKey{strategy: strategy, connection: connection}]; ok {
		return o, true
	}
	if o, ok := r.providers[registryKey{strategy: strategy}]; ok {
		return o, true
	}
	r.logger.Trace("no provider registered", "strategy", strategy, "connection", connection)
	return nil, false
}

// Strategies returns the registered strategies, sorted.
func (r *Registry) Strategies() []string {
	r.mu.RLock()
	seen := map[string]struct{}{}
	for k := range r.providers {
		seen[k.strategy] = struct{}{}
	}
	r.mu.RUnlock()
	strategies := make([]string, 0, len(seen))
	for s := range seen {
		strategies = append(strategies, s)
	}
	sort.Strings(strategies)
	return strategies
}

// setGauge must be called with r.mu held.
func (r *Registry) setGauge() {
	if r.registered != nil {
		r.registered.Set(float64(len(r.providers)))
	}
}

type registryOptions struct {
	withLogger  hclog.Logger
	withMetrics prometheus.Registerer
}

func registryDefaults() registryOptions {
	return registryOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getRegistryOpts(opt ...Option) registryOptions {
	opts := registryDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	return opts
}

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "fedsignin"

// Outcome labels of the sign-in outcome counter.
const (
	OutcomeSuccess               = "success"
	OutcomeCancelled             = "cancelled"
	OutcomeCapabilityUnavailable = "capability_unavailable"
	OutcomeScopesNotGranted      = "scopes_not_granted"
	OutcomeExchangeFailed        = "exchange_failed"
	OutcomeFailed                = "failed"
)

// metrics are the orchestrator counters. A nil *metrics records nothing.
type metrics struct {
	started    prometheus.Counter
	recoveries prometheus.Counter
	outcomes   *prometheus.CounterVec
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	const op = "signin.newMetrics"
	if r == nil {
		return nil, nil
	}
	m := &metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "flows_started_total",
			Help:      "Sign-in flows started.",
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "recoveries_offered_total",
			Help:      "Recovery actions handed to the caller.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "flows_completed_total",
			Help:      "Sign-in flows completed, by outcome.",
		}, []string{"outcome"}),
	}
	var err error
	if m.started, err = register(r, m.started); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.recoveries, err = register(r, m.recoveries); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.outcomes, err = register(r, m.outcomes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// register returns the already registered collector when orchestrators
// share a registerer.
func register[T prometheus.Collector](r prometheus.Registerer, c T) (T, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) flowStarted() {
	if m == nil {
		return
	}
	m.started.Inc()
}

func (m *metrics) recoveryOffered() {
	if m == nil {
		return
	}
	m.recoveries.Inc()
}

func (m *metrics) flowCompleted(err error) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome(err)).Inc()
}

// outcome classifies a terminal error into an outcome label.
func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrUserCancelled):
		return OutcomeCancelled
	case errors.Is(err, ErrCapabilityUnavailable):
		return OutcomeCapabilityUnavailable
	case errors.Is(err, ErrScopesNotGranted):
		return OutcomeScopesNotGranted
	case errors.Is(err, ErrExchangeFailed):
		return OutcomeExchangeFailed
	default:
		return OutcomeFailed
	}
}

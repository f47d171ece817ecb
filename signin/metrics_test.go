// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"context"
	"testing"

	"github.com/hashicorp/fedsignin/native"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue returns the value of the named metric with the given label
// values, or zero if it hasn't been reported.
func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metric
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
		}
	}
	return 0
}

func gaugeValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

func TestOrchestrator_metrics(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	env := testRecoverableEnv(t, WithMetrics(reg))
	env.start(t)
	env.platform(t, 0).SetAvailability(native.StatusSuccess)
	require.True(env.o.Resume(ctx, testResolutionRC, native.ResultOK, nil))
	require.True(env.o.Resume(ctx, testConsentRC, native.ResultOK, testPayload))

	// a second orchestrator shares the registered counters
	other := newTestEnv(t, WithMetrics(reg))
	other.start(t)
	require.True(other.o.Resume(ctx, testConsentRC, native.ResultCanceled, nil))

	assert.Equal(2.0, counterValue(t, reg, "fedsignin_flows_started_total", nil))
	assert.Equal(1.0, counterValue(t, reg, "fedsignin_recoveries_offered_total", nil))
	assert.Equal(1.0, counterValue(t, reg, "fedsignin_flows_completed_total", map[string]string{"outcome": OutcomeSuccess}))
	assert.Equal(1.0, counterValue(t, reg, "fedsignin_flows_completed_total", map[string]string{"outcome": OutcomeCancelled}))
	assert.Zero(counterValue(t, reg, "fedsignin_flows_completed_total", map[string]string{"outcome": OutcomeFailed}))
}

func Test_newMetrics(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	m, err := newMetrics(nil)
	require.NoError(err)
	assert.Nil(m)
	// a nil *metrics records nothing
	m.flowStarted()
	m.recoveryOffered()
	m.flowCompleted(nil)

	reg := prometheus.NewRegistry()
	require.NoError(reg.Register(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "flows_started_total",
		Help:      "Conflicting help.",
	})))
	_, err = newMetrics(reg)
	assert.Error(err)
}

// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import "fmt"

// Phase is where an Orchestrator is in a sign-in flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCapabilityChecking
	PhaseConsentPending
	PhaseErrorResolutionPending
	PhaseScopeChecking
	PhaseTokenExchanging

	// terminal phases
	PhaseSucceeded
	PhaseCancelled
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:                   "idle",
	PhaseCapabilityChecking:     "capability-checking",
	PhaseConsentPending:         "consent-pending",
	PhaseErrorResolutionPending: "error-resolution-pending",
	PhaseScopeChecking:          "scope-checking",
	PhaseTokenExchanging:        "token-exchanging",
	PhaseSucceeded:              "succeeded",
	PhaseCancelled:              "cancelled",
	PhaseFailed:                 "failed",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether the flow is over.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseCancelled || p == PhaseFailed
}

// ParsePhase returns the Phase named s.
func ParsePhase(s string) (Phase, error) {
	for p, n := range phaseNames {
		if n == s {
			return p, nil
		}
	}
	return PhaseIdle, fmt.Errorf("signin.ParsePhase: unknown phase %q: %w", s, ErrInvalidParameter)
}

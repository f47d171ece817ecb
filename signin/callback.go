// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"github.com/hashicorp/fedsignin/exchange"
	"github.com/hashicorp/fedsignin/native"
	"github.com/hashicorp/go-hclog"
)

// Callback receives the outcome of a sign-in flow. Exactly one of OnSuccess
// or OnFailure is called per flow. OnRecovery may be called before that,
// any number of times, when the user can resolve a problem through platform
// UI; the flow resumes once the action's result is passed to Resume.
type Callback interface {
	OnSuccess(c *exchange.Credential)
	OnFailure(err error)
	OnRecovery(a *native.RecoveryAction)
}

// CallbackFuncs adapts funcs to the Callback interface. Nil funcs are
// skipped.
type CallbackFuncs struct {
	Success  func(c *exchange.Credential)
	Failure  func(err error)
	Recovery func(a *native.RecoveryAction)
}

// ensure that CallbackFuncs implements the Callback interface
var _ Callback = CallbackFuncs{}

// OnSuccess implements Callback.
func (f CallbackFuncs) OnSuccess(c *exchange.Credential) {
	if f.Success != nil {
		f.Success(c)
	}
}

// OnFailure implements Callback.
func (f CallbackFuncs) OnFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

// OnRecovery implements Callback.
func (f CallbackFuncs) OnRecovery(a *native.RecoveryAction) {
	if f.Recovery != nil {
		f.Recovery(a)
	}
}

// noSessionCallback stands in for the callback of a session which is no
// longer active.
type noSessionCallback struct {
	logger hclog.Logger
}

func (c noSessionCallback) OnSuccess(*exchange.Credential) {
	c.logger.Warn("using callback when no sign-in session is running", "delivery", "success")
}

func (c noSessionCallback) OnFailure(err error) {
	c.logger.Warn("using callback when no sign-in session is running", "delivery", "failure", "error", err)
}

func (c noSessionCallback) OnRecovery(a *native.RecoveryAction) {
	c.logger.Warn("using callback when no sign-in session is running", "delivery", "recovery", "action", a)
}

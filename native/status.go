// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import "fmt"

// Status is the availability of the native consent provider on this host.
type Status int

const (
	// StatusSuccess means the consent provider is available.
	StatusSuccess Status = iota

	// StatusServiceMissing means the consent provider is not installed.
	StatusServiceMissing

	// StatusServiceUpdating means the consent provider is being updated.
	StatusServiceUpdating

	// StatusServiceVersionUpdateRequired means the installed consent provider
	// is too old.
	StatusServiceVersionUpdateRequired

	// StatusServiceDisabled means the consent provider was disabled by the
	// user or an administrator.
	StatusServiceDisabled

	// StatusNetworkError means the consent provider could not be reached.
	StatusNetworkError

	// StatusServiceInvalid means the consent provider is not genuine or is
	// misconfigured.
	StatusServiceInvalid

	// StatusUnsupported means the host can't run the consent provider.
	StatusUnsupported

	// StatusInternalError is an unclassified failure.
	StatusInternalError
)

var statusNames = map[Status]string{
	StatusSuccess:                      "success",
	StatusServiceMissing:               "service-missing",
	StatusServiceUpdating:              "service-updating",
	StatusServiceVersionUpdateRequired: "service-version-update-required",
	StatusServiceDisabled:              "service-disabled",
	StatusNetworkError:                 "network-error",
	StatusServiceInvalid:               "service-invalid",
	StatusUnsupported:                  "unsupported",
	StatusInternalError:                "internal-error",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsRecoverable reports whether the user can resolve the status through the
// platform's recovery UI (install, update, enable, reconnect).
func (s Status) IsRecoverable() bool {
	switch s {
	case StatusServiceMissing,
		StatusServiceUpdating,
		StatusServiceVersionUpdateRequired,
		StatusServiceDisabled,
		StatusNetworkError:
		return true
	default:
		return false
	}
}

// ResultCode is the outcome a host reports when a launched native UI
// finishes.
type ResultCode int

const (
	// ResultCanceled means the user dismissed the native UI.
	ResultCanceled ResultCode = iota

	// ResultOK means the native UI completed.
	ResultOK
)

func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

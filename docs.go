// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// fedsignin (federated native sign-in) provides a collection of related
// packages which sign a user in through a platform's native consent UI and
// exchange the platform token for a session credential issued by an
// identity API.
//
// The signin package runs the flow, the native package adapts platform
// consent providers, native/loopback implements one with an OIDC provider
// and the system browser, and exchange talks to the identity API.
//
// See cmd/fedsignin for a command line client.
package fedsignin

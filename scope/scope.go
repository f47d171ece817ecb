// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package scope compares the capability sets requested for a sign-in flow
// with the ones the identity platform actually granted.
package scope

import (
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// IsSatisfied reports whether every requested scope was granted. An empty
// requested set is always satisfied. Comparison is case-sensitive, since
// OAuth scope tokens are case-sensitive.
func IsSatisfied(requested, granted []string) bool {
	return strutil.StrListSubset(granted, requested)
}

// Missing returns the requested scopes which are not part of granted, in
// the order they were requested and without duplicates.
func Missing(requested, granted []string) []string {
	var missing []string
	for _, s := range strutil.RemoveDuplicatesStable(requested, false) {
		if !strutil.StrListContains(granted, s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// Parse splits a space delimited scope string (the form used by OAuth token
// responses) into its scopes. Empty entries are dropped.
func Parse(s string) []string {
	return strings.Fields(s)
}

// Join returns the space delimited form of scopes with duplicates removed,
// preserving the first occurrence order.
func Join(scopes []string) string {
	return strings.Join(Dedup(scopes), " ")
}

// Dedup returns scopes without empty or duplicate entries, preserving the
// first occurrence order.
func Dedup(scopes []string) []string {
	if scopes == nil {
		return nil
	}
	return strutil.RemoveDuplicatesStable(strutil.RemoveEmpty(strutil.TrimStrings(scopes)), false)
}

// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package glossary

import "strings"

// Normalize canonicalizes a key or value for comparison: whitespace
// trimmed, lower-cased. Storage and display keep the original form;
// only comparisons and backend addressing use the normalized one.
// An input that normalizes to "" is invalid wherever a key or value
// is required.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

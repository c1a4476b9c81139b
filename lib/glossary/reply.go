// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package glossary

import (
	"fmt"
	"strings"
	"time"
)

// Reply templates. Every user-facing reply is drawn from this fixed
// set; user-supplied keys and values are interpolated literally.
const (
	replyInvalidAdd      = "Invalid format. Use: !add <key>: <value>"
	replyInvalidMultiAdd = "Invalid format. Use: !multi-add with one <key>: <value>; per line"
	replyInvalidRemove   = "Invalid format. Use: !remove <key> or !remove <key>: <value>"
	replyInvalidDetails  = "Invalid format. Use: !details <key>: <value>"
	replyInvalidKey      = "Invalid key."
	replySaveError       = "An error occurred while saving."

	replyAdded         = "Added value %q to key %q."
	replyDuplicate     = "Key %q already has value %q."
	replyValueRemoved  = "Removed value %q from key %q."
	replyKeyRemoved    = "Removed key %q and all its values."
	replyKeyNotFound   = "Key %q not found."
	replyValueNotFound = "Key %q has no value %q."
	replySearchMiss    = "No entry for %q. Add one with: !add <key>: <value>"
)

// helpText is the static usage reply. It enumerates the five commands
// plus the bare-key search and never varies.
const helpText = `termkeep glossary commands:
!add <key>: <value>         add a definition for a key
!multi-add                  add several definitions, one <key>: <value>; per line
!remove <key>               remove a key and all its definitions
!remove <key>: <value>      remove a single definition
!details <key>: <value>     show who added a definition and when
!help                       show this text
Any other message looks up its text as a key.`

// displayTimeFormat renders stored RFC 3339 timestamps for humans.
const displayTimeFormat = "2 Jan 2006 15:04 MST"

// FormatValues renders a key's definitions. Single value:
//
//	Key: <key>
//	Value: <v>
//
// Multiple values get a count header and a numbered list in insertion
// order.
func FormatValues(key string, values []Value) string {
	if len(values) == 1 {
		return fmt.Sprintf("Key: %s\nValue: %s", key, values[0].Text)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Key: %s\nValues (%d):", key, len(values))
	for index, value := range values {
		fmt.Fprintf(&builder, "\n%d. %s", index+1, value.Text)
	}
	return builder.String()
}

// formatDetails renders the provenance reply for one value: key,
// value, creation time, author.
func formatDetails(key string, value Value) string {
	return fmt.Sprintf("Key: %s\nValue: %s\nAdded: %s\nBy: %s",
		key, value.Text, formatTimestamp(value.CreatedAt), value.CreatedBy)
}

// formatTimestamp renders a stored RFC 3339 timestamp for display.
// Unparseable timestamps (hand-edited databases, older formats) are
// shown verbatim rather than hidden.
func formatTimestamp(stored string) string {
	parsed, err := time.Parse(time.RFC3339, stored)
	if err != nil {
		return stored
	}
	return parsed.Format(displayTimeFormat)
}

// formatMultiAddSummary renders the multi-add tally. The added count
// always appears; duplicate and failure counts only when nonzero.
func formatMultiAddSummary(added, duplicates, failed int) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Added %d value(s).", added)
	if duplicates > 0 {
		fmt.Fprintf(&builder, " Skipped %d duplicate(s).", duplicates)
	}
	if failed > 0 {
		fmt.Fprintf(&builder, " %d failed to save.", failed)
	}
	return builder.String()
}

// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package glossary implements the termkeep core: a conversational
// key-value glossary. Terms (keys) map to ordered lists of definition
// values, each carrying provenance (who added it, when). Keys and
// values compare case-insensitively after trimming; original casing
// is preserved for display.
//
// The package has three layers. The parser turns free-form message
// text into structured commands (pure functions, no state). The
// [Store] applies glossary operations against a [Backend], the
// injectable persistence collaborator. The [Dispatcher] ties them
// together: it classifies one inbound message, runs the matching
// handler, and produces the reply text. All user-facing replies come
// from a fixed template table — there is no free-form text generation.
//
// Every mutation round-trips a key's whole value list through the
// backend (read, modify, full replacement write). Two concurrent
// mutations of the same key can therefore lose an update; see the
// Store documentation.
package glossary

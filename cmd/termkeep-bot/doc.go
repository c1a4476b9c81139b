// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

// termkeep-bot is the Matrix glossary bot. It long-polls the
// homeserver for direct messages, interprets glossary commands
// (!add, !multi-add, !remove, !details, !help) and bare-key lookups,
// and persists the glossary in a local SQLite database. A Unix admin
// socket exposes stats, key listing, and full export for operators.
package main

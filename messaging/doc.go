// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging implements the Matrix client-server API surface
// the glossary bot needs: password login or token reuse, long-poll
// sync, room membership queries, profile lookups, and message sends.
//
// A Client is the unauthenticated transport (homeserver URL plus HTTP
// client). A DirectSession wraps a Client with an access token held in
// mmap-backed memory. Code that consumes the API should depend on the
// Session interface, which makes the transport fakeable in tests.
package messaging

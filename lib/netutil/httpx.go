// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reading for the
// Matrix client. Bounding body reads prevents a misbehaving server
// from exhausting memory; the limit is generous enough that it never
// interferes with legitimate client-server API responses.
package netutil

import "io"

// MaxResponseSize is the bound on API response body reads: 64 MB.
// Matrix /sync responses for busy accounts run to megabytes; real
// responses never approach this limit.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

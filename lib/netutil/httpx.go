// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides small network I/O utilities shared by the
// REST client and the event channel.
//
// Response helpers bound all body reads at MaxResponseSize so a
// misbehaving server cannot exhaust memory. They are for JSON API
// responses, not streaming bodies.
package netutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// MaxResponseSize bounds JSON API response body reads: 64 MB. The
// chat API's largest legitimate response is a message history page,
// orders of magnitude below this; the bound only guards against a
// pathological server.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll for HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON API response body (bounded) and decodes
// it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection
// reset. The channel's read pump sees these during every deliberate
// disconnect; they are not worth logging as errors.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

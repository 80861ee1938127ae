// Pulse - Real-time Bittensor Network Metrics Distribution
// Copyright 2026 DeAI Nexus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deainexus/pulse

package upstream

import (
	"errors"
	"fmt"
)

// Error is the typed failure every upstream client returns. The route layer
// maps it to a user-visible failure response; the refresh loops treat it as
// a signal to back off while continuing to serve the last cached value.
type Error struct {
	// Provider identifies the upstream ("coingecko", "taostats").
	Provider string

	// Status is the HTTP status code, or 0 for transport-level failures
	// (timeout, connection refused, open circuit).
	Status int

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ue *Error
	ok := errors.As(err, &ue)
	return ue, ok
}

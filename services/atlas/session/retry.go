// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy is the one consolidated retry rule for session state
// fetches: bounded attempts with a fixed short delay, applied only to
// the transient busy condition. Not-found and other errors return
// immediately to the caller, which decides user-facing handling.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Delay is the fixed wait between busy attempts.
	Delay time.Duration
}

// DefaultRetryPolicy returns the production policy: 3 attempts,
// 100ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 100 * time.Millisecond}
}

// Do runs op, retrying busy failures per the policy.
//
// Context cancellation interrupts the delay and returns the context's
// error. The last busy error is returned after attempts exhaust.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || !isBusy(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		busyRetriesTotal.Inc()
		slog.Debug("session busy, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", p.Delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return err
}

func isBusy(err error) bool {
	return errors.Is(err, ErrSessionBusy)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session reconciles optimistic local session mutations with
// authoritative remote state.
//
// A live session shares state (active agent/mode, message list,
// workbench view) with a remote process that mutates it concurrently.
// The Reconciler applies local mutations immediately to an overlay,
// periodically merges fetched authoritative snapshots underneath, and
// exposes one consistent effective state that never regresses:
//
//   - a user write outranks conflicting fetched data for a bounded
//     priority window after the write
//   - the visible message list never shrinks because of a stale fetch
//   - a failed fetch never partially applies; the prior baseline stays
//
// # Session Keys
//
// State keys are opaque to this package with one exception: the
// "messages" key, whose value is a list guarded by the monotonic
// length invariant.
//
// # Thread Safety
//
// Reconciler is safe for concurrent use. The original design ran on a
// single-threaded event loop; here interleaving is serialized with a
// mutex instead.
package session

import "errors"

// Sentinel errors for session state synchronization.
var (
	// ErrSessionBusy is the transient condition reported by the state
	// provider when a concurrent write is in progress. Fetches failing
	// with it are retried with a fixed short delay, bounded attempts.
	ErrSessionBusy = errors.New("session state is busy")

	// ErrSessionNotFound means the remote session no longer exists.
	// Surfaced as a distinct, user-actionable condition; never silently
	// retried, and already-merged local state is NOT cleared.
	ErrSessionNotFound = errors.New("session not found")
)

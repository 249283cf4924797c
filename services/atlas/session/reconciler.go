// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/cartomind/cartograph/services/atlas/events"
)

// KeyMessages is the one session key the reconciler interprets: its
// value is a list guarded by the monotonic length invariant.
const KeyMessages = "messages"

// DefaultPriorityWindow is how long a user-originated write outranks
// conflicting fetched data.
const DefaultPriorityWindow = 5 * time.Second

// Origin identifies who produced a local mutation.
type Origin string

const (
	// OriginUser marks a mutation the user made in this client.
	// User writes win merge conflicts within the priority window.
	OriginUser Origin = "user"

	// OriginServerPush marks a mutation delivered by a server push
	// event. Push writes never outrank a fresh authoritative fetch.
	OriginServerPush Origin = "server-push"
)

// State is an open-ended key/value mapping of shared session values.
// Keys are opaque to the reconciler except KeyMessages.
type State = map[string]any

// StateProvider fetches and pushes authoritative session state.
//
// Implementations report a busy condition as ErrSessionBusy (wrapped is
// fine) and a missing session as ErrSessionNotFound.
type StateProvider interface {
	// FetchState returns the full current state for a session.
	FetchState(ctx context.Context, sessionID string) (State, error)

	// PushUpdate sends a partial update for a session.
	PushUpdate(ctx context.Context, sessionID string, mutation State) error
}

// Clock abstracts time for priority window tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// overlayEntry is one locally-applied, not-yet-reconciled mutation.
type overlayEntry struct {
	value     any
	appliedAt time.Time
	origin    Origin
}

// Reconciler owns the effective state of one logical session at a time.
//
// Local mutations apply immediately to an overlay; authoritative
// fetches merge underneath with recency and priority rules. Switching
// sessions clears everything; there is no carryover.
type Reconciler struct {
	mu          sync.Mutex
	sessionID   string
	baseline    State
	overlay     map[string]overlayEntry
	overlayKeys []string // insertion order, for deterministic application
	maxMessages int      // highest message count any caller has observed

	window   time.Duration
	clock    Clock
	provider StateProvider
	retry    RetryPolicy
	emitter  *events.Emitter
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithPriorityWindow overrides DefaultPriorityWindow.
func WithPriorityWindow(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithClock injects a clock, for tests.
func WithClock(c Clock) ReconcilerOption {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithProvider sets the authoritative state provider used by Sync.
func WithProvider(p StateProvider) ReconcilerOption {
	return func(r *Reconciler) {
		r.provider = p
	}
}

// WithRetryPolicy overrides the busy-retry policy used by Sync.
func WithRetryPolicy(p RetryPolicy) ReconcilerOption {
	return func(r *Reconciler) {
		r.retry = p
	}
}

// WithEmitter attaches an observability event emitter.
func WithEmitter(e *events.Emitter) ReconcilerOption {
	return func(r *Reconciler) {
		r.emitter = e
	}
}

// NewReconciler creates a reconciler for the given session.
func NewReconciler(sessionID string, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		sessionID: sessionID,
		baseline:  State{},
		overlay:   make(map[string]overlayEntry),
		window:    DefaultPriorityWindow,
		clock:     systemClock{},
		retry:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SessionID returns the active session identity.
func (r *Reconciler) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// ApplyLocal records a mutation in the overlay, effective immediately.
//
// Calls are ordered by call order and are never lost: the overlay is
// append/merge-only until entries are pruned after the priority window
// or the session changes. The mutation map is copied; the caller may
// reuse it.
func (r *Reconciler) ApplyLocal(mutation State, origin Origin) {
	if len(mutation) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for k, v := range mutation {
		if _, exists := r.overlay[k]; !exists {
			r.overlayKeys = append(r.overlayKeys, k)
		}
		r.overlay[k] = overlayEntry{value: v, appliedAt: now, origin: origin}

		if k == KeyMessages {
			if n := listLen(v); n > r.maxMessages {
				r.maxMessages = n
			}
		}
	}
	localMutationsTotal.WithLabelValues(string(origin)).Inc()
}

// ApplyFetched merges an authoritative snapshot into the baseline.
//
// For any key both the overlay and the fetch specify, the overlay wins
// only if it was written by the user and within the priority window;
// otherwise the fetched value wins. For KeyMessages, a fetched list
// shorter than the length most recently observed by any caller is
// discarded for that key only, preserving the monotonic message count
// while every other key still merges.
//
// The merged result becomes the new baseline, and overlay entries
// older than the priority window are pruned.
func (r *Reconciler) ApplyFetched(fetched State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyFetchedLocked(fetched)
}

// applyFetchedFor merges fetched state only while sessionID is still
// the active session. The identity check shares the merge's critical
// section, so a session switch can never land between them. Returns
// the session that owns the reconciler and whether the merge applied.
func (r *Reconciler) applyFetchedFor(sessionID string, fetched State) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionID != sessionID {
		return r.sessionID, false
	}
	r.applyFetchedLocked(fetched)
	return sessionID, true
}

func (r *Reconciler) applyFetchedLocked(fetched State) {
	now := r.clock.Now()
	r.pruneLocked(now)

	for k, v := range fetched {
		if k == KeyMessages {
			if n := listLen(v); n < r.maxMessages {
				staleMessagesDiscardedTotal.Inc()
				slog.Debug("discarding fetched message list shorter than observed",
					"session_id", r.sessionID,
					"fetched_len", n,
					"observed_len", r.maxMessages)
				continue
			}
		}

		if entry, ok := r.overlay[k]; ok {
			if entry.origin == OriginUser && now.Sub(entry.appliedAt) <= r.window {
				// Within the priority window the user's write outranks
				// the fetch; keep the overlay value as baseline too so
				// pruning does not resurrect the stale fetched value.
				r.baseline[k] = entry.value
				continue
			}
			// The fetch supersedes this entry. Push writes in
			// particular never outrank authoritative data.
			delete(r.overlay, k)
		}
		r.baseline[k] = v
	}

	if msgs, ok := r.baseline[KeyMessages]; ok {
		if n := listLen(msgs); n > r.maxMessages {
			r.maxMessages = n
		}
	}

	reconcileMergesTotal.Inc()

	if r.emitter != nil {
		r.emitter.Emit(events.TypeStateReconciled, nil)
	}
}

// EffectiveState returns the merged view: baseline underneath, overlay
// entries applied on top in insertion order.
//
// The returned map is a fresh copy; presentation layers must route all
// mutations through ApplyLocal, never mutate the view in place.
func (r *Reconciler) EffectiveState() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(State, len(r.baseline)+len(r.overlay))
	for k, v := range r.baseline {
		out[k] = v
	}
	for _, k := range r.overlayKeys {
		entry, ok := r.overlay[k]
		if !ok {
			continue
		}
		if k == KeyMessages && listLen(entry.value) < listLen(out[k]) {
			continue
		}
		out[k] = entry.value
	}

	if n := listLen(out[KeyMessages]); n > r.maxMessages {
		r.maxMessages = n
	}
	return out
}

// SwitchSession abandons the current session entirely: overlay and
// baseline are cleared, the message count resets, and subsequent
// operations act on the new session. No carryover across sessions.
func (r *Reconciler) SwitchSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessionID = sessionID
	r.baseline = State{}
	r.overlay = make(map[string]overlayEntry)
	r.overlayKeys = nil
	r.maxMessages = 0

	if r.emitter != nil {
		r.emitter.SetSessionID(sessionID)
	}
}

// Sync fetches authoritative state and merges it.
//
// Busy conditions are retried per the configured policy; once retries
// exhaust, the prior baseline stays untouched, a SessionBusy event is
// emitted, and the error is returned as a soft "still syncing" signal.
// A not-found condition is returned immediately as ErrSessionNotFound
// without clearing any already-merged local state. A failed fetch is
// never partially applied.
func (r *Reconciler) Sync(ctx context.Context) error {
	r.mu.Lock()
	provider := r.provider
	sessionID := r.sessionID
	retry := r.retry
	r.mu.Unlock()

	if provider == nil {
		return fmt.Errorf("session %q: no state provider configured", sessionID)
	}

	var fetched State
	err := retry.Do(ctx, func() error {
		var ferr error
		fetched, ferr = provider.FetchState(ctx, sessionID)
		return ferr
	})

	switch {
	case err == nil:
		// A session switch that happened mid-fetch abandons the
		// result; a late merge for the old session must never touch
		// the new one's state.
		if winner, ok := r.applyFetchedFor(sessionID, fetched); !ok {
			if r.emitter != nil {
				r.emitter.Emit(events.TypeStaleFetchDiscarded, events.StaleFetchData{
					RequestedVersion: sessionID,
					SupersededBy:     winner,
				})
			}
		}
		return nil

	case isNotFound(err):
		slog.Warn("remote session no longer exists",
			"session_id", sessionID)
		if r.emitter != nil {
			r.emitter.Emit(events.TypeSessionNotFound, events.SessionErrorData{SessionID: sessionID})
		}
		return fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)

	case isBusy(err):
		slog.Warn("session state still busy after retries",
			"session_id", sessionID,
			"attempts", retry.Attempts)
		if r.emitter != nil {
			r.emitter.Emit(events.TypeSessionBusy, events.SessionErrorData{
				SessionID: sessionID,
				Attempts:  retry.Attempts,
			})
		}
		return fmt.Errorf("session %q: %w", sessionID, ErrSessionBusy)

	default:
		return fmt.Errorf("session %q: fetch state: %w", sessionID, err)
	}
}

// pruneLocked folds overlay entries older than the priority window
// into the baseline and removes them from the overlay.
//
// Folding rather than dropping keeps keys the server never echoes
// back: an expired local write stays visible until a fetch actually
// supplies that key. The message list guard still applies.
func (r *Reconciler) pruneLocked(now time.Time) {
	kept := r.overlayKeys[:0]
	for _, k := range r.overlayKeys {
		entry, ok := r.overlay[k]
		if !ok {
			continue
		}
		if now.Sub(entry.appliedAt) > r.window {
			if k != KeyMessages || listLen(entry.value) >= listLen(r.baseline[k]) {
				r.baseline[k] = entry.value
			}
			delete(r.overlay, k)
			continue
		}
		kept = append(kept, k)
	}
	r.overlayKeys = kept
}

// listLen returns the length of a list-valued session value, or 0 when
// the value is absent or not a list.
func listLen(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0
	}
	return rv.Len()
}

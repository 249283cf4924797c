// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package events provides observability events for the atlas core.
//
// The core never throws for malformed input; it degrades to documented
// fallbacks (dropped edge, empty diff, unaffected baseline) and records
// the condition here. Events allow presentation layers and metrics
// collectors to observe those degradations without coupling to the
// components that produce them.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package events

import "time"

// Type identifies the kind of event.
type Type string

const (
	// TypeUnresolvableEndpoint is emitted when an edge endpoint could
	// not be canonicalized and the edge was dropped.
	TypeUnresolvableEndpoint Type = "unresolvable_endpoint"

	// TypeResolverAmbiguity is emitted when two distinct raw ids
	// canonicalize to the same key.
	TypeResolverAmbiguity Type = "resolver_ambiguity"

	// TypeDiffUnavailable is emitted when no diff could be computed or
	// fetched and an empty result was exposed instead.
	TypeDiffUnavailable Type = "diff_unavailable"

	// TypeStaleFetchDiscarded is emitted when a fetch result arrived
	// after a newer request superseded it and was intentionally ignored.
	// This is an observable condition, not an error.
	TypeStaleFetchDiscarded Type = "stale_fetch_discarded"

	// TypeSessionBusy is emitted after busy retries exhaust, as a soft
	// "still syncing" signal.
	TypeSessionBusy Type = "session_busy"

	// TypeSessionNotFound is emitted when the remote session no longer
	// exists; the condition is user-actionable.
	TypeSessionNotFound Type = "session_not_found"

	// TypeSnapshotLoaded is emitted when a version becomes the active
	// snapshot.
	TypeSnapshotLoaded Type = "snapshot_loaded"

	// TypeDiffLoaded is emitted when a version pair becomes the active
	// diff.
	TypeDiffLoaded Type = "diff_loaded"

	// TypeStateReconciled is emitted when a fetched session state is
	// merged into the baseline.
	TypeStateReconciled Type = "state_reconciled"
)

// Event is one observable occurrence inside the atlas core.
//
// Events should be treated as immutable after creation. The Data field
// holds one of the typed data structs below, keyed by Type.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// SessionID links the event to a live session, when applicable.
	SessionID string `json:"session_id,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Data contains event-specific data.
	Data any `json:"data,omitempty"`
}

// DroppedEdgeData accompanies TypeUnresolvableEndpoint.
type DroppedEdgeData struct {
	// Endpoint is the loggable form of the endpoint that missed.
	Endpoint string `json:"endpoint"`

	// Reason is the drop reason recorded by the graph package.
	Reason string `json:"reason"`

	// VersionID is the snapshot the edge belonged to.
	VersionID string `json:"version_id"`
}

// AmbiguityData accompanies TypeResolverAmbiguity.
type AmbiguityData struct {
	Key        string `json:"key"`
	KeptID     string `json:"kept_id"`
	ShadowedID string `json:"shadowed_id"`
	VersionID  string `json:"version_id"`
}

// StaleFetchData accompanies TypeStaleFetchDiscarded.
type StaleFetchData struct {
	// RequestedVersion is what the stale fetch was for.
	RequestedVersion string `json:"requested_version"`

	// SupersededBy is the version of the request that won.
	SupersededBy string `json:"superseded_by"`
}

// DiffUnavailableData accompanies TypeDiffUnavailable.
type DiffUnavailableData struct {
	BaseVersion    string `json:"base_version"`
	CompareVersion string `json:"compare_version"`
	Cause          string `json:"cause,omitempty"`
}

// SessionErrorData accompanies TypeSessionBusy and TypeSessionNotFound.
type SessionErrorData struct {
	SessionID string `json:"session_id"`
	Attempts  int    `json:"attempts,omitempty"`
}

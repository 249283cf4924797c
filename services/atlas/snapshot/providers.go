// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package snapshot owns the client's view of the knowledge graph: the
// loaded snapshot, the active diff, and the version history, with
// last-request-wins semantics for overlapping loads.
package snapshot

import (
	"context"

	"github.com/cartomind/cartograph/services/atlas/graph"
	"github.com/cartomind/cartograph/services/atlas/history"
)

// Provider fetches graph snapshots from the backend.
type Provider interface {
	// FetchSnapshot returns the snapshot for a version ID, where
	// graph.VersionCurrent names the live mutable view.
	FetchSnapshot(ctx context.Context, versionID string) (*graph.Snapshot, error)
}

// DiffPayload is what a diff fetch produces. Exactly one branch is
// populated: either the backend computed the diff itself (External),
// or it handed back both snapshots for local classification.
type DiffPayload struct {
	External *graph.ExternalDiff

	Base    *graph.Snapshot
	Compare *graph.Snapshot
}

// DiffProvider fetches diffs between two snapshot versions.
type DiffProvider interface {
	FetchDiff(ctx context.Context, baseVersion, compareVersion string) (*DiffPayload, error)
}

// HistoryProvider lists the published snapshot versions.
type HistoryProvider interface {
	FetchVersions(ctx context.Context) ([]history.Version, error)
}

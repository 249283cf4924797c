// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph provides knowledge graph snapshot types and diff operations.
//
// The graph package contains types for representing a knowledge graph
// snapshot (nodes are domain entities, artifacts, triggers, mechanisms,
// risks; edges are relationships between them) and the operations that
// turn two snapshots into a classified structural diff:
//
//   - KeyIndex: canonical identity resolution across inconsistent id formats
//   - Classify / AdoptExternalDiff: per-node and per-edge change classification
//   - Anchor: synthetic edges keeping orphaned added nodes reachable
//
// # Identity Model
//
// Upstream sources disagree on identifier conventions. The same node may be
// addressed by its raw id, its display name or label, a document-suffixed
// variant ("R1" vs "R1_pdf"), a namespace-prefixed variant ("risk:R1" vs
// "R1"), a zero-padded numeric form versus a letter-prefixed form ("01" vs
// "O1"), or a positional index into the node list. A KeyIndex registers
// every known spelling of every node once per snapshot; consumers resolve
// edge endpoints against it instead of branching on formats themselves.
//
// # Degradation, Not Errors
//
// Classification, resolution, and anchoring never fail on malformed input.
// An unresolvable edge endpoint drops the edge and records the reason; a
// missing diff produces an empty, flagged DiffResult. Only snapshot
// providers return errors, and those are handled by the snapshot package.
//
// # Thread Safety
//
// Snapshots and DiffResults are immutable once produced. A KeyIndex is
// built once per snapshot and is read-only afterwards; all package
// functions are safe for concurrent use on distinct inputs.
package graph

// Drop reasons recorded when an edge cannot be kept.
const (
	// DropUnresolvableSource marks an edge whose source endpoint did not
	// resolve to any node in the snapshot.
	DropUnresolvableSource = "unresolvable_source"

	// DropUnresolvableTarget marks an edge whose target endpoint did not
	// resolve to any node in the snapshot.
	DropUnresolvableTarget = "unresolvable_target"

	// DropRemovedEndpoint marks an external-diff edge whose endpoint only
	// resolves to a node the payload classifies as removed, while the edge
	// itself is not classified as removed.
	DropRemovedEndpoint = "removed_endpoint"
)

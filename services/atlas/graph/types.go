// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VersionCurrent is the version identifier for the live, unversioned graph.
const VersionCurrent = "current"

// AnchorEdgeType is the edge type assigned to synthetic anchor edges.
//
// Anchor edges exist only to keep orphaned added nodes reachable. The
// rendering layer may style them distinctly (e.g. dashed), and Classify
// ignores them entirely so they never masquerade as real structure.
const AnchorEdgeType = "anchor"

// ChangeType classifies how a node or edge differs between two snapshots.
type ChangeType string

const (
	// ChangeAdded marks an item present in compare but not in base.
	ChangeAdded ChangeType = "added"

	// ChangeRemoved marks an item present in base but not in compare.
	ChangeRemoved ChangeType = "removed"

	// ChangeModified marks an item present in both with differing fields.
	ChangeModified ChangeType = "modified"

	// ChangeUnchanged marks an item identical in both snapshots.
	ChangeUnchanged ChangeType = "unchanged"
)

// ParseChangeType normalizes an upstream change classification.
//
// Upstream diff payloads use either "change_type" or the legacy
// "diff_status" vocabulary; both map onto the same four values here.
// Unrecognized or empty values default to ChangeUnchanged.
func ParseChangeType(raw string) ChangeType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "added", "add", "new", "created":
		return ChangeAdded
	case "removed", "remove", "deleted", "delete":
		return ChangeRemoved
	case "modified", "modify", "changed", "updated":
		return ChangeModified
	default:
		return ChangeUnchanged
	}
}

// Node is a single entity in a knowledge graph snapshot.
//
// ID as emitted by an upstream source is not necessarily the node's
// canonical identity; see KeyIndex for the normalization rules.
type Node struct {
	// ID is the raw identifier as emitted by the upstream source.
	ID string `json:"id"`

	// Name is the optional display name.
	Name string `json:"name,omitempty"`

	// Label is the optional rendering label. Some sources emit Label
	// instead of Name; both are registered as identity keys.
	Label string `json:"label,omitempty"`

	// Type is the entity kind (entity, artifact, trigger, mechanism, risk).
	Type string `json:"type"`

	// Properties holds source-specific attributes. Compared field-by-field
	// when classifying a node as modified.
	Properties map[string]any `json:"properties,omitempty"`
}

// DisplayName returns the best human-readable name for the node.
func (n Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Endpoint is one end of an edge as emitted by an upstream source.
//
// Sources address endpoints in three forms: a string id, a positional
// index into the snapshot's node list, or an embedded node object. All
// three deserialize into this one type and resolve through a KeyIndex.
type Endpoint struct {
	// ID is the string form, or the embedded object's id.
	ID string

	// Index is the positional form.
	Index int

	// HasIndex reports whether the source emitted a numeric position.
	HasIndex bool
}

// EndpointID constructs an Endpoint from a string id.
func EndpointID(id string) Endpoint {
	return Endpoint{ID: id}
}

// EndpointIndex constructs an Endpoint from a positional index.
func EndpointIndex(i int) Endpoint {
	return Endpoint{Index: i, HasIndex: true}
}

// String returns the endpoint in a loggable form.
func (e Endpoint) String() string {
	if e.HasIndex {
		return fmt.Sprintf("#%d", e.Index)
	}
	return e.ID
}

// UnmarshalJSON accepts a JSON number, string, or object with an "id"
// (or "name"/"label") field.
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return fmt.Errorf("empty endpoint")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Endpoint{ID: s}
		return nil
	case '{':
		var obj struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Label string `json:"label"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		id := obj.ID
		if id == "" {
			id = obj.Name
		}
		if id == "" {
			id = obj.Label
		}
		*e = Endpoint{ID: id}
		return nil
	default:
		var idx int
		if err := json.Unmarshal(data, &idx); err != nil {
			return fmt.Errorf("endpoint is neither string, object, nor index: %w", err)
		}
		*e = Endpoint{Index: idx, HasIndex: true}
		return nil
	}
}

// MarshalJSON emits the positional form when present, else the string id.
func (e Endpoint) MarshalJSON() ([]byte, error) {
	if e.HasIndex {
		return json.Marshal(e.Index)
	}
	return json.Marshal(e.ID)
}

// Edge is a relationship between two nodes in a snapshot.
type Edge struct {
	// Source is the origin endpoint, in any of the three upstream forms.
	Source Endpoint `json:"source"`

	// Target is the destination endpoint.
	Target Endpoint `json:"target"`

	// Type is the relationship kind. Empty is valid.
	Type string `json:"type,omitempty"`

	// Synthetic marks anchor edges created by Anchor. Synthetic edges are
	// never treated as real structure by Classify.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Snapshot is one immutable version of the knowledge graph.
//
// Snapshots are created on fetch, held read-only for the duration of a
// view, and discarded when a newer version or compare request completes.
// Nothing in this package mutates a Snapshot in place.
type Snapshot struct {
	// VersionID identifies the version, or VersionCurrent.
	VersionID string `json:"version_id"`

	// Nodes is the node list in upstream order. Order is significant:
	// positional endpoints index into it and identity registration
	// follows it.
	Nodes []Node `json:"nodes"`

	// Links is the edge list.
	Links []Edge `json:"links"`
}

// ClassifiedNode is a node with its diff classification.
type ClassifiedNode struct {
	Node

	// Change is the node's classification against the base snapshot.
	Change ChangeType `json:"change_type"`
}

// ClassifiedEdge is an edge with resolved endpoints and classification.
//
// Source and Target are canonical node ids, already resolved; rendering
// layers never see unresolved endpoint forms.
type ClassifiedEdge struct {
	// Source is the resolved canonical id of the origin node.
	Source string `json:"source"`

	// Target is the resolved canonical id of the destination node.
	Target string `json:"target"`

	// Type is the relationship kind.
	Type string `json:"type,omitempty"`

	// Synthetic marks anchor edges.
	Synthetic bool `json:"synthetic,omitempty"`

	// Change is the edge's classification against the base snapshot.
	Change ChangeType `json:"change_type"`
}

// Identity returns the tuple that defines edge sameness across snapshots.
func (e ClassifiedEdge) Identity() EdgeIdentity {
	return EdgeIdentity{Source: e.Source, Target: e.Target, Type: e.Type}
}

// EdgeIdentity is the (source, target, type) tuple keying an edge.
//
// Tuple equality, not object identity, defines whether an edge in one
// snapshot is "the same edge" in another.
type EdgeIdentity struct {
	Source string
	Target string
	Type   string
}

// DroppedEdge records an edge that could not be kept, with the reason.
//
// Edges are never silently rendered as dangling references; every drop
// is observable.
type DroppedEdge struct {
	// Edge is the original, unresolved edge.
	Edge Edge

	// Reason is one of the Drop* constants.
	Reason string

	// VersionID is the snapshot the edge belonged to.
	VersionID string
}

// Summary holds aggregate change counts for a DiffResult.
type Summary struct {
	NodesAdded    int `json:"nodes_added"`
	NodesRemoved  int `json:"nodes_removed"`
	NodesModified int `json:"nodes_modified"`
	EdgesAdded    int `json:"edges_added"`
	EdgesRemoved  int `json:"edges_removed"`
	EdgesModified int `json:"edges_modified"`

	// SemanticSummary is an optional human-readable description of the
	// change set, filled in by the summary service when enabled.
	SemanticSummary string `json:"semantic_summary,omitempty"`
}

// DiffResult is the unified classification of two snapshots.
//
// A DiffResult is self-contained: Nodes and Edges are complete lists
// ready for rendering, not patches against some other fetch of the
// same versions.
type DiffResult struct {
	// BaseVersion and CompareVersion identify the version pair.
	BaseVersion    string `json:"base_version"`
	CompareVersion string `json:"compare_version"`

	// Nodes holds every node of the union of both snapshots, classified.
	Nodes []ClassifiedNode `json:"nodes"`

	// Edges holds every surviving edge, classified, endpoints resolved.
	Edges []ClassifiedEdge `json:"edges"`

	// Summary holds aggregate counts consistent with Nodes and Edges.
	Summary Summary `json:"summary"`

	// Dropped records edges excluded during resolution.
	Dropped []DroppedEdge `json:"-"`

	// Ambiguities records identity key collisions observed while
	// building the indexes. Observability only, not rendering payload.
	Ambiguities []Ambiguity `json:"-"`

	// Unavailable flags an empty result returned because no diff could
	// be computed or fetched. Rendering shows "no diff available".
	Unavailable bool `json:"unavailable,omitempty"`
}

// EmptyDiff returns the canonical "no diff available" result for a
// version pair. All counts are zero and Unavailable is set.
func EmptyDiff(base, compare string) DiffResult {
	return DiffResult{
		BaseVersion:    base,
		CompareVersion: compare,
		Nodes:          []ClassifiedNode{},
		Edges:          []ClassifiedEdge{},
		Unavailable:    true,
	}
}

// recount returns the summary recomputed from the classified lists.
func recount(nodes []ClassifiedNode, edges []ClassifiedEdge) Summary {
	var s Summary
	for _, n := range nodes {
		switch n.Change {
		case ChangeAdded:
			s.NodesAdded++
		case ChangeRemoved:
			s.NodesRemoved++
		case ChangeModified:
			s.NodesModified++
		}
	}
	for _, e := range edges {
		switch e.Change {
		case ChangeAdded:
			s.EdgesAdded++
		case ChangeRemoved:
			s.EdgesRemoved++
		case ChangeModified:
			s.EdgesModified++
		}
	}
	return s
}

// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"log/slog"
	"reflect"
)

// summaryTolerance is the maximum per-field disagreement accepted
// between an external payload's summary and the locally recomputed
// counts. Any larger disagreement is logged and the local counts win.
const summaryTolerance = 0

// resolvedEdge is an edge with both endpoints resolved within its own
// snapshot, plus the cross-snapshot canonical identity tuple.
type resolvedEdge struct {
	localSource string // id of the resolved node in the owning snapshot
	localTarget string
	identity    EdgeIdentity // endpoints mapped to base-side ids when matched
	edgeType    string
}

// Classify computes the unified change classification of two snapshots.
//
// Every edge in both snapshots is resolved through a KeyIndex built over
// its own snapshot's node list; unresolvable edges are dropped and
// recorded, never rendered dangling. Nodes are matched across snapshots
// through the base index, so two spellings of the same logical id
// ("O1" in base, "01" in compare) classify as one unchanged node rather
// than an added/removed pair. Edges are keyed by their
// (source identity, target identity, type) tuple; tuple equality, not
// object identity, defines edge sameness across snapshots.
//
// Synthetic anchor edges in either snapshot are ignored: they are not
// graph structure.
//
// The result's node list holds the compare snapshot's nodes (classified
// added, modified, or unchanged) followed by the base nodes missing from
// compare (classified removed). Classify never fails; two empty
// snapshots produce an empty result with a zero summary.
func Classify(base, compare Snapshot) DiffResult {
	diffsComputedTotal.WithLabelValues("local").Inc()

	baseIdx := BuildKeyIndex(base.Nodes)
	compareIdx := BuildKeyIndex(compare.Nodes)

	result := DiffResult{
		BaseVersion:    base.VersionID,
		CompareVersion: compare.VersionID,
	}
	result.Ambiguities = append(
		taggedAmbiguities(baseIdx, base.VersionID),
		taggedAmbiguities(compareIdx, compare.VersionID)...)

	// Match compare nodes against base and classify.
	// canonicalOf maps a compare-side node id to the base-side id of the
	// same logical node, so edge tuples agree across spelling variants.
	canonicalOf := make(map[string]string, len(compare.Nodes))
	matchedBase := make(map[string]bool, len(base.Nodes))

	for _, cn := range compare.Nodes {
		bn, ok := matchNode(baseIdx, cn)
		if !ok {
			result.Nodes = append(result.Nodes, ClassifiedNode{Node: cn, Change: ChangeAdded})
			canonicalOf[cn.ID] = cn.ID
			continue
		}

		matchedBase[bn.ID] = true
		canonicalOf[cn.ID] = bn.ID

		change := ChangeUnchanged
		if !nodeEquals(bn, cn) {
			change = ChangeModified
		}
		result.Nodes = append(result.Nodes, ClassifiedNode{Node: cn, Change: change})
	}

	for _, bn := range base.Nodes {
		if !matchedBase[bn.ID] {
			result.Nodes = append(result.Nodes, ClassifiedNode{Node: bn, Change: ChangeRemoved})
		}
	}

	// Resolve both edge sets within their own snapshots.
	baseEdges := resolveEdges(base, baseIdx, nil, &result.Dropped)
	compareEdges := resolveEdges(compare, compareIdx, canonicalOf, &result.Dropped)

	baseByIdentity := make(map[EdgeIdentity]bool, len(baseEdges))
	for _, e := range baseEdges {
		baseByIdentity[e.identity] = true
	}

	seen := make(map[EdgeIdentity]bool, len(compareEdges))
	for _, e := range compareEdges {
		if seen[e.identity] {
			continue
		}
		seen[e.identity] = true

		change := ChangeAdded
		if baseByIdentity[e.identity] {
			change = ChangeUnchanged
		}
		result.Edges = append(result.Edges, ClassifiedEdge{
			Source: e.localSource,
			Target: e.localTarget,
			Type:   e.edgeType,
			Change: change,
		})
	}

	for _, e := range baseEdges {
		if seen[e.identity] {
			continue
		}
		seen[e.identity] = true
		result.Edges = append(result.Edges, ClassifiedEdge{
			Source: e.localSource,
			Target: e.localTarget,
			Type:   e.edgeType,
			Change: ChangeRemoved,
		})
	}

	result.Summary = recount(result.Nodes, result.Edges)
	return result
}

// ClassifySnapshot prepares a single snapshot for rendering without a
// diff: every node and surviving edge is classified unchanged, edges
// are resolved, and unresolvable edges are dropped with reasons.
// Identity key collisions are returned alongside for observability.
func ClassifySnapshot(s Snapshot) ([]ClassifiedNode, []ClassifiedEdge, []DroppedEdge, []Ambiguity) {
	ix := BuildKeyIndex(s.Nodes)

	nodes := make([]ClassifiedNode, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes = append(nodes, ClassifiedNode{Node: n, Change: ChangeUnchanged})
	}

	var dropped []DroppedEdge
	resolved := resolveEdges(s, ix, nil, &dropped)

	edges := make([]ClassifiedEdge, 0, len(resolved))
	for _, e := range resolved {
		edges = append(edges, ClassifiedEdge{
			Source: e.localSource,
			Target: e.localTarget,
			Type:   e.edgeType,
			Change: ChangeUnchanged,
		})
	}
	return nodes, edges, dropped, taggedAmbiguities(ix, s.VersionID)
}

// ExternalNode is a node as delivered by a precomputed diff payload.
//
// ChangeType and DiffStatus are accepted synonyms; ChangeType wins when
// both are present.
type ExternalNode struct {
	Node

	ChangeType string `json:"change_type,omitempty"`
	DiffStatus string `json:"diff_status,omitempty"`
}

// Classification returns the normalized change type of the node.
func (n ExternalNode) Classification() ChangeType {
	if n.ChangeType != "" {
		return ParseChangeType(n.ChangeType)
	}
	return ParseChangeType(n.DiffStatus)
}

// ExternalEdge is an edge as delivered by a precomputed diff payload.
type ExternalEdge struct {
	Edge

	ChangeType string `json:"change_type,omitempty"`
	DiffStatus string `json:"diff_status,omitempty"`
}

// Classification returns the normalized change type of the edge.
func (e ExternalEdge) Classification() ChangeType {
	if e.ChangeType != "" {
		return ParseChangeType(e.ChangeType)
	}
	return ParseChangeType(e.DiffStatus)
}

// ExternalDiff is a diff payload computed by an upstream collaborator.
type ExternalDiff struct {
	BaseVersion    string         `json:"base_version"`
	CompareVersion string         `json:"compare_version"`
	Nodes          []ExternalNode `json:"nodes"`
	Links          []ExternalEdge `json:"links"`

	// Summary is the upstream aggregate, cross-validated against the
	// recomputed counts on adoption.
	Summary *Summary `json:"summary,omitempty"`
}

// AdoptExternalDiff trusts an upstream diff's classifications while
// still canonicalizing every id and dropping every edge that cannot be
// tied to the payload's own node set.
//
// An edge that is not itself classified removed must resolve against
// the surviving (non-removed) nodes; a removed edge may reference
// removed nodes, since those are still part of the rendered diff.
//
// The upstream summary is cross-validated: when any count disagrees
// with the recomputed value by more than the documented tolerance, the
// mismatch is logged and the recomputed summary wins. The upstream
// semantic summary text is kept either way.
//
// An empty payload produces the canonical empty, unavailable result --
// never an error, so rendering can always display "no diff available".
func AdoptExternalDiff(p ExternalDiff) DiffResult {
	if len(p.Nodes) == 0 && len(p.Links) == 0 {
		return EmptyDiff(p.BaseVersion, p.CompareVersion)
	}
	diffsComputedTotal.WithLabelValues("external").Inc()

	result := DiffResult{
		BaseVersion:    p.BaseVersion,
		CompareVersion: p.CompareVersion,
	}

	allNodes := make([]Node, 0, len(p.Nodes))
	removedIDs := make(map[string]bool)

	for _, en := range p.Nodes {
		change := en.Classification()
		result.Nodes = append(result.Nodes, ClassifiedNode{Node: en.Node, Change: change})
		allNodes = append(allNodes, en.Node)
		if change == ChangeRemoved {
			removedIDs[en.ID] = true
		}
	}

	fullIdx := BuildKeyIndex(allNodes)
	result.Ambiguities = taggedAmbiguities(fullIdx, p.CompareVersion)

	seen := make(map[EdgeIdentity]bool, len(p.Links))
	for _, ee := range p.Links {
		if ee.Synthetic {
			continue
		}

		src, ok := fullIdx.Resolve(ee.Source)
		if !ok {
			result.Dropped = append(result.Dropped, DroppedEdge{
				Edge: ee.Edge, Reason: DropUnresolvableSource, VersionID: p.CompareVersion,
			})
			droppedEdgesTotal.WithLabelValues(DropUnresolvableSource).Inc()
			continue
		}
		dst, ok := fullIdx.Resolve(ee.Target)
		if !ok {
			result.Dropped = append(result.Dropped, DroppedEdge{
				Edge: ee.Edge, Reason: DropUnresolvableTarget, VersionID: p.CompareVersion,
			})
			droppedEdgesTotal.WithLabelValues(DropUnresolvableTarget).Inc()
			continue
		}

		change := ee.Classification()
		if change != ChangeRemoved && (removedIDs[src.ID] || removedIDs[dst.ID]) {
			result.Dropped = append(result.Dropped, DroppedEdge{
				Edge: ee.Edge, Reason: DropRemovedEndpoint, VersionID: p.CompareVersion,
			})
			droppedEdgesTotal.WithLabelValues(DropRemovedEndpoint).Inc()
			continue
		}

		ce := ClassifiedEdge{
			Source: src.ID,
			Target: dst.ID,
			Type:   ee.Type,
			Change: change,
		}
		if seen[ce.Identity()] {
			continue
		}
		seen[ce.Identity()] = true
		result.Edges = append(result.Edges, ce)
	}

	recomputed := recount(result.Nodes, result.Edges)
	if p.Summary != nil {
		if summaryDisagrees(*p.Summary, recomputed) {
			summaryMismatchesTotal.Inc()
			slog.Warn("external diff summary disagrees with recomputed counts, preferring local",
				"base_version", p.BaseVersion,
				"compare_version", p.CompareVersion,
				"upstream", *p.Summary,
				"recomputed", recomputed)
		}
		recomputed.SemanticSummary = p.Summary.SemanticSummary
	}
	result.Summary = recomputed

	return result
}

// summaryDisagrees reports whether any count differs beyond tolerance.
func summaryDisagrees(upstream, local Summary) bool {
	diff := func(a, b int) bool {
		d := a - b
		if d < 0 {
			d = -d
		}
		return d > summaryTolerance
	}
	return diff(upstream.NodesAdded, local.NodesAdded) ||
		diff(upstream.NodesRemoved, local.NodesRemoved) ||
		diff(upstream.NodesModified, local.NodesModified) ||
		diff(upstream.EdgesAdded, local.EdgesAdded) ||
		diff(upstream.EdgesRemoved, local.EdgesRemoved) ||
		diff(upstream.EdgesModified, local.EdgesModified)
}

// taggedAmbiguities returns an index's recorded key collisions stamped
// with the snapshot they were observed in.
func taggedAmbiguities(ix *KeyIndex, versionID string) []Ambiguity {
	ambs := ix.Ambiguities()
	if len(ambs) == 0 {
		return nil
	}
	out := make([]Ambiguity, len(ambs))
	for i, a := range ambs {
		a.VersionID = versionID
		out[i] = a
	}
	return out
}

// matchNode finds the base-side node for a compare-side node, trying
// the compare node's own identity keys against the base index.
func matchNode(baseIdx *KeyIndex, n Node) (Node, bool) {
	if bn, ok := baseIdx.ResolveID(n.ID); ok {
		return bn, true
	}
	if bn, ok := baseIdx.ResolveID(n.Name); ok {
		return bn, true
	}
	if bn, ok := baseIdx.ResolveID(n.Label); ok {
		return bn, true
	}
	return Node{}, false
}

// nodeEquals reports whether two matched nodes carry identical fields.
// The ids themselves are not compared: two spellings of one logical id
// are not a modification.
func nodeEquals(a, b Node) bool {
	return a.Name == b.Name &&
		a.Label == b.Label &&
		a.Type == b.Type &&
		reflect.DeepEqual(a.Properties, b.Properties)
}

// resolveEdges resolves a snapshot's non-synthetic edges against its
// own index. canonicalOf, when non-nil, maps local node ids to their
// cross-snapshot canonical ids for the identity tuple. Unresolvable
// edges are appended to dropped.
func resolveEdges(s Snapshot, ix *KeyIndex, canonicalOf map[string]string, dropped *[]DroppedEdge) []resolvedEdge {
	out := make([]resolvedEdge, 0, len(s.Links))

	for _, e := range s.Links {
		if e.Synthetic {
			continue
		}

		src, ok := ix.Resolve(e.Source)
		if !ok {
			*dropped = append(*dropped, DroppedEdge{Edge: e, Reason: DropUnresolvableSource, VersionID: s.VersionID})
			droppedEdgesTotal.WithLabelValues(DropUnresolvableSource).Inc()
			slog.Debug("dropping edge with unresolvable source",
				"endpoint", e.Source.String(), "version_id", s.VersionID)
			continue
		}
		dst, ok := ix.Resolve(e.Target)
		if !ok {
			*dropped = append(*dropped, DroppedEdge{Edge: e, Reason: DropUnresolvableTarget, VersionID: s.VersionID})
			droppedEdgesTotal.WithLabelValues(DropUnresolvableTarget).Inc()
			slog.Debug("dropping edge with unresolvable target",
				"endpoint", e.Target.String(), "version_id", s.VersionID)
			continue
		}

		identity := EdgeIdentity{Source: src.ID, Target: dst.ID, Type: e.Type}
		if canonicalOf != nil {
			if c, ok := canonicalOf[src.ID]; ok {
				identity.Source = c
			}
			if c, ok := canonicalOf[dst.ID]; ok {
				identity.Target = c
			}
		}

		out = append(out, resolvedEdge{
			localSource: src.ID,
			localTarget: dst.ID,
			identity:    identity,
			edgeType:    e.Type,
		})
	}
	return out
}

// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

// Anchor synthesizes edges keeping orphaned added nodes reachable.
//
// Upstream diff sources report node-level changes independently of
// edge-level changes, so a node classified added may arrive with no
// edge at all, leaving it topologically disconnected. For every such
// node, Anchor returns one synthetic edge connecting it to a stable
// reference node: the first node, by original array order, that already
// appears as some edge's resolved endpoint.
//
// Synthetic edges carry AnchorEdgeType and the Synthetic flag so the
// rendering layer can style them distinctly and Classify never treats
// them as real structure. Their change classification is unchanged,
// keeping summary counts intact when recomputed.
//
// When the edge set is empty there is no reference node and nothing is
// synthesized: an edgeless graph is valid and anchoring is meaningless.
func Anchor(nodes []ClassifiedNode, edges []ClassifiedEdge) []ClassifiedEdge {
	if len(edges) == 0 {
		return nil
	}

	endpoint := make(map[string]bool, len(edges)*2)
	for _, e := range edges {
		if e.Synthetic {
			continue
		}
		endpoint[e.Source] = true
		endpoint[e.Target] = true
	}
	if len(endpoint) == 0 {
		return nil
	}

	// Deterministic reference: first node in array order that is
	// already an edge endpoint.
	var reference string
	for _, n := range nodes {
		if endpoint[n.ID] {
			reference = n.ID
			break
		}
	}
	if reference == "" {
		return nil
	}

	var anchors []ClassifiedEdge
	for _, n := range nodes {
		if n.Change != ChangeAdded || endpoint[n.ID] {
			continue
		}
		anchors = append(anchors, ClassifiedEdge{
			Source:    n.ID,
			Target:    reference,
			Type:      AnchorEdgeType,
			Synthetic: true,
			Change:    ChangeUnchanged,
		})
		anchorEdgesTotal.Inc()
	}
	return anchors
}

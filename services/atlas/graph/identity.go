// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"log/slog"
	"strings"
)

// DocumentSuffix is the known id suffix denoting a document-backed
// artifact ("R1_pdf" addresses the same node as "R1").
const DocumentSuffix = "_pdf"

// NamespaceSeparator splits a namespace-prefixed id ("risk:R1") into
// prefix and bare id. The bare id is registered as an identity key.
const NamespaceSeparator = ":"

// Ambiguity records two distinct raw ids canonicalizing to the same key.
//
// Resolution is deterministic: registration follows the node array's
// original order and the last registered node wins. That rule is an
// inherited behavior of the upstream data model, not a deliberate
// design choice; treat a nonzero ambiguity count as a data quality
// signal. See the package documentation.
type Ambiguity struct {
	// Key is the colliding canonical key.
	Key string

	// KeptID is the raw id of the node that now owns the key.
	KeptID string

	// ShadowedID is the raw id of the node that lost the key.
	ShadowedID string

	// VersionID is the snapshot the collision was observed in. Empty
	// on a bare KeyIndex; the classification layer fills it, the same
	// way DroppedEdge carries its snapshot.
	VersionID string
}

// KeyIndex is a canonical-key lookup index over one snapshot's nodes.
//
// Built once per snapshot with BuildKeyIndex; read-only afterwards and
// safe for concurrent lookups.
type KeyIndex struct {
	byKey       map[string]int // canonical key -> position in nodes
	nodes       []Node
	ambiguities []Ambiguity
}

// CanonicalKeys returns every key a node is addressable by, in
// registration order, starting with the raw id.
//
// Generated keys: raw id; name; label; the id with DocumentSuffix added
// or stripped; the id with a namespace prefix stripped; and, when the id
// matches the ambiguous zero-padded/letter-prefixed numeric pattern, the
// alternate spelling ("01" for "O1" and vice versa). New id conventions
// are handled by adding a generation rule here, not by branching in
// consumers.
func CanonicalKeys(n Node) []string {
	keys := make([]string, 0, 6)
	seen := make(map[string]bool, 6)

	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}

	add(n.ID)
	add(n.Name)
	add(n.Label)

	if stripped, ok := strings.CutSuffix(n.ID, DocumentSuffix); ok {
		add(stripped)
	} else if n.ID != "" {
		add(n.ID + DocumentSuffix)
	}

	if _, bare, ok := strings.Cut(n.ID, NamespaceSeparator); ok {
		add(bare)
	}

	add(alternateSpelling(n.ID))

	return keys
}

// alternateSpelling returns the other spelling of an ambiguous numeric
// id: a zero-padded form for a letter-prefixed one and vice versa
// ("O1" <-> "01"). Returns "" when the id does not match the pattern.
func alternateSpelling(id string) string {
	if len(id) < 2 || !allDigits(id[1:]) {
		return ""
	}
	switch id[0] {
	case '0':
		return "O" + id[1:]
	case 'O':
		return "0" + id[1:]
	}
	return ""
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// BuildKeyIndex registers every node's canonical keys in array order.
//
// On a key collision the later node wins and the collision is recorded
// as an Ambiguity. The winner is deterministic across runs because
// registration order is the node array's original order.
func BuildKeyIndex(nodes []Node) *KeyIndex {
	ix := &KeyIndex{
		byKey: make(map[string]int, len(nodes)*2),
		nodes: nodes,
	}

	for i, n := range nodes {
		for _, key := range CanonicalKeys(n) {
			prev, exists := ix.byKey[key]
			if exists && nodes[prev].ID != n.ID {
				ix.ambiguities = append(ix.ambiguities, Ambiguity{
					Key:        key,
					KeptID:     n.ID,
					ShadowedID: nodes[prev].ID,
				})
				resolverAmbiguitiesTotal.Inc()
				slog.Warn("identity key collision, last registered wins",
					"key", key,
					"kept_id", n.ID,
					"shadowed_id", nodes[prev].ID)
			}
			ix.byKey[key] = i
		}
	}

	return ix
}

// Len returns the number of indexed nodes.
func (ix *KeyIndex) Len() int {
	return len(ix.nodes)
}

// Ambiguities returns the key collisions recorded during construction.
func (ix *KeyIndex) Ambiguities() []Ambiguity {
	return ix.ambiguities
}

// Resolve maps an edge endpoint to a node in the indexed snapshot.
//
// Resolution order:
//
//	(a) a positional endpoint is an index into the node list, if in range
//	(b) direct key lookup of the string form
//	(c) the string form with DocumentSuffix added, then stripped
//	(d) the string form with a namespace prefix stripped
//	(e) the numeric/letter alternate spelling
//
// A miss returns ok=false; callers drop the edge rather than crash.
func (ix *KeyIndex) Resolve(ref Endpoint) (Node, bool) {
	if ref.HasIndex {
		if ref.Index >= 0 && ref.Index < len(ix.nodes) {
			return ix.nodes[ref.Index], true
		}
		return Node{}, false
	}
	return ix.ResolveID(ref.ID)
}

// ResolveID maps a raw string id through the resolution ladder (steps
// b-e of Resolve).
func (ix *KeyIndex) ResolveID(id string) (Node, bool) {
	if id == "" {
		return Node{}, false
	}

	if i, ok := ix.byKey[id]; ok {
		return ix.nodes[i], true
	}

	if i, ok := ix.byKey[id+DocumentSuffix]; ok {
		return ix.nodes[i], true
	}
	if stripped, ok := strings.CutSuffix(id, DocumentSuffix); ok {
		if i, ok := ix.byKey[stripped]; ok {
			return ix.nodes[i], true
		}
	}

	if _, bare, ok := strings.Cut(id, NamespaceSeparator); ok {
		if i, ok := ix.byKey[bare]; ok {
			return ix.nodes[i], true
		}
	}

	if alt := alternateSpelling(id); alt != "" {
		if i, ok := ix.byKey[alt]; ok {
			return ix.nodes[i], true
		}
	}

	return Node{}, false
}

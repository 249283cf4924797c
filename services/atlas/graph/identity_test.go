// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"encoding/json"
	"testing"
)

func TestCanonicalKeys(t *testing.T) {
	t.Run("always contains raw id", func(t *testing.T) {
		nodes := []Node{
			{ID: "O1", Type: "trigger"},
			{ID: "risk:R1", Name: "Outage", Type: "risk"},
			{ID: "doc-7_pdf", Type: "artifact"},
			{ID: "01", Type: "trigger"},
		}
		for _, n := range nodes {
			keys := CanonicalKeys(n)
			found := false
			for _, k := range keys {
				if k == n.ID {
					found = true
				}
			}
			if !found {
				t.Errorf("CanonicalKeys(%q) = %v, missing raw id", n.ID, keys)
			}
			if len(keys) == 0 || keys[0] != n.ID {
				t.Errorf("CanonicalKeys(%q) should start with raw id, got %v", n.ID, keys)
			}
		}
	})

	t.Run("name and label registered", func(t *testing.T) {
		keys := CanonicalKeys(Node{ID: "E1", Name: "Generator", Label: "Gen", Type: "entity"})
		want := map[string]bool{"E1": false, "Generator": false, "Gen": false}
		for _, k := range keys {
			if _, ok := want[k]; ok {
				want[k] = true
			}
		}
		for k, seen := range want {
			if !seen {
				t.Errorf("missing key %q in %v", k, keys)
			}
		}
	})

	t.Run("document suffix both directions", func(t *testing.T) {
		keys := CanonicalKeys(Node{ID: "A1", Type: "artifact"})
		if !containsKey(keys, "A1_pdf") {
			t.Errorf("expected suffixed variant in %v", keys)
		}

		keys = CanonicalKeys(Node{ID: "A1_pdf", Type: "artifact"})
		if !containsKey(keys, "A1") {
			t.Errorf("expected stripped variant in %v", keys)
		}
	})

	t.Run("namespace prefix stripped", func(t *testing.T) {
		keys := CanonicalKeys(Node{ID: "risk:R1", Type: "risk"})
		if !containsKey(keys, "R1") {
			t.Errorf("expected bare id in %v", keys)
		}
	})

	t.Run("numeric letter alternate", func(t *testing.T) {
		if keys := CanonicalKeys(Node{ID: "01", Type: "trigger"}); !containsKey(keys, "O1") {
			t.Errorf("expected O1 alternate in %v", keys)
		}
		if keys := CanonicalKeys(Node{ID: "O1", Type: "trigger"}); !containsKey(keys, "01") {
			t.Errorf("expected 01 alternate in %v", keys)
		}
		// Non-matching patterns get no alternate.
		if keys := CanonicalKeys(Node{ID: "OX", Type: "trigger"}); containsKey(keys, "0X") {
			t.Errorf("unexpected alternate for OX: %v", keys)
		}
	})
}

func TestKeyIndex_Resolve(t *testing.T) {
	nodes := []Node{
		{ID: "O1", Name: "Primary Trigger", Type: "trigger"},
		{ID: "ART-1", Type: "artifact"},
		{ID: "risk:R1", Type: "risk"},
	}
	ix := BuildKeyIndex(nodes)

	t.Run("positional index resolves regardless of id", func(t *testing.T) {
		// Scenario: source references index 0 in a multi-node list.
		n, ok := ix.Resolve(EndpointIndex(0))
		if !ok || n.ID != "O1" {
			t.Fatalf("Resolve(#0) = (%q, %v), want O1", n.ID, ok)
		}
		n, ok = ix.Resolve(EndpointIndex(1))
		if !ok || n.ID != "ART-1" {
			t.Fatalf("Resolve(#1) = (%q, %v), want ART-1", n.ID, ok)
		}
	})

	t.Run("out of range index misses", func(t *testing.T) {
		if _, ok := ix.Resolve(EndpointIndex(3)); ok {
			t.Error("expected miss for out-of-range index")
		}
		if _, ok := ix.Resolve(EndpointIndex(-1)); ok {
			t.Error("expected miss for negative index")
		}
	})

	t.Run("direct id", func(t *testing.T) {
		n, ok := ix.Resolve(EndpointID("ART-1"))
		if !ok || n.ID != "ART-1" {
			t.Fatalf("Resolve(ART-1) = (%q, %v)", n.ID, ok)
		}
	})

	t.Run("by display name", func(t *testing.T) {
		n, ok := ix.Resolve(EndpointID("Primary Trigger"))
		if !ok || n.ID != "O1" {
			t.Fatalf("Resolve(by name) = (%q, %v), want O1", n.ID, ok)
		}
	})

	t.Run("suffix round trip", func(t *testing.T) {
		// Adding the known suffix then stripping it returns the original node.
		n, ok := ix.Resolve(EndpointID("ART-1" + DocumentSuffix))
		if !ok || n.ID != "ART-1" {
			t.Fatalf("Resolve(ART-1_pdf) = (%q, %v), want ART-1", n.ID, ok)
		}
	})

	t.Run("prefix stripped reference", func(t *testing.T) {
		n, ok := ix.Resolve(EndpointID("R1"))
		if !ok || n.ID != "risk:R1" {
			t.Fatalf("Resolve(R1) = (%q, %v), want risk:R1", n.ID, ok)
		}
	})

	t.Run("alternate spelling", func(t *testing.T) {
		n, ok := ix.Resolve(EndpointID("01"))
		if !ok || n.ID != "O1" {
			t.Fatalf("Resolve(01) = (%q, %v), want O1", n.ID, ok)
		}
	})

	t.Run("miss returns false not panic", func(t *testing.T) {
		if _, ok := ix.Resolve(EndpointID("nope")); ok {
			t.Error("expected miss")
		}
		if _, ok := ix.Resolve(EndpointID("")); ok {
			t.Error("expected miss for empty id")
		}
	})
}

func TestBuildKeyIndex_Ambiguity(t *testing.T) {
	// Two distinct raw ids canonicalize to the same key: last registered
	// wins, deterministically by array order.
	nodes := []Node{
		{ID: "R1", Type: "risk"},
		{ID: "risk:R1", Type: "risk"},
	}
	ix := BuildKeyIndex(nodes)

	ambs := ix.Ambiguities()
	if len(ambs) == 0 {
		t.Fatal("expected recorded ambiguity")
	}
	if ambs[0].Key != "R1" || ambs[0].KeptID != "risk:R1" || ambs[0].ShadowedID != "R1" {
		t.Errorf("unexpected ambiguity record: %+v", ambs[0])
	}

	n, ok := ix.Resolve(EndpointID("R1"))
	if !ok || n.ID != "risk:R1" {
		t.Errorf("Resolve(R1) = (%q, %v), want last-registered risk:R1", n.ID, ok)
	}

	// Same input, same winner.
	again, _ := BuildKeyIndex(nodes).Resolve(EndpointID("R1"))
	if again.ID != n.ID {
		t.Error("ambiguity resolution must be deterministic")
	}
}

func TestEndpoint_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Endpoint
	}{
		{"string id", `"O1"`, Endpoint{ID: "O1"}},
		{"index", `0`, Endpoint{Index: 0, HasIndex: true}},
		{"nonzero index", `2`, Endpoint{Index: 2, HasIndex: true}},
		{"object with id", `{"id":"ART-1","type":"artifact"}`, Endpoint{ID: "ART-1"}},
		{"object with name only", `{"name":"Generator"}`, Endpoint{ID: "Generator"}},
		{"object with label only", `{"label":"Gen"}`, Endpoint{ID: "Gen"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Endpoint
			if err := json.Unmarshal([]byte(tt.in), &e); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.in, err)
			}
			if e != tt.want {
				t.Errorf("got %+v, want %+v", e, tt.want)
			}
		})
	}

	t.Run("edge with mixed endpoint forms", func(t *testing.T) {
		var edge Edge
		raw := `{"source": 0, "target": {"id": "ART-1"}, "type": "produces"}`
		if err := json.Unmarshal([]byte(raw), &edge); err != nil {
			t.Fatalf("Unmarshal edge: %v", err)
		}
		if !edge.Source.HasIndex || edge.Source.Index != 0 {
			t.Errorf("source = %+v, want index 0", edge.Source)
		}
		if edge.Target.ID != "ART-1" {
			t.Errorf("target = %+v, want ART-1", edge.Target)
		}
	})
}

func containsKey(keys []string, want string) bool {
	for _, k := range keys {
		if k == want {
			return true
		}
	}
	return false
}

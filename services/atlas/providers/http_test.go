// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartomind/cartograph/services/atlas/graph"
	"github.com/cartomind/cartograph/services/atlas/session"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL})
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_FetchSnapshot(t *testing.T) {
	var gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(graph.Snapshot{
			VersionID: "v1",
			Nodes:     []graph.Node{{ID: "O1", Name: "Objective One"}},
		})
	}))

	snap, err := c.FetchSnapshot(context.Background(), "v1")

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/graph/v1", gotPath)
	assert.Equal(t, "v1", snap.VersionID)
	require.Len(t, snap.Nodes, 1)
}

func TestClient_FetchSnapshotDefaultsToCurrent(t *testing.T) {
	var gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(graph.Snapshot{VersionID: graph.VersionCurrent})
	}))

	_, err := c.FetchSnapshot(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/graph/current", gotPath)
}

func TestClient_FetchSnapshotBackendError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.FetchSnapshot(context.Background(), "v1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_FetchDiffEnvelope(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v1", r.URL.Query().Get("base"))
		assert.Equal(t, "v2", r.URL.Query().Get("compare"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"diff": map[string]any{
				"nodes": []map[string]any{
					{"id": "ART-2", "name": "Artifact Two", "change_type": "new"},
				},
			},
		})
	}))

	payload, err := c.FetchDiff(context.Background(), "v1", "v2")

	require.NoError(t, err)
	require.NotNil(t, payload.External)
	require.Len(t, payload.External.Nodes, 1)
	assert.Equal(t, graph.ChangeAdded, payload.External.Nodes[0].Classification())
	assert.Nil(t, payload.Base)
}

func TestClient_FetchVersions(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "v2", "message": "second"},
			{"id": "v1", "message": "first"},
		})
	}))

	versions, err := c.FetchVersions(context.Background())

	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[0].ID)
}

func TestClient_SessionStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"conflict is busy", http.StatusConflict, session.ErrSessionBusy},
		{"locked is busy", http.StatusLocked, session.ErrSessionBusy},
		{"rate limited is busy", http.StatusTooManyRequests, session.ErrSessionBusy},
		{"missing session", http.StatusNotFound, session.ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := c.FetchState(context.Background(), "s1")
			assert.ErrorIs(t, err, tt.wantErr)

			err = c.PushUpdate(context.Background(), "s1", session.State{"k": "v"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_FetchState(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/s1/state", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"active_mode": "supervisor",
			"messages":    []any{"a", "b"},
		})
	}))

	state, err := c.FetchState(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, "supervisor", state["active_mode"])
}

func TestClient_PushUpdateSendsBody(t *testing.T) {
	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	err := c.PushUpdate(context.Background(), "s1", session.State{"active_mode": "concept"})

	require.NoError(t, err)
	assert.Equal(t, "concept", got["active_mode"])
}

func TestClient_AuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(graph.Snapshot{})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	defer c.Close()

	_, err := c.FetchSnapshot(context.Background(), "v1")

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}

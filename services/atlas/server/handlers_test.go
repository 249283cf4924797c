// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartomind/cartograph/services/atlas/events"
	"github.com/cartomind/cartograph/services/atlas/graph"
	"github.com/cartomind/cartograph/services/atlas/history"
	"github.com/cartomind/cartograph/services/atlas/session"
	"github.com/cartomind/cartograph/services/atlas/snapshot"
)

type stubBackend struct {
	snapshots map[string]*graph.Snapshot
	diff      *snapshot.DiffPayload
	diffErr   error
	versions  []history.Version
	state     session.State
	stateErr  error
}

func (b *stubBackend) FetchSnapshot(ctx context.Context, versionID string) (*graph.Snapshot, error) {
	snap, ok := b.snapshots[versionID]
	if !ok {
		return nil, fmt.Errorf("no snapshot %q", versionID)
	}
	cp := *snap
	return &cp, nil
}

func (b *stubBackend) FetchDiff(ctx context.Context, base, compare string) (*snapshot.DiffPayload, error) {
	return b.diff, b.diffErr
}

func (b *stubBackend) FetchVersions(ctx context.Context) ([]history.Version, error) {
	return b.versions, nil
}

func (b *stubBackend) FetchState(ctx context.Context, sessionID string) (session.State, error) {
	return b.state, b.stateErr
}

func (b *stubBackend) PushUpdate(ctx context.Context, sessionID string, mutation session.State) error {
	return nil
}

func testSnapshot(versionID string) *graph.Snapshot {
	return &graph.Snapshot{
		VersionID: versionID,
		Nodes:     []graph.Node{{ID: "O1", Name: "Objective One"}},
	}
}

func testRouter(backend *stubBackend) (*Handlers, http.Handler) {
	emitter := events.NewEmitter()
	store := snapshot.NewStore(backend,
		snapshot.WithDiffProvider(backend),
		snapshot.WithHistoryProvider(backend),
		snapshot.WithEmitter(emitter))
	reconciler := session.NewReconciler("s1",
		session.WithProvider(backend),
		session.WithEmitter(emitter))
	handlers := NewHandlers(store, reconciler, emitter)
	return handlers, NewRouter(handlers, false)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHandleLoadAndView(t *testing.T) {
	backend := &stubBackend{snapshots: map[string]*graph.Snapshot{"v1": testSnapshot("v1")}}
	_, router := testRouter(backend)

	w, body := doJSON(t, router, http.MethodPost, "/v1/atlas/load/v1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", body["version_id"])

	w, body = doJSON(t, router, http.MethodGet, "/v1/atlas/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap, ok := body["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v1", snap["version_id"])
	assert.Nil(t, body["diff"])
}

func TestHandleLoadFailure(t *testing.T) {
	backend := &stubBackend{snapshots: map[string]*graph.Snapshot{}}
	_, router := testRouter(backend)

	w, body := doJSON(t, router, http.MethodPost, "/v1/atlas/load/missing", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, body["error"], "missing")
}

func TestHandleDiff(t *testing.T) {
	base := testSnapshot("v1")
	compare := testSnapshot("v2")
	compare.Nodes = append(compare.Nodes, graph.Node{ID: "ART-2", Name: "Artifact Two"})

	backend := &stubBackend{
		snapshots: map[string]*graph.Snapshot{"v1": base},
		diff:      &snapshot.DiffPayload{Base: base, Compare: compare},
	}
	_, router := testRouter(backend)

	w, body := doJSON(t, router, http.MethodGet, "/v1/atlas/diff?base=v1&compare=v2", "")

	require.Equal(t, http.StatusOK, w.Code)
	diff, ok := body["diff"].(map[string]any)
	require.True(t, ok)
	summary, ok := diff["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), summary["nodes_added"])
}

func TestHandleDiffRequiresParams(t *testing.T) {
	_, router := testRouter(&stubBackend{})

	w, _ := doJSON(t, router, http.MethodGet, "/v1/atlas/diff?base=v1", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDiffFailureStaysUsable(t *testing.T) {
	backend := &stubBackend{
		snapshots: map[string]*graph.Snapshot{"v1": testSnapshot("v1")},
		diffErr:   fmt.Errorf("backend down"),
	}
	_, router := testRouter(backend)

	w, _ := doJSON(t, router, http.MethodPost, "/v1/atlas/load/v1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, router, http.MethodGet, "/v1/atlas/diff?base=v1&compare=v2", "")

	require.Equal(t, http.StatusOK, w.Code, "a failed diff is not an HTTP error")
	diff, ok := body["diff"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, diff["unavailable"])
	assert.Contains(t, body["error"], "backend down")

	// The loaded snapshot is still there.
	_, view := doJSON(t, router, http.MethodGet, "/v1/atlas/view", "")
	require.NotNil(t, view["snapshot"])
}

func TestHandleVersions(t *testing.T) {
	backend := &stubBackend{versions: []history.Version{{ID: "v2"}, {ID: "v1"}}}
	_, router := testRouter(backend)

	w, body := doJSON(t, router, http.MethodGet, "/v1/atlas/versions", "")

	require.Equal(t, http.StatusOK, w.Code)
	versions, ok := body["versions"].([]any)
	require.True(t, ok)
	assert.Len(t, versions, 2)
}

func TestHandleStateLifecycle(t *testing.T) {
	backend := &stubBackend{state: session.State{"active_mode": "supervisor"}}
	_, router := testRouter(backend)

	// Local mutation applies immediately.
	w, body := doJSON(t, router, http.MethodPost, "/v1/atlas/state",
		`{"state":{"active_mode":"concept"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	state := body["state"].(map[string]any)
	assert.Equal(t, "concept", state["active_mode"])

	// Sync merges, but the fresh user write still wins.
	w, body = doJSON(t, router, http.MethodPost, "/v1/atlas/state/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	state = body["state"].(map[string]any)
	assert.Equal(t, "concept", state["active_mode"])
}

func TestHandleSyncBusy(t *testing.T) {
	backend := &stubBackend{stateErr: session.ErrSessionBusy}
	_, router := testRouter(backend)

	w, body := doJSON(t, router, http.MethodPost, "/v1/atlas/state/sync", "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "busy", body["status"])
}

func TestHandleSyncNotFound(t *testing.T) {
	backend := &stubBackend{stateErr: session.ErrSessionNotFound}
	_, router := testRouter(backend)

	w, _ := doJSON(t, router, http.MethodPost, "/v1/atlas/state/sync", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSwitchSession(t *testing.T) {
	backend := &stubBackend{}
	handlers, router := testRouter(backend)

	_, _ = doJSON(t, router, http.MethodPost, "/v1/atlas/state",
		`{"state":{"active_mode":"concept"}}`)

	w, body := doJSON(t, router, http.MethodPost, "/v1/atlas/sessions/s2", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s2", body["session_id"])
	assert.Empty(t, handlers.reconciler.EffectiveState(), "no carryover across sessions")
}

func TestHandleEventsAndHealth(t *testing.T) {
	backend := &stubBackend{snapshots: map[string]*graph.Snapshot{"v1": testSnapshot("v1")}}
	_, router := testRouter(backend)

	_, _ = doJSON(t, router, http.MethodPost, "/v1/atlas/load/v1", "")

	w, body := doJSON(t, router, http.MethodGet, "/v1/atlas/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	evs, ok := body["events"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, evs)

	w, body = doJSON(t, router, http.MethodGet, "/v1/atlas/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

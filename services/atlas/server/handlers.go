// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server exposes the atlas client over a local REST API so
// presentation layers can drive loads, diffs, and session state
// without linking the Go packages directly.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartomind/cartograph/services/atlas/events"
	"github.com/cartomind/cartograph/services/atlas/graph"
	"github.com/cartomind/cartograph/services/atlas/session"
	"github.com/cartomind/cartograph/services/atlas/snapshot"
)

// Handlers holds the dependencies the REST handlers need.
type Handlers struct {
	store      *snapshot.Store
	reconciler *session.Reconciler
	emitter    *events.Emitter
}

// NewHandlers creates the handler set.
func NewHandlers(store *snapshot.Store, reconciler *session.Reconciler, emitter *events.Emitter) *Handlers {
	return &Handlers{
		store:      store,
		reconciler: reconciler,
		emitter:    emitter,
	}
}

// HandleView returns the current snapshot and active diff.
func (h *Handlers) HandleView(c *gin.Context) {
	view := h.store.CurrentView()
	c.JSON(http.StatusOK, gin.H{
		"snapshot": view.Snapshot,
		"diff":     view.Diff,
	})
}

// HandleLoad loads a snapshot version into the view.
//
// A superseded load answers 409 so the caller knows a newer request
// owns the view; this is not a failure of the newer request.
func (h *Handlers) HandleLoad(c *gin.Context) {
	versionID := c.Param("version")

	snap, err := h.store.Load(c.Request.Context(), versionID)
	switch {
	case errors.Is(err, snapshot.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer load"})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleDiff activates a comparison between two versions.
//
// A failed comparison answers 200 with the unavailable marker rather
// than an error status: the view is still usable and the client
// renders the prior snapshot with a notice.
func (h *Handlers) HandleDiff(c *gin.Context) {
	base := c.Query("base")
	compare := c.Query("compare")
	if base == "" || compare == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "base and compare query parameters are required"})
		return
	}

	result, err := h.store.LoadDiff(c.Request.Context(), base, compare)
	switch {
	case errors.Is(err, snapshot.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer load"})
		return
	case err != nil:
		empty := graph.EmptyDiff(base, compare)
		c.JSON(http.StatusOK, gin.H{"diff": empty, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"diff": result})
}

// HandleClearDiff drops the active comparison.
func (h *Handlers) HandleClearDiff(c *gin.Context) {
	h.store.ClearDiff()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// HandleVersions lists the snapshot history.
func (h *Handlers) HandleVersions(c *gin.Context) {
	versions, err := h.store.Versions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"versions":        versions,
		"recently_viewed": h.store.History().Recent(),
	})
}

// HandleState returns the effective session state.
func (h *Handlers) HandleState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_id": h.reconciler.SessionID(),
		"state":      h.reconciler.EffectiveState(),
	})
}

// stateMutation is the body for local state updates.
type stateMutation struct {
	State map[string]any `json:"state" binding:"required"`
}

// HandleApplyState applies a local user mutation, effective
// immediately.
func (h *Handlers) HandleApplyState(c *gin.Context) {
	var req stateMutation
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.reconciler.ApplyLocal(req.State, session.OriginUser)
	c.JSON(http.StatusOK, gin.H{
		"state": h.reconciler.EffectiveState(),
	})
}

// HandleSync fetches authoritative state and merges it.
//
// Busy answers 202: the state is still syncing and the client keeps
// its optimistic view. A missing session answers 404.
func (h *Handlers) HandleSync(c *gin.Context) {
	err := h.reconciler.Sync(c.Request.Context())
	switch {
	case errors.Is(err, session.ErrSessionBusy):
		c.JSON(http.StatusAccepted, gin.H{
			"status": "busy",
			"state":  h.reconciler.EffectiveState(),
		})
		return
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "synced",
		"state":  h.reconciler.EffectiveState(),
	})
}

// HandleSwitchSession abandons the current session for a new one.
func (h *Handlers) HandleSwitchSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}

	h.reconciler.SwitchSession(sessionID)
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

// HandleEvents returns recently emitted observability events.
func (h *Handlers) HandleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": h.emitter.Recent()})
}

// HandleHealth is the liveness check.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

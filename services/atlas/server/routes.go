// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all atlas routes with the router group.
//
// Description:
//
//	Registers the /atlas/* endpoints with the given Gin router group.
//	The group should already carry any required middleware.
//
// Endpoints:
//
//	GET  /atlas/view - Current snapshot and active diff
//	POST /atlas/load/:version - Load a snapshot version
//	GET  /atlas/diff - Activate a comparison (?base=&compare=)
//	DELETE /atlas/diff - Clear the active comparison
//	GET  /atlas/versions - Snapshot history
//	GET  /atlas/state - Effective session state
//	POST /atlas/state - Apply a local user mutation
//	POST /atlas/state/sync - Fetch and merge authoritative state
//	POST /atlas/sessions/:id - Switch to another session
//	GET  /atlas/events - Recent observability events
//	GET  /atlas/health - Liveness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	atlas := rg.Group("/atlas")
	{
		// Graph view
		atlas.GET("/view", handlers.HandleView)
		atlas.POST("/load/:version", handlers.HandleLoad)
		atlas.GET("/diff", handlers.HandleDiff)
		atlas.DELETE("/diff", handlers.HandleClearDiff)
		atlas.GET("/versions", handlers.HandleVersions)

		// Session state
		atlas.GET("/state", handlers.HandleState)
		atlas.POST("/state", handlers.HandleApplyState)
		atlas.POST("/state/sync", handlers.HandleSync)
		atlas.POST("/sessions/:id", handlers.HandleSwitchSession)

		// Observability
		atlas.GET("/events", handlers.HandleEvents)
		atlas.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds a gin engine with recovery, the atlas routes under
// /v1, and a Prometheus metrics endpoint.
func NewRouter(handlers *Handlers, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

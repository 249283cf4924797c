// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers implements the backend transports: an HTTP client
// for snapshots, diffs, versions, and session state, and a WebSocket
// subscriber for server push updates.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/cartomind/cartograph/services/atlas/graph"
	"github.com/cartomind/cartograph/services/atlas/history"
	"github.com/cartomind/cartograph/services/atlas/session"
	"github.com/cartomind/cartograph/services/atlas/snapshot"
)

// Config holds HTTP client configuration.
type Config struct {
	// BaseURL is the graph backend root, e.g. "https://api.example.com".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration
}

// Client talks to the graph backend over HTTP.
//
// It implements snapshot.Provider, snapshot.DiffProvider,
// snapshot.HistoryProvider, and session.StateProvider. Busy and
// missing-session responses map onto the session package's sentinels
// so the reconciler's retry policy applies transparently.
type Client struct {
	http *resty.Client
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// FetchSnapshot returns the snapshot for a version ID.
func (c *Client) FetchSnapshot(ctx context.Context, versionID string) (*graph.Snapshot, error) {
	if versionID == "" {
		versionID = graph.VersionCurrent
	}

	var snap graph.Snapshot
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&snap).
		SetPathParam("version", versionID).
		Get("/api/v1/graph/{version}")
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", versionID, err)
	}
	if res.IsError() {
		return nil, apiError("fetch snapshot "+versionID, res)
	}
	return &snap, nil
}

// diffEnvelope is the backend's diff response: either a server-side
// diff or the snapshot pair for local classification.
type diffEnvelope struct {
	Diff    *graph.ExternalDiff `json:"diff,omitempty"`
	Base    *graph.Snapshot     `json:"base,omitempty"`
	Compare *graph.Snapshot     `json:"compare,omitempty"`
}

// FetchDiff returns the diff payload for a version pair.
func (c *Client) FetchDiff(ctx context.Context, baseVersion, compareVersion string) (*snapshot.DiffPayload, error) {
	var envelope diffEnvelope
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&envelope).
		SetQueryParams(map[string]string{
			"base":    baseVersion,
			"compare": compareVersion,
		}).
		Get("/api/v1/graph/diff")
	if err != nil {
		return nil, fmt.Errorf("fetch diff %s..%s: %w", baseVersion, compareVersion, err)
	}
	if res.IsError() {
		return nil, apiError(fmt.Sprintf("fetch diff %s..%s", baseVersion, compareVersion), res)
	}

	return &snapshot.DiffPayload{
		External: envelope.Diff,
		Base:     envelope.Base,
		Compare:  envelope.Compare,
	}, nil
}

// FetchVersions lists the published snapshot versions.
func (c *Client) FetchVersions(ctx context.Context) ([]history.Version, error) {
	var versions []history.Version
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&versions).
		Get("/api/v1/graph/versions")
	if err != nil {
		return nil, fmt.Errorf("fetch versions: %w", err)
	}
	if res.IsError() {
		return nil, apiError("fetch versions", res)
	}
	return versions, nil
}

// FetchState returns the full shared state of a session.
func (c *Client) FetchState(ctx context.Context, sessionID string) (session.State, error) {
	var state session.State
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&state).
		SetPathParam("id", sessionID).
		Get("/api/v1/sessions/{id}/state")
	if err != nil {
		return nil, fmt.Errorf("fetch session state: %w", err)
	}
	if res.IsError() {
		return nil, sessionError("fetch session state", sessionID, res)
	}
	return state, nil
}

// PushUpdate sends a partial state mutation for a session.
func (c *Client) PushUpdate(ctx context.Context, sessionID string, mutation session.State) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(mutation).
		SetPathParam("id", sessionID).
		Patch("/api/v1/sessions/{id}/state")
	if err != nil {
		return fmt.Errorf("push session update: %w", err)
	}
	if res.IsError() {
		return sessionError("push session update", sessionID, res)
	}
	return nil
}

// apiError turns a non-2xx response into an error carrying the status.
func apiError(op string, res *resty.Response) error {
	return fmt.Errorf("%s: backend returned %s", op, res.Status())
}

// sessionError maps session endpoint statuses onto the reconciler's
// sentinels: conflict, locked, and too-many-requests all mean "busy",
// while 404 means the session is gone.
func sessionError(op, sessionID string, res *resty.Response) error {
	switch res.StatusCode() {
	case http.StatusConflict, http.StatusLocked, http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", op, sessionID, session.ErrSessionBusy)
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", op, sessionID, session.ErrSessionNotFound)
	default:
		return fmt.Errorf("%s %s: backend returned %s", op, sessionID, res.Status())
	}
}

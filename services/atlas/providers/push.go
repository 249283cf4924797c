// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cartomind/cartograph/services/atlas/session"
)

const (
	pushReadLimit    = 1 * 1024 * 1024
	pushPongWait     = 60 * time.Second
	pushPingInterval = 30 * time.Second
	reconnectDelay   = 2 * time.Second
)

// pushMessage is one server push frame: a partial state mutation for a
// session.
type pushMessage struct {
	SessionID string        `json:"session_id"`
	State     session.State `json:"state"`
}

// PushSubscriber feeds server push updates into a reconciler.
//
// Updates arrive as JSON frames over a WebSocket and apply with
// OriginServerPush, so they take effect immediately but never outrank
// an authoritative fetch. Frames for sessions other than the
// reconciler's active one are ignored.
type PushSubscriber struct {
	url        string
	reconciler *session.Reconciler
	dialer     *websocket.Dialer
	logger     *slog.Logger
}

// NewPushSubscriber creates a subscriber for the given WebSocket URL.
func NewPushSubscriber(url string, r *session.Reconciler) *PushSubscriber {
	return &PushSubscriber{
		url:        url,
		reconciler: r,
		dialer:     websocket.DefaultDialer,
		logger:     slog.Default(),
	}
}

// Run connects and processes push frames until ctx is cancelled,
// reconnecting with a fixed delay on connection loss.
func (p *PushSubscriber) Run(ctx context.Context) error {
	for {
		if err := p.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("push connection lost, reconnecting",
				"url", p.url,
				"delay", reconnectDelay,
				"error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (p *PushSubscriber) runOnce(ctx context.Context) error {
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadLimit(pushReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(pushPongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pushPongWait))
	})

	p.logger.Info("push subscriber connected", "url", p.url)

	// Close the connection when ctx ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pushPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg pushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		p.apply(msg)
	}
}

func (p *PushSubscriber) apply(msg pushMessage) {
	if len(msg.State) == 0 {
		return
	}
	if msg.SessionID != "" && msg.SessionID != p.reconciler.SessionID() {
		p.logger.Debug("ignoring push for inactive session",
			"session_id", msg.SessionID,
			"active_session", p.reconciler.SessionID())
		return
	}
	p.reconciler.ApplyLocal(msg.State, session.OriginServerPush)
}

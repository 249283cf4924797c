// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cartomind/cartograph/services/atlas/history"
)

// Handler is a function that processes events.
type Handler func(event *Event)

// Subscription represents a subscription to events.
type Subscription struct {
	// ID uniquely identifies this subscription.
	ID string

	// Handler processes matching events.
	Handler Handler

	// Types limits which event types to handle (nil = all types).
	Types []Type
}

// Emitter broadcasts events to subscribers and keeps a bounded buffer
// of recent events for later retrieval.
//
// Thread Safety: Emitter is safe for concurrent use.
type Emitter struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	buffer        *history.RingBuffer[Event]
	sessionID     string
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithBufferSize sets the event buffer capacity (default 1000).
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) {
		e.buffer = history.NewRingBuffer[Event](size)
	}
}

// WithSessionID sets the session ID attached to all events.
func WithSessionID(id string) EmitterOption {
	return func(e *Emitter) {
		e.sessionID = id
	}
}

// NewEmitter creates a new event emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		subscriptions: make(map[string]*Subscription),
		buffer:        history.NewRingBuffer[Event](1000),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers a handler for events.
//
// Inputs:
//
//	handler - Function to call for each event.
//	types - Event types to subscribe to (nil = all types).
//
// Outputs:
//
//	string - Subscription ID for unsubscribing.
func (e *Emitter) Subscribe(handler Handler, types ...Type) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.NewString(),
		Handler: handler,
		Types:   types,
	}
	e.subscriptions[sub.ID] = sub
	return sub.ID
}

// Unsubscribe removes a subscription. Returns true if it existed.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subscriptions[id]; ok {
		delete(e.subscriptions, id)
		return true
	}
	return false
}

// SetSessionID updates the session attached to subsequent events.
func (e *Emitter) SetSessionID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = id
}

// Emit broadcasts an event to all matching subscribers.
//
// The event is also buffered for later retrieval via Recent. Handler
// panics are recovered so one failing subscriber cannot crash the
// emitter.
func (e *Emitter) Emit(eventType Type, data any) {
	e.mu.RLock()
	sessionID := e.sessionID
	subs := make([]*Subscription, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, sub)
	}
	e.mu.RUnlock()

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	}

	e.mu.Lock()
	e.buffer.Push(event)
	e.mu.Unlock()

	for _, sub := range subs {
		if !matches(sub, event.Type) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event handler panicked",
						"subscription_id", sub.ID,
						"event_type", event.Type,
						"panic", r)
				}
			}()
			sub.Handler(&event)
		}()
	}
}

// Recent returns the buffered events, oldest-first.
func (e *Emitter) Recent() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buffer.Items()
}

func matches(sub *Subscription, t Type) bool {
	if len(sub.Types) == 0 {
		return true
	}
	for _, st := range sub.Types {
		if st == t {
			return true
		}
	}
	return false
}

// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package events

import (
	"sync"
	"testing"
)

func TestEmitter_SubscribeAndEmit(t *testing.T) {
	e := NewEmitter(WithSessionID("s1"))

	var mu sync.Mutex
	var received []Event
	e.Subscribe(func(ev *Event) {
		mu.Lock()
		received = append(received, *ev)
		mu.Unlock()
	})

	e.Emit(TypeStaleFetchDiscarded, StaleFetchData{RequestedVersion: "v1", SupersededBy: "v2"})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	if received[0].Type != TypeStaleFetchDiscarded || received[0].SessionID != "s1" {
		t.Errorf("event = %+v", received[0])
	}
	if received[0].ID == "" {
		t.Error("event should carry a unique id")
	}
}

func TestEmitter_TypeFilter(t *testing.T) {
	e := NewEmitter()

	var mu sync.Mutex
	count := 0
	e.Subscribe(func(ev *Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, TypeSessionBusy)

	e.Emit(TypeSessionBusy, nil)
	e.Emit(TypeDiffUnavailable, nil)
	e.Emit(TypeSessionBusy, nil)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("filtered handler saw %d events, want 2", count)
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter()

	var mu sync.Mutex
	count := 0
	id := e.Subscribe(func(ev *Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	e.Emit(TypeSnapshotLoaded, nil)
	if !e.Unsubscribe(id) {
		t.Fatal("Unsubscribe should report true for a live subscription")
	}
	e.Emit(TypeSnapshotLoaded, nil)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if e.Unsubscribe(id) {
		t.Error("second Unsubscribe should report false")
	}
}

func TestEmitter_BufferBounded(t *testing.T) {
	e := NewEmitter(WithBufferSize(3))

	for i := 0; i < 5; i++ {
		e.Emit(TypeSnapshotLoaded, i)
	}

	recent := e.Recent()
	if len(recent) != 3 {
		t.Fatalf("Recent() len = %d, want 3", len(recent))
	}
	if recent[0].Data != 2 || recent[2].Data != 4 {
		t.Errorf("Recent() = %+v, want data [2 3 4]", recent)
	}
}

func TestEmitter_PanickingHandlerRecovered(t *testing.T) {
	e := NewEmitter()

	e.Subscribe(func(ev *Event) {
		panic("bad handler")
	})

	var mu sync.Mutex
	ok := false
	e.Subscribe(func(ev *Event) {
		mu.Lock()
		ok = true
		mu.Unlock()
	})

	e.Emit(TypeSessionNotFound, nil) // must not panic the emitter

	mu.Lock()
	defer mu.Unlock()
	if !ok {
		t.Error("healthy subscriber should still receive the event")
	}
}

// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"sync"
	"time"
)

// DefaultRecentCapacity bounds the recent-versions trail.
const DefaultRecentCapacity = 20

// Version describes one entry in the graph's version history.
type Version struct {
	// ID identifies the version.
	ID string `json:"id"`

	// Timestamp is when the version was created.
	Timestamp time.Time `json:"timestamp"`

	// Message is the optional human-readable description.
	Message string `json:"message,omitempty"`
}

// Log holds the ordered version list plus the recently viewed trail.
//
// The version list is replaced wholesale on each refresh from the
// history provider; the recent trail survives refreshes and records
// which versions the user actually traveled to.
//
// Thread Safety: all methods are safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	versions []Version
	recent   *RingBuffer[string]
}

// NewLog creates an empty version log.
func NewLog() *Log {
	return &Log{
		recent: NewRingBuffer[string](DefaultRecentCapacity),
	}
}

// SetVersions replaces the version list with a fresh fetch.
func (l *Log) SetVersions(versions []Version) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.versions = append([]Version(nil), versions...)
}

// Versions returns the current version list, newest ordering as
// delivered by the provider.
func (l *Log) Versions() []Version {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Version(nil), l.versions...)
}

// Latest returns the most recent version, if any.
func (l *Log) Latest() (Version, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.versions) == 0 {
		return Version{}, false
	}
	return l.versions[0], true
}

// MarkViewed records a version the user navigated to.
func (l *Log) MarkViewed(versionID string) {
	if versionID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent.Push(versionID)
}

// Recent returns the navigation trail, oldest-first.
func (l *Log) Recent() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.recent.Items()
}

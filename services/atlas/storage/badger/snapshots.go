// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cartomind/cartograph/services/atlas/graph"
)

const snapshotKeyPrefix = "snapshot:"

// ErrNotCacheable is returned when a caller tries to cache the mutable
// current view. Only immutable, explicitly versioned snapshots belong
// in the cache.
var ErrNotCacheable = errors.New("version is not cacheable")

// SnapshotCache stores immutable graph snapshots keyed by version ID.
//
// # Description
//
// Snapshot versions other than "current" never change once published,
// so a cache hit can be served without consulting the backend at all.
// Entries carry a TTL so a long-running client does not accumulate
// every version it has ever viewed.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type SnapshotCache struct {
	db     *badger.DB
	ttl    time.Duration
	gc     *gcRunner
	logger *slog.Logger
}

// NewSnapshotCache opens a cache with the given configuration.
func NewSnapshotCache(cfg Config) (*SnapshotCache, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &SnapshotCache{db: db, ttl: cfg.SnapshotTTL, logger: logger}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		c.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		c.gc.start()
	}
	return c, nil
}

// Put caches a snapshot under its version ID.
//
// Returns ErrNotCacheable for the "current" version, which is mutable
// and must always be fetched fresh.
func (c *SnapshotCache) Put(versionID string, snap *graph.Snapshot) error {
	if versionID == "" || versionID == graph.VersionCurrent {
		return fmt.Errorf("%w: %q", ErrNotCacheable, versionID)
	}
	if snap == nil {
		return errors.New("snapshot must not be nil")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", versionID, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(snapshotKeyPrefix+versionID), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache snapshot %s: %w", versionID, err)
	}

	cacheWritesTotal.Inc()
	return nil
}

// Get returns a cached snapshot, or ok=false on a miss.
//
// A corrupt entry is treated as a miss and deleted so the next load
// refreshes it from the backend.
func (c *SnapshotCache) Get(versionID string) (*graph.Snapshot, bool, error) {
	if versionID == "" || versionID == graph.VersionCurrent {
		return nil, false, nil
	}

	key := []byte(snapshotKeyPrefix + versionID)

	var snap graph.Snapshot
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})

	switch {
	case err == nil:
		cacheHitsTotal.Inc()
		return &snap, true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		cacheMissesTotal.Inc()
		return nil, false, nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		c.logger.Warn("dropping corrupt cached snapshot",
			"version_id", versionID,
			"error", err)
		_ = c.Delete(versionID)
		cacheMissesTotal.Inc()
		return nil, false, nil
	}

	return nil, false, fmt.Errorf("read cached snapshot %s: %w", versionID, err)
}

// Delete removes a cached snapshot. Deleting an absent key is not an
// error.
func (c *SnapshotCache) Delete(versionID string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(snapshotKeyPrefix + versionID))
	})
}

// Close stops background GC and closes the database.
func (c *SnapshotCache) Close() error {
	if c.gc != nil {
		c.gc.stop()
	}
	return c.db.Close()
}

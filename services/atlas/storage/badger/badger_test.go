// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartomind/cartograph/services/atlas/graph"
)

func testCache(t *testing.T) *SnapshotCache {
	t.Helper()
	c, err := NewSnapshotCache(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testSnapshot(versionID string) *graph.Snapshot {
	return &graph.Snapshot{
		VersionID: versionID,
		Nodes: []graph.Node{
			{ID: "O1", Name: "Objective One", Type: "objective"},
			{ID: "ART-1", Name: "Artifact One", Type: "artifact"},
		},
		Links: []graph.Edge{
			{Source: graph.EndpointID("O1"), Target: graph.EndpointID("ART-1"), Type: "produces"},
		},
	}
}

func TestSnapshotCache_PutGetRoundTrip(t *testing.T) {
	c := testCache(t)

	require.NoError(t, c.Put("v1", testSnapshot("v1")))

	got, ok, err := c.Get("v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", got.VersionID)
	require.Len(t, got.Nodes, 2)
	require.Len(t, got.Links, 1)
	assert.Equal(t, "O1", got.Links[0].Source.ID)
}

func TestSnapshotCache_MissIsNotAnError(t *testing.T) {
	c := testCache(t)

	_, ok, err := c.Get("never-stored")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotCache_CurrentVersionRejected(t *testing.T) {
	c := testCache(t)

	err := c.Put(graph.VersionCurrent, testSnapshot(graph.VersionCurrent))
	assert.ErrorIs(t, err, ErrNotCacheable)

	// Reads of "current" are always a miss, never a lookup.
	_, ok, err := c.Get(graph.VersionCurrent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotCache_Delete(t *testing.T) {
	c := testCache(t)

	require.NoError(t, c.Put("v1", testSnapshot("v1")))
	require.NoError(t, c.Delete("v1"))

	_, ok, err := c.Get("v1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Delete("v1"), "deleting an absent key is fine")
}

func TestSnapshotCache_CorruptEntryTreatedAsMiss(t *testing.T) {
	c := testCache(t)

	err := c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(snapshotKeyPrefix+"broken"), []byte("{not json"))
	})
	require.NoError(t, err)

	_, ok, err := c.Get("broken")
	require.NoError(t, err)
	assert.False(t, ok)

	// The corrupt entry was evicted.
	err = c.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(snapshotKeyPrefix + "broken"))
		return err
	})
	assert.ErrorIs(t, err, badgerdb.ErrKeyNotFound)
}

func TestOpen_RequiresPathForPersistent(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_PersistentRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0

	c, err := NewSnapshotCache(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Put("v9", testSnapshot("v9")))
	require.NoError(t, c.Close())

	c2, err := NewSnapshotCache(cfg)
	require.NoError(t, err)
	defer c2.Close()

	got, ok, err := c2.Get("v9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v9", got.VersionID)
}

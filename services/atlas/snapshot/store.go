// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cartomind/cartograph/services/atlas/events"
	"github.com/cartomind/cartograph/services/atlas/graph"
	"github.com/cartomind/cartograph/services/atlas/history"
	storage "github.com/cartomind/cartograph/services/atlas/storage/badger"
)

var storeTracer = otel.Tracer("cartograph.atlas.snapshot")

// ErrSuperseded is returned when a load finishes after a newer load
// has already started. The result was discarded; the newer request
// owns the view.
var ErrSuperseded = errors.New("load superseded by a newer request")

// View is the store's current presentation state: the loaded snapshot
// and, when a comparison is active, its diff.
type View struct {
	Snapshot *graph.Snapshot
	Diff     *graph.DiffResult
}

// Summarizer produces an optional prose summary of a diff. Failures
// are tolerated; the diff renders without a summary.
type Summarizer interface {
	Summarize(ctx context.Context, diff graph.DiffResult) (string, error)
}

// Store owns the client's graph view.
//
// # Description
//
// All loads are last-request-wins: starting a new load invalidates any
// in-flight one, and a late result is discarded with a
// TypeStaleFetchDiscarded event rather than clobbering the newer view.
// A failed diff load never blanks the screen; the prior snapshot stays
// and the diff is marked unavailable.
//
// # Thread Safety
//
// Safe for concurrent use. Fetches run outside the lock; the staleness
// re-check and the view write share one critical section.
type Store struct {
	mu            sync.Mutex
	view          View
	generation    uint64
	lastRequested string

	provider    Provider
	diffs       DiffProvider
	versions    HistoryProvider
	cache       *storage.SnapshotCache
	emitter     *events.Emitter
	summarizer  Summarizer
	log         *history.Log
	logger      *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDiffProvider enables LoadDiff.
func WithDiffProvider(p DiffProvider) StoreOption {
	return func(s *Store) { s.diffs = p }
}

// WithHistoryProvider enables Versions.
func WithHistoryProvider(p HistoryProvider) StoreOption {
	return func(s *Store) { s.versions = p }
}

// WithCache attaches a local snapshot cache for immutable versions.
func WithCache(c *storage.SnapshotCache) StoreOption {
	return func(s *Store) { s.cache = c }
}

// WithEmitter attaches an observability event emitter.
func WithEmitter(e *events.Emitter) StoreOption {
	return func(s *Store) { s.emitter = e }
}

// WithSummarizer attaches an optional diff summarizer.
func WithSummarizer(sum Summarizer) StoreOption {
	return func(s *Store) { s.summarizer = sum }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store backed by the given snapshot provider.
func NewStore(provider Provider, opts ...StoreOption) *Store {
	s := &Store{
		provider: provider,
		log:      history.NewLog(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History exposes the version history log.
func (s *Store) History() *history.Log { return s.log }

// CurrentView returns the loaded snapshot and active diff, if any.
func (s *Store) CurrentView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// begin registers a new load and returns its generation token.
func (s *Store) begin(requested string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.lastRequested = requested
	return s.generation
}

// commit applies fn to the view, but only while gen is still the
// newest load. The staleness re-check and the write share one critical
// section, so a superseded load can never overwrite a newer view no
// matter how goroutines interleave between fetch and commit.
// Returns ErrSuperseded for a stale generation.
func (s *Store) commit(gen uint64, requested string, fn func(*View)) error {
	s.mu.Lock()
	if gen != s.generation {
		winner := s.lastRequested
		s.mu.Unlock()
		s.reportStale(requested, winner)
		return ErrSuperseded
	}
	fn(&s.view)
	s.mu.Unlock()
	return nil
}

// reportStale records a load whose result was discarded because a
// newer request superseded it.
func (s *Store) reportStale(requested, winner string) {
	staleLoadsDiscardedTotal.Inc()
	s.logger.Debug("discarding superseded load",
		"requested_version", requested,
		"superseded_by", winner)
	if s.emitter != nil {
		s.emitter.Emit(events.TypeStaleFetchDiscarded, events.StaleFetchData{
			RequestedVersion: requested,
			SupersededBy:     winner,
		})
	}
}

// Load fetches a snapshot version and makes it the current view,
// clearing any active diff.
//
// Immutable versions are served from the local cache when present.
// Returns ErrSuperseded when a newer load started before this one
// finished.
func (s *Store) Load(ctx context.Context, versionID string) (*graph.Snapshot, error) {
	if versionID == "" {
		versionID = graph.VersionCurrent
	}

	ctx, span := storeTracer.Start(ctx, "Load",
		trace.WithAttributes(attribute.String("version_id", versionID)))
	defer span.End()

	gen := s.begin(versionID)

	snap, fromCache, err := s.fetchSnapshot(ctx, versionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load snapshot %s: %w", versionID, err)
	}
	span.SetAttributes(
		attribute.Bool("cache_hit", fromCache),
		attribute.Int("node_count", len(snap.Nodes)),
		attribute.Int("edge_count", len(snap.Links)))

	if err := s.commit(gen, versionID, func(v *View) {
		*v = View{Snapshot: snap}
	}); err != nil {
		return nil, err
	}

	s.log.MarkViewed(versionID)
	s.reportDropped(snap)

	source := "backend"
	if fromCache {
		source = "cache"
	}
	snapshotLoadsTotal.WithLabelValues(source).Inc()

	if s.emitter != nil {
		s.emitter.Emit(events.TypeSnapshotLoaded, map[string]any{
			"version_id": versionID,
			"node_count": len(snap.Nodes),
		})
	}
	return snap, nil
}

// fetchSnapshot tries the cache first for immutable versions, then the
// backend, writing fresh results back to the cache.
func (s *Store) fetchSnapshot(ctx context.Context, versionID string) (*graph.Snapshot, bool, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(versionID)
		if err != nil {
			s.logger.Warn("snapshot cache read failed",
				"version_id", versionID,
				"error", err)
		} else if ok {
			return cached, true, nil
		}
	}

	snap, err := s.provider.FetchSnapshot(ctx, versionID)
	if err != nil {
		return nil, false, err
	}
	if snap.VersionID == "" {
		snap.VersionID = versionID
	}

	if s.cache != nil && versionID != graph.VersionCurrent {
		if err := s.cache.Put(versionID, snap); err != nil {
			s.logger.Warn("snapshot cache write failed",
				"version_id", versionID,
				"error", err)
		}
	}
	return snap, false, nil
}

// reportDropped validates a plain snapshot and emits an event per
// unresolvable endpoint and per identity key collision. The snapshot
// itself is left untouched; rendering already excludes dropped edges.
func (s *Store) reportDropped(snap *graph.Snapshot) {
	if s.emitter == nil {
		return
	}
	_, _, dropped, ambs := graph.ClassifySnapshot(*snap)
	s.emitDropped(dropped)
	s.emitAmbiguities(ambs)
}

func (s *Store) emitAmbiguities(ambs []graph.Ambiguity) {
	if s.emitter == nil {
		return
	}
	for _, a := range ambs {
		s.emitter.Emit(events.TypeResolverAmbiguity, events.AmbiguityData{
			Key:        a.Key,
			KeptID:     a.KeptID,
			ShadowedID: a.ShadowedID,
			VersionID:  a.VersionID,
		})
	}
}

func (s *Store) emitDropped(dropped []graph.DroppedEdge) {
	if s.emitter == nil {
		return
	}
	for _, d := range dropped {
		endpoint := d.Edge.Source.String()
		if d.Reason == graph.DropUnresolvableTarget {
			endpoint = d.Edge.Target.String()
		}
		s.emitter.Emit(events.TypeUnresolvableEndpoint, events.DroppedEdgeData{
			Endpoint:  endpoint,
			Reason:    d.Reason,
			VersionID: d.VersionID,
		})
	}
}

// LoadDiff fetches and activates a comparison between two versions.
//
// A failure never clears the current snapshot: the view keeps whatever
// was loaded, the diff is replaced with an unavailable marker, a
// TypeDiffUnavailable event fires, and the error is returned.
// Returns ErrSuperseded when a newer load won the race.
func (s *Store) LoadDiff(ctx context.Context, baseVersion, compareVersion string) (*graph.DiffResult, error) {
	if s.diffs == nil {
		return nil, errors.New("no diff provider configured")
	}

	requested := baseVersion + ".." + compareVersion
	ctx, span := storeTracer.Start(ctx, "LoadDiff",
		trace.WithAttributes(
			attribute.String("base_version", baseVersion),
			attribute.String("compare_version", compareVersion)))
	defer span.End()

	gen := s.begin(requested)

	payload, err := s.diffs.FetchDiff(ctx, baseVersion, compareVersion)
	if err != nil {
		span.RecordError(err)
		return nil, s.markDiffUnavailable(gen, requested, baseVersion, compareVersion, err)
	}

	result, compare, berr := s.buildDiff(ctx, baseVersion, compareVersion, payload)
	if berr != nil {
		span.RecordError(berr)
		return nil, s.markDiffUnavailable(gen, requested, baseVersion, compareVersion, berr)
	}
	span.SetAttributes(
		attribute.Int("nodes_changed", result.Summary.NodesAdded+result.Summary.NodesRemoved+result.Summary.NodesModified),
		attribute.Int("edges_dropped", len(result.Dropped)))

	if err := s.commit(gen, requested, func(v *View) {
		if compare != nil {
			v.Snapshot = compare
		}
		v.Diff = result
	}); err != nil {
		return nil, err
	}

	s.emitDropped(result.Dropped)
	s.emitAmbiguities(result.Ambiguities)
	if s.emitter != nil {
		s.emitter.Emit(events.TypeDiffLoaded, map[string]any{
			"base_version":    baseVersion,
			"compare_version": compareVersion,
		})
	}
	return result, nil
}

// buildDiff turns a provider payload into a classified diff with
// anchor edges and, when configured, a semantic summary.
func (s *Store) buildDiff(ctx context.Context, baseVersion, compareVersion string, payload *DiffPayload) (*graph.DiffResult, *graph.Snapshot, error) {
	var result graph.DiffResult
	var compare *graph.Snapshot

	switch {
	case payload == nil:
		return nil, nil, errors.New("diff provider returned no payload")

	case payload.External != nil:
		result = graph.AdoptExternalDiff(*payload.External)
		result.BaseVersion = baseVersion
		result.CompareVersion = compareVersion
		if result.Unavailable {
			return nil, nil, errors.New("backend diff payload was empty")
		}

	case payload.Base != nil && payload.Compare != nil:
		result = graph.Classify(*payload.Base, *payload.Compare)
		result.BaseVersion = baseVersion
		result.CompareVersion = compareVersion
		compare = payload.Compare
		s.cacheSnapshot(baseVersion, payload.Base)
		s.cacheSnapshot(compareVersion, payload.Compare)

	default:
		return nil, nil, errors.New("diff payload carried neither a diff nor a snapshot pair")
	}

	result.Edges = append(result.Edges, graph.Anchor(result.Nodes, result.Edges)...)

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, result)
		if err != nil {
			s.logger.Warn("diff summary failed, rendering without one",
				"base_version", baseVersion,
				"compare_version", compareVersion,
				"error", err)
		} else {
			result.Summary.SemanticSummary = summary
		}
	}
	return &result, compare, nil
}

func (s *Store) cacheSnapshot(versionID string, snap *graph.Snapshot) {
	if s.cache == nil || snap == nil || versionID == graph.VersionCurrent || versionID == "" {
		return
	}
	if err := s.cache.Put(versionID, snap); err != nil {
		s.logger.Warn("snapshot cache write failed",
			"version_id", versionID,
			"error", err)
	}
}

// markDiffUnavailable records a failed comparison without touching the
// loaded snapshot. A failure whose generation was superseded leaves
// the newer view alone and surfaces ErrSuperseded instead.
func (s *Store) markDiffUnavailable(gen uint64, requested, baseVersion, compareVersion string, cause error) error {
	empty := graph.EmptyDiff(baseVersion, compareVersion)
	if err := s.commit(gen, requested, func(v *View) {
		v.Diff = &empty
	}); err != nil {
		return err
	}

	diffUnavailableTotal.Inc()
	s.logger.Warn("diff unavailable",
		"base_version", baseVersion,
		"compare_version", compareVersion,
		"error", cause)

	if s.emitter != nil {
		s.emitter.Emit(events.TypeDiffUnavailable, events.DiffUnavailableData{
			BaseVersion:    baseVersion,
			CompareVersion: compareVersion,
			Cause:          cause.Error(),
		})
	}
	return fmt.Errorf("diff %s..%s: %w", baseVersion, compareVersion, cause)
}

// ClearDiff drops the active comparison, keeping the snapshot.
func (s *Store) ClearDiff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Diff = nil
}

// Versions refreshes and returns the snapshot version history, newest
// first as the backend reports it.
func (s *Store) Versions(ctx context.Context) ([]history.Version, error) {
	if s.versions == nil {
		return nil, errors.New("no history provider configured")
	}

	ctx, span := storeTracer.Start(ctx, "Versions")
	defer span.End()

	versions, err := s.versions.FetchVersions(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch versions: %w", err)
	}
	span.SetAttributes(attribute.Int("version_count", len(versions)))

	s.log.SetVersions(versions)
	return versions, nil
}

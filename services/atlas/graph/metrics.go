// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for resolution and classification.
var (
	resolverAmbiguitiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_graph_resolver_ambiguities_total",
		Help: "Canonical key collisions between distinct raw ids",
	})

	droppedEdgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_graph_dropped_edges_total",
		Help: "Edges dropped during resolution by reason",
	}, []string{"reason"})

	diffsComputedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_graph_diffs_computed_total",
		Help: "Diff classifications by mode (local or external)",
	}, []string{"mode"})

	anchorEdgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_graph_anchor_edges_total",
		Help: "Synthetic anchor edges created for orphaned added nodes",
	})

	summaryMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_graph_summary_mismatches_total",
		Help: "External diff summaries that disagreed with recomputed counts",
	})
)

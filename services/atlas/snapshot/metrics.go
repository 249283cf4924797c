// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_snapshot_loads_total",
		Help: "Snapshot loads committed to the view, by source.",
	}, []string{"source"})

	staleLoadsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_stale_loads_discarded_total",
		Help: "Loads that finished after a newer request superseded them.",
	})

	diffUnavailableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_diff_unavailable_total",
		Help: "Comparisons that failed and were marked unavailable.",
	})
)

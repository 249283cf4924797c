// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_snapshot_cache_hits_total",
		Help: "Snapshot loads served from the local cache.",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_snapshot_cache_misses_total",
		Help: "Snapshot loads that fell through to the backend.",
	})

	cacheWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_snapshot_cache_writes_total",
		Help: "Snapshots written to the local cache.",
	})
)

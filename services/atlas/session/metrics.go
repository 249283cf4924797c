// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for state reconciliation.
var (
	localMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_session_local_mutations_total",
		Help: "Optimistic local mutations applied to the overlay, by origin",
	}, []string{"origin"})

	reconcileMergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_session_reconcile_merges_total",
		Help: "Authoritative fetches merged into the baseline",
	})

	staleMessagesDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_session_stale_messages_discarded_total",
		Help: "Fetched message lists discarded by the monotonic length invariant",
	})

	busyRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_session_busy_retries_total",
		Help: "Retries performed because the session state was busy",
	})
)

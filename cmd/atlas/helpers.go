// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/cartomind/cartograph/services/atlas/config"
	"github.com/cartomind/cartograph/services/atlas/events"
	"github.com/cartomind/cartograph/services/atlas/providers"
	"github.com/cartomind/cartograph/services/atlas/snapshot"
	storage "github.com/cartomind/cartograph/services/atlas/storage/badger"
	"github.com/cartomind/cartograph/services/atlas/summary"
)

// buildStore wires the snapshot store from configuration: HTTP client,
// optional cache, optional summarizer. The returned cleanup closes
// everything that was opened.
func buildStore(cfg config.Config, emitter *events.Emitter) (*snapshot.Store, *providers.Client, func(), error) {
	if cfg.Backend.BaseURL == "" {
		return nil, nil, nil, fmt.Errorf("backend base_url is not configured (set it in %s or CARTOGRAPH_BACKEND_URL)", cfgPath)
	}

	client := providers.NewClient(providers.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
	})
	cleanups := []func(){func() { client.Close() }}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	opts := []snapshot.StoreOption{
		snapshot.WithDiffProvider(client),
		snapshot.WithHistoryProvider(client),
		snapshot.WithEmitter(emitter),
	}

	if cfg.Cache.Enabled {
		cacheCfg := storage.DefaultConfig()
		cacheCfg.Path = cfg.Cache.Path
		cacheCfg.InMemory = cfg.Cache.Path == ""
		if cfg.Cache.SnapshotTTL > 0 {
			cacheCfg.SnapshotTTL = cfg.Cache.SnapshotTTL
		}
		cache, err := storage.NewSnapshotCache(cacheCfg)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("open snapshot cache: %w", err)
		}
		cleanups = append(cleanups, func() { cache.Close() })
		opts = append(opts, snapshot.WithCache(cache))
	}

	if cfg.Summary.Enabled {
		sum, err := summary.New(cfg.Summary.APIKey, summary.WithModel(cfg.Summary.Model))
		if err != nil {
			slog.Warn("diff summaries disabled", "error", err)
		} else {
			opts = append(opts, snapshot.WithSummarizer(sum))
		}
	}

	return snapshot.NewStore(client, opts...), client, cleanup, nil
}

// outputJSON prints v as indented JSON on stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

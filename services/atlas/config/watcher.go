// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// ReloadHandler receives the freshly loaded configuration after the
// file changes on disk.
type ReloadHandler func(Config)

// Watch reloads the config file whenever it changes and hands the
// result to handler, until ctx is cancelled.
//
// Rapid write bursts are debounced so editors that write in several
// steps trigger one reload. A change that fails to parse or validate
// is logged and skipped; the previous configuration stays in effect.
//
// The parent directory is watched rather than the file itself, so
// rename-and-replace saves keep working.
func Watch(ctx context.Context, path string, handler ReloadHandler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(path)
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil

			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config reload skipped",
					"path", path,
					"error", err)
				continue
			}
			slog.Info("config reloaded", "path", path)
			handler(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

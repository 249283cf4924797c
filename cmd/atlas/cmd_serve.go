// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cartomind/cartograph/pkg/logging"
	"github.com/cartomind/cartograph/services/atlas/config"
	"github.com/cartomind/cartograph/services/atlas/events"
	"github.com/cartomind/cartograph/services/atlas/providers"
	"github.com/cartomind/cartograph/services/atlas/server"
	"github.com/cartomind/cartograph/services/atlas/session"
)

var (
	servePort    int
	serveDebug   bool
	serveSession string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local atlas API server",
	Long: `Run the long-lived atlas server: a local REST API over the
graph view and session state, with background state sync, server push
updates, and config hot reload.

Examples:
  atlas serve
  atlas serve --port 9000 --session s1 --debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Listen port (overrides the config file)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false,
		"Enable debug mode and request logging")
	serveCmd.Flags().StringVar(&serveSession, "session", "default",
		"Session to reconcile state for")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emitter := events.NewEmitter(events.WithSessionID(serveSession))
	store, client, cleanup, err := buildStore(cfg, emitter)
	if err != nil {
		return err
	}
	defer cleanup()

	reconciler := session.NewReconciler(serveSession,
		session.WithProvider(client),
		session.WithEmitter(emitter),
		session.WithPriorityWindow(cfg.Session.PriorityWindow),
		session.WithRetryPolicy(session.RetryPolicy{
			Attempts: cfg.Session.RetryAttempts,
			Delay:    cfg.Session.RetryDelay,
		}))

	// Background state sync. Config reloads feed the interval channel.
	syncInterval := make(chan time.Duration, 1)
	go runSyncLoop(ctx, reconciler, cfg.Session.SyncInterval, syncInterval)

	// Server push updates, when configured.
	if cfg.Backend.PushURL != "" {
		sub := providers.NewPushSubscriber(cfg.Backend.PushURL, reconciler)
		go func() {
			if err := sub.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("push subscriber stopped", "error", err)
			}
		}()
	}

	// Hot reload: log level and sync interval apply live; everything
	// else needs a restart.
	go func() {
		err := config.Watch(ctx, cfgPath, func(next config.Config) {
			slog.SetDefault(logging.New(logging.Config{
				Level:   logging.ParseLevel(next.Logging.Level),
				LogDir:  next.Logging.Dir,
				Service: "atlas",
				JSON:    next.Logging.JSON,
			}).Slog())
			select {
			case syncInterval <- next.Session.SyncInterval:
			default:
			}
		})
		if err != nil && ctx.Err() == nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()

	handlers := server.NewHandlers(store, reconciler, emitter)
	router := server.NewRouter(handlers, serveDebug)

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)

	slog.Info("starting atlas server",
		"address", addr,
		"session", serveSession,
		"backend", cfg.Backend.BaseURL)

	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(addr) }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down atlas server")
		return nil
	case err := <-errCh:
		return err
	}
}

// runSyncLoop fetches authoritative session state on a ticker whose
// interval can change at runtime.
func runSyncLoop(ctx context.Context, r *session.Reconciler, interval time.Duration, updates <-chan time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case next := <-updates:
			if next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
				slog.Info("sync interval updated", "interval", interval)
			}
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil {
				slog.Warn("session sync failed", "error", err)
			}
		}
	}
}

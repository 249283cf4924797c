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
	"time"

	"github.com/spf13/cobra"

	"github.com/cartomind/cartograph/services/atlas/events"
	"github.com/cartomind/cartograph/services/atlas/graph"
)

var viewJSONOutput bool

var viewCmd = &cobra.Command{
	Use:   "view [VERSION]",
	Short: "Load and display a graph snapshot",
	Long: `Load a snapshot version and print its contents.

Without a version argument the live "current" view is loaded.

Examples:
  atlas view
  atlas view v42
  atlas view v42 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().BoolVar(&viewJSONOutput, "json", false,
		"Output as JSON for scripting")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	versionID := graph.VersionCurrent
	if len(args) == 1 {
		versionID = args[0]
	}

	emitter := events.NewEmitter()
	store, _, cleanup, err := buildStore(cfg, emitter)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := store.Load(ctx, versionID)
	if err != nil {
		return err
	}

	if viewJSONOutput {
		return outputJSON(snap)
	}

	fmt.Printf("Snapshot %s: %d nodes, %d edges\n", snap.VersionID, len(snap.Nodes), len(snap.Links))
	for _, n := range snap.Nodes {
		fmt.Printf("  %-20s %s\n", n.ID, n.DisplayName())
	}
	return nil
}

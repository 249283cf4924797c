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

var (
	diffJSONOutput bool
	diffShowAll    bool
)

var diffCmd = &cobra.Command{
	Use:   "diff BASE COMPARE",
	Short: "Compare two graph snapshot versions",
	Long: `Compare two snapshot versions and print what changed.

Changes are listed per node and edge; unchanged items are hidden
unless --all is given. Edges whose endpoints cannot be resolved in
either version are dropped and reported, never rendered dangling.

Examples:
  atlas diff v41 v42
  atlas diff v41 current --all
  atlas diff v41 v42 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffJSONOutput, "json", false,
		"Output as JSON for scripting")
	diffCmd.Flags().BoolVar(&diffShowAll, "all", false,
		"Include unchanged nodes and edges")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	emitter := events.NewEmitter()
	store, _, cleanup, err := buildStore(cfg, emitter)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := store.LoadDiff(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if diffJSONOutput {
		return outputJSON(result)
	}

	printDiff(result)
	return nil
}

func printDiff(result *graph.DiffResult) {
	s := result.Summary
	fmt.Printf("Diff %s..%s: +%d/-%d/~%d nodes, +%d/-%d edges\n",
		result.BaseVersion, result.CompareVersion,
		s.NodesAdded, s.NodesRemoved, s.NodesModified,
		s.EdgesAdded, s.EdgesRemoved)
	if s.SemanticSummary != "" {
		fmt.Printf("\n%s\n", s.SemanticSummary)
	}

	fmt.Println("\nNodes:")
	for _, n := range result.Nodes {
		if n.Change == graph.ChangeUnchanged && !diffShowAll {
			continue
		}
		fmt.Printf("  %-10s %-20s %s\n", n.Change, n.ID, n.DisplayName())
	}

	fmt.Println("\nEdges:")
	for _, e := range result.Edges {
		if e.Synthetic {
			continue
		}
		if e.Change == graph.ChangeUnchanged && !diffShowAll {
			continue
		}
		fmt.Printf("  %-10s %s -%s-> %s\n", e.Change, e.Source, e.Type, e.Target)
	}

	if len(result.Dropped) > 0 {
		fmt.Printf("\nDropped %d edge(s) with unresolvable endpoints:\n", len(result.Dropped))
		for _, d := range result.Dropped {
			fmt.Printf("  %s -> %s (%s)\n", d.Edge.Source, d.Edge.Target, d.Reason)
		}
	}
}

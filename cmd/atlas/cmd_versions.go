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
)

var versionsJSONOutput bool

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List published snapshot versions",
	Long: `List the snapshot versions the backend has published, newest
first.

Examples:
  atlas versions
  atlas versions --json`,
	Args: cobra.NoArgs,
	RunE: runVersions,
}

func init() {
	versionsCmd.Flags().BoolVar(&versionsJSONOutput, "json", false,
		"Output as JSON for scripting")
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	emitter := events.NewEmitter()
	store, _, cleanup, err := buildStore(cfg, emitter)
	if err != nil {
		return err
	}
	defer cleanup()

	versions, err := store.Versions(ctx)
	if err != nil {
		return err
	}

	if versionsJSONOutput {
		return outputJSON(versions)
	}

	for _, v := range versions {
		ts := ""
		if !v.Timestamp.IsZero() {
			ts = v.Timestamp.Format(time.RFC3339)
		}
		fmt.Printf("%-16s %-22s %s\n", v.ID, ts, v.Message)
	}
	return nil
}

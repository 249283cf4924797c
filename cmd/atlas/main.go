// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cartomind/cartograph/pkg/logging"
	"github.com/cartomind/cartograph/services/atlas/config"
)

var (
	cfgPath string
	cfg     config.Config
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Cartomind knowledge graph client",
	Long: `Atlas is the Cartomind knowledge graph client.

It loads graph snapshots, compares versions, and keeps shared session
state reconciled with the backend, either as one-shot commands or as a
long-running local API for presentation layers.

Examples:
  atlas view v42
  atlas diff v41 v42
  atlas versions
  atlas serve --port 8085`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "atlas.yaml",
		"Path to the configuration file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		logger = logging.New(logging.Config{
			Level:   logging.ParseLevel(cfg.Logging.Level),
			LogDir:  cfg.Logging.Dir,
			Service: "atlas",
			JSON:    cfg.Logging.JSON,
		})
		slog.SetDefault(logger.Slog())
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	}
}

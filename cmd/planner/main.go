// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command planner plans and executes hierarchical task networks.
//
// Subcommands:
//
//	plan   - build a plan from a domain and problem file and print it
//	run    - plan and execute, printing the action trace
//	serve  - expose the planner over HTTP
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/pkg/logging"
	"github.com/AleutianAI/AleutianPlan/services/planner/config"
)

var (
	cfgPath  string
	logLevel string
	verbose  int

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "planner",
		Short: "Hierarchical task network planner and executor",
		Long: `planner decomposes tasks and goals into primitive actions using a
declarative domain file, and can execute the resulting plans with
retry-bounded backtracking when actions fail.`,
		SilenceUsage: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 0, "planner verbosity (0-3)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if verbose > 0 {
			cfg.Planner.Verbose = verbose
		}
		return nil
	}

	rootCmd.AddCommand(planCmd, runCmd, serveCmd)
}

// newLogger builds the process logger from the resolved config.
func newLogger(service string) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: service,
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet,
	}), nil
}

// Package main provides the CLI entry point for aiengine-go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aiengine/aiengine-go/cmd/aiengine/commands"
)

var (
	version = "1.0.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aiengine",
	Short: "AIEngine - Adaptive task processing engine",
	Long: `AIEngine is an adaptive task processing engine for domain-tagged
machine learning tasks.

It provides:
  - Typed routing of tasks across domains and task types
  - An attention-based neural core with specialized output heads
  - Meta-learned blending of head parameters per domain
  - Conservation-checked feature attributions for every prediction
  - A continual learning loop that adapts per-domain state from outcomes`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(commands.TaskCmd)
	rootCmd.AddCommand(commands.DomainsCmd)
	rootCmd.AddCommand(commands.AdaptationCmd)
	rootCmd.AddCommand(commands.BenchmarkCmd)
}

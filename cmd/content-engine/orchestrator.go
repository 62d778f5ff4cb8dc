// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/content-engine/pkg/types"
)

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Inspect the image scheduler or run one cycle",
	Long: `Orchestrator reads the persisted scheduler state, or runs a single image
cycle in this process. Start and stop the long-running scheduler through
"content-engine serve" and its HTTP API.`,
}

var orchestratorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted scheduler counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		state, err := st.LoadSchedulerState(ctx)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return writeFormatted(os.Stdout, state, "json")
		}
		printState(state)
		return nil
	},
}

var orchestratorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one image cycle now",
	Long: `Run loads published articles missing a hero image or infographic,
generates what each one needs and purges expired superseded assets. It
does not touch the persisted scheduler counters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if cfg.Scheduler.CycleTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Scheduler.CycleTimeout)
			defer cancel()
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		summary, err := a.job.Run(ctx)
		printSummary(summary, time.Since(start))
		if err != nil {
			return err
		}
		if summary.HasFailures() {
			return fmt.Errorf("%d image(s) failed", summary.Errors)
		}
		return nil
	},
}

func printState(s types.OrchestratorState) {
	fmt.Printf("Runs:                   %d\n", s.Runs)
	fmt.Printf("Hero images generated:  %d\n", s.HeroGenerated)
	fmt.Printf("Infographics generated: %d\n", s.InfographicsGenerated)
	fmt.Printf("Errors:                 %d\n", s.Errors)
	fmt.Printf("Skipped:                %d\n", s.Skipped)
	fmt.Printf("Skipped triggers:       %d\n", s.SkippedTriggers)
	if s.LastRunAt != nil {
		fmt.Printf("Last run:               %s\n", s.LastRunAt.Format(time.RFC3339))
	}
}

func printSummary(s types.CycleSummary, elapsed time.Duration) {
	fmt.Printf("\nCycle: %d articles, %d hero, %d infographic, %d errors, %d skipped (%s)\n",
		s.Articles, s.HeroGenerated, s.InfographicGenerated, s.Errors, s.Skipped,
		elapsed.Round(time.Millisecond))
}

func init() {
	orchestratorStatusCmd.Flags().Bool("json", false, "output state as JSON")

	orchestratorCmd.AddCommand(orchestratorStatusCmd)
	orchestratorCmd.AddCommand(orchestratorRunCmd)

	rootCmd.AddCommand(orchestratorCmd)
}

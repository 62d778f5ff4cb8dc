// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/content-engine/internal/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect [FILE]",
	Short: "Score an article body for infographic patterns",
	Long: `Detect reads an article body (plain text, Markdown or HTML) from FILE,
or stdin when FILE is "-" or absent, and prints every pattern candidate
with its confidence, threshold and matched span.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().String("format", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	var (
		body []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading article body: %w", err)
	}

	d, err := detect.New(cfg.Detector.Thresholds)
	if err != nil {
		return err
	}
	candidates := d.Detect(string(body))
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "No patterns detected.")
		return nil
	}
	return writeFormatted(os.Stdout, candidates, format)
}

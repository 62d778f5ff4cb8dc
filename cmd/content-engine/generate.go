// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Run the content pipeline for one topic",
	Long: `Generate runs research, draft, humanize and SEO for a topic and saves
the resulting article. A failure at research or draft produces no article.
A failure at humanize or SEO keeps the last good article, which is saved
only with --publish-partial.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("category", "", "article category (selects the category profile)")
	generateCmd.Flags().StringSlice("keywords", nil, "target keywords")
	generateCmd.Flags().Bool("skip-research", false, "skip the research stage")
	generateCmd.Flags().Bool("skip-humanize", false, "skip the humanize stage")
	generateCmd.Flags().Bool("skip-seo", false, "skip the SEO stage")
	generateCmd.Flags().Bool("publish-partial", false, "save the last good article when humanize or SEO fails")
	generateCmd.Flags().String("format", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" {
		return fmt.Errorf("provide a topic")
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	req := types.ContentRequest{Topic: topic}
	req.Category, _ = cmd.Flags().GetString("category")
	req.Keywords, _ = cmd.Flags().GetStringSlice("keywords")
	req.SkipResearch, _ = cmd.Flags().GetBool("skip-research")
	req.SkipHumanize, _ = cmd.Flags().GetBool("skip-humanize")
	req.SkipSEO, _ = cmd.Flags().GetBool("skip-seo")
	req.PublishPartial, _ = cmd.Flags().GetBool("publish-partial")

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	return reportOutcome(os.Stdout, os.Stderr, out, format)
}

// reportOutcome prints the article to w and a status line to status.
func reportOutcome(w, status io.Writer, out *pipeline.Outcome, format string) error {
	switch out.Status {
	case pipeline.Fatal:
		fmt.Fprintf(status, "FAILED  %s: %v\n", out.Stage, out.Err)
		return fmt.Errorf("pipeline failed at %s", out.Stage)
	case pipeline.Partial:
		fmt.Fprintf(status, "PARTIAL %s failed: %v\n", out.Stage, out.Err)
	default:
		fmt.Fprintf(status, "OK      %s\n", out.Article.Slug)
	}
	if out.Persisted {
		fmt.Fprintf(status, "saved   %s (%s)\n", out.Article.ID, out.Article.Status)
	}
	return writeFormatted(w, out.Article, format)
}

// writeFormatted encodes v as YAML or indented JSON.
func writeFormatted(w io.Writer, v any, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/content-engine/internal/imagegen"
	"github.com/pdiddy/content-engine/internal/store"
	"github.com/pdiddy/content-engine/pkg/types"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Generate, list and manage article images",
	Long: `Images manages the asset library: generate a hero, infographic or
supporting image for an article, inspect recorded assets, delete them,
or export the library to YAML or JSON.`,
}

// --- generate subcommand ---

var imagesGenerateCmd = &cobra.Command{
	Use:   "generate ARTICLE_ID",
	Short: "Generate one image for an article",
	Long: `Generate produces an image of the given type for an article. A new
image supersedes the live image of the same type (and pattern, for
infographics). Infographics need an actionable detected pattern unless
--prompt is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runImagesGenerate,
}

func runImagesGenerate(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	t, err := types.ParseAssetType(typeFlag)
	if err != nil {
		return err
	}
	prompt, _ := cmd.Flags().GetString("prompt")

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.images.Generate(ctx, args[0], t, prompt)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Generated %s %s for %s: %s (%dx%d, %d bytes)\n",
		rec.Type, rec.ID, rec.ArticleID, rec.Path, rec.Width, rec.Height, rec.Bytes)
	return nil
}

// --- list subcommand ---

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded images",
	RunE:  runImagesList,
}

func runImagesList(cmd *cobra.Command, args []string) error {
	f, err := assetFilterFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	assets, err := st.ListAssets(ctx, f)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeFormatted(os.Stdout, assets, "json")
	}
	return formatAssetTable(os.Stdout, assets)
}

func formatAssetTable(w io.Writer, assets []types.AssetRecord) error {
	if len(assets) == 0 {
		fmt.Fprintln(w, "No images found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-36s  %-11s  %-13s  %-9s  %s\n",
		"ID", "Article", "Type", "Pattern", "Size", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, a := range assets {
		status := "live"
		if !a.Live() {
			status = "superseded"
		}
		fmt.Fprintf(w, "%-36s  %-36s  %-11s  %-13s  %-9s  %s\n",
			a.ID, a.ArticleID, a.Type, a.Pattern, fmt.Sprintf("%dx%d", a.Width, a.Height), status)
	}

	fmt.Fprintf(w, "\n%d images\n", len(assets))
	return nil
}

// --- get subcommand ---

var imagesGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one image record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetAsset(ctx, args[0])
		if err != nil {
			return err
		}
		return writeFormatted(os.Stdout, rec, "yaml")
	},
}

// --- delete subcommand ---

var imagesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an image record and its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orch := imagegen.New(nil, st, nil, nil, imagegen.Config{Images: cfg.Images}, logger, nil)
		rec, err := orch.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted %s %s (%s)\n", rec.Type, rec.ID, rec.Path)
		return nil
	},
}

// --- export subcommand ---

var imagesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the image library to YAML or JSON",
	Long: `Export writes every matching asset record, with its article's title,
slug and category, to stdout or to --output.`,
	RunE: runImagesExport,
}

func runImagesExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	f, err := assetFilterFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer file.Close()
		w = file
	}

	switch format {
	case "yaml", "":
		err = st.ExportYAML(ctx, w, f)
	case "json":
		err = st.ExportJSON(ctx, w, f)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	}
	return nil
}

// --- shared helpers ---

func assetFilterFromFlags(cmd *cobra.Command) (store.AssetFilter, error) {
	articleID, _ := cmd.Flags().GetString("article")
	typeFlag, _ := cmd.Flags().GetString("type")
	pattern, _ := cmd.Flags().GetString("pattern")
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetUint64("limit")

	f := store.AssetFilter{
		ArticleID:         articleID,
		Pattern:           types.PatternType(pattern),
		IncludeSuperseded: all,
		Limit:             limit,
	}
	if typeFlag != "" {
		t, err := types.ParseAssetType(typeFlag)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	return f, nil
}

func addAssetFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("article", "", "filter by article ID")
	cmd.Flags().String("type", "", "filter by type: hero, infographic, supporting")
	cmd.Flags().String("pattern", "", "filter by infographic pattern")
	cmd.Flags().Bool("all", false, "include superseded images")
	cmd.Flags().Uint64("limit", 0, "maximum images (0 = no limit)")
}

func init() {
	// Generate flags.
	imagesGenerateCmd.Flags().String("type", string(types.AssetHero), "image type: hero, infographic, supporting")
	imagesGenerateCmd.Flags().String("prompt", "", "prompt sent to the image backend instead of the generated one")

	// List flags.
	addAssetFilterFlags(imagesListCmd)
	imagesListCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	addAssetFilterFlags(imagesExportCmd)
	imagesExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	imagesExportCmd.Flags().String("output", "", "write to a file instead of stdout")

	// Wire subcommands.
	imagesCmd.AddCommand(imagesGenerateCmd)
	imagesCmd.AddCommand(imagesListCmd)
	imagesCmd.AddCommand(imagesGetCmd)
	imagesCmd.AddCommand(imagesDeleteCmd)
	imagesCmd.AddCommand(imagesExportCmd)

	rootCmd.AddCommand(imagesCmd)
}

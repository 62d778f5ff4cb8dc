// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/content-engine/internal/store"
	"github.com/pdiddy/content-engine/pkg/types"
)

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List and publish stored articles",
	Long: `Articles reads the article store. Only published articles are picked up
by the image scheduler; use "articles publish" to release a draft.`,
}

var articlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetUint64("limit")

		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		articles, err := st.ListArticles(ctx, store.ArticleFilter{
			Status:   types.ArticleStatus(status),
			Category: category,
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		return formatArticleTable(os.Stdout, articles)
	},
}

var articlesPublishCmd = &cobra.Command{
	Use:   "publish ID...",
	Short: "Mark articles as published",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		failed := 0
		for _, id := range args {
			if err := st.SetArticleStatus(ctx, id, types.ArticlePublished); err != nil {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(os.Stdout, "Published %s\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d article(s) could not be published", failed)
		}
		return nil
	},
}

func formatArticleTable(w io.Writer, articles []types.Article) error {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-40s  %-16s  %-9s  %-4s  %s\n",
		"ID", "Title", "Category", "Status", "Hero", "Infographics")
	fmt.Fprintln(w, strings.Repeat("-", 125))

	for _, a := range articles {
		title := a.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		hero := "no"
		if a.HasHeroImage {
			hero = "yes"
		}
		fmt.Fprintf(w, "%-36s  %-40s  %-16s  %-9s  %-4s  %d\n",
			a.ID, title, a.Category, a.Status, hero, a.InfographicCount)
	}

	fmt.Fprintf(w, "\n%d articles\n", len(articles))
	return nil
}

func init() {
	articlesListCmd.Flags().String("status", "", "filter by status: draft or published")
	articlesListCmd.Flags().String("category", "", "filter by category")
	articlesListCmd.Flags().Uint64("limit", 0, "maximum articles (0 = no limit)")

	articlesCmd.AddCommand(articlesListCmd)
	articlesCmd.AddCommand(articlesPublishCmd)

	rootCmd.AddCommand(articlesCmd)
}

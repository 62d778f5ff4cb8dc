// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/content-engine/pkg/types"
)

var articleColumns = []string{
	"id", "slug", "title", "seo_title", "seo_description", "excerpt", "body",
	"tags", "category", "keywords", "external_link", "status",
	"created_at", "updated_at", "has_hero_image", "infographic_count",
}

// ArticleFilter narrows ListArticles. Zero values match everything.
type ArticleFilter struct {
	Status   types.ArticleStatus
	Category string
	Limit    uint64
	Offset   uint64
}

// SaveArticle inserts or updates an article's content. Asset flags are
// never written here; they are derived from asset records. CreatedAt and
// UpdatedAt are set when zero.
func (s *Store) SaveArticle(ctx context.Context, a *types.Article) error {
	if a.ID == "" {
		return fmt.Errorf("saving article: empty id")
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	if a.Status == "" {
		a.Status = types.ArticleDraft
	}

	body, err := json.Marshal(a.Body)
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}
	tags, _ := json.Marshal(nonNil(a.Tags))
	keywords, _ := json.Marshal(nonNil(a.Keywords))

	b := s.sb.Insert("articles").
		Columns(articleColumns[:14]...).
		Values(a.ID, a.Slug, a.Title, a.SEOTitle, a.SEODescription, a.Excerpt, string(body),
			string(tags), a.Category, string(keywords), a.ExternalLink, string(a.Status),
			formatTime(a.CreatedAt), formatTime(a.UpdatedAt)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			slug = excluded.slug, title = excluded.title,
			seo_title = excluded.seo_title, seo_description = excluded.seo_description,
			excerpt = excluded.excerpt, body = excluded.body, tags = excluded.tags,
			category = excluded.category, keywords = excluded.keywords,
			external_link = excluded.external_link, status = excluded.status,
			updated_at = excluded.updated_at`)
	if _, err := exec(ctx, s.db, b); err != nil {
		return fmt.Errorf("upserting article %s: %w", a.ID, err)
	}
	return nil
}

// SetArticleStatus changes an article's status.
func (s *Store) SetArticleStatus(ctx context.Context, id string, status types.ArticleStatus) error {
	res, err := exec(ctx, s.db, s.sb.Update("articles").
		Set("status", string(status)).
		Set("updated_at", formatTime(time.Now())).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating article %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetArticle returns one article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	return getArticle(ctx, s.db, s.sb, id)
}

func getArticle(ctx context.Context, e execer, sb sq.StatementBuilderType, id string) (*types.Article, error) {
	rows, err := query(ctx, e, sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("querying article %s: %w", id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return scanArticle(rows)
}

// ListArticles returns articles, newest first.
func (s *Store) ListArticles(ctx context.Context, f ArticleFilter) ([]types.Article, error) {
	b := s.sb.Select(articleColumns...).From("articles").OrderBy("created_at DESC", "id")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Category != "" {
		b = b.Where(sq.Eq{"category": f.Category})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	if f.Offset > 0 {
		b = b.Offset(f.Offset)
	}
	return s.listArticles(ctx, b)
}

// ListArticlesNeedingAssets returns published articles that lack a hero
// image or an infographic. Articles missing a hero come first.
func (s *Store) ListArticlesNeedingAssets(ctx context.Context, limit uint64) ([]types.Article, error) {
	b := s.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"status": string(types.ArticlePublished)}).
		Where(sq.Or{sq.Eq{"has_hero_image": 0}, sq.Eq{"infographic_count": 0}}).
		OrderBy("has_hero_image ASC", "created_at DESC", "id")
	if limit > 0 {
		b = b.Limit(limit)
	}
	return s.listArticles(ctx, b)
}

func (s *Store) listArticles(ctx context.Context, b sq.SelectBuilder) ([]types.Article, error) {
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var out []types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanArticle(rows *sql.Rows) (*types.Article, error) {
	var (
		a                         types.Article
		body, tags, keywords      string
		status, created, updated  string
		hasHero, infographicCount int64
	)
	err := rows.Scan(&a.ID, &a.Slug, &a.Title, &a.SEOTitle, &a.SEODescription, &a.Excerpt, &body,
		&tags, &a.Category, &keywords, &a.ExternalLink, &status,
		&created, &updated, &hasHero, &infographicCount)
	if err != nil {
		return nil, fmt.Errorf("scanning article: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &a.Body); err != nil {
		return nil, fmt.Errorf("decoding body of %s: %w", a.ID, err)
	}
	_ = json.Unmarshal([]byte(tags), &a.Tags)
	_ = json.Unmarshal([]byte(keywords), &a.Keywords)
	a.Status = types.ArticleStatus(status)
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	a.HasHeroImage = hasHero > 0
	a.InfographicCount = int(infographicCount)
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

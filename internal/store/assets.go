// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/pdiddy/content-engine/pkg/types"
)

var assetColumns = []string{
	"id", "article_id", "type", "pattern", "prompt", "width", "height", "mime_type",
	"path", "bytes", "backend", "created_at", "superseded_by", "superseded_at",
}

// AssetFilter narrows ListAssets. Superseded records are excluded unless
// IncludeSuperseded is set.
type AssetFilter struct {
	ArticleID         string
	Type              types.AssetType
	Pattern           types.PatternType
	IncludeSuperseded bool
	Limit             uint64
}

// RecordAsset stores a new asset. In the same transaction it supersedes
// the article's previous live asset of the same type (and, for
// infographics, the same pattern) and recomputes the article's
// HasHeroImage and InfographicCount. It returns the IDs it superseded.
func (s *Store) RecordAsset(ctx context.Context, a *types.AssetRecord) ([]string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getArticle(ctx, tx, s.sb, a.ArticleID); err != nil {
		return nil, err
	}

	live := sq.Eq{"article_id": a.ArticleID, "type": string(a.Type), "superseded_by": ""}
	if a.Type == types.AssetInfographic {
		live["pattern"] = string(a.Pattern)
	}
	rows, err := query(ctx, tx, s.sb.Select("id").From("assets").Where(live))
	if err != nil {
		return nil, fmt.Errorf("finding live assets: %w", err)
	}
	var superseded []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		superseded = append(superseded, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(superseded) > 0 {
		_, err := exec(ctx, tx, s.sb.Update("assets").
			Set("superseded_by", a.ID).
			Set("superseded_at", formatTime(a.CreatedAt)).
			Where(sq.Eq{"id": superseded}))
		if err != nil {
			return nil, fmt.Errorf("superseding assets: %w", err)
		}
	}

	_, err = exec(ctx, tx, s.sb.Insert("assets").Columns(assetColumns...).Values(
		a.ID, a.ArticleID, string(a.Type), string(a.Pattern), a.Prompt, a.Width, a.Height, a.MIMEType,
		a.Path, a.Bytes, a.Backend, formatTime(a.CreatedAt), "", ""))
	if err != nil {
		return nil, fmt.Errorf("inserting asset %s: %w", a.ID, err)
	}

	if err := s.recomputeFlags(ctx, tx, a.ArticleID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing asset %s: %w", a.ID, err)
	}
	a.SupersededBy = ""
	a.SupersededAt = nil
	return superseded, nil
}

// DeleteAsset removes an asset record and recomputes the article flags.
// It returns the deleted record so the caller can remove the file.
func (s *Store) DeleteAsset(ctx context.Context, id string) (*types.AssetRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := getAsset(ctx, tx, s.sb, id)
	if err != nil {
		return nil, err
	}
	if _, err := exec(ctx, tx, s.sb.Delete("assets").Where(sq.Eq{"id": id})); err != nil {
		return nil, fmt.Errorf("deleting asset %s: %w", id, err)
	}
	if err := s.recomputeFlags(ctx, tx, a.ArticleID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete of %s: %w", id, err)
	}
	return a, nil
}

// recomputeFlags derives the article's asset flags from live asset rows.
func (s *Store) recomputeFlags(ctx context.Context, tx *sql.Tx, articleID string) error {
	hero := s.sb.Select("COUNT(*)").From("assets").
		Where(sq.Eq{"article_id": articleID, "type": string(types.AssetHero), "superseded_by": ""})
	infographics := s.sb.Select("COUNT(*)").From("assets").
		Where(sq.Eq{"article_id": articleID, "type": string(types.AssetInfographic), "superseded_by": ""})

	heroCount, err := count(ctx, tx, hero)
	if err != nil {
		return fmt.Errorf("counting hero assets: %w", err)
	}
	infographicCount, err := count(ctx, tx, infographics)
	if err != nil {
		return fmt.Errorf("counting infographic assets: %w", err)
	}

	hasHero := 0
	if heroCount > 0 {
		hasHero = 1
	}
	_, err = exec(ctx, tx, s.sb.Update("articles").
		Set("has_hero_image", hasHero).
		Set("infographic_count", infographicCount).
		Where(sq.Eq{"id": articleID}))
	if err != nil {
		return fmt.Errorf("updating asset flags of %s: %w", articleID, err)
	}
	return nil
}

// GetAsset returns one asset record by ID.
func (s *Store) GetAsset(ctx context.Context, id string) (*types.AssetRecord, error) {
	return getAsset(ctx, s.db, s.sb, id)
}

func getAsset(ctx context.Context, e execer, sb sq.StatementBuilderType, id string) (*types.AssetRecord, error) {
	rows, err := query(ctx, e, sb.Select(assetColumns...).From("assets").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("querying asset %s: %w", id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return scanAsset(rows)
}

// ListAssets returns asset records, newest first.
func (s *Store) ListAssets(ctx context.Context, f AssetFilter) ([]types.AssetRecord, error) {
	b := s.sb.Select(assetColumns...).From("assets").OrderBy("created_at DESC", "id")
	if f.ArticleID != "" {
		b = b.Where(sq.Eq{"article_id": f.ArticleID})
	}
	if f.Type != "" {
		b = b.Where(sq.Eq{"type": string(f.Type)})
	}
	if f.Pattern != "" {
		b = b.Where(sq.Eq{"pattern": string(f.Pattern)})
	}
	if !f.IncludeSuperseded {
		b = b.Where(sq.Eq{"superseded_by": ""})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	return s.listAssets(ctx, s.db, b)
}

// PurgeSuperseded deletes superseded asset records whose supersession is
// older than cutoff and returns them so the caller can remove the files.
// Live records are never touched, so article flags do not change.
func (s *Store) PurgeSuperseded(ctx context.Context, cutoff time.Time) ([]types.AssetRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	old := sq.And{
		sq.NotEq{"superseded_by": ""},
		sq.Lt{"superseded_at": formatTime(cutoff)},
	}
	purged, err := s.listAssets(ctx, tx, s.sb.Select(assetColumns...).From("assets").Where(old))
	if err != nil {
		return nil, err
	}
	if len(purged) == 0 {
		return nil, nil
	}
	if _, err := exec(ctx, tx, s.sb.Delete("assets").Where(old)); err != nil {
		return nil, fmt.Errorf("purging superseded assets: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing purge: %w", err)
	}
	return purged, nil
}

func (s *Store) listAssets(ctx context.Context, e execer, b sq.SelectBuilder) ([]types.AssetRecord, error) {
	rows, err := query(ctx, e, b)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	defer rows.Close()

	var out []types.AssetRecord
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAsset(rows *sql.Rows) (*types.AssetRecord, error) {
	var (
		a                     types.AssetRecord
		assetType, pattern    string
		created, supersededAt string
		width, height         int64
	)
	err := rows.Scan(&a.ID, &a.ArticleID, &assetType, &pattern, &a.Prompt, &width, &height, &a.MIMEType,
		&a.Path, &a.Bytes, &a.Backend, &created, &a.SupersededBy, &supersededAt)
	if err != nil {
		return nil, fmt.Errorf("scanning asset: %w", err)
	}
	a.Type = types.AssetType(assetType)
	a.Pattern = types.PatternType(pattern)
	a.Width = int(width)
	a.Height = int(height)
	a.CreatedAt = parseTime(created)
	if supersededAt != "" {
		t := parseTime(supersededAt)
		a.SupersededAt = &t
	}
	return &a, nil
}

func count(ctx context.Context, e execer, b sq.Sqlizer) (int64, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	var n int64
	err = e.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/content-engine/pkg/types"
)

const schedulerStateName = "image-orchestrator"

// SaveSchedulerState persists the scheduler's counters and timestamps.
func (s *Store) SaveSchedulerState(ctx context.Context, st types.OrchestratorState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding scheduler state: %w", err)
	}
	_, err = exec(ctx, s.db, s.sb.Insert("scheduler_state").
		Columns("name", "data", "updated_at").
		Values(schedulerStateName, string(data), formatTime(time.Now())).
		Suffix("ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at"))
	if err != nil {
		return fmt.Errorf("saving scheduler state: %w", err)
	}
	return nil
}

// LoadSchedulerState returns the persisted scheduler state, or a zero
// state when none has been saved.
func (s *Store) LoadSchedulerState(ctx context.Context) (types.OrchestratorState, error) {
	var st types.OrchestratorState
	rows, err := query(ctx, s.db, s.sb.Select("data").From("scheduler_state").
		Where(sq.Eq{"name": schedulerStateName}))
	if err != nil {
		return st, fmt.Errorf("loading scheduler state: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return st, rows.Err()
	}
	var data string
	if err := rows.Scan(&data); err != nil {
		return st, fmt.Errorf("scanning scheduler state: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return st, fmt.Errorf("decoding scheduler state: %w", err)
	}
	return st, nil
}

// Package store implements Postgres persistence for scraped stat records and
// batch session progress, on top of the prepared statements the pool
// registers at connect time.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/pfr-ingest/internal/db"
	"github.com/albapepper/pfr-ingest/internal/pfr"
)

// StatStore persists StatRecords. Season totals and splits land in separate
// tables; both upsert on their natural key so re-ingesting a player is
// idempotent.
type StatStore struct {
	pool *db.Pool
}

// NewStatStore wraps the pool.
func NewStatStore(pool *db.Pool) *StatStore {
	return &StatStore{pool: pool}
}

// Save writes all records in one transaction. A record with an empty
// SplitType is a season total; everything else is a split row. The stats map
// goes to a JSONB column as-is, so absent fields stay absent.
func (s *StatStore) Save(ctx context.Context, records []pfr.StatRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range records {
		rec := &records[i]
		if rec.IsSeasonTotal() {
			_, err = tx.Exec(ctx, "upsert_season_stats",
				rec.PlayerRef, rec.PlayerName, rec.Season, rec.Team, rec.Position, rec.Stats)
		} else {
			_, err = tx.Exec(ctx, "upsert_split_stats",
				rec.PlayerRef, rec.PlayerName, rec.Season, rec.Team,
				rec.SplitType, rec.SplitValue, rec.Stats)
		}
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Exists reports whether a season-total row is already stored for the player.
func (s *StatStore) Exists(ctx context.Context, playerRef string, season int) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, "season_stats_exist", playerRef, season).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check %s/%d: %w", playerRef, season, err)
	}
	return true, nil
}

// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/pfr-ingest/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the store layer uses.
// Prepared statements eliminate parse overhead on the hot upsert path.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Stats: season totals upsert. Stats are a JSONB map keyed by
		// field name; absent fields stay absent rather than zeroed.
		"upsert_season_stats": `
			INSERT INTO qb_season_stats (player_ref, player_name, season, team, position, stats, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (player_ref, season)
			DO UPDATE SET player_name = EXCLUDED.player_name,
			              team        = EXCLUDED.team,
			              position    = EXCLUDED.position,
			              stats       = EXCLUDED.stats,
			              updated_at  = now()`,

		// Stats: splits upsert
		"upsert_split_stats": `
			INSERT INTO qb_split_stats (player_ref, player_name, season, team, split_type, split_value, stats, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (player_ref, season, split_type, split_value)
			DO UPDATE SET player_name = EXCLUDED.player_name,
			              team        = EXCLUDED.team,
			              stats       = EXCLUDED.stats,
			              updated_at  = now()`,

		// Stats: skip-existing probe
		"season_stats_exist": "SELECT 1 FROM qb_season_stats WHERE player_ref = $1 AND season = $2 LIMIT 1",

		// Sessions
		"insert_session": `
			INSERT INTO batch_sessions (id, state, season, created_at)
			VALUES ($1, $2, $3, $4)`,
		"insert_session_item": `
			INSERT INTO batch_session_items (id, session_id, ord, player_ref, season, state, attempts, last_error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		"session_by_id": "SELECT id, state, season, created_at FROM batch_sessions WHERE id = $1",
		"session_items": `
			SELECT id, player_ref, season, state, attempts, last_error
			FROM batch_session_items WHERE session_id = $1
			ORDER BY ord`,
		"list_sessions": `
			SELECT s.id, s.state, s.season, s.created_at,
			       count(i.id) AS total,
			       count(i.id) FILTER (WHERE i.state = 'done')    AS done,
			       count(i.id) FILTER (WHERE i.state = 'failed')  AS failed,
			       count(i.id) FILTER (WHERE i.state = 'skipped') AS skipped
			FROM batch_sessions s
			LEFT JOIN batch_session_items i ON i.session_id = s.id
			GROUP BY s.id
			ORDER BY s.created_at DESC`,
		"update_session_state": "UPDATE batch_sessions SET state = $2 WHERE id = $1",
		"update_session_item": `
			UPDATE batch_session_items
			SET state = $2, attempts = $3, last_error = $4
			WHERE id = $1`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

// Command ingest is the PFR quarterback stats ingestion CLI.
//
// Usage:
//
//	pfr-ingest scrape season --season 2024
//	pfr-ingest scrape players --season 2024 --player burrjo01 --player allenjo02
//	pfr-ingest resume --session 6f1c9a4e-...
//	pfr-ingest sessions
//	pfr-ingest serve
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/pfr-ingest/internal/api"
	"github.com/albapepper/pfr-ingest/internal/batch"
	"github.com/albapepper/pfr-ingest/internal/config"
	"github.com/albapepper/pfr-ingest/internal/db"
	"github.com/albapepper/pfr-ingest/internal/fetch"
	"github.com/albapepper/pfr-ingest/internal/parse"
	"github.com/albapepper/pfr-ingest/internal/pfr"
	"github.com/albapepper/pfr-ingest/internal/ratelimit"
	"github.com/albapepper/pfr-ingest/internal/store"
)

var logLevel = new(slog.LevelVar)
var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "pfr-ingest",
		Short: "Quarterback stats ingestion CLI for pro-football-reference.com",
	}

	root.AddCommand(scrapeCmd())
	root.AddCommand(resumeCmd())
	root.AddCommand(sessionsCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// scrape command
// --------------------------------------------------------------------------

// scrapeFlags are the batch tuning flags shared by the scrape subcommands.
type scrapeFlags struct {
	season       int
	workers      int
	strict       bool
	skipExisting bool
}

func (f *scrapeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.season, "season", time.Now().Year()-1, "Season year")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Worker count (default from BATCH_WORKERS, max 4)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Validation errors block persistence")
	cmd.Flags().BoolVar(&f.skipExisting, "skip-existing", false, "Skip players already ingested for the season")
}

func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape QB season stats into Postgres",
	}
	cmd.AddCommand(scrapeSeasonCmd())
	cmd.AddCommand(scrapePlayersCmd())
	return cmd
}

func scrapeSeasonCmd() *cobra.Command {
	var flags scrapeFlags
	var limit int
	cmd := &cobra.Command{
		Use:   "season",
		Short: "Scrape every qualifying QB from the season passing index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				eng := newEngine(cfg, pool, flags)

				refs, err := planSeason(ctx, eng.client, eng.parser, cfg.BaseURL, flags.season, limit)
				if err != nil {
					return err
				}
				logger.Info("Season plan built", "season", flags.season, "players", len(refs))

				session := batch.NewSession(flags.season, refs)
				if err := eng.sessions.CreateSession(ctx, session); err != nil {
					return fmt.Errorf("create session: %w", err)
				}
				return eng.run(ctx, session)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "Only plan the first N players (0 = all)")
	return cmd
}

func scrapePlayersCmd() *cobra.Command {
	var flags scrapeFlags
	var players []string
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Scrape an explicit list of player refs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(players) == 0 {
				return fmt.Errorf("at least one --player is required")
			}
			return runWithDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				eng := newEngine(cfg, pool, flags)
				session := batch.NewSession(flags.season, players)
				if err := eng.sessions.CreateSession(ctx, session); err != nil {
					return fmt.Errorf("create session: %w", err)
				}
				return eng.run(ctx, session)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&players, "player", nil, "Player ref (e.g. burrjo01); repeatable")
	return cmd
}

// --------------------------------------------------------------------------
// resume command
// --------------------------------------------------------------------------

func resumeCmd() *cobra.Command {
	var flags scrapeFlags
	var sessionID string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused or partially failed session",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(sessionID)
			if err != nil {
				return fmt.Errorf("--session must be a UUID: %w", err)
			}
			return runWithDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				eng := newEngine(cfg, pool, flags)
				session, err := eng.runner.Resume(ctx, id)
				if err != nil {
					return err
				}
				logger.Info("Session resumed",
					"session", session.ID, "season", session.Season,
					"remaining", len(session.Pending()))
				return eng.run(ctx, session)
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session UUID to resume")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Worker count (default from BATCH_WORKERS, max 4)")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Validation errors block persistence")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

// --------------------------------------------------------------------------
// sessions command
// --------------------------------------------------------------------------

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List persisted batch sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				summaries, err := store.NewSessionStore(pool).ListSessions(ctx)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Println("no sessions")
					return nil
				}
				for _, s := range summaries {
					fmt.Printf("%s  %-9s  season=%d  done=%d/%d failed=%d skipped=%d  %s\n",
						s.ID, s.State, s.Season, s.Done, s.Total, s.Failed, s.Skipped,
						s.CreatedAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the ingestion progress API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				router := api.NewRouter(pool, store.NewSessionStore(pool), cfg)

				addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
				srv := &http.Server{
					Addr:         addr,
					Handler:      router,
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 30 * time.Second,
					IdleTimeout:  60 * time.Second,
				}

				go func() {
					logger.Info("Starting progress API", "addr", addr, "environment", cfg.Environment)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("Server failed", "error", err)
						os.Exit(1)
					}
				}()

				<-ctx.Done()
				logger.Info("Shutting down...")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Shutdown error", "error", err)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Engine wiring
// --------------------------------------------------------------------------

// engine bundles the scraping pipeline built from config: one pacer shared
// by all workers, one fetch client, stores, runner.
type engine struct {
	client   *fetch.Client
	parser   *parse.Parser
	sessions *store.SessionStore
	runner   *batch.Runner
}

func newEngine(cfg *config.Config, pool *db.Pool, flags scrapeFlags) *engine {
	pacer := ratelimit.New(cfg.MinDelay, cfg.MaxDelay, cfg.Jitter)
	client := fetch.NewClient(pacer, fetch.Options{
		Timeout:     cfg.RequestTimeout,
		MaxRetries:  cfg.MaxRetries,
		RetryBase:   cfg.RetryBase,
		RotateEvery: cfg.RotateEvery,
	}, logger)
	parser := parse.New(logger)
	sessions := store.NewSessionStore(pool)

	workers := cfg.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}
	skipExisting := cfg.SkipExisting || flags.skipExisting

	runner := batch.NewRunner(client, parser, store.NewStatStore(pool), sessions, batch.Config{
		Workers:          workers,
		ItemRetries:      cfg.ItemRetries,
		FailureThreshold: cfg.FailureThreshold,
		SkipExisting:     skipExisting,
		Strict:           flags.strict,
		BaseURL:          cfg.BaseURL,
	}, logger)

	return &engine{client: client, parser: parser, sessions: sessions, runner: runner}
}

// run executes the session, cancels cleanly on interrupt, and reports the
// result plus fetch metrics.
func (e *engine) run(ctx context.Context, session *batch.Session) error {
	// A second interrupt kills the process; the first requests a pause.
	go func() {
		<-ctx.Done()
		e.runner.Stop()
	}()

	start := time.Now()
	result, err := e.runner.Run(context.WithoutCancel(ctx), session)
	if err != nil {
		return err
	}

	logger.Info("Batch finished",
		"session", session.ID,
		"duration", time.Since(start).Round(time.Second),
		"summary", result.Summary(),
		"fetches", e.client.Metrics().Summary())
	for _, it := range result.FailedItems {
		logger.Error("item failed", "player", it.PlayerRef, "season", it.Season, "error", it.LastError)
	}
	if result.State == batch.SessionPaused {
		logger.Info("Session paused; resume with", "command",
			fmt.Sprintf("pfr-ingest resume --session %s", session.ID))
	}
	return nil
}

// planSeason fetches the season passing index and returns the player refs of
// every QB row, in page order. Non-QB rows (punters with a throw, etc.) are
// filtered out.
func planSeason(ctx context.Context, client *fetch.Client, parser *parse.Parser, baseURL string, season, limit int) ([]string, error) {
	page, err := client.Fetch(ctx, pfr.SeasonIndexURL(baseURL, season))
	if err != nil {
		return nil, fmt.Errorf("season index: %w", err)
	}
	records, err := parser.SeasonTotals(page, parse.TotalsOptions{Season: season})
	if err != nil {
		return nil, fmt.Errorf("parse season index: %w", err)
	}

	seen := make(map[string]bool)
	var refs []string
	for _, rec := range records {
		if rec.Position != "QB" || rec.PlayerRef == "" || seen[rec.PlayerRef] {
			continue
		}
		seen[rec.PlayerRef] = true
		refs = append(refs, rec.PlayerRef)
		if limit > 0 && len(refs) == limit {
			break
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no QB rows found on the %d passing index", season)
	}
	return refs, nil
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithDB handles config loading, DB connection, and context cancellation.
func runWithDB(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

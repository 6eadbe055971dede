package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Migration struct {
	ID    string
	UpSQL string
}

var allMigrations = []Migration{
	{
		ID: "20250504120000_create_feed_sources",
		UpSQL: `
		CREATE TABLE feed_sources(
		url TEXT PRIMARY KEY,
		position INT NOT NULL
		);`,
	},
	{
		ID: "20250504120100_create_removed_articles",
		UpSQL: `
		CREATE TABLE removed_articles(
		link TEXT PRIMARY KEY,
		removed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	},
	{
		ID: "20250601090000_create_email_subscribers",
		UpSQL: `
		CREATE TABLE email_subscribers(
		id serial PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		unsubscribe_token TEXT UNIQUE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		subscribed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	},
}

// Migrations возвращает список миграций, упорядоченный по идентификатору.
func Migrations() []Migration {
	out := make([]Migration, len(allMigrations))
	copy(out, allMigrations)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending возвращает миграции, которые ещё не применены.
func Pending(applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range Migrations() {
		if !applied[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// Apply применяет все необходимые миграции к базе данных в одной транзакции.
func Apply(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool) error {
	log = log.With(slog.String("component", "migrations"))
	log.Info("Starting database migrations check...")
	_, err := pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	rows, err := pool.Query(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to scan migration id: %w", err)
	}
	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	pending := Pending(applied)
	if len(pending) == 0 {
		log.Info("Database is up to date, no new migrations found.")
		return nil
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	for _, m := range pending {
		log.Info("Applying migration", slog.String("id", m.ID))
		if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (id) VALUES ($1)", m.ID); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations transaction: %w", err)
	}
	log.Info("Database migrations applied successfully", slog.Int("count", len(pending)))
	return nil
}

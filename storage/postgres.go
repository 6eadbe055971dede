package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"brightside/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore хранит список лент, снятые ссылки и подписчиков в PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresStore создает хранилище поверх пула соединений. Схема должна быть создана миграциями.
func NewPostgresStore(pool *pgxpool.Pool, log *slog.Logger) *PostgresStore {
	log.Info("Initializing Postgres storage", slog.String("component", "storage"))
	return &PostgresStore{
		pool: pool,
		log:  log.With(slog.String("component", "storage")),
	}
}

func (db *PostgresStore) Close() {
	db.log.Info("Closing database connection pool")
	db.pool.Close()
}

func (db *PostgresStore) ListFeeds(ctx context.Context) ([]string, error) {
	const op = "storage.postgres.ListFeeds"
	rows, err := db.pool.Query(ctx, `SELECT url FROM feed_sources ORDER BY position`)
	if err != nil {
		db.log.Error("Database query failed", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	if len(urls) == 0 {
		return nil, ErrNotFound
	}
	return urls, nil
}

// ReplaceFeeds заменяет список лент в одной транзакции, сохраняя порядок.
func (db *PostgresStore) ReplaceFeeds(ctx context.Context, urls []string) (err error) {
	const op = "storage.postgres.ReplaceFeeds"
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				db.log.Error("Failed to rollback transaction", slog.String("op", op), slog.Any("error", rollbackErr))
			}
		}
	}()
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM feed_sources`)
	for i, u := range urls {
		batch.Queue(`INSERT INTO feed_sources (url, position) VALUES ($1, $2) ON CONFLICT (url) DO NOTHING`, u, i)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		db.log.Error("Failed to execute batch", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to execute batch: %w", op, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	db.log.Info("Feed list replaced", slog.String("op", op), slog.Int("count", len(urls)))
	return nil
}

func (db *PostgresStore) RemovedLinks(ctx context.Context) (map[string]struct{}, error) {
	const op = "storage.postgres.RemovedLinks"
	rows, err := db.pool.Query(ctx, `SELECT link FROM removed_articles`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	links, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	out := make(map[string]struct{}, len(links))
	for _, l := range links {
		out[l] = struct{}{}
	}
	return out, nil
}

// AddRemovedLink возвращает false, если ссылка уже была снята.
func (db *PostgresStore) AddRemovedLink(ctx context.Context, link string) (bool, error) {
	const op = "storage.postgres.AddRemovedLink"
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO removed_articles (link) VALUES ($1) ON CONFLICT (link) DO NOTHING`, link)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (db *PostgresStore) GetSubscriber(ctx context.Context, email string) (domain.Subscriber, error) {
	const op = "storage.postgres.GetSubscriber"
	var sub domain.Subscriber
	err := db.pool.QueryRow(ctx,
		`SELECT email, unsubscribe_token, is_active, subscribed_at FROM email_subscribers WHERE email = $1`,
		email,
	).Scan(&sub.Email, &sub.Token, &sub.Active, &sub.SubscribedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subscriber{}, ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

func (db *PostgresStore) SaveSubscriber(ctx context.Context, sub domain.Subscriber) error {
	const op = "storage.postgres.SaveSubscriber"
	_, err := db.pool.Exec(ctx, `
	INSERT INTO email_subscribers (email, unsubscribe_token, is_active, subscribed_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (email) DO UPDATE SET is_active = EXCLUDED.is_active;
	`, sub.Email, sub.Token, sub.Active, sub.SubscribedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			db.log.Error("Subscriber upsert rejected",
				slog.String("op", op),
				slog.String("code", pgErr.Code),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (db *PostgresStore) DeactivateSubscriber(ctx context.Context, token string) error {
	const op = "storage.postgres.DeactivateSubscriber"
	tag, err := db.pool.Exec(ctx,
		`UPDATE email_subscribers SET is_active = FALSE WHERE unsubscribe_token = $1`, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

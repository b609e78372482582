package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	Pool *pgxpool.Pool
}

var _ ports.Storage = (*PostgresStorage)(nil)

func NewPostgresStorage(ctx context.Context, connStr string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PostgresStorage{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS queue (
			fingerprint  TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			summary      TEXT NOT NULL DEFAULT '',
			link         TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'PENDING',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS queue_status_idx ON queue (status)`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS replied (
			mention_id TEXT PRIMARY KEY,
			reply_id   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.Pool.Close()
	return nil
}

func (s *PostgresStorage) EnqueueItem(ctx context.Context, item domain.QueueItem) (bool, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO queue (fingerprint, title, summary, link, source, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (fingerprint) DO NOTHING`,
		item.Fingerprint, item.Title, item.Summary, item.Link, item.Source, string(domain.StatusPending), item.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", item.Fingerprint, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStorage) ListItems(ctx context.Context, status domain.Status, limit int) ([]domain.QueueItem, error) {
	q := `SELECT fingerprint, title, summary, link, source, status, created_at, published_at FROM queue`
	var args []any
	if status != "" {
		args = append(args, string(status))
		q += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	q += ` ORDER BY created_at, fingerprint`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var res []domain.QueueItem
	for rows.Next() {
		var it domain.QueueItem
		var st string
		if err := rows.Scan(&it.Fingerprint, &it.Title, &it.Summary, &it.Link, &it.Source, &st, &it.CreatedAt, &it.PublishedAt); err != nil {
			return nil, err
		}
		it.Status = domain.Status(st)
		res = append(res, it)
	}
	return res, rows.Err()
}

func (s *PostgresStorage) RecordPublish(ctx context.Context, fingerprint, day string, at time.Time) (int, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if fingerprint != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE queue SET status = $1, published_at = $2 WHERE fingerprint = $3 AND status = $4`,
			string(domain.StatusPublished), at, fingerprint, string(domain.StatusPending))
		if err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return 0, fmt.Errorf("%s: %w", fingerprint, ErrNotPending)
		}
	}

	var raw string
	err = tx.QueryRow(ctx,
		`INSERT INTO meta (key, value) VALUES ($1, '1')
		 ON CONFLICT (key) DO UPDATE SET value = ((meta.value)::int + 1)::text
		 RETURNING value`, domain.DailyCountKey(day)).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("increment daily count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (s *PostgresStorage) DailyCount(ctx context.Context, day string) (int, error) {
	raw, err := s.GetMeta(ctx, domain.DailyCountKey(day))
	if errors.Is(err, ports.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (s *PostgresStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.Pool.QueryRow(ctx, "SELECT value FROM meta WHERE key = $1", key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ports.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return v, nil
}

func (s *PostgresStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.Pool.Exec(ctx,
		"INSERT INTO meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = $2",
		key, value)
	return err
}

func (s *PostgresStorage) LoadCursor(ctx context.Context) (string, error) {
	v, err := s.GetMeta(ctx, domain.MetaLastMentionID)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.CursorSentinel, nil
	}
	return v, err
}

func (s *PostgresStorage) AdvanceCursor(ctx context.Context, id string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var cur string
	err = tx.QueryRow(ctx, "SELECT value FROM meta WHERE key = $1 FOR UPDATE", domain.MetaLastMentionID).Scan(&cur)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load cursor: %w", err)
	}
	if cur != "" && domain.CompareIDs(id, cur) <= 0 {
		return nil
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = $2",
		domain.MetaLastMentionID, id); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStorage) HasReplied(ctx context.Context, mentionID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM replied WHERE mention_id = $1)", mentionID).Scan(&exists)
	return exists, err
}

func (s *PostgresStorage) RecordReply(ctx context.Context, rec domain.ReplyRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.Pool.Exec(ctx,
		"INSERT INTO replied (mention_id, reply_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		rec.MentionID, rec.ReplyID, rec.CreatedAt)
	return err
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"

	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps bot state in a local SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.Storage = (*SQLiteStorage)(nil)

func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path == "" {
		path = "data/state.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps read-modify-write transactions serialized.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := &SQLiteStorage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS queue (
			fingerprint  TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			summary      TEXT NOT NULL DEFAULT '',
			link         TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'PENDING',
			created_at   INTEGER NOT NULL,
			published_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS queue_status_idx ON queue (status)`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS replied (
			mention_id TEXT PRIMARY KEY,
			reply_id   TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func (s *SQLiteStorage) EnqueueItem(ctx context.Context, item domain.QueueItem) (bool, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queue (fingerprint, title, summary, link, source, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (fingerprint) DO NOTHING`,
		item.Fingerprint, item.Title, item.Summary, item.Link, item.Source, string(domain.StatusPending), item.CreatedAt.Unix())
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", item.Fingerprint, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStorage) ListItems(ctx context.Context, status domain.Status, limit int) ([]domain.QueueItem, error) {
	q := `SELECT fingerprint, title, summary, link, source, status, created_at, published_at FROM queue`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at, fingerprint`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var res []domain.QueueItem
	for rows.Next() {
		var (
			it          domain.QueueItem
			st          string
			created     int64
			publishedAt sql.NullInt64
		)
		if err := rows.Scan(&it.Fingerprint, &it.Title, &it.Summary, &it.Link, &it.Source, &st, &created, &publishedAt); err != nil {
			return nil, err
		}
		it.Status = domain.Status(st)
		it.CreatedAt = time.Unix(created, 0).UTC()
		if publishedAt.Valid {
			t := time.Unix(publishedAt.Int64, 0).UTC()
			it.PublishedAt = &t
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (s *SQLiteStorage) RecordPublish(ctx context.Context, fingerprint, day string, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if fingerprint != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE queue SET status = ?, published_at = ? WHERE fingerprint = ? AND status = ?`,
			string(domain.StatusPublished), at.Unix(), fingerprint, string(domain.StatusPending))
		if err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return 0, fmt.Errorf("%s: %w", fingerprint, ErrNotPending)
		}
	}

	key := domain.DailyCountKey(day)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, '1')
		 ON CONFLICT (key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)`, key); err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&raw); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (s *SQLiteStorage) DailyCount(ctx context.Context, day string) (int, error) {
	raw, err := s.GetMeta(ctx, domain.DailyCountKey(day))
	if errors.Is(err, ports.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ports.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) LoadCursor(ctx context.Context) (string, error) {
	v, err := s.GetMeta(ctx, domain.MetaLastMentionID)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.CursorSentinel, nil
	}
	return v, err
}

func (s *SQLiteStorage) AdvanceCursor(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cur string
	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, domain.MetaLastMentionID).Scan(&cur)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load cursor: %w", err)
	}
	if cur != "" && domain.CompareIDs(id, cur) <= 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		domain.MetaLastMentionID, id); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStorage) HasReplied(ctx context.Context, mentionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM replied WHERE mention_id = ?)`, mentionID).Scan(&exists)
	return exists, err
}

func (s *SQLiteStorage) RecordReply(ctx context.Context, rec domain.ReplyRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO replied (mention_id, reply_id, created_at) VALUES (?, ?, ?) ON CONFLICT (mention_id) DO NOTHING`,
		rec.MentionID, rec.ReplyID, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("record reply %s: %w", rec.MentionID, err)
	}
	return nil
}

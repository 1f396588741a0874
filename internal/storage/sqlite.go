package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one JSON document per user and collection.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM user_state WHERE user_id = ? AND collection = ?`,
		key.UserID, string(key.Collection),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return payload, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_state (user_id, collection, payload, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (user_id, collection) DO UPDATE SET
			payload = excluded.payload,
			version = user_state.version + 1,
			updated_at = excluded.updated_at`,
		key.UserID, string(key.Collection), payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	slog.DebugContext(ctx, "State saved to SQLite",
		"user_id", key.UserID,
		"collection", key.Collection,
		"bytes", len(payload))
	return nil
}

func (s *SQLiteStore) Users(ctx context.Context, collection Collection) ([]string, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM user_state WHERE collection = ? ORDER BY user_id`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

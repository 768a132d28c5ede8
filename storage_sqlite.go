package chatbridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/boat-builder/chatbridge/memory"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var _ Storage = &SQLiteStorage{}

// SQLiteStorage keeps one row per user so a save only rewrites the users
// that are present and deletes the ones that were reset.
type SQLiteStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

type memoryRow struct {
	UserID  string `db:"user_id"`
	Version int    `db:"version"`
	State   string `db:"state"`
}

// NewSQLiteStorage creates a new SQLiteStorage instance with the provided database file path.
// It initializes the database schema if it doesn't exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db, logger: slog.Default()}
	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// initDB creates the necessary tables if they don't exist.
func (s *SQLiteStorage) initDB() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS memories (
		user_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		state TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// LoadAll reads every user row. Rows that cannot be decoded are logged and skipped.
func (s *SQLiteStorage) LoadAll(ctx context.Context) (map[string]memory.State, error) {
	var rows []memoryRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT user_id, version, state FROM memories`); err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	users := make(map[string]memory.State, len(rows))
	for _, row := range rows {
		state, err := decodeState(row.Version, row.State)
		if err != nil {
			s.logger.Error("skipping unreadable memory row", "userID", row.UserID, "error", err)
			continue
		}
		users[row.UserID] = state
	}
	return users, nil
}

// SaveAll upserts every user and deletes rows of users no longer present, in one transaction.
func (s *SQLiteStorage) SaveAll(ctx context.Context, users map[string]memory.State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
	INSERT INTO memories (user_id, version, state, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		version = excluded.version,
		state = excluded.state,
		updated_at = excluded.updated_at
	`
	now := time.Now().UTC()
	for userID, state := range users {
		data, err := encodeState(state)
		if err != nil {
			return fmt.Errorf("failed to encode memory of %s: %w", userID, err)
		}
		if _, err := tx.ExecContext(ctx, upsert, userID, SnapshotVersion, data, now); err != nil {
			return fmt.Errorf("failed to save memory of %s: %w", userID, err)
		}
	}

	var stored []string
	if err := tx.SelectContext(ctx, &stored, `SELECT user_id FROM memories`); err != nil {
		return fmt.Errorf("failed to list stored users: %w", err)
	}
	for _, userID := range stored {
		if _, ok := users[userID]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to delete memory of %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit memories: %w", err)
	}
	return nil
}

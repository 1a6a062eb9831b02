package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chi1180/better-hac/internal/domain"
	"github.com/chi1180/better-hac/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// createdAtFormat is RFC 3339 with a fixed-width fractional second.
// RFC3339Nano trims trailing zeros, so "10:00:00Z" would sort after
// "10:00:00.5Z" and break the newest-first ordering.
const createdAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	// AUTOINCREMENT keeps image ids monotonic: an id is never reused after
	// its record is deleted.
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt TEXT NOT NULL,
		image_data TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_created_at ON images(created_at);

	CREATE TABLE IF NOT EXISTS session_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// SaveImage inserts a new image record and returns the assigned id.
func (s *SQLiteStore) SaveImage(ctx context.Context, prompt, imageData string) (int64, error) {
	createdAt := s.now().UTC().Format(createdAtFormat)

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO images (prompt, image_data, created_at) VALUES (?, ?, ?)`,
		prompt, imageData, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get inserted image id: %w", err)
	}
	return id, nil
}

// imageOrder sorts newest-first. created_at uses a fixed-width format so
// string order is time order; equal timestamps break by id descending
// (insertion order).
const imageOrder = `ORDER BY created_at DESC, id DESC`

// GetAllImages returns all records, newest first.
func (s *SQLiteStore) GetAllImages(ctx context.Context) ([]*domain.ImageRecord, error) {
	return s.queryImages(ctx,
		`SELECT id, prompt, image_data, created_at FROM images `+imageOrder)
}

// SearchByPrompt returns records whose prompt contains term, ignoring case.
func (s *SQLiteStore) SearchByPrompt(ctx context.Context, term string) ([]*domain.ImageRecord, error) {
	// instr avoids LIKE wildcard semantics; lower() gives the
	// case-insensitive match. An empty term matches every record.
	return s.queryImages(ctx,
		`SELECT id, prompt, image_data, created_at FROM images
		 WHERE instr(lower(prompt), ?) > 0 OR ? = '' `+imageOrder,
		strings.ToLower(term), term)
}

func (s *SQLiteStore) queryImages(ctx context.Context, query string, args ...any) ([]*domain.ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close image rows", "error", closeErr)
		}
	}()

	var images []*domain.ImageRecord
	for rows.Next() {
		var img domain.ImageRecord
		if err := rows.Scan(&img.ID, &img.Prompt, &img.ImageData, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, &img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// GetImageByID retrieves one record, or (nil, nil) when the id is unknown.
func (s *SQLiteStore) GetImageByID(ctx context.Context, id int64) (*domain.ImageRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, image_data, created_at FROM images WHERE id = ?`, id)

	var img domain.ImageRecord
	err := row.Scan(&img.ID, &img.Prompt, &img.ImageData, &img.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan image row: %w", err)
	}
	return &img, nil
}

// GetLatestImage returns the most recent record, or (nil, nil) when empty.
func (s *SQLiteStore) GetLatestImage(ctx context.Context) (*domain.ImageRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, image_data, created_at FROM images `+imageOrder+` LIMIT 1`)

	var img domain.ImageRecord
	err := row.Scan(&img.ID, &img.Prompt, &img.ImageData, &img.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan latest image: %w", err)
	}
	return &img, nil
}

// DeleteImage removes one record. Deleting a missing id is not an error.
func (s *SQLiteStore) DeleteImage(ctx context.Context, id int64) error {
	return s.execWithRetry(ctx, "delete image", `DELETE FROM images WHERE id = ?`, id)
}

// ClearAllImages removes every record.
func (s *SQLiteStore) ClearAllImages(ctx context.Context) error {
	return s.execWithRetry(ctx, "clear images", `DELETE FROM images`)
}

// GetImageCount returns the number of stored records.
func (s *SQLiteStore) GetImageCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

// GetStorageStats estimates storage usage without loading payloads into Go.
// Base64 payloads decode to len*3/4 bytes; prompts count at raw length.
func (s *SQLiteStore) GetStorageStats(ctx context.Context) (*domain.StorageStats, error) {
	var count, bytes int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(length(image_data) * 3 / 4 + length(prompt)), 0) FROM images`,
	).Scan(&count, &bytes)
	if err != nil {
		return nil, fmt.Errorf("query storage stats: %w", err)
	}

	return &domain.StorageStats{
		Count:              count,
		EstimatedSizeBytes: bytes,
		EstimatedSizeMB:    fmt.Sprintf("%.2f", float64(bytes)/(1024*1024)),
	}, nil
}

// GetValue reads one session-state key.
func (s *SQLiteStore) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session value %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue writes one session-state key.
func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set session value %q: %w", key, err)
	}
	return nil
}

// DeleteValues removes the given session-state keys.
func (s *SQLiteStore) DeleteValues(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	query := `DELETE FROM session_state WHERE key IN (` + placeholders + `)`
	return s.execWithRetry(ctx, "delete session values", query, args...)
}

// execWithRetry runs a write statement, retrying SQLITE_BUSY conflicts with
// exponential backoff: 100ms, 200ms, 400ms.
func (s *SQLiteStore) execWithRetry(ctx context.Context, op, query string, args ...any) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteBusy(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("sqlite write busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

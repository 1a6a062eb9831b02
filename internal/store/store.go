// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/chi1180/better-hac/internal/domain"
)

// Repository defines the interface for the image gallery and the flat
// session-state key-value store.
type Repository interface {
	// SaveImage inserts a new image record with the current timestamp and
	// returns the store-assigned id. IDs are monotonic and never reused.
	SaveImage(ctx context.Context, prompt, imageData string) (int64, error)

	// GetAllImages returns every record ordered newest-first by creation
	// time. Equal timestamps break by insertion order, newest insert first.
	GetAllImages(ctx context.Context) ([]*domain.ImageRecord, error)

	// GetImageByID returns the matching record, or (nil, nil) when absent.
	GetImageByID(ctx context.Context, id int64) (*domain.ImageRecord, error)

	// DeleteImage removes the record with that id. Missing ids are a no-op.
	DeleteImage(ctx context.Context, id int64) error

	// ClearAllImages removes every record. Idempotent.
	ClearAllImages(ctx context.Context) error

	// GetImageCount returns the record count without materializing rows.
	GetImageCount(ctx context.Context) (int64, error)

	// GetLatestImage returns the most recently created record, or
	// (nil, nil) when the store is empty.
	GetLatestImage(ctx context.Context) (*domain.ImageRecord, error)

	// GetStorageStats estimates gallery storage usage.
	GetStorageStats(ctx context.Context) (*domain.StorageStats, error)

	// SearchByPrompt matches term case-insensitively as a substring of the
	// prompt, newest-first. An empty term matches everything.
	SearchByPrompt(ctx context.Context, term string) ([]*domain.ImageRecord, error)

	// GetValue reads a session-state value. The bool reports presence.
	GetValue(ctx context.Context, key string) (string, bool, error)

	// SetValue writes a session-state value, replacing any previous one.
	SetValue(ctx context.Context, key, value string) error

	// DeleteValues removes the given session-state keys. Missing keys are
	// a no-op.
	DeleteValues(ctx context.Context, keys ...string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

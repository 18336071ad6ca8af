package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	storagemedia "github.com/bulatminnakhmetov/canvas2image/internal/storage/media"
)

var (
	ErrMediaNotFound = errors.New("media not found")
)

// Media is an entry registered in the media index
type Media struct {
	ID          int       `json:"id"`
	Locator     string    `json:"locator"`
	DisplayName string    `json:"display_name"`
	MIMEType    string    `json:"mime_type"`
	Collection  string    `json:"collection"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// RepositoryImpl is the Postgres-backed media index
type RepositoryImpl struct {
	db *sql.DB
}

// NewRepository creates a new media index repository
func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{
		db: db,
	}
}

// Scan registers a freshly written entry so listings pick it up. Scanning the
// same locator twice refreshes the existing row.
func (r *RepositoryImpl) Scan(ctx context.Context, entry storagemedia.Entry, locator string) error {
	_, err := r.CreateMedia(ctx, entry, locator)
	return err
}

// Unscan drops the index row of a removed entry. An entry that was never
// indexed is not an error.
func (r *RepositoryImpl) Unscan(ctx context.Context, locator string) error {
	err := r.DeleteMediaByLocator(ctx, locator)
	if errors.Is(err, ErrMediaNotFound) {
		return nil
	}
	return err
}

// CreateMedia saves entry metadata and returns its id
func (r *RepositoryImpl) CreateMedia(ctx context.Context, entry storagemedia.Entry, locator string) (int, error) {
	var mediaID int
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO media_entries (locator, display_name, mime_type, collection) VALUES ($1, $2, $3, $4) ON CONFLICT (locator) DO UPDATE SET scanned_at = NOW() RETURNING id",
		locator, entry.DisplayName, entry.MIMEType, entry.Collection,
	).Scan(&mediaID)

	if err != nil {
		return 0, fmt.Errorf("failed to save media entry: %w", err)
	}

	return mediaID, nil
}

// GetMediaByLocator retrieves an entry by its locator
func (r *RepositoryImpl) GetMediaByLocator(ctx context.Context, locator string) (*Media, error) {
	var m Media
	err := r.db.QueryRowContext(ctx,
		"SELECT id, locator, display_name, mime_type, collection, scanned_at FROM media_entries WHERE locator = $1",
		locator,
	).Scan(&m.ID, &m.Locator, &m.DisplayName, &m.MIMEType, &m.Collection, &m.ScannedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to get media entry: %w", err)
	}

	return &m, nil
}

// ListMedia returns the most recent entries of a collection, newest first
func (r *RepositoryImpl) ListMedia(ctx context.Context, collection string, limit int) ([]Media, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, locator, display_name, mime_type, collection, scanned_at FROM media_entries WHERE collection = $1 ORDER BY scanned_at DESC LIMIT $2",
		collection, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list media entries: %w", err)
	}
	defer rows.Close()

	result := make([]Media, 0, limit)
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.ID, &m.Locator, &m.DisplayName, &m.MIMEType, &m.Collection, &m.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media entry: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list media entries: %w", err)
	}

	return result, nil
}

// DeleteMediaByLocator drops an entry from the index
func (r *RepositoryImpl) DeleteMediaByLocator(ctx context.Context, locator string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM media_entries WHERE locator = $1", locator)
	if err != nil {
		return fmt.Errorf("failed to delete media entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete media entry: %w", err)
	}
	if n == 0 {
		return ErrMediaNotFound
	}
	return nil
}

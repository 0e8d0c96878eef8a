package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrFileNotFound = errors.New("file not found")

// FileStorage abstracts where punch proof photos end up. The engine only
// ever needs to store a photo and hand back a reference, so backends stay
// interchangeable.
type FileStorage interface {
	// Upload stores a file and returns the storage path/key
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)

	// Download retrieves a stored file
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// GetURL generates a public URL for a stored path
	GetURL(ctx context.Context, path string, expiry time.Duration) (string, error)

	// Exists checks whether a file exists
	Exists(ctx context.Context, path string) (bool, error)
}

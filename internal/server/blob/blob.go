// Package blob stores photo payloads outside the database. The relay only
// ever uploads, lists and deletes whole objects; clients fetch them by URL.
package blob

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object for the orphan sweep.
type ObjectInfo struct {
	URL          string
	LastModified time.Time
}

// Store is the blob storage port.
type Store interface {
	// Upload stores data under a fresh key and returns the object URL.
	Upload(ctx context.Context, data []byte, contentType string) (string, error)

	// Delete removes the object behind the URL. Deleting a missing object is
	// not an error.
	Delete(ctx context.Context, url string) error

	// List enumerates every stored object.
	List(ctx context.Context) ([]ObjectInfo, error)
}

// Package storage keeps grievance attachments in a blob store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("attachment not found")

// Storage stores attachment bytes unmodified under generated keys.
type Storage interface {
	// Store saves content and returns its key.
	Store(ctx context.Context, owner, filename string, content io.Reader, size int64, contentType string) (string, error)
	// Retrieve opens the object stored under key.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// objectKey builds owner/year/month/uuid_filename.
func objectKey(owner, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d/%02d/%s_%s",
		sanitizeSegment(owner),
		now.Year(),
		now.Month(),
		uuid.NewString(),
		sanitizeSegment(filename),
	)
}

var unsafeFilenameChars = strings.NewReplacer(
	"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeSegment(name string) string {
	name = unsafeFilenameChars.Replace(strings.TrimSpace(name))
	if name == "" {
		return "file"
	}
	return name
}

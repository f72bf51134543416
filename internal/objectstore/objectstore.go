// Package objectstore persists uploaded statement files. Every backend
// returns a URI that is stored on the DocumentUpload and can be read back
// with Get.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Store puts and fetches objects by URI.
type Store interface {
	// Put writes data under key and returns its URI.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get reads the object at uri.
	Get(ctx context.Context, uri string) ([]byte, error)
}

// StatementKey builds the object key for the index-th file of an upload batch.
// The 1-based position prefix keeps same-named files of one batch apart.
// e.g. statements/2025/01/31/<customer>/<batch>/01-march.pdf
func StatementKey(now time.Time, customerID, batchID string, index int, filename string) string {
	return path.Join(
		"statements",
		now.Format("2006/01/02"),
		sanitizeSegment(customerID),
		sanitizeSegment(batchID),
		fmt.Sprintf("%02d-%s", index+1, sanitizeSegment(filepath.Base(filename))),
	)
}

// splitURI splits scheme://bucket/object into bucket and object.
func splitURI(uri, scheme string) (string, string, error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("invalid %s URI: %s", scheme, uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, prefix), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid %s URI (no object path): %s", scheme, uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element of a stored object URI.
// e.g. "gs://bucket/folder/file.pdf" -> "file.pdf"
func FilenameFromURI(uri string) string {
	if idx := strings.Index(uri, "://"); idx != -1 {
		trimmed := uri[idx+3:]
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		return path.Base(parts[1])
	}
	return filepath.Base(uri)
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '?' || r == '#' || r < 0x20:
			return '_'
		default:
			return r
		}
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// Package objectstore keeps uploaded statement files. GCS is used in the cloud
// deployment and a local directory otherwise.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Store provides an interface for object storage operations.
// This interface enables mocking and testing of storage functionality.
type Store interface {
	// Put writes r under objectName and returns the object's URI.
	Put(ctx context.Context, objectName string, r io.Reader) (string, error)

	// Fetch downloads the bytes at uri.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the last path element of a gs:// or file:// URI.
// e.g., "gs://bucket/statements/hdfc.csv" → "hdfc.csv"
func Filename(uri string) string {
	trimmed := uri
	for _, scheme := range []string{"gs://", "file://"} {
		trimmed = strings.TrimPrefix(trimmed, scheme)
	}
	if strings.HasPrefix(uri, "gs://") {
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		trimmed = parts[1]
	}
	return path.Base(trimmed)
}

// ObjectName builds the object key for an uploaded statement.
func ObjectName(bankName, statementID, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".csv"
	}
	return path.Join("statements", sanitize(bankName), statementID+strings.ToLower(ext))
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

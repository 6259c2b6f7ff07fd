// Package blob stores uploaded originals and rendered artifacts.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("blob: not found")

type Store interface {
	// Put writes the object and returns the path recorded on the version.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Key joins name parts into an object key, dropping path traversal.
func Key(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, "\\", "/")
		for _, seg := range strings.Split(p, "/") {
			seg = strings.TrimSpace(seg)
			if seg == "" || seg == "." || seg == ".." {
				continue
			}
			cleaned = append(cleaned, seg)
		}
	}
	return path.Join(cleaned...)
}

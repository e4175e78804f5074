package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-ingest/core"
)

// DirReader serves objects from <Root>/<bucket>/<key>.
type DirReader struct {
	Root string
}

func NewDirReader(root string) (*DirReader, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("objectstore: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("objectstore: resolve root %q: %w", root, err)
	}
	return &DirReader{Root: abs}, nil
}

func (r *DirReader) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("objectstore: %s/%s: %w", bucket, key, core.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("objectstore: read %s/%s: %w", bucket, key, err)
	}
	return content, nil
}

// resolve keeps the bucket directly under Root and the key inside its bucket.
func (r *DirReader) resolve(bucket, key string) (string, error) {
	bucketDir := filepath.Join(r.Root, filepath.FromSlash(bucket))
	path := filepath.Join(bucketDir, filepath.FromSlash(key))
	if !within(r.Root, bucketDir) || !within(bucketDir, path) {
		return "", fmt.Errorf("objectstore: %s/%s escapes root: %w", bucket, key, core.ErrObjectNotFound)
	}
	return path, nil
}

// within reports whether path is strictly below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

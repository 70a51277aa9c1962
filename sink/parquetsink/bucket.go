package parquetsink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Bucket stores immutable objects under slash-separated names
type Bucket interface {
	// Put atomically creates or replaces an object. Readers never observe
	// a partially written object.
	Put(ctx context.Context, name string, data []byte) error
}

// DirBucket is a Bucket keeping objects as files under a directory. Writes
// go through a temporary file and a rename, so a crash cannot leave a
// half-written object behind.
type DirBucket struct {
	root string
}

var _ Bucket = DirBucket{}

// NewDirBucket returns a bucket rooted at the given directory
func NewDirBucket(root string) DirBucket {
	return DirBucket{root: root}
}

// Put implements interface Bucket
func (b DirBucket) Put(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(b.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publishing %s: %w", name, err)
	}
	return nil
}

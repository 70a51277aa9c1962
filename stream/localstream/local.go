// Package localstream is a local file-based transaction source. The stream is
// an append-only file of JSON transactions, one per line, in ascending version
// order. Several processes can follow the same file concurrently.
//
// The purpose is to eliminate the hassle of running a real stream transport
// for local development and tests.
package localstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/ridge/alluvium/chain"
	"github.com/ridge/must/v2"
)

// Source reads the transaction stream from a local file
type Source struct {
	path string
}

// New creates a source reading from the given file. The file does not have to
// exist yet; streaming waits for it to appear.
func New(path string) Source {
	return Source{path: path}
}

// Append appends transactions to a local stream file, creating it if needed.
// It is the writer's responsibility to append versions in order; readers
// verify and fail on violations.
func Append(path string, txns ...*chain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to append stream file %s: %w", path, err)
	}
	defer must.Do(f.Close)
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to append stream file %s: %w", path, err)
	}
	defer must.Do(func() error {
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	})

	// prepare a single write to minimize the likelihood of leaving the file corrupted
	var buf bytes.Buffer
	for _, txn := range txns {
		must.OK1(buf.Write(must.OK1(json.Marshal(txn))))
		must.OK(buf.WriteByte('\n'))
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append stream file %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to append stream file %s: %w", path, err)
	}
	return nil
}

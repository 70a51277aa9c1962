package localstream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ridge/alluvium/chain"
	"github.com/ridge/alluvium/stream"
	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
)

// Stream implements stream.Source
func (s Source) Stream(ctx context.Context, rng stream.Range, dest chan<- *chain.Transaction) error {
	f, err := tail(s.path)
	if os.IsNotExist(err) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case dest <- nil: // an absent file is an empty stream at its hot end
		}
		if err := waitToAppear(ctx, s.path); err != nil {
			return err
		}
		f, err = tail(s.path)
	}
	if err != nil {
		return fmt.Errorf("failed to open stream file %s: %w", s.path, err)
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("reader", parallel.Exit, func(ctx context.Context) error {
			return s.read(ctx, f, rng, dest)
		})
		spawn("closer", parallel.Exit, func(ctx context.Context) error {
			<-ctx.Done()
			return f.Close()
		})
		return nil
	})
}

func (s Source) read(ctx context.Context, f tailer, rng stream.Range, dest chan<- *chain.Transaction) error {
	r := bufio.NewReader(f)
	var bytesRead int64
	started := false // a transaction in rng has been seen
	var next uint64  // next expected version once started
	for {
		// f.Size might return "use of closed file" when ctx is closing
		size, err := f.Size()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		must.OK(err)

		if bytesRead == size {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dest <- nil:
			}
		}

		txn, n, err := readTransaction(r)
		bytesRead += int64(n)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}

		switch {
		case !started && txn.Version > rng.From:
			return fmt.Errorf("%w: version %d is before the oldest retained version %d",
				stream.ErrRangeUnavailable, rng.From, txn.Version)
		case !started && txn.Version < rng.From:
			continue
		case started && txn.Version != next:
			return stream.OrderingViolation(next, txn.Version)
		}
		started = true
		next = txn.Version + 1

		select {
		case <-ctx.Done():
			return ctx.Err()
		case dest <- txn:
		}

		if txn.Version == rng.To {
			return nil
		}
	}
}

func readTransaction(r *bufio.Reader) (*chain.Transaction, int, error) {
	b, err := r.ReadBytes('\n')
	if err != nil {
		return nil, len(b), err
	}
	var txn chain.Transaction
	if err := json.Unmarshal(b, &txn); err != nil {
		return nil, len(b), fmt.Errorf("corrupt stream file entry: %w", err)
	}
	return &txn, len(b), nil
}

func waitToAppear(ctx context.Context, path string) error {
	w := must.OK1(fsnotify.NewWatcher())
	defer must.Do(w.Close)
	must.OK(w.Add(filepath.Dir(path)))

	for {
		if _, err := os.Lstat(path); err == nil { // file exists
			return nil
		}
		if err := waitForPath(ctx, w, path); err != nil {
			return err
		}
	}
}

func waitForPath(ctx context.Context, w *fsnotify.Watcher, path string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.Events:
			if event.Name == path {
				return nil
			}
		case err := <-w.Errors:
			must.OK(err)
		}
	}
}

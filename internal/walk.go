package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"UmbrellaScan/internal/scanner"
)

var (
	ErrRootNotFound      = errors.New("scan root does not exist")
	ErrRootNotADirectory = errors.New("scan root is not a directory")
)

// Task describes a unit of work for the pool.
type Task struct {
	path  string
	inner string // set for archive entries
}

func (t Task) display() string {
	if t.inner != "" {
		return t.path + "!" + t.inner
	}
	return t.path
}

// walkOutcome collects everything one directory walk produced.
type walkOutcome struct {
	verdicts []scanner.Verdict
	failures []scanner.FileError
	skipped  int
}

// dirScanner drives the inspector over a directory tree.
type dirScanner struct {
	insp *inspector
	opts *Options
}

// WalkWithDepth uses WalkDir and cuts branches by depth. WalkDir visits
// entries in lexical order and does not follow symlinks, which keeps the
// traversal deterministic and cycle-free.
func WalkWithDepth(ctx context.Context, root string, maxDepth int, fn func(path string, d os.DirEntry, err error) error) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fn(path, d, err)
		}
		if maxDepth > 0 {
			rel, _ := filepath.Rel(root, path)
			if rel != "." && depthCount(rel) > maxDepth {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		return fn(path, d, nil)
	})
}

func depthCount(rel string) int {
	if rel == "" {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}

// scan enumerates root and fans inspections out over a worker pool.
// Per-file failures land in the outcome; only an invalid root or a cancelled
// context fails the walk itself. Verdicts are sorted by path afterwards so
// results do not depend on worker completion order.
func (ds *dirScanner) scan(ctx context.Context, root string) (walkOutcome, error) {
	var out walkOutcome

	st, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, ErrRootNotFound
		}
		return out, fmt.Errorf("stat root: %w", err)
	}
	if !st.IsDir() {
		return out, ErrRootNotADirectory
	}

	var stats ScanStats
	stats.Start()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(v scanner.Verdict, ierr error, t Task) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case errors.Is(ierr, errFileTooLarge):
			out.skipped++
		case ierr != nil:
			stats.Errors.Add(1)
			var fe *scanner.FileError
			if errors.As(ierr, &fe) {
				out.failures = append(out.failures, *fe)
			} else {
				out.failures = append(out.failures, scanner.FileError{Path: t.display(), Kind: scanner.KindIO, Err: ierr})
			}
		default:
			out.verdicts = append(out.verdicts, v)
			if v.Infected {
				stats.Threats.Add(1)
			}
		}
	}

	pool, err := ants.NewPoolWithFunc(ds.opts.Threads, func(i interface{}) {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		t := i.(Task)
		stats.Processed.Add(1)
		var (
			v    scanner.Verdict
			ierr error
		)
		if t.inner != "" {
			v, ierr = ds.inspectArchiveEntry(ctx, t)
		} else {
			v, ierr = ds.insp.Inspect(t.path)
		}
		record(v, ierr, t)
	})
	if err != nil {
		return out, fmt.Errorf("pool: %w", err)
	}
	defer pool.Release()

	taskCh := make(chan Task, 1024)
	walkErr := make(chan error, 1)
	go func() {
		defer close(taskCh)
		walkErr <- WalkWithDepth(ctx, root, ds.opts.Depth, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				// entry vanished or became unreadable mid-walk
				stats.Errors.Add(1)
				mu.Lock()
				out.failures = append(out.failures, *classifyError(path, err))
				mu.Unlock()
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(d.Name()))
			if !ds.opts.allowedExt(ext) {
				return nil
			}
			if ds.opts.Archives && IsArchive(path) {
				ds.walkArchive(ctx, path, func(t Task) {
					select {
					case taskCh <- t:
						stats.Found.Add(1)
					case <-ctx.Done():
					}
				})
				return nil
			}
			stats.Found.Add(1)
			select {
			case taskCh <- Task{path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for running := true; running; {
		select {
		case t, ok := <-taskCh:
			if !ok {
				running = false
				break
			}
			wg.Add(1)
			if err := pool.Invoke(t); err != nil {
				wg.Done()
				logrus.WithError(err).Error("Failed to submit task to pool")
			}
		case <-ticker.C:
			logrus.Infof("Scan progress: found=%d processed=%d threats=%d errors=%d",
				stats.Found.Load(), stats.Processed.Load(), stats.Threats.Load(), stats.Errors.Load())
		case <-ctx.Done():
			running = false
		}
	}

	wg.Wait()
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if werr := <-walkErr; werr != nil {
		return out, werr
	}

	sort.Slice(out.verdicts, func(i, j int) bool { return out.verdicts[i].Path < out.verdicts[j].Path })
	sort.Slice(out.failures, func(i, j int) bool { return out.failures[i].Path < out.failures[j].Path })
	return out, nil
}

package internal

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"UmbrellaScan/internal/scanner"
)

const version = "1.0.0"

var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrEngineClosed   = errors.New("engine already cleaned up")
)

type engineState int

const (
	stateNew engineState = iota
	stateReady
	stateClosed
)

// Engine is the scan coordinator. It owns the signature store and the
// initialized flag; Init and Cleanup take the write lock while scans share
// the read lock, so a scan can never observe a half-released store.
type Engine struct {
	mu    sync.RWMutex
	state engineState
	store *SignatureStore
	opts  Options
}

var _ scanner.Scanner = (*Engine)(nil)

// NewEngine returns an uninitialized engine. Init must be called before
// scanning.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Init loads the signature store. Calling it on an initialized engine is a
// no-op; a load failure leaves the engine uninitialized.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateReady:
		return nil
	case stateClosed:
		return ErrEngineClosed
	}

	if err := e.opts.Validate(); err != nil {
		return err
	}
	e.opts.Prepare()

	store, err := LoadStore(e.opts.SignatureFile)
	if err != nil {
		return err
	}
	e.store = store
	e.state = stateReady
	logrus.Infof("Engine initialized with %d signatures", store.Len())
	return nil
}

// Cleanup releases the store and makes the engine terminal. Idempotent;
// blocks until in-flight scans drain.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = nil
	e.state = stateClosed
}

// Version works in any state.
func (e *Engine) Version() string { return version }

// stateErr names why a scan was rejected. Callers hold at least the read lock.
func (e *Engine) stateErr() error {
	if e.state == stateClosed {
		return ErrEngineClosed
	}
	return ErrNotInitialized
}

// ScanFile inspects a single file and wraps the verdict into a ScanResult.
// A missing, unreadable or non-regular target is a whole-call failure.
func (e *Engine) ScanFile(ctx context.Context, path string) (res scanner.ScanResult) {
	start := time.Now()
	defer func() { res.ScanTimeMS = time.Since(start).Milliseconds() }()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != stateReady {
		logrus.WithError(e.stateErr()).WithField("path", path).Warn("Scan rejected")
		return res
	}
	if ctx.Err() != nil {
		return res
	}

	insp := &inspector{store: e.store, opts: &e.opts}
	v, err := insp.Inspect(path)
	if errors.Is(err, errFileTooLarge) {
		res.Success = true
		res.Skipped = 1
		return res
	}
	if err != nil {
		var fe *scanner.FileError
		if errors.As(err, &fe) {
			res.Failures = append(res.Failures, *fe)
		}
		logrus.WithFields(logrus.Fields{"file": path, "err": err}).Error("File scan failed")
		return res
	}

	res.Success = true
	res.FilesScanned = 1
	if v.Infected {
		res.Detections = append(res.Detections, v)
		res.ThreatsFound = 1
	}
	return res
}

// ScanDirectory walks root recursively and aggregates all verdicts into one
// result. FilesScanned counts successful inspections only; per-file failures
// are listed in Failures and never fail the call.
func (e *Engine) ScanDirectory(ctx context.Context, root string) (res scanner.ScanResult) {
	start := time.Now()
	defer func() { res.ScanTimeMS = time.Since(start).Milliseconds() }()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != stateReady {
		logrus.WithError(e.stateErr()).WithField("path", root).Warn("Scan rejected")
		return res
	}

	ds := &dirScanner{
		insp: &inspector{store: e.store, opts: &e.opts},
		opts: &e.opts,
	}
	out, err := ds.scan(ctx, root)
	if err != nil {
		logrus.WithFields(logrus.Fields{"dir": root, "err": err}).Error("Directory scan failed")
		return res
	}

	res.Success = true
	res.FilesScanned = len(out.verdicts)
	res.Skipped = out.skipped
	res.Failures = out.failures
	for _, v := range out.verdicts {
		if v.Infected {
			res.Detections = append(res.Detections, v)
		}
	}
	res.ThreatsFound = len(res.Detections)
	return res
}

// OnFileEvent is the hook a host wires into its file events (open, save).
// It routes to the file or directory scan depending on what path is.
func (e *Engine) OnFileEvent(ctx context.Context, path string) scanner.ScanResult {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return e.ScanDirectory(ctx, path)
	}
	return e.ScanFile(ctx, path)
}

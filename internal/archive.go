package internal

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/sirupsen/logrus"

	"UmbrellaScan/internal/scanner"
)

const maxArchiveFiles = 10000 // zip-bomb protection

var archiveExt = map[string]struct{}{
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {},
	".rar": {}, ".br": {}, ".lz4": {}, ".lz": {}, ".mz": {},
	".sz": {}, ".s2": {}, ".zz": {}, ".zst": {}, ".7z": {},
}

// IsArchive by extension. O(1) map lookup
func IsArchive(path string) bool {
	_, ok := archiveExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// walkArchive feeds archive entries as tasks. The archive file itself is not
// content-scanned; its entries are.
func (ds *dirScanner) walkArchive(ctx context.Context, path string, send func(Task)) {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		logrus.WithError(err).WithField("archive", path).Error("Failed to open archive")
		return
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer closer.Close()
	}

	count := 0
	_ = iofs.WalkDir(fsys, ".", func(inner string, d iofs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || d.IsDir() {
			return nil
		}
		if count >= maxArchiveFiles {
			logrus.Warnf("Archive %s skipped: too many files (>= %d)", path, maxArchiveFiles)
			return errors.New("archive file limit reached")
		}
		ext := strings.ToLower(filepath.Ext(inner))
		if !ds.opts.allowedExt(ext) {
			return nil
		}
		send(Task{path: path, inner: inner})
		count++
		return nil
	})
}

// inspectArchiveEntry scans one entry inside an archive. The verdict path is
// "<archive>!<entry>" so detections stay attributable.
func (ds *dirScanner) inspectArchiveEntry(ctx context.Context, t Task) (scanner.Verdict, error) {
	name := t.display()
	fsys, err := archives.FileSystem(ctx, t.path, nil)
	if err != nil {
		return scanner.Verdict{Path: name}, classifyError(name, err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer closer.Close()
	}
	f, err := fsys.Open(t.inner)
	if err != nil {
		return scanner.Verdict{Path: name}, classifyError(name, err)
	}
	defer f.Close()

	return ds.insp.InspectReader(f, name)
}

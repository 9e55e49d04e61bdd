package internal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"UmbrellaScan/internal/scanner"
)

const scanChunkSize = 64 * 1024

// errFileTooLarge marks files skipped by MaxFileSize. Counted as skipped,
// not as failures.
var errFileTooLarge = errors.New("file exceeds max scan size")

// inspector checks individual files against a loaded store.
type inspector struct {
	store *SignatureStore
	opts  *Options
}

// classifyError wraps an I/O error into a per-file FileError.
func classifyError(path string, err error) *scanner.FileError {
	kind := scanner.KindIO
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = scanner.KindNotFound
	case errors.Is(err, os.ErrPermission):
		kind = scanner.KindPermission
	}
	return &scanner.FileError{Path: path, Kind: kind, Err: err}
}

// Inspect opens and scans one regular file. The handle is released on every
// exit path. A nil error always comes with a complete Verdict.
func (in *inspector) Inspect(path string) (scanner.Verdict, error) {
	start := time.Now()
	v := scanner.Verdict{Path: path}

	fi, err := os.Lstat(path)
	if err != nil {
		return v, classifyError(path, err)
	}
	if !fi.Mode().IsRegular() {
		return v, &scanner.FileError{Path: path, Kind: scanner.KindIO, Err: fmt.Errorf("not a regular file")}
	}
	if max := in.opts.maxSize(); max > 0 && fi.Size() > max {
		return v, errFileTooLarge
	}

	f, err := os.Open(path)
	if err != nil {
		return v, classifyError(path, err)
	}
	defer f.Close()

	v, err = in.scanStream(f, path)
	if err != nil {
		return v, classifyError(path, err)
	}
	v.Duration = time.Since(start)
	return v, nil
}

// InspectReader scans an already-open stream, e.g. an archive entry.
func (in *inspector) InspectReader(r io.Reader, name string) (scanner.Verdict, error) {
	start := time.Now()
	v, err := in.scanStream(r, name)
	if err != nil {
		return v, classifyError(name, err)
	}
	v.Duration = time.Since(start)
	return v, nil
}

// scanStream makes a single pass over the content: each chunk is checked
// against byte/plain/regex signatures while a sha256 accumulates for the
// digest lookup at EOF. Chunks carry store.Overlap() trailing bytes forward
// so patterns straddling a boundary still match. First match wins.
func (in *inspector) scanStream(r io.Reader, name string) (scanner.Verdict, error) {
	v := scanner.Verdict{Path: name}

	overlap := in.store.Overlap()
	buf := make([]byte, overlap+scanChunkSize)
	h := sha256.New()
	carry := 0

	for {
		n, rerr := r.Read(buf[carry : carry+scanChunkSize])
		if n > 0 {
			h.Write(buf[carry : carry+n])
			chunk := buf[:carry+n]
			if sig := in.matchChunk(chunk); sig != nil {
				markInfected(&v, sig)
				return v, nil
			}
			carry = min(overlap, len(chunk))
			copy(buf[:carry], chunk[len(chunk)-carry:])
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return v, rerr
		}
	}

	digest := hex.EncodeToString(h.Sum(nil))
	if sig := in.store.LookupDigest(digest); sig != nil {
		markInfected(&v, sig)
	}
	return v, nil
}

func (in *inspector) matchChunk(chunk []byte) *Signature {
	for _, sig := range in.store.Content() {
		switch sig.Kind {
		case PatternBytes, PatternPlain:
			if bytes.Contains(chunk, sig.Pattern) {
				return sig
			}
		case PatternRegex:
			if sig.Regex.Match(chunk) {
				return sig
			}
		}
	}
	return nil
}

func markInfected(v *scanner.Verdict, sig *Signature) {
	v.Infected = true
	v.SignatureID = sig.ID
	v.Threat = sig.Name
	v.Severity = sig.Severity
}

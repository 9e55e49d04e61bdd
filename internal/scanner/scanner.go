package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Severity classifies how dangerous a matched signature is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// ParseSeverity maps a definition-file token to a Severity, defaulting to medium.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow
	case "medium", "":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	}
	return SeverityMedium
}

// ErrorKind classifies per-file inspection failures.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindPermission
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindPermission:
		return "permission-denied"
	case KindIO:
		return "io-failure"
	}
	return "unknown"
}

// FileError is a per-file failure. It never aborts an enclosing scan.
type FileError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Verdict is the outcome of inspecting a single file.
// The matched signature is referenced by id only.
type Verdict struct {
	Path        string
	Infected    bool
	SignatureID string
	Threat      string
	Severity    Severity
	Duration    time.Duration
}

// ScanResult aggregates one scan invocation.
//
// FilesScanned counts files actually opened and inspected; files that failed
// to open are reported in Failures and excluded from the count. Success=false
// means the scan is inconclusive and must not be read as "clean".
type ScanResult struct {
	Success      bool
	FilesScanned int
	ThreatsFound int
	ScanTimeMS   int64
	Skipped      int
	Detections   []Verdict
	Failures     []FileError
}

// Scanner is the engine surface a host adapter consumes.
type Scanner interface {
	Init() error
	ScanFile(ctx context.Context, path string) ScanResult
	ScanDirectory(ctx context.Context, path string) ScanResult
	OnFileEvent(ctx context.Context, path string) ScanResult
	Cleanup()
	Version() string
}

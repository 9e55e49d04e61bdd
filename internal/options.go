package internal

import (
	"fmt"
	"runtime"
)

// defaultMaxFileSize caps how large a file gets content-scanned (100 MiB).
const defaultMaxFileSize = 100 * 1024 * 1024

// Options configure an Engine.
type Options struct {
	SignatureFile string   // empty means builtin signature set
	Threads       int      // worker pool size, 0 scales with CPU
	Depth         int      // max directory depth, 0 unlimited
	Archives      bool     // also scan inside archive files
	Include       []string // only scan these extensions (".ext")
	Exclude       []string // skip these extensions; ignored when Include set
	MaxFileSize   int64    // bytes; 0 default, negative unlimited

	incSet map[string]struct{}
	excSet map[string]struct{}
}

// Validate checks invariants.
func (o *Options) Validate() error {
	if o.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", o.Threads)
	}
	if o.Depth < 0 {
		return fmt.Errorf("depth must be >= 0, got %d", o.Depth)
	}
	return nil
}

// Prepare builds fast lookup structures and sensible defaults.
func (o *Options) Prepare() {
	o.incSet = toSet(o.Include)
	o.excSet = toSet(o.Exclude)
	if o.Threads <= 0 {
		o.Threads = max(4, runtime.GOMAXPROCS(0)*2)
	}
}

func toSet(s []string) map[string]struct{} {
	if len(s) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(s))
	for _, x := range s {
		m[x] = struct{}{}
	}
	return m
}

func (o *Options) maxSize() int64 {
	if o.MaxFileSize == 0 {
		return defaultMaxFileSize
	}
	return o.MaxFileSize
}

func (o *Options) allowedExt(ext string) bool {
	if len(o.incSet) > 0 {
		_, ok := o.incSet[ext]
		return ok
	}
	if o.excSet == nil {
		return true
	}
	_, blocked := o.excSet[ext]
	return !blocked
}

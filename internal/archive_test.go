package internal

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()
	fp := filepath.Join(dir, name)
	f, err := os.Create(fp)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for entry, content := range entries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return fp
}

func TestIsArchive(t *testing.T) {
	for _, e := range []string{".zip", ".tar", ".gz", ".bz2", ".xz", ".rar", ".7z", ".zst"} {
		if !IsArchive("x" + e) {
			t.Errorf("expected archive for %s", e)
		}
	}
	if IsArchive("file.txt") {
		t.Error("txt is not archive")
	}
}

func TestWalkScan_ArchiveEntryDetected(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, dir, "bundle.zip", map[string][]byte{
		"payload.com": eicar,
		"readme.txt":  []byte("nothing to see"),
	})

	ds := newTestDirScanner(t, "", Options{Threads: 2, Archives: true})
	out, err := ds.scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(out.verdicts) != 2 {
		t.Fatalf("expected 2 inner verdicts, got %d", len(out.verdicts))
	}

	var infected int
	for _, v := range out.verdicts {
		if v.Infected {
			infected++
			if !strings.Contains(v.Path, "bundle.zip!") || !strings.HasSuffix(v.Path, "payload.com") {
				t.Errorf("detection path not attributable: %s", v.Path)
			}
		}
	}
	if infected != 1 {
		t.Fatalf("expected 1 infected entry, got %d", infected)
	}
}

func TestWalkScan_ArchivesDisabled(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, dir, "bundle.zip", map[string][]byte{"payload.com": eicar})

	ds := newTestDirScanner(t, "", Options{Threads: 2})
	out, err := ds.scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	// archive content is opaque without the option; the zip itself is scanned
	for _, v := range out.verdicts {
		if strings.Contains(v.Path, "!") {
			t.Errorf("archive entry scanned with Archives=false: %s", v.Path)
		}
	}
}

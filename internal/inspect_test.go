package internal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"UmbrellaScan/internal/scanner"
)

func newTestInspector(t *testing.T, defs string) *inspector {
	t.Helper()
	path := ""
	if defs != "" {
		path = writeDefs(t, defs)
	}
	store, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	opts := &Options{}
	opts.Prepare()
	return &inspector{store: store, opts: opts}
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	fp := filepath.Join(dir, name)
	if err := os.WriteFile(fp, content, 0644); err != nil {
		t.Fatal(err)
	}
	return fp
}

func TestInspect_CleanFile(t *testing.T) {
	in := newTestInspector(t, "")
	fp := writeFile(t, t.TempDir(), "clean.txt", []byte("just a harmless text file\n"))

	v, err := in.Inspect(fp)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if v.Infected {
		t.Errorf("clean file flagged infected: %+v", v)
	}
	if v.Path != fp {
		t.Errorf("verdict path mismatch: %s", v.Path)
	}
	if v.Duration < 0 {
		t.Errorf("negative duration")
	}
}

func TestInspect_EicarDetected(t *testing.T) {
	in := newTestInspector(t, "")
	fp := writeFile(t, t.TempDir(), "eicar.com", eicar)

	v, err := in.Inspect(fp)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !v.Infected {
		t.Fatal("EICAR file not detected")
	}
	if v.SignatureID != "UMB-0001" || v.Threat != "EICAR-Test-File" {
		t.Errorf("unexpected verdict: %+v", v)
	}
}

func TestInspect_HashSignature(t *testing.T) {
	payload := []byte("this exact content is known bad")
	digest := sha256.Sum256(payload)

	in := newTestInspector(t, "SIG-H|hash:"+hex.EncodeToString(digest[:])+"|Threat.Hash|high\n")
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.bin", payload)
	good := writeFile(t, dir, "good.bin", []byte("this exact content is fine"))

	v, err := in.Inspect(bad)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Infected || v.SignatureID != "SIG-H" || v.Severity != scanner.SeverityHigh {
		t.Errorf("hash signature missed: %+v", v)
	}

	v, err = in.Inspect(good)
	if err != nil {
		t.Fatal(err)
	}
	if v.Infected {
		t.Errorf("near-miss content flagged: %+v", v)
	}
}

func TestInspect_PatternAcrossChunks(t *testing.T) {
	// place the pattern right across the chunk boundary
	in := newTestInspector(t, "SIG-X|plain:SPLIT-MARKER|Threat.Split\n")
	content := append(bytes.Repeat([]byte("a"), scanChunkSize-6), []byte("SPLIT-MARKER")...)
	fp := writeFile(t, t.TempDir(), "split.bin", content)

	v, err := in.Inspect(fp)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Infected {
		t.Error("pattern straddling chunk boundary not detected")
	}
}

func TestInspect_NotFound(t *testing.T) {
	in := newTestInspector(t, "")
	_, err := in.Inspect(filepath.Join(t.TempDir(), "missing.txt"))
	var fe *scanner.FileError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FileError, got %v", err)
	}
	if fe.Kind != scanner.KindNotFound {
		t.Errorf("expected not-found kind, got %s", fe.Kind)
	}
}

func TestInspect_Directory(t *testing.T) {
	in := newTestInspector(t, "")
	_, err := in.Inspect(t.TempDir())
	var fe *scanner.FileError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FileError for directory, got %v", err)
	}
	if fe.Kind != scanner.KindIO {
		t.Errorf("expected io-failure kind, got %s", fe.Kind)
	}
}

func TestInspect_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}
	in := newTestInspector(t, "")
	fp := writeFile(t, t.TempDir(), "locked.txt", []byte("secret"))
	if err := os.Chmod(fp, 0000); err != nil {
		t.Fatal(err)
	}

	_, err := in.Inspect(fp)
	var fe *scanner.FileError
	if !errors.As(err, &fe) || fe.Kind != scanner.KindPermission {
		t.Fatalf("expected permission-denied FileError, got %v", err)
	}
}

func TestInspect_TooLarge(t *testing.T) {
	store, err := LoadStore("")
	if err != nil {
		t.Fatal(err)
	}
	opts := &Options{MaxFileSize: 8}
	opts.Prepare()
	in := &inspector{store: store, opts: opts}

	fp := writeFile(t, t.TempDir(), "big.bin", []byte("way more than eight bytes"))
	if _, err := in.Inspect(fp); !errors.Is(err, errFileTooLarge) {
		t.Fatalf("expected errFileTooLarge, got %v", err)
	}
}

func TestInspectReader(t *testing.T) {
	in := newTestInspector(t, "SIG-R|plain:inner-threat|Threat.Inner\n")
	v, err := in.InspectReader(strings.NewReader("contains inner-threat marker"), "mem://entry")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Infected || v.Path != "mem://entry" {
		t.Errorf("reader inspection failed: %+v", v)
	}
}

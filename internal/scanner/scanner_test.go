package scanner

import (
	"errors"
	"testing"
)

func TestSeverityRoundTrip(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if ParseSeverity(s.String()) != s {
			t.Errorf("round trip failed for %s", s)
		}
	}
	if ParseSeverity("") != SeverityMedium {
		t.Error("empty severity should default to medium")
	}
	if ParseSeverity("bogus") != SeverityMedium {
		t.Error("unknown severity should default to medium")
	}
	if ParseSeverity(" HIGH ") != SeverityHigh {
		t.Error("severity parsing should trim and lowercase")
	}
}

func TestErrorKindString(t *testing.T) {
	cases := map[ErrorKind]string{
		KindNotFound:   "not-found",
		KindPermission: "permission-denied",
		KindIO:         "io-failure",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("kind %d: got %q, want %q", k, k.String(), want)
		}
	}
}

func TestFileError(t *testing.T) {
	inner := errors.New("boom")
	fe := &FileError{Path: "/tmp/x", Kind: KindIO, Err: inner}
	if !errors.Is(fe, inner) {
		t.Error("FileError must unwrap to its cause")
	}
	if fe.Error() == "" {
		t.Error("empty error string")
	}
}

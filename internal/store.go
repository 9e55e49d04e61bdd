package internal

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrNoSignatures means a definition source produced an empty store.
var ErrNoSignatures = errors.New("no usable signatures loaded")

// SignatureStore indexes loaded signatures. Built once per engine lifetime
// and never mutated afterwards, so concurrent lookups need no locking.
type SignatureStore struct {
	byID     map[string]*Signature
	byDigest map[string]*Signature
	content  []*Signature // bytes/plain/regex signatures in load order
	maxLen   int          // longest bytes/plain pattern
	hasRegex bool
}

// regexOverlap bounds how far a regex match may straddle a chunk boundary.
const regexOverlap = 255

// LoadStore builds a store from the definition file at path, or from the
// builtin set when path is empty. Duplicate ids keep the first definition.
func LoadStore(path string) (*SignatureStore, error) {
	var (
		sigs []*Signature
		err  error
	)
	if path == "" {
		sigs = BuiltinSignatures()
	} else {
		sigs, err = LoadSignatures(path)
		if err != nil {
			return nil, fmt.Errorf("load signatures: %w", err)
		}
	}
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}

	s := &SignatureStore{
		byID:     make(map[string]*Signature, len(sigs)),
		byDigest: make(map[string]*Signature),
	}
	for _, sig := range sigs {
		if _, dup := s.byID[sig.ID]; dup {
			logrus.Warnf("Duplicate signature id %s ignored", sig.ID)
			continue
		}
		s.byID[sig.ID] = sig
		switch sig.Kind {
		case PatternHash:
			s.byDigest[sig.Digest] = sig
		default:
			s.content = append(s.content, sig)
			if len(sig.Pattern) > s.maxLen {
				s.maxLen = len(sig.Pattern)
			}
			if sig.Kind == PatternRegex {
				s.hasRegex = true
			}
		}
	}
	return s, nil
}

// ByID returns the signature with the given id, or nil.
func (s *SignatureStore) ByID(id string) *Signature { return s.byID[id] }

// LookupDigest returns the hash signature matching a lowercase hex sha256, or nil.
func (s *SignatureStore) LookupDigest(digest string) *Signature { return s.byDigest[digest] }

// Content returns the non-hash signatures in load order.
func (s *SignatureStore) Content() []*Signature { return s.content }

// Len reports how many signatures the store holds.
func (s *SignatureStore) Len() int { return len(s.byID) }

// Overlap is how many trailing bytes each scan chunk must carry over so a
// byte/plain pattern straddling a chunk boundary is still found.
func (s *SignatureStore) Overlap() int {
	overlap := 0
	if s.maxLen > 0 {
		overlap = s.maxLen - 1
	}
	if s.hasRegex && overlap < regexOverlap {
		overlap = regexOverlap
	}
	return overlap
}

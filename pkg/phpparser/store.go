package phpparser

import (
	"context"
	"fmt"
	"sync"
)

// Store tracks the set of PHP files currently open in the editor, keyed by
// LSP document URI. Access is serialized per document by the caller (the
// dispatcher processes requests for a given URI one at a time, per
// DESIGN.md); Store itself only guards the map of URIs to documents.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*openDoc
}

type openDoc struct {
	version int32
	doc     *Document
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*openDoc)}
}

// Open registers a newly opened document at the given version.
func (s *Store) Open(ctx context.Context, uri string, version int32, content []byte) error {
	doc, err := NewDocument(ctx, content)
	if err != nil {
		return fmt.Errorf("open %s: %w", uri, err)
	}
	s.mu.Lock()
	s.docs[uri] = &openDoc{version: version, doc: doc}
	s.mu.Unlock()
	return nil
}

// Close drops the document from the store.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get returns the open document for uri, or nil if it is not open.
func (s *Store) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.docs[uri]
	if !ok {
		return nil
	}
	return entry.doc
}

// Version returns the last-known version for an open document, or -1 if
// the document is not open.
func (s *Store) Version(uri string) int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.docs[uri]
	if !ok {
		return -1
	}
	return entry.version
}

// SetVersion records the version associated with a document after an edit
// has been applied to it.
func (s *Store) SetVersion(uri string, version int32) {
	s.mu.Lock()
	if entry, ok := s.docs[uri]; ok {
		entry.version = version
	}
	s.mu.Unlock()
}

// IsOpen reports whether uri has an open document.
func (s *Store) IsOpen(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[uri]
	return ok
}

// URIs returns the set of currently open document URIs.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	return out
}

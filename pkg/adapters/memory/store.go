package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
)

// Store implements ports.DocumentStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[ports.Section][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[ports.Section][]byte),
	}
}

// Write stores a copy of data.
func (s *Store) Write(ctx context.Context, key string, section ports.Section, data []byte) error {
	if key == "" {
		return fmt.Errorf("document key cannot be empty")
	}
	copied := append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[key]
	if !ok {
		doc = make(map[ports.Section][]byte, len(ports.Sections))
		s.data[key] = doc
	}
	doc[section] = copied
	return nil
}

// Read returns a copy so callers cannot mutate the store.
func (s *Store) Read(ctx context.Context, key string, section ports.Section) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key][section]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns the keys holding a graph section, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key, doc := range s.data {
		if _, ok := doc[ports.SectionGraph]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

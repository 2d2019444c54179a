// Package memory holds process-local adapters used in dev mode and tests.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/ports/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps JSON-normalized documents in a map, so values read
// back have the same shapes a JSONB column would produce.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]json.RawMessage // collection -> id -> body

	entropy *ulid.MonotonicEntropy
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:    map[string]map[string]json.RawMessage{},
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *DocumentStore) Create(ctx context.Context, collection string, doc repository.Document) (string, error) {
	if collection == "" {
		return "", domain.Validationf("empty collection")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
	if s.docs[collection] == nil {
		s.docs[collection] = map[string]json.RawMessage{}
	}
	s.docs[collection][id] = body
	return id, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, partial repository.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.docs[collection][id]
	if !ok {
		return domain.ErrNotFound
	}
	var current map[string]any
	if err := json.Unmarshal(body, &current); err != nil {
		return fmt.Errorf("decode stored document: %w", err)
	}
	if current == nil {
		current = map[string]any{}
	}
	for k, v := range partial {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	s.docs[collection][id] = merged
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	s.mu.RLock()
	body, ok := s.docs[collection][id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	var out repository.Document
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	return out, nil
}

// Len returns the number of documents in collection.
func (s *DocumentStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

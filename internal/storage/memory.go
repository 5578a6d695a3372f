package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	limits Limits

	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemoryStore returns an empty store enforcing limits.
func NewMemoryStore(limits Limits) *MemoryStore {
	return &MemoryStore{limits: limits, blobs: make(map[string]Blob)}
}

func (s *MemoryStore) Put(_ context.Context, name, contentType string, data []byte) (string, error) {
	if err := s.limits.Check(contentType, int64(len(data))); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.blobs[id] = Blob{ID: id, Name: name, ContentType: normalizeContentType(contentType), Data: slices.Clone(data)}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok {
		return nil, ErrBlobNotFound
	}
	blob.Data = slices.Clone(blob.Data)
	return &blob, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
	return nil
}

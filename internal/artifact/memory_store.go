package artifact

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu    sync.RWMutex
	items map[Key][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Key][]byte)}
}

func normalize(key Key) Key {
	if !perFile(key.Kind) {
		key.Name = key.Region
	}
	return key
}

func (s *MemoryStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[normalize(key)] = slices.Clone(payload)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.items[normalize(key)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return slices.Clone(payload), nil
}

func (s *MemoryStore) List(ctx context.Context, region string, kind Kind) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []Key
	for key := range maps.Keys(s.items) {
		if key.Region == region && key.Kind == kind {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(a.Name, b.Name) })
	return keys, nil
}

func (s *MemoryStore) Location(key Key) string {
	return "mem://" + normalize(key).String()
}

func (s *MemoryStore) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, normalize(key))
}

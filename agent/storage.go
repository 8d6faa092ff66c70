package agent

import (
	"context"
	"fmt"
	"sync"
)

// Storage is the abstract persistent key-value store an agent uses to keep
// its pending flow alive across a redirect-triggered page reload. A browser
// host would back it with sessionStorage; tests and CLI hosts can use
// MemStorage. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value for key, or an error matching ErrKeyNotFound
	// when the key has no value.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the value for key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the value for key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// MemStorage is an in-memory Storage, suitable for tests and for hosts
// whose process outlives the redirect (native shells, CLI helpers running a
// local callback listener). It is concurrently safe.
type MemStorage struct {
	mu sync.Mutex
	m  map[string][]byte
}

// NewMemStorage creates an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{
		m: map[string][]byte{},
	}
}

// ensure that MemStorage implements the Storage interface.
var _ Storage = (*MemStorage)(nil)

// Get implements Storage.Get.
func (s *MemStorage) Get(_ context.Context, key string) ([]byte, error) {
	const op = "MemStorage.Get"
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", op, key, ErrKeyNotFound)
	}
	return append([]byte(nil), v...), nil
}

// Set implements Storage.Set.
func (s *MemStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Storage.Delete.
func (s *MemStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

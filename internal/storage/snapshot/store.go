// Package snapshot persists the anonymous cart as a serialized snapshot in a
// key-value backend.
package snapshot

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-cart/internal/domain/cart"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "cart"

// ErrNotFound is returned by KV.Get when the key holds no value.
var ErrNotFound = errors.New("snapshot not found")

// KV is the key-value backend holding serialized snapshots.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store reads and writes the cart snapshot under a fixed key.
type Store struct {
	kv  KV
	key string
}

// NewStore returns a Store writing to key in kv. An empty key selects
// DefaultKey.
func NewStore(kv KV, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key}
}

// Load returns the persisted cart. A missing, unreadable or corrupt snapshot
// yields an empty cart; the failure is logged and never returned.
func (s *Store) Load(ctx context.Context) cart.State {
	empty := cart.State{Items: []cart.LineItem{}}

	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zctx.From(ctx).Warn("Cart snapshot unreadable, starting empty",
				zap.String("key", s.key),
				zap.Error(&cart.StorageError{Op: "load", Err: err}),
			)
		}
		return empty
	}

	st, err := Decode(data)
	if err != nil {
		zctx.From(ctx).Warn("Cart snapshot corrupt, starting empty",
			zap.String("key", s.key),
			zap.Error(&cart.StorageError{Op: "decode", Err: err}),
		)
		return empty
	}
	return st
}

// Save persists the cart state.
func (s *Store) Save(ctx context.Context, st cart.State) error {
	if err := s.kv.Set(ctx, s.key, Encode(st)); err != nil {
		return &cart.StorageError{Op: "save", Err: err}
	}
	return nil
}

// MemoryKV is an in-process KV. Values are copied on the way in and out.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get implements KV.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements KV.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("key not found within the store")
	ErrClosed   = errors.New("store is closed")
)

// Backend is a byte oriented, crash recoverable key value map. Implementations
// do not offer multi key atomicity.
type Backend interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(ctx context.Context, key []byte, value []byte) error
	// Delete removes every given key. Absent keys are ignored.
	Delete(ctx context.Context, keys ...[]byte) error
	// Scan calls fn for every entry whose key starts with prefix, in no
	// particular order. A nil prefix scans the whole store. Returning an error
	// from fn stops the scan and the error is returned from Scan.
	Scan(ctx context.Context, prefix []byte, fn func(key []byte, value []byte) error) error
	Close() error
}

// Codec converts typed keys and values to and from their stored form.
type Codec[T any] interface {
	Marshal(value T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// KeyValueStore is a typed view over a Backend.
type KeyValueStore[K any, V any] struct {
	name    string
	backend Backend
	keys    Codec[K]
	values  Codec[V]
}

func NewKeyValueStore[K any, V any](
	name string,
	backend Backend,
	keys Codec[K],
	values Codec[V],
) *KeyValueStore[K, V] {
	return &KeyValueStore[K, V]{
		name:    name,
		backend: backend,
		keys:    keys,
		values:  values,
	}
}

func (s *KeyValueStore[K, V]) Name() string {
	return s.name
}

// Get returns found=false without an error when the key is absent.
func (s *KeyValueStore[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	rawKey, err := s.keys.Marshal(key)
	if err != nil {
		return zero, false, fmt.Errorf("failed to encode key for %s: %w", s.name, err)
	}
	data, err := s.backend.Get(ctx, rawKey)
	if errors.Is(err, ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to get from %s: %w", s.name, err)
	}
	value, err := s.values.Unmarshal(data)
	if err != nil {
		return zero, false, fmt.Errorf("failed to decode value from %s: %w", s.name, err)
	}
	return value, true, nil
}

func (s *KeyValueStore[K, V]) Put(ctx context.Context, key K, value V) error {
	rawKey, err := s.keys.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to encode key for %s: %w", s.name, err)
	}
	data, err := s.values.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", s.name, err)
	}
	if err := s.backend.Put(ctx, rawKey, data); err != nil {
		return fmt.Errorf("failed to put into %s: %w", s.name, err)
	}
	return nil
}

func (s *KeyValueStore[K, V]) Delete(ctx context.Context, keys ...K) error {
	if len(keys) == 0 {
		return nil
	}
	rawKeys := make([][]byte, len(keys))
	for i, key := range keys {
		rawKey, err := s.keys.Marshal(key)
		if err != nil {
			return fmt.Errorf("failed to encode key for %s: %w", s.name, err)
		}
		rawKeys[i] = rawKey
	}
	if err := s.backend.Delete(ctx, rawKeys...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", s.name, err)
	}
	return nil
}

// All scans every entry of the store.
func (s *KeyValueStore[K, V]) All(ctx context.Context, fn func(key K, value V) error) error {
	return s.Prefix(ctx, nil, fn)
}

// Prefix scans every entry whose encoded key starts with prefix.
func (s *KeyValueStore[K, V]) Prefix(ctx context.Context, prefix []byte, fn func(key K, value V) error) error {
	err := s.backend.Scan(ctx, prefix, func(rawKey []byte, data []byte) error {
		key, err := s.keys.Unmarshal(rawKey)
		if err != nil {
			return fmt.Errorf("failed to decode key from %s: %w", s.name, err)
		}
		value, err := s.values.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("failed to decode value from %s: %w", s.name, err)
		}
		return fn(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", s.name, err)
	}
	return nil
}

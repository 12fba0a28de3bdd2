package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Keys of the persisted values. Each holds JSON text.
const (
	KeyAccessSettings = "accessSettings"
	KeyGateEnabled    = "isGateEnabled"
	KeyHistory        = "generationHistory"
)

var (
	// ErrStorage marks a persistence read or write failure.
	ErrStorage = errors.New("storage error")

	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = errors.New("key not found")
)

// KV stores string values under string keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }

// GetJSON decodes the value under key into v. Absent keys return ErrNotFound;
// read and decode failures are wrapped in ErrStorage.
func GetJSON(ctx context.Context, kv KV, key string, v any) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: read %s: %v", ErrStorage, key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrStorage, key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, key, err)
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, key, err)
	}
	return nil
}

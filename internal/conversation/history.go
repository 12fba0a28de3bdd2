package conversation

import (
	"context"
	"errors"

	"github.com/mnrezaali/ai-prompt-generator/internal/storage"
)

// DefaultHistoryCapacity is the number of prompts kept when unset.
const DefaultHistoryCapacity = 10

// HistoryStore persists the history list.
type HistoryStore interface {
	Load(ctx context.Context) ([]HistoryEntry, error)
	Save(ctx context.Context, entries []HistoryEntry) error
}

// KVHistoryStore keeps history as JSON under storage.KeyHistory.
type KVHistoryStore struct {
	kv storage.KV
}

// NewKVHistoryStore creates a history store on kv
func NewKVHistoryStore(kv storage.KV) *KVHistoryStore {
	return &KVHistoryStore{kv: kv}
}

// Load returns nil, nil when nothing was saved yet.
func (s *KVHistoryStore) Load(ctx context.Context) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := storage.GetJSON(ctx, s.kv, storage.KeyHistory, &entries); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

func (s *KVHistoryStore) Save(ctx context.Context, entries []HistoryEntry) error {
	return storage.SetJSON(ctx, s.kv, storage.KeyHistory, entries)
}

// insertHistory puts entry at the head and evicts from the tail beyond
// capacity. With dedupe, an entry whose prompt equals the head is dropped.
// It reports whether the list changed.
func insertHistory(list []HistoryEntry, entry HistoryEntry, capacity int, dedupe bool) ([]HistoryEntry, bool) {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if dedupe && len(list) > 0 && list[0].Prompt == entry.Prompt {
		return list, false
	}
	out := make([]HistoryEntry, 0, min(len(list)+1, capacity))
	out = append(out, entry)
	for _, e := range list {
		if len(out) == capacity {
			break
		}
		out = append(out, e)
	}
	return out, true
}

func truncateHistory(list []HistoryEntry, capacity int) []HistoryEntry {
	if capacity <= 0 || len(list) <= capacity {
		return list
	}
	return append([]HistoryEntry(nil), list[:capacity]...)
}

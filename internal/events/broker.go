package events

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	defaultBufferSize = 64
	defaultMaxEvents  = 100
)

// Broker implements a generic publish-subscribe broker with type safety.
//
// Publish never blocks. When a subscriber's buffer is full the oldest queued
// event is discarded to make room, so a slow subscriber always sees the most
// recent event last.
type Broker[T any] struct {
	subs         map[chan Event[T]]SubscriberInfo
	mu           sync.RWMutex
	done         chan struct{}
	maxEvents    int
	bufferSize   int
	eventHistory []Event[T]
	historyMu    sync.RWMutex
}

// SubscriberInfo contains metadata about a subscriber
type SubscriberInfo struct {
	ID      string
	Filters []EventFilter
	Created time.Time
}

// NewBroker creates a new broker with default settings
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithOptions[T](defaultBufferSize, defaultMaxEvents)
}

// NewBrokerWithOptions creates a new broker with custom settings
func NewBrokerWithOptions[T any](channelBufferSize, maxEvents int) *Broker[T] {
	if channelBufferSize < 1 {
		channelBufferSize = 1
	}
	return &Broker[T]{
		subs:         make(map[chan Event[T]]SubscriberInfo),
		done:         make(chan struct{}),
		maxEvents:    maxEvents,
		bufferSize:   channelBufferSize,
		eventHistory: make([]Event[T], 0, maxEvents),
	}
}

// Publish publishes an event to all subscribers
func (b *Broker[T]) Publish(eventType EventType, payload T, opts ...PublishOption) {
	if b.isShutdown() {
		return
	}

	options := &PublishOptions{}
	for _, opt := range opts {
		opt(options)
	}

	event := Event[T]{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		SessionID: options.SessionID,
	}

	b.addToHistory(event)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, info := range b.subs {
		if !matches(event, info.Filters) {
			continue
		}
		select {
		case ch <- event:
			continue
		default:
		}
		// Full: drop the oldest queued event and retry once.
		select {
		case <-ch:
			log.Debug("Subscriber lagging, dropped stale event", "subscriber", info.ID)
		default:
		}
		select {
		case ch <- event:
		default:
			log.Warn("Event channel full, dropping event", "subscriber", info.ID, "event", event.ID)
		}
	}
}

// Subscribe creates a new subscription with optional filters. The channel is
// closed when ctx is done or the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context, filters ...EventFilter) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event[T], b.bufferSize)
	if b.isShutdown() {
		close(ch)
		return ch
	}

	b.subs[ch] = SubscriberInfo{
		ID:      uuid.New().String(),
		Filters: filters,
		Created: time.Now(),
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.unsubscribe(ch)
	}()

	return ch
}

func (b *Broker[T]) unsubscribe(ch chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[ch]; exists {
		delete(b.subs, ch)
		close(ch)
	}
}

func matches[T any](event Event[T], filters []EventFilter) bool {
	for _, filter := range filters {
		if !filter(event.Type) {
			return false
		}
	}
	return true
}

func (b *Broker[T]) addToHistory(event Event[T]) {
	if b.maxEvents <= 0 {
		return
	}
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.eventHistory = append(b.eventHistory, event)
	if len(b.eventHistory) > b.maxEvents {
		copy(b.eventHistory, b.eventHistory[len(b.eventHistory)-b.maxEvents:])
		b.eventHistory = b.eventHistory[:b.maxEvents]
	}
}

// GetHistory returns recent events matching the given filters, oldest first
func (b *Broker[T]) GetHistory(filters ...EventFilter) []Event[T] {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	result := make([]Event[T], 0, len(b.eventHistory))
	for _, event := range b.eventHistory {
		if matches(event, filters) {
			result = append(result, event)
		}
	}
	return result
}

// Since returns the retained events published after the event with the given
// ID, oldest first. ok is false when that event is no longer retained.
func (b *Broker[T]) Since(id string, filters ...EventFilter) (events []Event[T], ok bool) {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	for i := len(b.eventHistory) - 1; i >= 0; i-- {
		if b.eventHistory[i].ID != id {
			continue
		}
		for _, event := range b.eventHistory[i+1:] {
			if matches(event, filters) {
				events = append(events, event)
			}
		}
		return events, true
	}
	return nil, false
}

// SubscriberCount returns the number of live subscriptions
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker[T]) isShutdown() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Shutdown closes all subscriptions. Later publishes are ignored.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdown() {
		return
	}
	close(b.done)

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	log.Debug("Event broker shut down", "history", len(b.eventHistory))
}

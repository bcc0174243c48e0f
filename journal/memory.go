package journal

import (
	"context"
	"sync"

	"github.com/goliatone/go-aggregate"
)

// Memory is a thread-safe in-process journal. Events are held as values, one
// totally ordered stream per entity identity.
type Memory[E aggregate.Event] struct {
	mu      sync.RWMutex
	streams map[string][]E
}

// NewMemory constructs an empty journal.
func NewMemory[E aggregate.Event]() *Memory[E] {
	return &Memory[E]{streams: make(map[string][]E)}
}

// Append stores events at the tail of the entity's stream.
func (m *Memory[E]) Append(_ context.Context, entityID string, events []E) error {
	if len(events) == 0 {
		return errEmptyAppend(entityID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[entityID] = append(m.streams[entityID], events...)
	return nil
}

// Read replays events after fromSeq in append order. Sequence numbers start
// at 1.
func (m *Memory[E]) Read(_ context.Context, entityID string, fromSeq uint64, fn func(seq uint64, event E) error) error {
	m.mu.RLock()
	stream := make([]E, len(m.streams[entityID]))
	copy(stream, m.streams[entityID])
	m.mu.RUnlock()

	for i, event := range stream {
		seq := uint64(i + 1)
		if seq <= fromSeq {
			continue
		}
		if err := fn(seq, event); err != nil {
			return err
		}
	}
	return nil
}

// HighestSequence returns the number of stored events for the entity.
func (m *Memory[E]) HighestSequence(_ context.Context, entityID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.streams[entityID])), nil
}

// Events returns a cloned stream for assertions and debugging.
func (m *Memory[E]) Events(entityID string) []E {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]E, len(m.streams[entityID]))
	copy(out, m.streams[entityID])
	return out
}

// MemorySnapshots is a thread-safe in-process snapshot store.
type MemorySnapshots[S any] struct {
	mu    sync.RWMutex
	snaps map[string]memorySnapshot[S]
}

type memorySnapshot[S any] struct {
	seq   uint64
	state S
}

// NewMemorySnapshots constructs an empty snapshot store.
func NewMemorySnapshots[S any]() *MemorySnapshots[S] {
	return &MemorySnapshots[S]{snaps: make(map[string]memorySnapshot[S])}
}

// SaveSnapshot keeps only the latest snapshot per entity.
func (m *MemorySnapshots[S]) SaveSnapshot(_ context.Context, entityID string, seq uint64, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[entityID] = memorySnapshot[S]{seq: seq, state: state}
	return nil
}

// LoadSnapshot returns the latest snapshot, ok=false when none exists.
func (m *MemorySnapshots[S]) LoadSnapshot(_ context.Context, entityID string) (S, uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[entityID]
	if !ok {
		var zero S
		return zero, 0, false, nil
	}
	return snap.state, snap.seq, true, nil
}

package aggregate

import (
	"context"
	"reflect"
)

// Command is the interface command messages must implement. A command is a
// request to change or read entity state; it never describes something that
// already happened.
type Command interface {
	Type() string
	Validate() error
}

// Event is the interface domain events must implement. Events are immutable
// facts; once appended to the journal they are never rewritten.
type Event interface {
	Type() string
}

// Journal is the collaborating append-only event log. Implementations must
// guarantee that Append only returns nil once the events are durable, and
// that Read replays events in append order.
type Journal[E Event] interface {
	// Append stores events for the entity. The slice must be non-empty.
	Append(ctx context.Context, entityID string, events []E) error

	// Read replays events with sequence numbers greater than fromSeq, in
	// order, invoking fn once per event. A non-nil error from fn stops the
	// replay and is returned as-is.
	Read(ctx context.Context, entityID string, fromSeq uint64, fn func(seq uint64, event E) error) error

	// HighestSequence returns the sequence number of the last stored event,
	// or zero when the entity has no history.
	HighestSequence(ctx context.Context, entityID string) (uint64, error)
}

// SnapshotStore persists point-in-time state so recovery can skip already
// folded history. Compaction of the underlying journal is not its concern.
type SnapshotStore[S any] interface {
	SaveSnapshot(ctx context.Context, entityID string, seq uint64, state S) error
	LoadSnapshot(ctx context.Context, entityID string) (state S, seq uint64, ok bool, err error)
}

// IsNilCommand reports whether cmd is nil or a typed nil pointer.
func IsNilCommand(cmd any) bool {
	if cmd == nil {
		return true
	}

	v := reflect.ValueOf(cmd)
	if v.Kind() != reflect.Ptr {
		return false
	}

	return v.IsNil()
}

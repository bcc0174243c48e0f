// Package journal provides reference implementations of the aggregate
// engine's collaborating event log and snapshot store: an in-process memory
// store for tests and embedding, and a SQLite store for durable single-node
// deployments.
package journal

import (
	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-aggregate"
)

const (
	ErrCodeEmptyAppend   = "JOURNAL_EMPTY_APPEND"
	ErrCodeAppendFailed  = "JOURNAL_APPEND_FAILED"
	ErrCodeReadFailed    = "JOURNAL_READ_FAILED"
	ErrCodeSnapshotStore = "JOURNAL_SNAPSHOT_FAILED"
)

// Codec translates domain events to and from their stored representation.
// The stored form is keyed by the event's Type() string so readers can pick
// the concrete variant back.
type Codec[E aggregate.Event] interface {
	Marshal(event E) ([]byte, error)
	Unmarshal(eventType string, data []byte) (E, error)
}

// SnapshotCodec translates state snapshots to and from bytes.
type SnapshotCodec[S any] interface {
	MarshalState(state S) ([]byte, error)
	UnmarshalState(data []byte) (S, error)
}

func errEmptyAppend(entityID string) error {
	return apperrors.New("append requires at least one event", apperrors.CategoryBadInput).
		WithTextCode(ErrCodeEmptyAppend).
		WithMetadata(map[string]any{"entity_id": entityID})
}

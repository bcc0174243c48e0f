package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/goliatone/go-errors"
)

// SQLiteSnapshots stores the latest snapshot per entity in a single row,
// replaced on every save.
type SQLiteSnapshots[S any] struct {
	db    *sql.DB
	table string
	codec SnapshotCodec[S]
}

// SQLiteSnapshotOption customizes the snapshot store.
type SQLiteSnapshotOption[S any] func(*SQLiteSnapshots[S])

// WithSnapshotTable overrides the default "snapshots" table name.
func WithSnapshotTable[S any](name string) SQLiteSnapshotOption[S] {
	return func(s *SQLiteSnapshots[S]) {
		if name != "" {
			s.table = name
		}
	}
}

// NewSQLiteSnapshots constructs the store and creates its table when missing.
func NewSQLiteSnapshots[S any](db *sql.DB, codec SnapshotCodec[S], opts ...SQLiteSnapshotOption[S]) (*SQLiteSnapshots[S], error) {
	if db == nil {
		return nil, apperrors.New("sqlite snapshot store requires a database", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeSnapshotStore)
	}
	if codec == nil {
		return nil, apperrors.New("sqlite snapshot store requires a codec", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeSnapshotStore)
	}

	s := &SQLiteSnapshots[S]{db: db, table: "snapshots", codec: codec}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		entity_id  TEXT    NOT NULL PRIMARY KEY,
		seq        INTEGER NOT NULL,
		state      BLOB    NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, s.table)
	if _, err := s.db.Exec(ddl); err != nil {
		return nil, s.storeError("create snapshot table", err)
	}
	return s, nil
}

// SaveSnapshot replaces the entity's snapshot row.
func (s *SQLiteSnapshots[S]) SaveSnapshot(ctx context.Context, entityID string, seq uint64, state S) error {
	payload, err := s.codec.MarshalState(state)
	if err != nil {
		return s.storeError("encode snapshot", err)
	}
	upsert := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (entity_id, seq, state) VALUES (?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, upsert, entityID, seq, payload); err != nil {
		return s.storeError("save snapshot", err)
	}
	return nil
}

// LoadSnapshot returns the entity's snapshot, ok=false when none exists.
func (s *SQLiteSnapshots[S]) LoadSnapshot(ctx context.Context, entityID string) (S, uint64, bool, error) {
	var (
		zero    S
		seq     uint64
		payload []byte
	)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT seq, state FROM %s WHERE entity_id = ?", s.table), entityID)
	if err := row.Scan(&seq, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, 0, false, nil
		}
		return zero, 0, false, s.storeError("load snapshot", err)
	}
	state, err := s.codec.UnmarshalState(payload)
	if err != nil {
		return zero, 0, false, s.storeError("decode snapshot", err)
	}
	return state, seq, true, nil
}

func (s *SQLiteSnapshots[S]) storeError(op string, err error) error {
	return apperrors.Wrap(err, apperrors.CategoryExternal, op).
		WithTextCode(ErrCodeSnapshotStore).
		WithMetadata(map[string]any{"table": s.table})
}

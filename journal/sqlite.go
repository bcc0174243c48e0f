package journal

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-aggregate"
)

// SQLite is a journal backed by database/sql with the go-sqlite3 driver. One
// row per event, sequence numbers monotonic per entity, appends committed in
// a single transaction so a batch is durable as a whole or not at all.
type SQLite[E aggregate.Event] struct {
	db    *sql.DB
	table string
	codec Codec[E]
}

// SQLiteOption customizes the SQLite journal.
type SQLiteOption[E aggregate.Event] func(*SQLite[E])

// WithTable overrides the default "events" table name.
func WithTable[E aggregate.Event](name string) SQLiteOption[E] {
	return func(s *SQLite[E]) {
		if name != "" {
			s.table = name
		}
	}
}

// NewSQLite constructs the journal and creates its table when missing.
func NewSQLite[E aggregate.Event](db *sql.DB, codec Codec[E], opts ...SQLiteOption[E]) (*SQLite[E], error) {
	if db == nil {
		return nil, apperrors.New("sqlite journal requires a database", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeAppendFailed)
	}
	if codec == nil {
		return nil, apperrors.New("sqlite journal requires a codec", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeAppendFailed)
	}

	s := &SQLite[E]{db: db, table: "events", codec: codec}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		entity_id  TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		event_type TEXT    NOT NULL,
		payload    BLOB    NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (entity_id, seq)
	)`, s.table)
	if _, err := s.db.Exec(ddl); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryExternal, "create journal table").
			WithTextCode(ErrCodeAppendFailed)
	}
	return s, nil
}

// Append stores events inside one transaction, continuing the entity's
// sequence from its current maximum.
func (s *SQLite[E]) Append(ctx context.Context, entityID string, events []E) error {
	if len(events) == 0 {
		return errEmptyAppend(entityID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.appendError(entityID, err)
	}
	defer tx.Rollback()

	var seq uint64
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) FROM %s WHERE entity_id = ?", s.table), entityID)
	if err := row.Scan(&seq); err != nil {
		return s.appendError(entityID, err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (entity_id, seq, event_type, payload) VALUES (?, ?, ?, ?)", s.table)
	for _, event := range events {
		payload, err := s.codec.Marshal(event)
		if err != nil {
			return s.appendError(entityID, err)
		}
		seq++
		if _, err := tx.ExecContext(ctx, insert, entityID, seq, event.Type(), payload); err != nil {
			return s.appendError(entityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.appendError(entityID, err)
	}
	return nil
}

// Read replays events after fromSeq in sequence order.
func (s *SQLite[E]) Read(ctx context.Context, entityID string, fromSeq uint64, fn func(seq uint64, event E) error) error {
	query := fmt.Sprintf(
		"SELECT seq, event_type, payload FROM %s WHERE entity_id = ? AND seq > ? ORDER BY seq",
		s.table)
	rows, err := s.db.QueryContext(ctx, query, entityID, fromSeq)
	if err != nil {
		return s.readError(entityID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq       uint64
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&seq, &eventType, &payload); err != nil {
			return s.readError(entityID, err)
		}
		event, err := s.codec.Unmarshal(eventType, payload)
		if err != nil {
			return s.readError(entityID, err)
		}
		if err := fn(seq, event); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return s.readError(entityID, err)
	}
	return nil
}

// HighestSequence returns the entity's last stored sequence number.
func (s *SQLite[E]) HighestSequence(ctx context.Context, entityID string) (uint64, error) {
	var seq uint64
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) FROM %s WHERE entity_id = ?", s.table), entityID)
	if err := row.Scan(&seq); err != nil {
		return 0, s.readError(entityID, err)
	}
	return seq, nil
}

func (s *SQLite[E]) appendError(entityID string, err error) error {
	return apperrors.Wrap(err, apperrors.CategoryExternal, "journal append").
		WithTextCode(ErrCodeAppendFailed).
		WithMetadata(map[string]any{"entity_id": entityID, "table": s.table})
}

func (s *SQLite[E]) readError(entityID string, err error) error {
	return apperrors.Wrap(err, apperrors.CategoryExternal, "journal read").
		WithTextCode(ErrCodeReadFailed).
		WithMetadata(map[string]any{"entity_id": entityID, "table": s.table})
}

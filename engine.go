// Package aggregate implements an event-sourced aggregate engine: per-entity
// state derived exclusively by folding an append-only event sequence, with
// commands handled through state-dependent dispatch that returns declarative
// effects instead of performing side effects directly.
package aggregate

import (
	"context"

	apperrors "github.com/goliatone/go-errors"
)

// HandlerFunc selects the effect for one command given the current state.
// It must be pure: no I/O, no mutation, only a description of what should
// happen.
type HandlerFunc[S any, E Event, C Command] func(state S, cmd C) Effect[S, E]

// ApplierFunc folds one event into the state. It must be pure and
// deterministic; replaying the same sequence twice has to produce identical
// state. An error means the event is illegal for the state, which the engine
// treats as fatal.
type ApplierFunc[S any, E Event] func(state S, event E) (S, error)

// Phase is the engine's own lifecycle, distinct from the entity state it
// manages.
type Phase uint8

const (
	// PhaseRecovering replays history; no commands, no replies.
	PhaseRecovering Phase = iota
	// PhaseActive accepts one command at a time.
	PhaseActive
	// PhaseFailed is terminal after an illegal fold.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseRecovering:
		return "recovering"
	case PhaseActive:
		return "active"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports what Submit did for the caller.
type Outcome uint8

const (
	// OutcomeNoReply means no reply was delivered: the command was unhandled,
	// rejected before dispatch, or failed to persist.
	OutcomeNoReply Outcome = iota
	// OutcomeReplied means exactly one reply was handed to the caller's
	// reply channel.
	OutcomeReplied
)

// Config wires one Engine instance.
type Config[S any, E Event, C Command] struct {
	// TypeKey names the entity type; used for logging and as a stable journal
	// namespace component. Not interpreted beyond that.
	TypeKey string

	// EntityID is the identity this engine owns state for.
	EntityID string

	// Initial is the state before any event, e.g. the empty variant.
	Initial S

	Handle HandlerFunc[S, E, C]
	Apply  ApplierFunc[S, E]

	Journal Journal[E]

	// Snapshots is optional; when set, recovery loads the latest snapshot and
	// replays only the events after it.
	Snapshots SnapshotStore[S]

	// Logger is optional; a fallback fmt logger is used when nil.
	Logger Logger
}

func (c Config[S, E, C]) validate() error {
	if c.EntityID == "" {
		return apperrors.New("entity id cannot be empty", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidCommand)
	}
	if c.Handle == nil {
		return apperrors.New("command handler cannot be nil", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidCommand)
	}
	if c.Apply == nil {
		return apperrors.New("event applier cannot be nil", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidCommand)
	}
	if c.Journal == nil {
		return apperrors.New("journal cannot be nil", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidCommand)
	}
	return nil
}

// Engine orchestrates one entity: it recovers state from the journal, runs
// commands through the handler, validates and executes the returned effects,
// and enforces the reply invariant.
//
// The engine performs no internal synchronization. The host must guarantee
// single-writer access: Recover must complete before the first Submit, and
// Submit must never be called concurrently for the same entity identity.
type Engine[S any, E Event, C Command] struct {
	typeKey string
	id      string
	phase   Phase
	state   S
	seq     uint64

	handle    HandlerFunc[S, E, C]
	apply     ApplierFunc[S, E]
	journal   Journal[E]
	snapshots SnapshotStore[S]
	logger    Logger
}

// New returns an engine in the Recovering phase. Call Recover before
// submitting commands.
func New[S any, E Event, C Command](cfg Config[S, E, C]) (*Engine[S, E, C], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine[S, E, C]{
		typeKey:   cfg.TypeKey,
		id:        cfg.EntityID,
		phase:     PhaseRecovering,
		state:     cfg.Initial,
		handle:    cfg.Handle,
		apply:     cfg.Apply,
		journal:   cfg.Journal,
		snapshots: cfg.Snapshots,
		logger:    normalizeLogger(cfg.Logger),
	}, nil
}

// Recover folds the full history, snapshot first when available, and moves
// the engine to Active. A journal read failure leaves the engine Recovering
// so the host may retry; an illegal fold fails the engine permanently.
func (e *Engine[S, E, C]) Recover(ctx context.Context) error {
	switch e.phase {
	case PhaseActive:
		return engineError(ErrNotActive, nil, map[string]any{
			"entity": e.entityPath(),
			"reason": "already recovered",
		})
	case PhaseFailed:
		return engineError(ErrEngineFailed, nil, map[string]any{"entity": e.entityPath()})
	}

	if e.snapshots != nil {
		state, seq, ok, err := e.snapshots.LoadSnapshot(ctx, e.id)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CategoryExternal, "snapshot load failed").
				WithTextCode(ErrCodeSnapshotFailed).
				WithMetadata(map[string]any{"entity": e.entityPath()})
		}
		if ok {
			e.state = state
			e.seq = seq
		}
	}

	err := e.journal.Read(ctx, e.id, e.seq, func(seq uint64, event E) error {
		next, ferr := e.apply(e.state, event)
		if ferr != nil {
			return engineError(ErrIllegalFold, ferr, map[string]any{
				"entity": e.entityPath(),
				"event":  event.Type(),
				"seq":    seq,
			})
		}
		e.state = next
		e.seq = seq
		return nil
	})
	if err != nil {
		if IsIllegalFold(err) {
			e.phase = PhaseFailed
			e.logger.Error("recovery aborted, journal holds an illegal event: %v", err)
		}
		return err
	}

	e.phase = PhaseActive
	e.logger.Debug("entity recovered: %s seq=%d", e.entityPath(), e.seq)
	return nil
}

// Submit handles exactly one command: dispatch, effect validation, persist,
// fold, reply — in that order. A reply is never observed before its causing
// events are durable.
//
// Precondition: the host serializes Submit calls per entity identity. While a
// journal append is in flight the caller must not pipeline further commands.
func (e *Engine[S, E, C]) Submit(ctx context.Context, cmd C) (Outcome, error) {
	switch e.phase {
	case PhaseRecovering:
		return OutcomeNoReply, engineError(ErrNotActive, nil, map[string]any{"entity": e.entityPath()})
	case PhaseFailed:
		return OutcomeNoReply, engineError(ErrEngineFailed, nil, map[string]any{"entity": e.entityPath()})
	}

	if IsNilCommand(cmd) {
		return OutcomeNoReply, apperrors.New("nil command", apperrors.CategoryValidation).
			WithTextCode(ErrCodeInvalidCommand)
	}
	if err := cmd.Validate(); err != nil {
		return OutcomeNoReply, apperrors.Wrap(err, apperrors.CategoryValidation, "command validation failed").
			WithTextCode(ErrCodeInvalidCommand).
			WithMetadata(map[string]any{"command": cmd.Type()})
	}

	effect := e.handle(e.state, cmd)

	switch effect.kind {
	case effectUnhandled:
		if _, enforced := any(cmd).(ExpectingReply); enforced {
			// handler table gap for a reply-enforced command: surfaced, never
			// swallowed
			e.logger.Error("reply-enforced command unhandled: %s in %s", cmd.Type(), e.entityPath())
			return OutcomeNoReply, engineError(ErrUnhandledCommand, nil, map[string]any{
				"entity":  e.entityPath(),
				"command": cmd.Type(),
			})
		}
		e.logger.Debug("command unhandled: %s in %s", cmd.Type(), e.entityPath())
		return OutcomeNoReply, nil

	case effectReplyOnly:
		effect.deliver(e.state)
		return OutcomeReplied, nil
	}

	if len(effect.events) == 0 {
		return OutcomeNoReply, engineError(ErrEmptyPersist, nil, map[string]any{
			"entity":  e.entityPath(),
			"command": cmd.Type(),
		})
	}

	if err := e.journal.Append(ctx, e.id, effect.events); err != nil {
		// no state mutation, no reply; host policy decides on retry
		return OutcomeNoReply, engineError(ErrAppendFailed, err, map[string]any{
			"entity":  e.entityPath(),
			"command": cmd.Type(),
			"events":  len(effect.events),
		})
	}

	for _, event := range effect.events {
		next, err := e.apply(e.state, event)
		if err != nil {
			e.phase = PhaseFailed
			e.logger.Error("illegal fold after persist, stopping entity %s: %v", e.entityPath(), err)
			return OutcomeNoReply, engineError(ErrIllegalFold, err, map[string]any{
				"entity": e.entityPath(),
				"event":  event.Type(),
				"seq":    e.seq + 1,
			})
		}
		e.state = next
		e.seq++
	}

	if effect.deliver != nil {
		effect.deliver(e.state)
		return OutcomeReplied, nil
	}
	return OutcomeNoReply, nil
}

// Snapshot persists the current state and sequence to the snapshot store.
// No-op when no store is configured. Must run on the entity's single writer,
// like Submit.
func (e *Engine[S, E, C]) Snapshot(ctx context.Context) error {
	if e.snapshots == nil {
		return nil
	}
	if e.phase != PhaseActive {
		return engineError(ErrNotActive, nil, map[string]any{"entity": e.entityPath()})
	}
	if err := e.snapshots.SaveSnapshot(ctx, e.id, e.seq, e.state); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryExternal, "snapshot save failed").
			WithTextCode(ErrCodeSnapshotFailed).
			WithMetadata(map[string]any{"entity": e.entityPath(), "seq": e.seq})
	}
	e.logger.Debug("snapshot saved: %s seq=%d", e.entityPath(), e.seq)
	return nil
}

// State returns the current derived state. Only meaningful under the same
// single-writer discipline as Submit.
func (e *Engine[S, E, C]) State() S { return e.state }

// Sequence returns the sequence number of the last folded event.
func (e *Engine[S, E, C]) Sequence() uint64 { return e.seq }

// Phase returns the engine lifecycle phase.
func (e *Engine[S, E, C]) Phase() Phase { return e.phase }

// EntityID returns the identity this engine owns.
func (e *Engine[S, E, C]) EntityID() string { return e.id }

func (e *Engine[S, E, C]) entityPath() string {
	if e.typeKey == "" {
		return e.id
	}
	return e.typeKey + "/" + e.id
}

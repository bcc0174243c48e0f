package aggregate

import (
	stderrors "errors"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeIllegalFold      = "AGG_ILLEGAL_FOLD"
	ErrCodeUnhandledCommand = "AGG_UNHANDLED_COMMAND"
	ErrCodeInvalidCommand   = "AGG_INVALID_COMMAND"
	ErrCodeEmptyPersist     = "AGG_EMPTY_PERSIST"
	ErrCodeAppendFailed     = "AGG_APPEND_FAILED"
	ErrCodeSnapshotFailed   = "AGG_SNAPSHOT_FAILED"
	ErrCodeNotActive        = "AGG_NOT_ACTIVE"
	ErrCodeEngineFailed     = "AGG_ENGINE_FAILED"
)

var (
	// ErrIllegalFold means an event was illegal for the current state during
	// replay or live folding. Fatal for the entity instance: either the
	// journal is corrupt or a handler emitted an impossible event.
	ErrIllegalFold = apperrors.New("event illegal for current state", apperrors.CategoryConflict).
			WithTextCode(ErrCodeIllegalFold)

	// ErrUnhandledCommand means a reply-enforced command had no handler for
	// the current state, so its reply obligation cannot be met.
	ErrUnhandledCommand = apperrors.New("no handler for command in current state", apperrors.CategoryHandler).
				WithTextCode(ErrCodeUnhandledCommand)

	// ErrEmptyPersist means a handler built a persist effect with no events.
	ErrEmptyPersist = apperrors.New("persist effect carries no events", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeEmptyPersist)

	// ErrAppendFailed means the journal did not acknowledge durability. The
	// command fails with no state change and no reply.
	ErrAppendFailed = apperrors.New("journal append failed", apperrors.CategoryExternal).
			WithTextCode(ErrCodeAppendFailed)

	// ErrNotActive means the engine was asked to do work before recovery
	// completed.
	ErrNotActive = apperrors.New("engine is not active", apperrors.CategoryConflict).
			WithTextCode(ErrCodeNotActive)

	// ErrEngineFailed means the engine stopped after an illegal fold and
	// refuses further commands for this entity.
	ErrEngineFailed = apperrors.New("engine stopped after illegal fold", apperrors.CategoryConflict).
			WithTextCode(ErrCodeEngineFailed)
)

func engineError(base *apperrors.Error, source error, metadata map[string]any) *apperrors.Error {
	err := base.Clone()
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode extracts the engine text code from err, or "" for foreign errors.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsIllegalFold reports whether err is the fatal fold condition.
func IsIllegalFold(err error) bool {
	return ErrorCode(err) == ErrCodeIllegalFold
}

// IsUnhandledCommand reports whether err is the broken reply contract
// condition.
func IsUnhandledCommand(err error) bool {
	return ErrorCode(err) == ErrCodeUnhandledCommand
}

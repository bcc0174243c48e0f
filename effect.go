package aggregate

type effectKind uint8

const (
	effectUnhandled effectKind = iota
	effectReplyOnly
	effectPersist
)

func (k effectKind) String() string {
	switch k {
	case effectReplyOnly:
		return "reply_only"
	case effectPersist:
		return "persist_and_reply"
	default:
		return "unhandled"
	}
}

// Effect is the declarative description of what handling one command should
// do. Handlers return effects as plain values; only the engine executes them.
// The three variants are mutually exclusive by construction: a persist effect
// replies after durability, a reply-only effect never persists, and an
// unhandled effect does neither.
type Effect[S any, E Event] struct {
	kind    effectKind
	events  []E
	deliver func(state S)
}

// PersistAndReply persists events and then delivers fn(state) to the caller,
// where state is the state after folding the persisted events. The reply is
// held back until the journal acknowledges durability.
func PersistAndReply[S any, E Event, R any](events []E, to *ReplyTo[R], fn func(state S) R) Effect[S, E] {
	return Effect[S, E]{
		kind:   effectPersist,
		events: events,
		deliver: func(state S) {
			to.Deliver(fn(state))
		},
	}
}

// ReplyNow delivers a reply immediately, persisting nothing. Used for pure
// reads and for business rejections, which must never emit events.
func ReplyNow[S any, E Event, R any](to *ReplyTo[R], reply R) Effect[S, E] {
	return Effect[S, E]{
		kind: effectReplyOnly,
		deliver: func(S) {
			to.Deliver(reply)
		},
	}
}

// Unhandled marks the command as having no handler in the current state. The
// engine decides whether that is a quiet drop or a defect (see ExpectingReply).
func Unhandled[S any, E Event]() Effect[S, E] {
	return Effect[S, E]{kind: effectUnhandled}
}

// Events returns the events the effect wants persisted, nil for non-persist
// effects.
func (e Effect[S, E]) Events() []E { return e.events }

// IsUnhandled reports whether the effect declares no handler matched.
func (e Effect[S, E]) IsUnhandled() bool { return e.kind == effectUnhandled }

// WillReply reports whether executing the effect delivers a reply.
func (e Effect[S, E]) WillReply() bool { return e.deliver != nil }

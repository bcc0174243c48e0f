package aggregate

import "sync"

// ExpectingReply marks commands that carry a reply obligation. Commands that
// embed a *ReplyTo satisfy it automatically; the engine uses it to decide
// whether an unhandled command is a silent drop or a broken contract.
type ExpectingReply interface {
	expectsReply()
}

// ReplyTo is the single-use, typed reply channel carried inside a
// reply-enforced command. The handling side delivers at most one reply of R;
// the issuing side receives it through Recv.
type ReplyTo[R any] struct {
	once sync.Once
	ch   chan R
}

// NewReplyTo allocates a reply channel for one command.
func NewReplyTo[R any]() *ReplyTo[R] {
	return &ReplyTo[R]{ch: make(chan R, 1)}
}

// Deliver hands the reply to the caller. Delivery is fire-and-forget: a nil
// receiver or a caller that already went away discards the reply without
// error, and repeated calls after the first are no-ops.
func (r *ReplyTo[R]) Deliver(reply R) {
	if r == nil || r.ch == nil {
		return
	}
	r.once.Do(func() {
		select {
		case r.ch <- reply:
		default:
		}
	})
}

// Recv exposes the caller side of the channel. It never blocks the handling
// side; the channel is buffered for exactly one reply.
func (r *ReplyTo[R]) Recv() <-chan R {
	if r == nil {
		return nil
	}
	return r.ch
}

func (r *ReplyTo[R]) expectsReply() {}

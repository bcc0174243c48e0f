package aggregate

import "testing"

type fakeEvent string

func (e fakeEvent) Type() string { return string(e) }

func TestEffectVariants(t *testing.T) {
	t.Run("persist and reply", func(t *testing.T) {
		to := NewReplyTo[int]()
		eff := PersistAndReply([]fakeEvent{"a", "b"}, to, func(state int) int { return state })

		if eff.IsUnhandled() {
			t.Fatal("persist effect reported unhandled")
		}
		if !eff.WillReply() {
			t.Fatal("persist effect must carry a reply")
		}
		if got := len(eff.Events()); got != 2 {
			t.Fatalf("expected 2 events, got %d", got)
		}

		eff.deliver(42)
		if got := <-to.Recv(); got != 42 {
			t.Fatalf("reply closure did not receive resulting state, got %d", got)
		}
	})

	t.Run("reply only never persists", func(t *testing.T) {
		to := NewReplyTo[string]()
		eff := ReplyNow[int, fakeEvent](to, "rejected")

		if eff.Events() != nil {
			t.Fatal("reply-only effect must not carry events")
		}
		if !eff.WillReply() {
			t.Fatal("reply-only effect must carry a reply")
		}

		eff.deliver(0)
		if got := <-to.Recv(); got != "rejected" {
			t.Fatalf("expected rejected reply, got %q", got)
		}
	})

	t.Run("unhandled", func(t *testing.T) {
		eff := Unhandled[int, fakeEvent]()
		if !eff.IsUnhandled() {
			t.Fatal("expected unhandled effect")
		}
		if eff.WillReply() {
			t.Fatal("unhandled effect must not reply")
		}
	})
}

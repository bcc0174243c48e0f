package aggregate

import "testing"

func TestReplyToDeliversExactlyOnce(t *testing.T) {
	to := NewReplyTo[string]()

	to.Deliver("first")
	to.Deliver("second")

	if got := <-to.Recv(); got != "first" {
		t.Fatalf("expected first reply, got %q", got)
	}

	select {
	case got := <-to.Recv():
		t.Fatalf("unexpected second reply %q", got)
	default:
	}
}

func TestReplyToNilReceiverDiscards(t *testing.T) {
	var to *ReplyTo[string]

	// a dropped caller is not an error
	to.Deliver("into the void")

	if to.Recv() != nil {
		t.Fatal("nil reply channel expected")
	}
}

func TestReplyToSatisfiesExpectingReply(t *testing.T) {
	type withReply struct {
		*ReplyTo[int]
	}
	type withoutReply struct{}

	if _, ok := any(withReply{}).(ExpectingReply); !ok {
		t.Fatal("command embedding ReplyTo must be reply-enforced")
	}
	if _, ok := any(withoutReply{}).(ExpectingReply); ok {
		t.Fatal("command without ReplyTo must not be reply-enforced")
	}
}

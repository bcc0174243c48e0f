package account

import "github.com/goliatone/go-aggregate"

// HandleCommand is the command dispatcher: pure, consulted once per command
// delivery, keyed first by the state variant and then by the command variant
// within that state's handler set.
//
// Closed-state policy: a closed account leaves every command unhandled. All
// account commands are reply-enforced, so the engine reports the dropped
// obligation to the host as an error instead of silently discarding it; no
// business reply is sent.
func HandleCommand(state Account, cmd Command) aggregate.Effect[Account, Event] {
	switch st := state.(type) {
	case EmptyAccount:
		if c, ok := cmd.(CreateAccount); ok {
			return persistThenConfirm(c.ReplyTo, Created{})
		}

	case OpenedAccount:
		switch c := cmd.(type) {
		case Deposit:
			return persistThenConfirm(c.ReplyTo, Deposited{Amount: c.Amount})

		case Withdraw:
			if !st.CanWithdraw(c.Amount) {
				// rejection path never emits an event
				return replyNow(c.ReplyTo, OperationResult(Rejected{Reason: "insufficient funds"}))
			}
			return persistThenConfirm(c.ReplyTo, Withdrawn{Amount: c.Amount})

		case GetBalance:
			return replyNow(c.ReplyTo, CurrentBalance{Balance: st.Balance})

		case CloseAccount:
			if st.Balance != 0 {
				return replyNow(c.ReplyTo, OperationResult(Rejected{Reason: "balance must be zero"}))
			}
			return persistThenConfirm(c.ReplyTo, Closed{})
		}
	}

	return aggregate.Unhandled[Account, Event]()
}

// persistThenConfirm persists events and confirms after durability. The
// confirmation closure receives the post-persist state, so replies whose
// payload depends on the resulting balance stay a one-line change.
func persistThenConfirm(to *aggregate.ReplyTo[OperationResult], events ...Event) aggregate.Effect[Account, Event] {
	return aggregate.PersistAndReply(events, to, func(Account) OperationResult {
		return Confirmed{}
	})
}

func replyNow[R any](to *aggregate.ReplyTo[R], reply R) aggregate.Effect[Account, Event] {
	return aggregate.ReplyNow[Account, Event](to, reply)
}

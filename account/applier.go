package account

import (
	apperrors "github.com/goliatone/go-errors"
)

// ErrCodeIllegalEvent marks a (state, event) pair outside the transition
// table. The dispatcher is the only producer of events, so hitting this means
// journal corruption or a dispatcher bug; the applier never guesses.
const ErrCodeIllegalEvent = "ACCOUNT_ILLEGAL_EVENT"

// ApplyEvent folds one event into the account state. It is pure and total:
// every pair either yields the successor state or an illegal-event error.
//
//	empty  + created   -> opened{0}
//	opened + deposited -> opened{balance+amount}
//	opened + withdrawn -> opened{balance-amount}
//	opened + closed    -> closed
func ApplyEvent(state Account, event Event) (Account, error) {
	switch st := state.(type) {
	case EmptyAccount:
		if _, ok := event.(Created); ok {
			return OpenedAccount{}, nil
		}

	case OpenedAccount:
		switch ev := event.(type) {
		case Deposited:
			return OpenedAccount{Balance: st.Balance + ev.Amount}, nil

		case Withdrawn:
			if st.Balance-ev.Amount < 0 {
				// a persisted overdraw means the log forked from truth
				return nil, illegalEvent(state, event)
			}
			return OpenedAccount{Balance: st.Balance - ev.Amount}, nil

		case Closed:
			return ClosedAccount{}, nil
		}
	}

	return nil, illegalEvent(state, event)
}

func illegalEvent(state Account, event Event) error {
	return apperrors.New("event illegal for account state", apperrors.CategoryConflict).
		WithTextCode(ErrCodeIllegalEvent).
		WithMetadata(map[string]any{
			"state": StateName(state),
			"event": event.Type(),
		})
}

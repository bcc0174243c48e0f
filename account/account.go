// Package account implements a bank account entity on top of the aggregate
// engine. The account moves through three lifecycle states, its balance is
// derived purely from journal events, and every command carries a typed reply
// obligation.
//
// Balances are kept in minor currency units (e.g. cents) as int64.
package account

// Account is the sealed state of one account entity. Exactly one variant
// exists per identity at any time; it is derived from events, never stored as
// ground truth.
type Account interface {
	isAccount()
}

// EmptyAccount is the state before creation. Carries no data.
type EmptyAccount struct{}

// OpenedAccount is the live state. Balance is never negative.
type OpenedAccount struct {
	Balance int64 `json:"balance"`
}

// ClosedAccount is terminal. No further events are legal.
type ClosedAccount struct{}

func (EmptyAccount) isAccount()  {}
func (OpenedAccount) isAccount() {}
func (ClosedAccount) isAccount() {}

// CanWithdraw reports whether withdrawing amount keeps the balance
// non-negative.
func (a OpenedAccount) CanWithdraw(amount int64) bool {
	return a.Balance-amount >= 0
}

// StateName returns a stable label for logs and errors.
func StateName(state Account) string {
	switch state.(type) {
	case EmptyAccount:
		return "empty"
	case OpenedAccount:
		return "opened"
	case ClosedAccount:
		return "closed"
	default:
		return "unknown"
	}
}

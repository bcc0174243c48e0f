package account

import "github.com/goliatone/go-aggregate"

// Event type identifiers as stored in the journal.
const (
	TypeCreated   = "account.created"
	TypeDeposited = "account.deposited"
	TypeWithdrawn = "account.withdrawn"
	TypeClosed    = "account.closed"
)

// Event is the sealed set of account facts. Events are immutable once
// emitted; they carry no reply obligation and no routing information.
type Event interface {
	aggregate.Event
	isEvent()
}

// Created records that the account came into existence with a zero balance.
type Created struct{}

// Deposited records an amount added to the balance. Amount is positive.
type Deposited struct {
	Amount int64 `json:"amount"`
}

// Withdrawn records an amount removed from the balance. Amount is positive
// and was covered by the balance at emission time.
type Withdrawn struct {
	Amount int64 `json:"amount"`
}

// Closed records the terminal transition out of a zero-balance account.
type Closed struct{}

func (Created) Type() string   { return TypeCreated }
func (Deposited) Type() string { return TypeDeposited }
func (Withdrawn) Type() string { return TypeWithdrawn }
func (Closed) Type() string    { return TypeClosed }

func (Created) isEvent()   {}
func (Deposited) isEvent() {}
func (Withdrawn) isEvent() {}
func (Closed) isEvent()    {}

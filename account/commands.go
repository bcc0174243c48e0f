package account

import (
	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-aggregate"
)

// OperationResult is the reply type for state-changing commands: either
// Confirmed or Rejected with a reason.
type OperationResult interface {
	isOperationResult()
}

// Confirmed acknowledges a successfully handled command.
type Confirmed struct{}

// Rejected is the expected, user-visible business rejection. It is delivered
// as a normal reply and never persisted.
type Rejected struct {
	Reason string
}

func (Confirmed) isOperationResult() {}
func (Rejected) isOperationResult()  {}

// CurrentBalance is the reply type used only by GetBalance.
type CurrentBalance struct {
	Balance int64
}

// Command is the sealed set of account commands. Every variant embeds a
// typed ReplyTo, so all account commands are reply-enforced: once dispatched
// they must yield exactly one reply of the declared type.
type Command interface {
	aggregate.Command
	isCommand()
}

// CreateAccount opens the account. Legal only in the empty state.
type CreateAccount struct {
	*aggregate.ReplyTo[OperationResult]
}

// Deposit adds Amount to the balance.
type Deposit struct {
	Amount int64
	*aggregate.ReplyTo[OperationResult]
}

// Withdraw removes Amount from the balance, rejected when it would go
// negative.
type Withdraw struct {
	Amount int64
	*aggregate.ReplyTo[OperationResult]
}

// GetBalance reads the balance without touching the journal.
type GetBalance struct {
	*aggregate.ReplyTo[CurrentBalance]
}

// CloseAccount closes a zero-balance account.
type CloseAccount struct {
	*aggregate.ReplyTo[OperationResult]
}

func (CreateAccount) Type() string { return "account.create" }
func (Deposit) Type() string       { return "account.deposit" }
func (Withdraw) Type() string      { return "account.withdraw" }
func (GetBalance) Type() string    { return "account.get_balance" }
func (CloseAccount) Type() string  { return "account.close" }

func (CreateAccount) Validate() error { return nil }
func (GetBalance) Validate() error    { return nil }
func (CloseAccount) Validate() error  { return nil }

func (c Deposit) Validate() error {
	return validateAmount(c.Amount)
}

func (c Withdraw) Validate() error {
	return validateAmount(c.Amount)
}

func (CreateAccount) isCommand() {}
func (Deposit) isCommand()       {}
func (Withdraw) isCommand()      {}
func (GetBalance) isCommand()    {}
func (CloseAccount) isCommand()  {}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return apperrors.New("amount must be positive", apperrors.CategoryValidation).
			WithTextCode("ACCOUNT_INVALID_AMOUNT").
			WithMetadata(map[string]any{"amount": amount})
	}
	return nil
}

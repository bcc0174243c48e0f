package account

import "github.com/goliatone/go-aggregate"

// TypeKey is the stable entity type key hosts use to route account commands.
const TypeKey = "Account"

// Engine is the concrete engine instantiation for account entities.
type Engine = aggregate.Engine[Account, Event, Command]

// Option customizes the engine wiring for one account.
type Option func(*aggregate.Config[Account, Event, Command])

// WithLogger sets the engine logger.
func WithLogger(logger aggregate.Logger) Option {
	return func(cfg *aggregate.Config[Account, Event, Command]) {
		cfg.Logger = logger
	}
}

// WithSnapshots enables snapshot-accelerated recovery.
func WithSnapshots(store aggregate.SnapshotStore[Account]) Option {
	return func(cfg *aggregate.Config[Account, Event, Command]) {
		cfg.Snapshots = store
	}
}

// NewEngine builds an aggregate engine for one account identity. The engine
// starts in the Recovering phase; the host must call Recover before the
// first Submit.
func NewEngine(id string, journal aggregate.Journal[Event], opts ...Option) (*Engine, error) {
	cfg := aggregate.Config[Account, Event, Command]{
		TypeKey:  TypeKey,
		EntityID: id,
		Initial:  EmptyAccount{},
		Handle:   HandleCommand,
		Apply:    ApplyEvent,
		Journal:  journal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return aggregate.New(cfg)
}

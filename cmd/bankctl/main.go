// bankctl is a small demo shell around the account aggregate: each invocation
// activates the account against a SQLite journal, replays its history, runs
// one command, and prints the reply.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-aggregate"
	"github.com/goliatone/go-aggregate/account"
	"github.com/goliatone/go-aggregate/host"
	"github.com/goliatone/go-aggregate/journal"
)

type accountHost = host.Host[account.Account, account.Event, account.Command]

type CLI struct {
	Config  string `help:"Host config YAML; overrides --db when set." type:"path"`
	DB      string `help:"SQLite journal file." default:"bank.db"`
	Account string `help:"Account identifier." short:"a"`
	Verbose bool   `help:"Log at debug level." short:"v"`

	Open     OpenCmd     `cmd:"" help:"Create the account."`
	Deposit  DepositCmd  `cmd:"" help:"Deposit an amount (minor units)."`
	Withdraw WithdrawCmd `cmd:"" help:"Withdraw an amount (minor units)."`
	Balance  BalanceCmd  `cmd:"" help:"Print the current balance."`
	Close    CloseCmd    `cmd:"" help:"Close the account (zero balance only)."`
	History  HistoryCmd  `cmd:"" help:"Print the event history."`
}

type app struct {
	host      *accountHost
	journal   aggregate.Journal[account.Event]
	accountID string
	timeout   time.Duration
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *app) askOperation(build func(*aggregate.ReplyTo[account.OperationResult]) account.Command) error {
	ctx, cancel := a.ctx()
	defer cancel()

	reply, err := host.Ask[account.OperationResult](ctx, a.host, a.accountID, build)
	if err != nil {
		return err
	}
	switch r := reply.(type) {
	case account.Confirmed:
		fmt.Printf("confirmed account=%s\n", a.accountID)
		return nil
	case account.Rejected:
		return fmt.Errorf("rejected: %s", r.Reason)
	default:
		return fmt.Errorf("unexpected reply %T", reply)
	}
}

type OpenCmd struct{}

func (c *OpenCmd) Run(a *app) error {
	return a.askOperation(func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
		return account.CreateAccount{ReplyTo: to}
	})
}

type DepositCmd struct {
	Amount int64 `arg:"" help:"Amount in minor units."`
}

func (c *DepositCmd) Run(a *app) error {
	return a.askOperation(func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
		return account.Deposit{Amount: c.Amount, ReplyTo: to}
	})
}

type WithdrawCmd struct {
	Amount int64 `arg:"" help:"Amount in minor units."`
}

func (c *WithdrawCmd) Run(a *app) error {
	return a.askOperation(func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
		return account.Withdraw{Amount: c.Amount, ReplyTo: to}
	})
}

type BalanceCmd struct{}

func (c *BalanceCmd) Run(a *app) error {
	ctx, cancel := a.ctx()
	defer cancel()

	reply, err := host.Ask[account.CurrentBalance](ctx, a.host, a.accountID,
		func(to *aggregate.ReplyTo[account.CurrentBalance]) account.Command {
			return account.GetBalance{ReplyTo: to}
		})
	if err != nil {
		return err
	}
	fmt.Printf("balance account=%s %d\n", a.accountID, reply.Balance)
	return nil
}

type CloseCmd struct{}

func (c *CloseCmd) Run(a *app) error {
	return a.askOperation(func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
		return account.CloseAccount{ReplyTo: to}
	})
}

type HistoryCmd struct{}

func (c *HistoryCmd) Run(a *app) error {
	ctx, cancel := a.ctx()
	defer cancel()

	return a.journal.Read(ctx, a.accountID, 0, func(seq uint64, event account.Event) error {
		switch ev := event.(type) {
		case account.Deposited:
			fmt.Printf("%4d %s amount=%d\n", seq, ev.Type(), ev.Amount)
		case account.Withdrawn:
			fmt.Printf("%4d %s amount=%d\n", seq, ev.Type(), ev.Amount)
		default:
			fmt.Printf("%4d %s\n", seq, event.Type())
		}
		return nil
	})
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("bankctl"),
		kong.Description("Event-sourced bank account demo on a SQLite journal."),
		kong.UsageOnError(),
	)

	cfg := host.DefaultConfig()
	if cli.Config != "" {
		loaded, err := host.LoadConfig(cli.Config)
		kctx.FatalIfErrorf(err)
		cfg = loaded
	} else {
		cfg.Journal.Driver = host.DriverSQLite
		cfg.Journal.DSN = cli.DB
	}

	level := "warn"
	if cli.Verbose {
		level = "debug"
	}
	logger := host.NewGlogAdapter(glog.NewLogger(glog.WithLevel(level)))

	j, snaps, cleanup, err := buildStores(cfg)
	kctx.FatalIfErrorf(err)
	defer cleanup()

	var factory host.EngineFactory[account.Account, account.Event, account.Command] = func(id string) (*account.Engine, error) {
		opts := []account.Option{account.WithLogger(logger)}
		if snaps != nil {
			opts = append(opts, account.WithSnapshots(snaps))
		}
		return account.NewEngine(id, j, opts...)
	}

	hostOpts := []host.Option[account.Account, account.Event, account.Command]{
		host.WithLogger[account.Account, account.Event, account.Command](logger),
		host.WithMailboxDepth[account.Account, account.Event, account.Command](cfg.MailboxDepth),
	}
	if snaps != nil && cfg.Snapshot.Schedule != "" {
		hostOpts = append(hostOpts,
			host.WithSnapshotSchedule[account.Account, account.Event, account.Command](cfg.Snapshot.Schedule))
	}

	h, err := host.New(factory, hostOpts...)
	kctx.FatalIfErrorf(err)
	defer h.Close()

	id := cli.Account
	if id == "" {
		if kctx.Command() == "open" {
			id = uuid.NewString()
		} else {
			kctx.Fatalf("--account is required")
		}
	}

	err = kctx.Run(&app{host: h, journal: j, accountID: id, timeout: 10 * time.Second})

	// flush the latest state so the next invocation recovers from a snapshot
	if err == nil && snaps != nil {
		if serr := h.SnapshotAll(context.Background()); serr != nil {
			logger.Warn("snapshot on exit: %v", serr)
		}
	}
	kctx.FatalIfErrorf(err)
}

func buildStores(cfg host.Config) (aggregate.Journal[account.Event], aggregate.SnapshotStore[account.Account], func(), error) {
	if cfg.Journal.Driver == host.DriverMemory {
		return journal.NewMemory[account.Event](), nil, func() {}, nil
	}

	db, err := sql.Open("sqlite3", cfg.Journal.DSN)
	if err != nil {
		return nil, nil, func() {}, err
	}
	cleanup := func() { db.Close() }

	j, err := journal.NewSQLite[account.Event](db, account.Codec{},
		journal.WithTable[account.Event](cfg.Journal.Table))
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}

	snaps, err := journal.NewSQLiteSnapshots[account.Account](db, account.StateCodec{},
		journal.WithSnapshotTable[account.Account](cfg.Snapshot.Table))
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}

	return j, snaps, cleanup, nil
}

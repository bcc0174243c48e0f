package host_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-aggregate"
	"github.com/goliatone/go-aggregate/account"
	"github.com/goliatone/go-aggregate/host"
	"github.com/goliatone/go-aggregate/journal"
)

type accountHost = host.Host[account.Account, account.Event, account.Command]

func newAccountHost(t *testing.T, events aggregate.Journal[account.Event], opts ...account.Option) *accountHost {
	t.Helper()
	var factory host.EngineFactory[account.Account, account.Event, account.Command] = func(id string) (*account.Engine, error) {
		return account.NewEngine(id, events, opts...)
	}
	h, err := host.New(factory)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func openAccount(t *testing.T, h *accountHost, id string) {
	t.Helper()
	reply, err := host.Ask[account.OperationResult](context.Background(), h, id,
		func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
			return account.CreateAccount{ReplyTo: to}
		})
	require.NoError(t, err)
	require.Equal(t, account.Confirmed{}, reply)
}

func TestHostAskEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newAccountHost(t, journal.NewMemory[account.Event]())

	openAccount(t, h, "h-1")

	deposit, err := host.Ask[account.OperationResult](ctx, h, "h-1",
		func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
			return account.Deposit{Amount: 125, ReplyTo: to}
		})
	require.NoError(t, err)
	assert.Equal(t, account.Confirmed{}, deposit)

	balance, err := host.Ask[account.CurrentBalance](ctx, h, "h-1",
		func(to *aggregate.ReplyTo[account.CurrentBalance]) account.Command {
			return account.GetBalance{ReplyTo: to}
		})
	require.NoError(t, err)
	assert.Equal(t, account.CurrentBalance{Balance: 125}, balance)
}

// Concurrent submitters against one entity: the mailbox serializes them, so
// every accepted deposit lands and the total is exact.
func TestHostSerializesPerEntity(t *testing.T) {
	ctx := context.Background()
	h := newAccountHost(t, journal.NewMemory[account.Event]())

	openAccount(t, h, "h-conc")

	const submitters = 32
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := host.Ask[account.OperationResult](ctx, h, "h-conc",
				func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
					return account.Deposit{Amount: 1, ReplyTo: to}
				})
			assert.NoError(t, err)
			assert.Equal(t, account.Confirmed{}, reply)
		}()
	}
	wg.Wait()

	balance, err := host.Ask[account.CurrentBalance](ctx, h, "h-conc",
		func(to *aggregate.ReplyTo[account.CurrentBalance]) account.Command {
			return account.GetBalance{ReplyTo: to}
		})
	require.NoError(t, err)
	assert.Equal(t, account.CurrentBalance{Balance: submitters}, balance)
}

func TestHostIsolatesEntities(t *testing.T) {
	ctx := context.Background()
	h := newAccountHost(t, journal.NewMemory[account.Event]())

	openAccount(t, h, "left")
	openAccount(t, h, "right")

	_, err := host.Ask[account.OperationResult](ctx, h, "left",
		func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
			return account.Deposit{Amount: 10, ReplyTo: to}
		})
	require.NoError(t, err)

	balance, err := host.Ask[account.CurrentBalance](ctx, h, "right",
		func(to *aggregate.ReplyTo[account.CurrentBalance]) account.Command {
			return account.GetBalance{ReplyTo: to}
		})
	require.NoError(t, err)
	assert.Equal(t, account.CurrentBalance{Balance: 0}, balance)
}

func TestHostActivationFailure(t *testing.T) {
	boom := errors.New("journal unavailable")
	var factory host.EngineFactory[account.Account, account.Event, account.Command] = func(id string) (*account.Engine, error) {
		return nil, boom
	}
	h, err := host.New(factory)
	require.NoError(t, err)
	defer h.Close()

	to := aggregate.NewReplyTo[account.OperationResult]()
	_, err = h.Submit(context.Background(), "broken", account.CreateAccount{ReplyTo: to})
	require.Error(t, err)
	assert.Equal(t, host.ErrCodeActivation, aggregate.ErrorCode(err))

	// the failed entity keeps answering with the same error
	to2 := aggregate.NewReplyTo[account.OperationResult]()
	_, err = h.Submit(context.Background(), "broken", account.CreateAccount{ReplyTo: to2})
	require.Error(t, err)
	assert.Equal(t, host.ErrCodeActivation, aggregate.ErrorCode(err))
}

func TestHostClosedRejectsSubmits(t *testing.T) {
	h := newAccountHost(t, journal.NewMemory[account.Event]())
	openAccount(t, h, "h-close")
	h.Close()

	to := aggregate.NewReplyTo[account.OperationResult]()
	_, err := h.Submit(context.Background(), "h-close", account.Deposit{Amount: 1, ReplyTo: to})
	require.Error(t, err)
	assert.Equal(t, host.ErrCodeHostClosed, aggregate.ErrorCode(err))
}

func TestHostNilFactoryRejected(t *testing.T) {
	_, err := host.New[account.Account, account.Event, account.Command](nil)
	require.Error(t, err)
}

// Snapshot through the host, then bring up a second host over the same stores
// and verify recovery lands on the snapshotted state plus the tail events.
func TestHostSnapshotAllAndRecover(t *testing.T) {
	ctx := context.Background()
	events := journal.NewMemory[account.Event]()
	snaps := journal.NewMemorySnapshots[account.Account]()

	first := newAccountHost(t, events, account.WithSnapshots(snaps))
	openAccount(t, first, "h-snap")
	_, err := host.Ask[account.OperationResult](ctx, first, "h-snap",
		func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
			return account.Deposit{Amount: 300, ReplyTo: to}
		})
	require.NoError(t, err)
	require.NoError(t, first.SnapshotAll(ctx))

	_, err = host.Ask[account.OperationResult](ctx, first, "h-snap",
		func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
			return account.Withdraw{Amount: 50, ReplyTo: to}
		})
	require.NoError(t, err)
	first.Close()

	_, seq, ok, err := snaps.LoadSnapshot(ctx, "h-snap")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), seq)

	second := newAccountHost(t, events, account.WithSnapshots(snaps))
	balance, err := host.Ask[account.CurrentBalance](ctx, second, "h-snap",
		func(to *aggregate.ReplyTo[account.CurrentBalance]) account.Command {
			return account.GetBalance{ReplyTo: to}
		})
	require.NoError(t, err)
	assert.Equal(t, account.CurrentBalance{Balance: 250}, balance)
}

// gatedJournal holds recovery until the gate opens, keeping the entity's
// mailbox backed up so shutdown races can be provoked deliberately.
type gatedJournal struct {
	*journal.Memory[account.Event]
	gate chan struct{}
}

func (g *gatedJournal) Read(ctx context.Context, id string, fromSeq uint64, fn func(uint64, account.Event) error) error {
	<-g.gate
	return g.Memory.Read(ctx, id, fromSeq, fn)
}

// A Submit parked on a full mailbox while Close runs must fail with the
// host-closed error, never panic on a closed channel.
func TestHostCloseWhileSubmitParked(t *testing.T) {
	gate := make(chan struct{})
	gated := &gatedJournal{Memory: journal.NewMemory[account.Event](), gate: gate}

	var factory host.EngineFactory[account.Account, account.Event, account.Command] = func(id string) (*account.Engine, error) {
		return account.NewEngine(id, gated)
	}
	h, err := host.New(factory,
		host.WithMailboxDepth[account.Account, account.Event, account.Command](1))
	require.NoError(t, err)

	errs := make(chan error, 2)
	submit := func() {
		defer func() {
			if r := recover(); r != nil {
				errs <- fmt.Errorf("submit panicked: %v", r)
			}
		}()
		to := aggregate.NewReplyTo[account.OperationResult]()
		_, serr := h.Submit(context.Background(), "parked", account.CreateAccount{ReplyTo: to})
		errs <- serr
	}

	go submit() // fills the depth-1 mailbox while recovery is gated
	time.Sleep(20 * time.Millisecond)
	go submit() // parks on the mailbox send
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	for i := 0; i < 2; i++ {
		serr := <-errs
		require.Error(t, serr)
		assert.Equal(t, host.ErrCodeHostClosed, aggregate.ErrorCode(serr))
	}

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestHostScheduledSnapshotSweep(t *testing.T) {
	ctx := context.Background()
	events := journal.NewMemory[account.Event]()
	snaps := journal.NewMemorySnapshots[account.Account]()

	var factory host.EngineFactory[account.Account, account.Event, account.Command] = func(id string) (*account.Engine, error) {
		return account.NewEngine(id, events, account.WithSnapshots(snaps))
	}
	h, err := host.New(factory,
		host.WithSnapshotSchedule[account.Account, account.Event, account.Command]("@every 1s"))
	require.NoError(t, err)
	defer h.Close()

	openAccount(t, h, "h-sweep")
	_, err = host.Ask[account.OperationResult](ctx, h, "h-sweep",
		func(to *aggregate.ReplyTo[account.OperationResult]) account.Command {
			return account.Deposit{Amount: 40, ReplyTo: to}
		})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, seq, ok, lerr := snaps.LoadSnapshot(ctx, "h-sweep")
		return lerr == nil && ok && seq == 2 && state == account.Account(account.OpenedAccount{Balance: 40})
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHostInvalidSnapshotScheduleRejected(t *testing.T) {
	var factory host.EngineFactory[account.Account, account.Event, account.Command] = func(id string) (*account.Engine, error) {
		return account.NewEngine(id, journal.NewMemory[account.Event]())
	}
	_, err := host.New(factory,
		host.WithSnapshotSchedule[account.Account, account.Event, account.Command]("not a schedule"))
	require.Error(t, err)
}

func TestHostSubmitAbandonedContext(t *testing.T) {
	h := newAccountHost(t, journal.NewMemory[account.Event]())
	openAccount(t, h, "h-ctx")

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	to := aggregate.NewReplyTo[account.OperationResult]()
	_, err := h.Submit(canceled, "h-ctx", account.Deposit{Amount: 1, ReplyTo: to})
	require.Error(t, err)
	assert.Equal(t, host.ErrCodeMailboxCanceled, aggregate.ErrorCode(err))
}

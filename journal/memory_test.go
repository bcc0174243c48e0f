package journal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-aggregate/account"
	"github.com/goliatone/go-aggregate/journal"
)

func TestMemoryAppendRead(t *testing.T) {
	ctx := context.Background()
	mem := journal.NewMemory[account.Event]()

	require.NoError(t, mem.Append(ctx, "m-1", []account.Event{account.Created{}}))
	require.NoError(t, mem.Append(ctx, "m-1", []account.Event{
		account.Deposited{Amount: 10},
		account.Withdrawn{Amount: 4},
	}))

	var (
		seqs   []uint64
		events []account.Event
	)
	require.NoError(t, mem.Read(ctx, "m-1", 0, func(seq uint64, ev account.Event) error {
		seqs = append(seqs, seq)
		events = append(events, ev)
		return nil
	}))

	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	assert.Equal(t, []account.Event{
		account.Created{},
		account.Deposited{Amount: 10},
		account.Withdrawn{Amount: 4},
	}, events)

	high, err := mem.HighestSequence(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), high)
}

func TestMemoryReadFromSequence(t *testing.T) {
	ctx := context.Background()
	mem := journal.NewMemory[account.Event]()
	require.NoError(t, mem.Append(ctx, "m-2", []account.Event{
		account.Created{},
		account.Deposited{Amount: 10},
		account.Deposited{Amount: 20},
	}))

	var seen []account.Event
	require.NoError(t, mem.Read(ctx, "m-2", 2, func(_ uint64, ev account.Event) error {
		seen = append(seen, ev)
		return nil
	}))
	assert.Equal(t, []account.Event{account.Deposited{Amount: 20}}, seen)
}

func TestMemoryEmptyAppendRejected(t *testing.T) {
	mem := journal.NewMemory[account.Event]()
	err := mem.Append(context.Background(), "m-3", nil)
	require.Error(t, err)
}

func TestMemoryReadStopsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	mem := journal.NewMemory[account.Event]()
	require.NoError(t, mem.Append(ctx, "m-4", []account.Event{
		account.Created{},
		account.Deposited{Amount: 1},
	}))

	boom := errors.New("stop here")
	calls := 0
	err := mem.Read(ctx, "m-4", 0, func(uint64, account.Event) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestMemoryStreamsAreIsolated(t *testing.T) {
	ctx := context.Background()
	mem := journal.NewMemory[account.Event]()
	require.NoError(t, mem.Append(ctx, "a", []account.Event{account.Created{}}))

	high, err := mem.HighestSequence(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, high)
	assert.Empty(t, mem.Events("b"))
}

func TestMemorySnapshots(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemorySnapshots[account.Account]()

	_, _, ok, err := store.LoadSnapshot(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveSnapshot(ctx, "s-1", 3, account.OpenedAccount{Balance: 70}))
	require.NoError(t, store.SaveSnapshot(ctx, "s-1", 5, account.OpenedAccount{Balance: 40}))

	state, seq, ok, err := store.LoadSnapshot(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), seq)
	assert.Equal(t, account.OpenedAccount{Balance: 40}, state)
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package tokens_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/token-checkin/internal/testutil"
	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Status(t *testing.T) {
	store := tokens.NewStore([]string{"12345678"}, nil)

	assert.Equal(t, tokens.Unused, store.Status("12345678"))
	assert.Equal(t, tokens.Unknown, store.Status("87654321"))

	require.NoError(t, store.Redeem(context.Background(), "12345678", "1"))

	assert.Equal(t, tokens.Used, store.Status("12345678"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unused", tokens.Unused.String())
	assert.Equal(t, "used", tokens.Used.String())
	assert.Equal(t, "unknown", tokens.Unknown.String())
}

func TestStore_IsRedeemable(t *testing.T) {
	store := tokens.NewStore([]string{"12345678", "1234"}, nil)

	assert.True(t, store.IsRedeemable("12345678"))
	assert.True(t, store.IsRedeemable("1234"))
	assert.False(t, store.IsRedeemable("87654321"))
	assert.False(t, store.IsRedeemable(""))

	require.NoError(t, store.Redeem(context.Background(), "12345678", "1"))
	assert.False(t, store.IsRedeemable("12345678"))
}

func TestStore_IsRedeemable_RejectsMalformedEvenIfPooled(t *testing.T) {
	store := tokens.NewStore([]string{"123456789", "1234a678"}, nil)

	assert.False(t, store.IsRedeemable("123456789"))
	assert.False(t, store.IsRedeemable("1234a678"))
}

func TestStore_CheckIsReadOnly(t *testing.T) {
	store := tokens.NewStore([]string{"12345678"}, nil)

	for i := 0; i < 5; i++ {
		assert.NoError(t, store.Check("12345678"))
	}

	assert.Equal(t, 1, store.Remaining())
	assert.Equal(t, 0, store.Redeemed())
	assert.ErrorIs(t, store.Check("87654321"), tokens.ErrNotFound)
}

func TestStore_Redeem(t *testing.T) {
	rec := &testutil.MemoryRecorder{}
	store := tokens.NewStore([]string{"12345678"}, rec)
	ctx := context.Background()

	err := store.Redeem(ctx, "12345678", "999")

	require.NoError(t, err)
	assert.Equal(t, 0, store.Remaining())
	assert.Equal(t, 1, store.Redeemed())

	records := rec.Snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "12345678", records[0].Token)
	assert.Equal(t, "999", records[0].StudentID)
	assert.False(t, records[0].RedeemedAt.IsZero())

	err = store.Redeem(ctx, "12345678", "999")
	assert.ErrorIs(t, err, tokens.ErrAlreadyUsed)
	assert.Len(t, rec.Snapshot(), 1)
}

func TestStore_Redeem_NotFound(t *testing.T) {
	rec := &testutil.MemoryRecorder{}
	store := tokens.NewStore([]string{"12345678"}, rec)

	err := store.Redeem(context.Background(), "87654321", "1")

	assert.ErrorIs(t, err, tokens.ErrNotFound)
	assert.Empty(t, rec.Snapshot())
	assert.Equal(t, 1, store.Remaining())
}

func TestStore_Redeem_RecordFailureKeepsTokenUnused(t *testing.T) {
	diskFull := errors.New("disk full")
	rec := &testutil.MemoryRecorder{Err: diskFull}
	store := tokens.NewStore([]string{"12345678"}, rec)

	err := store.Redeem(context.Background(), "12345678", "1")

	require.Error(t, err)
	assert.ErrorIs(t, err, tokens.ErrRecordFailed)
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, tokens.Unused, store.Status("12345678"))

	rec.Err = nil
	require.NoError(t, store.Redeem(context.Background(), "12345678", "1"))
	assert.Equal(t, tokens.Used, store.Status("12345678"))
}

func TestStore_Redeem_ConcurrentSameToken(t *testing.T) {
	rec := &testutil.MemoryRecorder{}
	store := tokens.NewStore([]string{"11112222"}, rec)
	ctx := context.Background()

	const n = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		used      int
	)

	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := store.Redeem(ctx, "11112222", "42")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, tokens.ErrAlreadyUsed):
				used++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, used)
	assert.Len(t, rec.Snapshot(), 1)
}

func TestStore_PoolAndLedgerStayDisjoint(t *testing.T) {
	issued := []string{"11111111", "22222222", "33333333", "44444444"}
	store := tokens.NewStore(issued, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, tok := range issued {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(tok string) {
				defer wg.Done()
				_ = store.Redeem(ctx, tok, "1")
				_ = store.Check(tok)
			}(tok)
		}
	}
	wg.Wait()

	assert.Equal(t, len(issued), store.Remaining()+store.Redeemed())
	for _, tok := range issued {
		assert.Equal(t, tokens.Used, store.Status(tok))
	}
}

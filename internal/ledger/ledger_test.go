package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"reward-guard-backend/internal/models"
)

const subject = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

func newTestLedger(t *testing.T) (*Ledger, *MemoryStore) {
	store := NewMemoryStore()
	return NewLedger(store, store, zaptest.NewLogger(t)), store
}

func recordReward(t *testing.T, l *Ledger, resource, amount string) {
	_, created, err := l.RecordReward(context.Background(), subject, resource, decimal.RequireFromString(amount))
	require.NoError(t, err)
	require.True(t, created)
}

func TestInitIsIdempotent(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	recordReward(t, l, "faucet", "1")

	first, err := l.Init(ctx, subject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NotEmpty(t, first.Reference)
	assert.Equal(t, models.ClaimStateReferenced, first.State())

	second, err := l.Init(ctx, subject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, first.Reference, second.Reference, "repeat init must return the same reference")
	assert.True(t, first.Amount.Equal(second.Amount))
}

func TestInitAmountMismatchLeavesPending(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	recordReward(t, l, "faucet", "1")

	_, err := l.Init(ctx, subject, "faucet", decimal.NewFromInt(2))
	require.Error(t, err)
	assert.Equal(t, models.KindAmountMismatch, models.KindOf(err))

	record, err := l.GetClaim(ctx, subject, "faucet")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatePending, record.State())
}

func TestInitUnknownReward(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.Init(context.Background(), subject, "faucet", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Equal(t, models.KindRewardNotFound, models.KindOf(err))
}

func TestConfirmFlow(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	recordReward(t, l, "faucet", "1")

	initial, err := l.Init(ctx, subject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)

	claimed, err := l.Confirm(ctx, initial.Reference)
	require.NoError(t, err)
	assert.Equal(t, subject, claimed.Subject)
	assert.Equal(t, models.ClaimStateClaimed, claimed.State())

	_, err = l.Confirm(ctx, initial.Reference)
	require.Error(t, err)
	assert.Equal(t, models.KindAlreadyClaimed, models.KindOf(err))

	// Init after claim is rejected too; the state machine never moves back.
	_, err = l.Init(ctx, subject, "faucet", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Equal(t, models.KindAlreadyClaimed, models.KindOf(err))
}

func TestConfirmUnknownReferenceMutatesNothing(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	recordReward(t, l, "faucet", "1")

	_, err := l.Confirm(ctx, "11111111-2222-3333-4444-555555555555")
	require.Error(t, err)
	assert.Equal(t, models.KindReferenceNotFound, models.KindOf(err))

	record, err := l.GetClaim(ctx, subject, "faucet")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatePending, record.State())
}

func TestConcurrentInitConvergesOnOneReference(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	recordReward(t, l, "faucet", "1")

	const workers = 16
	references := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := l.Init(ctx, subject, "faucet", decimal.NewFromInt(1))
			if assert.NoError(t, err) {
				references[i] = record.Reference
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, references[0], references[i], "all racers must see one reference")
	}
}

func TestAttachSettlement(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	recordReward(t, l, "faucet", "1")

	initial, err := l.Init(ctx, subject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)
	claimed, err := l.Confirm(ctx, initial.Reference)
	require.NoError(t, err)

	l.AttachSettlement(ctx, claimed, "0xdeadbeef")

	record, err := l.GetClaim(ctx, subject, "faucet")
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", record.SettlementTxHash)
	assert.True(t, record.Claimed)
}

func TestCooldown(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	window := 24 * time.Hour

	onCooldown, remaining, err := l.CooldownCheck(ctx, subject, window)
	require.NoError(t, err)
	assert.False(t, onCooldown)
	assert.Zero(t, remaining)

	require.NoError(t, l.StartCooldown(ctx, subject))

	onCooldown, remaining, err = l.CooldownCheck(ctx, subject, window)
	require.NoError(t, err)
	assert.True(t, onCooldown)
	assert.Greater(t, remaining, 23*time.Hour)

	// Advance past the window.
	l.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	onCooldown, _, err = l.CooldownCheck(ctx, subject, window)
	require.NoError(t, err)
	assert.False(t, onCooldown)
}

func TestRecordRewardNeverOverwrites(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	recordReward(t, l, "faucet", "1")

	initial, err := l.Init(ctx, subject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)

	existing, created, err := l.RecordReward(ctx, subject, "faucet", decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, initial.Reference, existing.Reference)
	assert.True(t, existing.Amount.Equal(decimal.NewFromInt(1)))
}

package closer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/ledger"
	"solana-spot-engine/internal/storage"
)

func newTestCloser(t *testing.T, cfg config.CloserConfig) (*Closer, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	lg := ledger.New(db)
	return New(db, lg, cfg), db
}

func seedBuyLot(t *testing.T, db *storage.DB, lg *ledger.Ledger, mint string, qty, unitPrice float64) {
	t.Helper()
	require.NoError(t, lg.InsertTradeLot(&storage.TradeLot{
		TxSig: "buy-" + mint, Timestamp: 1, Mint: mint, Side: "buy",
		Quantity: qty, USDValue: qty * unitPrice, UnitPriceUSD: unitPrice,
	}))
}

// S4: 1000 tokens at $1, core_loss_exit. First sell fills 990, 10 residual
// ($10) triggers one retry at doubled slippage that clears the position.
func TestClosePosition_RetryClearsResidual(t *testing.T) {
	cfg := config.CloserConfig{
		DustThresholdUSD: 1, MinQty: 0.000001, MinUSD: 0.05,
		MaxRetries: 5, ForceExactRetries: 10, RetryDelayMs: 1,
		InitialSlippageBps: 100, MaxSlippageBps: 500,
	}
	c, db := newTestCloser(t, cfg)
	lg := ledger.New(db)
	mint := "MintS4"
	seedBuyLot(t, db, lg, mint, 1000, 1.0)
	require.NoError(t, db.UpsertPositionTracking(&storage.PositionTrack{Mint: mint, SlotType: "core"}))

	balances := []uint64{1000_000000, 10_000000, 0}
	callIdx := 0
	readBalance := func(ctx context.Context, m string) (uint64, error) {
		b := balances[callIdx]
		if callIdx < len(balances)-1 {
			callIdx++
		}
		return b, nil
	}

	swapCalls := 0
	swap := func(ctx context.Context, m string, amount uint64, slippageBps int, outputIsUSDC bool) (string, uint64, float64, error) {
		swapCalls++
		proceeds := float64(amount) / 1e6 * 1.0
		return "tx-sig", amount, proceeds, nil
	}

	result, err := c.ClosePosition(context.Background(), mint, ReasonCoreLossExit, readBalance, swap, 6, func() float64 { return 1.0 }, 1000)
	require.NoError(t, err)
	require.True(t, result.FullyClosed)
	require.Equal(t, "triggered_cleanup", result.Status)
	require.Equal(t, 1, result.Retried)
	require.Equal(t, 2, swapCalls)

	_, err = db.GetPositionTracking(mint)
	require.NoError(t, err)
}

// Invariant 7: when the invariant loop exhausts max_retries with residual
// still above threshold, a partial_exit_remaining event is recorded and
// fully_closed=false.
func TestClosePosition_ExhaustsRetriesRecordsPartialExit(t *testing.T) {
	cfg := config.CloserConfig{
		DustThresholdUSD: 1, MinQty: 0.000001, MinUSD: 0.05,
		MaxRetries: 2, ForceExactRetries: 0, RetryDelayMs: 1,
		InitialSlippageBps: 100, MaxSlippageBps: 500,
	}
	c, db := newTestCloser(t, cfg)
	lg := ledger.New(db)
	mint := "MintStuck"
	seedBuyLot(t, db, lg, mint, 1000, 1.0)

	readBalance := func(ctx context.Context, m string) (uint64, error) {
		return 500_000000, nil // residual never clears: $500 stays > $1 dust threshold
	}
	swap := func(ctx context.Context, m string, amount uint64, slippageBps int, outputIsUSDC bool) (string, uint64, float64, error) {
		return "tx-sig", 0, 0, nil // swap "succeeds" but nothing actually sells
	}

	result, err := c.ClosePosition(context.Background(), mint, ReasonCoreLossExit, readBalance, swap, 6, func() float64 { return 1.0 }, 1000)
	require.NoError(t, err)
	require.False(t, result.FullyClosed)
	require.Equal(t, "failed", result.Status)

	events, err := db.GetPnLEvents(mint, 50)
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.EventType == "partial_exit_remaining" {
			found = true
		}
	}
	require.True(t, found)
}

func TestClosePosition_AlreadyDust(t *testing.T) {
	cfg := config.CloserConfig{DustThresholdUSD: 1, MinQty: 0.000001, MinUSD: 0.05, MaxRetries: 3, RetryDelayMs: 1, InitialSlippageBps: 100, MaxSlippageBps: 500}
	c, _ := newTestCloser(t, cfg)
	readBalance := func(ctx context.Context, m string) (uint64, error) { return 0, nil }
	swap := func(ctx context.Context, m string, amount uint64, slippageBps int, outputIsUSDC bool) (string, uint64, float64, error) {
		t.Fatal("swap should not be called when balance is already dust")
		return "", 0, 0, nil
	}
	result, err := c.ClosePosition(context.Background(), "MintEmpty", ReasonTakeProfit, readBalance, swap, 6, func() float64 { return 1.0 }, 1000)
	require.NoError(t, err)
	require.True(t, result.FullyClosed)
	require.Equal(t, "closed", result.Status)
}

func TestIsProtective(t *testing.T) {
	require.True(t, IsProtective(ReasonCoreLossExit))
	require.True(t, IsProtective(ReasonFlashClose))
	require.False(t, IsProtective(ReasonTakeProfit))
	require.False(t, IsProtective(ReasonScoutTakeProfit))
}

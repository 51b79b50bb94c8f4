package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/closer"
	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/orphan"
	"solana-spot-engine/internal/ranking"
	"solana-spot-engine/internal/sizer"
	"solana-spot-engine/internal/storage"
)

func newTestManager(t *testing.T) *config.Manager {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
risk:
  scout_slots: 5
  core_slots: 3
  daily_entry_limit: 20
sizer:
  min_pool_tvl_scout: 0
  min_5m_volume_scout: 0
`), 0644))
	mgr, err := config.NewManager(path)
	require.NoError(t, err)
	return mgr
}

func newTestEngine(t *testing.T) (*Engine, *storage.DB, *config.Manager) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mgr := newTestManager(t)
	e := New(db, mgr, prometheus.NewRegistry())
	return e, db, mgr
}

func passingCollaborators(price float64) Collaborators {
	return Collaborators{
		LastPrices:         func() map[string]float64 { return map[string]float64{"MintA": price} },
		PriceUSD:           func(mint string) float64 { return price },
		SolPriceUSD:        func() float64 { return 150.0 },
		EquityUSD:          func() float64 { return 1000.0 },
		SolBalanceLamports: func() (uint64, error) { return 1_000_000_000, nil },
		WalletHoldings:     func() []orphan.Holding { return nil },
		Decimals:           func(mint string) int { return 6 },
		MarketStats: func(mint string) MarketSnapshot {
			return MarketSnapshot{ScannerScore: 8, Signal: 0.8, Regime: ranking.RegimeTrend}
		},
		WhaleConfirm:       func(mint string) (bool, error) { return true, nil },
		SellabilityProbe:   func(mint string, spendSol float64) (bool, error) { return true, nil },
		ExitLiquidityProbe: func(mint string, qty float64) (bool, error) { return true, nil },
		Sweep: func(mint string, mode sizer.Mode) sizer.SweepSample {
			return func(multiplier float64) (float64, float64, float64, error) { return 0.97, 0.01, 0.01, nil }
		},
		PoolTVLUSD:  func(mint string) float64 { return 100000 },
		Vol5mUSD:    func(mint string) float64 { return 10000 },
		Vol1hUSD:    func(mint string) float64 { return 50000 },
		ExecuteSwap: func(mint string, spendSol float64) (string, float64, error) { return "tx-buy-1", 1000, nil },
		ReadBalance: func(ctx context.Context, mint string) (uint64, error) { return 0, nil },
		Swap: func(ctx context.Context, mint string, amount uint64, slippageBps int, outputIsUSDC bool) (string, uint64, float64, error) {
			return "tx-sell-1", amount, float64(amount) / 1e6 * price, nil
		},
	}
}

func seedBars(t *testing.T, db *storage.DB, mint string, minutes int, price float64) {
	t.Helper()
	for i := 0; i < minutes; i++ {
		_, err := db.InsertPriceBarIfAbsent(mint, int64(i), price)
		require.NoError(t, err)
	}
}

func TestTick_QueuesCandidateFromUniverse(t *testing.T) {
	e, db, _ := newTestEngine(t)

	require.NoError(t, db.AddToUniverse(&storage.UniverseMember{Mint: "MintA", Symbol: "A", AddedAt: 0, Score: 5}))

	deps := passingCollaborators(1.0)
	summary, err := e.Tick(context.Background(), 100, "tick-1", deps)
	require.NoError(t, err)
	require.Equal(t, 1, summary.CandidateCount)
	require.Equal(t, 1, summary.QueuedTargets)

	item, err := db.GetScoutQueueItem("MintA")
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, "PENDING", item.Status)
}

func TestTick_BuysQueuedCandidateOnceBarsWarm(t *testing.T) {
	e, db, mgr := newTestEngine(t)
	cfg := mgr.Get()

	require.NoError(t, db.AddToUniverse(&storage.UniverseMember{Mint: "MintA", Symbol: "A", AddedAt: 0, Score: 5}))
	seedBars(t, db, "MintA", cfg.Bars.TrendSMAMinutes, 1.0)

	deps := passingCollaborators(1.0)
	now := int64(cfg.Bars.TrendSMAMinutes * 60)

	_, err := e.Tick(context.Background(), now, "tick-1", deps)
	require.NoError(t, err)

	seedBars(t, db, "MintA", cfg.Bars.TrendSMAMinutes, 1.0)
	deps = passingCollaborators(1.2)
	summary, err := e.Tick(context.Background(), now+60, "tick-2", deps)
	require.NoError(t, err)
	require.Equal(t, "bought", summary.ScoutOutcome)

	position, err := db.GetPositionTracking("MintA")
	require.NoError(t, err)
	require.NotNil(t, position)
}

func TestTick_RotatesOutScoutStopLoss(t *testing.T) {
	e, db, _ := newTestEngine(t)

	require.NoError(t, db.UpsertPositionTracking(&storage.PositionTrack{
		Mint: "MintA", EntryPrice: 1.0, PeakPrice: 1.0, LastPrice: 0.9, TotalTokens: 1000, SlotType: "scout",
	}))
	require.NoError(t, db.InsertPositionLot(&storage.PositionLot{
		LotID: "lot-1", Mint: "MintA", OriginalQty: 1000, RemainingQty: 1000, CostBasisUSD: 1000, UnitCostUSD: 1.0, EntryTimestamp: 0,
	}))

	deps := passingCollaborators(0.90) // -10% triggers scout stop loss (threshold 7%)
	deps.ReadBalance = func(ctx context.Context, mint string) (uint64, error) { return 1000 * 1_000_000, nil }

	summary, err := e.Tick(context.Background(), 1000, "tick-1", deps)
	require.NoError(t, err)
	require.Equal(t, ranking.ActionScoutStopLossExit, summary.RotationAction)

	locked, err := e.lock.IsLiquidating("MintA", 1000)
	require.NoError(t, err)
	require.True(t, locked)
}

func TestTick_ReconcilesOrphanHolding(t *testing.T) {
	e, db, _ := newTestEngine(t)

	require.NoError(t, db.UpsertPositionTracking(&storage.PositionTrack{
		Mint: "MintOrphan", EntryPrice: 1.0, PeakPrice: 1.0, LastPrice: 1.0, TotalTokens: 500, SlotType: "scout",
	}))
	require.NoError(t, db.InsertPositionLot(&storage.PositionLot{
		LotID: "lot-orphan", Mint: "MintOrphan", OriginalQty: 500, RemainingQty: 500, CostBasisUSD: 500, UnitCostUSD: 1.0, EntryTimestamp: 0,
	}))

	deps := passingCollaborators(1.0)
	deps.ReadBalance = func(ctx context.Context, mint string) (uint64, error) { return 0, nil }
	deps.WalletHoldings = func() []orphan.Holding {
		return []orphan.Holding{{Mint: "MintOrphan", Symbol: "O", USDValue: 500}}
	}

	graceTicks := e.cfgMgr.Get().Orphan.GraceTicks
	var summary TickSummary
	var err error
	for i := 0; i < graceTicks; i++ {
		summary, err = e.Tick(context.Background(), int64(1000+i), "tick", deps)
		require.NoError(t, err)
	}
	require.Equal(t, 1, summary.OrphansClosed)

	position, err := db.GetPositionTracking("MintOrphan")
	require.NoError(t, err)
	require.Nil(t, position)
}

func TestRehydrate_RecoversStuckQueueRows(t *testing.T) {
	e, db, _ := newTestEngine(t)

	require.NoError(t, db.UpsertScoutQueueItem(&storage.ScoutQueueItem{
		Mint: "MintStuck", Status: "IN_PROGRESS", InProgressAt: 0, QueuedAt: 0,
	}))

	require.NoError(t, e.Rehydrate(context.Background(), 10_000))

	item, err := db.GetScoutQueueItem("MintStuck")
	require.NoError(t, err)
	require.Equal(t, "PENDING", item.Status)
}

func TestJourneyID_AssignedOnQueueStableAcrossBuyAndClearedOnClose(t *testing.T) {
	e, db, _ := newTestEngine(t)

	require.NoError(t, e.enqueueCandidate("MintA", 5, 0))
	queuedID := e.journeyID("MintA")
	require.NotEmpty(t, queuedID)

	item, err := db.GetScoutQueueItem("MintA")
	require.NoError(t, err)
	require.NoError(t, e.onBought(item, "tx-buy-1", 1000, 1.0, 10, passingCollaborators(1.0)))
	require.Equal(t, queuedID, e.journeyID("MintA"))

	deps := passingCollaborators(1.0)
	deps.ReadBalance = func(ctx context.Context, mint string) (uint64, error) { return 0, nil }
	require.NoError(t, e.closeMint(context.Background(), "MintA", closer.ReasonTakeProfit, 20, deps))

	clearedID := e.journeyID("MintA")
	require.NotEqual(t, queuedID, clearedID, "a fresh journey starting after a full close should mint a new id")
}

func TestCooldown_SetAfterBuyGatesReentryUntilExpiry(t *testing.T) {
	e, db, _ := newTestEngine(t)

	require.NoError(t, e.enqueueCandidate("MintA", 5, 0))
	item, err := db.GetScoutQueueItem("MintA")
	require.NoError(t, err)
	require.NoError(t, e.onBought(item, "tx-buy-1", 1000, 1.0, 100, passingCollaborators(1.0)))

	cooldownMinutes := e.cfgMgr.Get().ScoutQueue.CooldownMinutes
	require.Greater(t, cooldownMinutes, 0.0)

	require.True(t, e.isOnCooldown("MintA", 100))
	require.True(t, e.isOnCooldown("MintA", 100+int64(cooldownMinutes*60)-1))
	require.False(t, e.isOnCooldown("MintA", 100+int64(cooldownMinutes*60)))
}

func TestActionReason_MapsBySlotAndAction(t *testing.T) {
	require.Equal(t, closer.ReasonScoutStopLoss, actionReason(ranking.ActionScoutStopLossExit, ranking.SlotScout))
	require.Equal(t, closer.ReasonCoreLossExit, actionReason(ranking.ActionCoreLossExit, ranking.SlotCore))
	require.Equal(t, closer.ReasonScoutTakeProfit, actionReason(ranking.ActionTrailingStopExit, ranking.SlotScout))
	require.Equal(t, closer.ReasonTakeProfit, actionReason(ranking.ActionTrailingStopExit, ranking.SlotCore))
	require.Equal(t, closer.ReasonUniverseExit, actionReason(ranking.ActionStaleTimeoutExit, ranking.SlotScout))
}

// Package engine wires the scout queue, ranking/rotation, closer,
// watchdog, liquidation lock, orphan tracker, bar store, and capital
// targets into one tick-driven trading loop.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"solana-spot-engine/internal/bars"
	"solana-spot-engine/internal/closer"
	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/ledger"
	"solana-spot-engine/internal/liquidation"
	"solana-spot-engine/internal/orphan"
	"solana-spot-engine/internal/ranking"
	"solana-spot-engine/internal/scoutqueue"
	"solana-spot-engine/internal/sizer"
	"solana-spot-engine/internal/storage"
	"solana-spot-engine/internal/targets"
	"solana-spot-engine/internal/telemetry"
	"solana-spot-engine/internal/watchdog"
)

// MarketSnapshot is the candidate-scoring input the market collaborator
// supplies for one mint.
type MarketSnapshot struct {
	ScannerScore   float64
	Volume24h      float64
	Liquidity      float64
	PriceChange24h float64
	FreshnessScore float64
	Signal         float64
	Regime         ranking.Regime
}

// Collaborators bundles every external system the engine reads from or
// writes to, kept as a struct of functions so Tick stays testable without
// a live RPC/Jupiter/market stack, mirroring scoutqueue.GateDeps.
type Collaborators struct {
	LastPrices         func() map[string]float64
	PriceUSD           func(mint string) float64
	SolPriceUSD        func() float64
	EquityUSD          func() float64
	SolBalanceLamports func() (uint64, error)
	WalletHoldings     func() []orphan.Holding
	Decimals           func(mint string) int
	MarketStats        func(mint string) MarketSnapshot

	WhaleConfirm       func(mint string) (bool, error)
	SellabilityProbe   func(mint string, spendSol float64) (bool, error)
	ExitLiquidityProbe func(mint string, qty float64) (bool, error)
	Sweep              func(mint string, mode sizer.Mode) sizer.SweepSample
	PoolTVLUSD         func(mint string) float64
	Vol5mUSD           func(mint string) float64
	Vol1hUSD           func(mint string) float64

	ExecuteSwap func(mint string, spendSol float64) (txSig string, tokensOut float64, err error)
	ReadBalance closer.BalanceReader
	Swap        closer.Swapper
}

// TickSummary reports what one Tick call did, for logging/TUI display.
type TickSummary struct {
	TickID         string
	HeldCount      int
	CandidateCount int
	RotationAction ranking.Action
	ScoutOutcome   string
	OrphansClosed  int
	QueuedTargets  int
	DurationMs     int64
}

// Engine owns the full tick-loop orchestration.
type Engine struct {
	db      *storage.DB
	cfgMgr  *config.Manager
	ledger  *ledger.Ledger
	sizer   *sizer.Sizer
	ranker  *ranking.Engine
	rotator *ranking.Evaluator
	scout   *scoutqueue.Processor
	closer  *closer.Closer
	watch   *watchdog.Watchdog
	lock    *liquidation.Lock
	orphans *orphan.Tracker
	barsW   *bars.Writer
	barsR   *bars.Reader
	alloc   *targets.Allocator
	tele    *telemetry.Recorder

	// journeyMu guards journeyIDs and cooldowns, the two pieces of
	// per-mint state that live only in memory and span a mint's whole
	// scan -> queue -> buy -> hold -> exit lifecycle rather than one tick.
	journeyMu  sync.Mutex
	journeyIDs map[string]string
	cooldowns  map[string]int64
}

// New builds an Engine and every sub-component from the manager's current
// config snapshot.
func New(db *storage.DB, cfgMgr *config.Manager, reg prometheus.Registerer) *Engine {
	cfg := cfgMgr.Get()
	lg := ledger.New(db)

	return &Engine{
		db:      db,
		cfgMgr:  cfgMgr,
		ledger:  lg,
		sizer:   sizer.New(cfg.Sizer),
		ranker:  ranking.New(cfg.Ranking, cfg.Risk),
		rotator: ranking.NewEvaluator(cfg.Rotation, cfg.Risk),
		scout:   scoutqueue.New(db, cfg.ScoutQueue, cfg.Risk),
		closer:  closer.New(db, lg, cfg.Closer),
		watch:   watchdog.New(cfg.Watchdog),
		lock:    liquidation.New(db, cfg.Liquidation),
		orphans: orphan.New(cfg.Orphan.GraceTicks),
		barsW:   bars.New(db, cfg.Bars),
		barsR:   bars.NewReader(db),
		alloc:   targets.New(cfg.Targets),
		tele:    telemetry.NewRecorder(db, reg),

		journeyIDs: make(map[string]string),
		cooldowns:  make(map[string]int64),
	}
}

// journeyID returns the correlation token for a mint's current trip through
// the scout pipeline, minting one on first use. It is cleared in closeMint
// once the position is fully wound down.
func (e *Engine) journeyID(mint string) string {
	e.journeyMu.Lock()
	defer e.journeyMu.Unlock()
	id, ok := e.journeyIDs[mint]
	if !ok {
		id = uuid.NewString()
		e.journeyIDs[mint] = id
	}
	return id
}

func (e *Engine) clearJourney(mint string) {
	e.journeyMu.Lock()
	defer e.journeyMu.Unlock()
	delete(e.journeyIDs, mint)
}

// isOnCooldown reports whether mint is still inside the cooldown window set
// by the last successful buy.
func (e *Engine) isOnCooldown(mint string, now int64) bool {
	e.journeyMu.Lock()
	defer e.journeyMu.Unlock()
	until, ok := e.cooldowns[mint]
	if !ok {
		return false
	}
	if now >= until {
		delete(e.cooldowns, mint)
		return false
	}
	return true
}

func (e *Engine) setCooldown(mint string, now int64, minutes float64) {
	e.journeyMu.Lock()
	defer e.journeyMu.Unlock()
	e.cooldowns[mint] = now + int64(minutes*60)
}

// Rehydrate restores the queue/position state a restart needs: it
// reclaims IN_PROGRESS scout-queue rows stranded by the previous process
// and reports how many positions and queue rows were recovered. Watchdog
// and orphan state are intentionally not restored from storage — they
// rebuild from live behaviour over the next few ticks rather than being
// restored from a snapshot.
func (e *Engine) Rehydrate(ctx context.Context, now int64) error {
	recovered, err := e.scout.RecoverStuck(now)
	if err != nil {
		return fmt.Errorf("engine: rehydrate scout queue: %w", err)
	}
	positions, err := e.db.GetAllPositionTracking()
	if err != nil {
		return fmt.Errorf("engine: rehydrate positions: %w", err)
	}
	log.Info().Int("positions", len(positions)).Int("recovered_queue_rows", recovered).Msg("engine: rehydrated")
	return nil
}

// ForceClose closes a held position on demand (an operator-triggered exit
// via the admin control plane), liquidating through the flash-close route.
func (e *Engine) ForceClose(ctx context.Context, mint string, now int64, deps Collaborators) error {
	return e.closeMint(ctx, mint, closer.ReasonFlashClose, now, deps)
}

// HeldSnapshot returns the current position_tracking rows, for the admin
// control plane's /positions view.
func (e *Engine) HeldSnapshot() ([]*storage.PositionTrack, error) {
	return e.db.GetAllPositionTracking()
}

// ExportTrades streams up to limit recent trades as CSV to w.
func (e *Engine) ExportTrades(w io.Writer, limit int) (int, error) {
	return telemetry.ExportTradesCSV(e.db, w, limit)
}

// Tick runs one full cycle: bar ingestion, scoring, rotation, orphan
// reconciliation, target allocation, and the scout queue's gate pipeline.
func (e *Engine) Tick(ctx context.Context, now int64, tickID string, deps Collaborators) (TickSummary, error) {
	start := time.Now()
	cfg := e.cfgMgr.Get()
	summary := TickSummary{TickID: tickID}

	prices := deps.LastPrices()
	if _, err := e.barsW.Write(prices, now/60); err != nil {
		return summary, fmt.Errorf("engine: bar write: %w", err)
	}

	held, err := e.scoreHeld(now, deps)
	if err != nil {
		return summary, err
	}
	summary.HeldCount = len(held)

	candidates, err := e.scoreCandidates(held, deps)
	if err != nil {
		return summary, err
	}
	summary.CandidateCount = len(candidates)

	staleHours := make(map[string]float64, len(held))
	for _, h := range held {
		if h.Held == nil {
			continue
		}
		staleHours[h.Mint] = float64(now-h.Held.EntryTimeMs/1000) / 3600.0
	}

	decision := e.rotator.Evaluate(held, candidates, staleHours)
	summary.RotationAction = decision.Action
	if decision.Action != ranking.ActionNone {
		if err := e.applyRotation(ctx, decision, held, now, deps); err != nil {
			return summary, err
		}
	}

	orphansClosed, err := e.reconcileOrphans(ctx, candidates, now, deps)
	if err != nil {
		return summary, err
	}
	summary.OrphansClosed = orphansClosed

	queued, err := e.queueTargets(held, candidates, now, deps)
	if err != nil {
		return summary, err
	}
	summary.QueuedTargets = queued

	result, err := e.scout.ProcessTick(now, false, e.gateDeps(now, deps))
	if err != nil {
		return summary, fmt.Errorf("engine: scout tick: %w", err)
	}
	summary.ScoutOutcome = result.Outcome

	scoutInUse, coreInUse := 0, 0
	for _, h := range held {
		if h.Held == nil {
			continue
		}
		if h.Held.SlotType == ranking.SlotCore {
			coreInUse++
		} else {
			scoutInUse++
		}
	}
	if err := e.tele.RecordCapacity(scoutInUse, coreInUse, cfg.Risk.ScoutSlots, cfg.Risk.CoreSlots, now); err != nil {
		log.Error().Err(err).Msg("engine: capacity telemetry failed")
	}
	e.tele.RecordGovernorHaircut(e.sizer.Governor().Haircut())

	summary.DurationMs = time.Since(start).Milliseconds()
	configHash := fmt.Sprintf("%x", e.cfgMgr.SnapshotHash())
	if err := e.tele.RecordTick(tickID, summary.DurationMs, len(held), len(candidates), e.scoutQueueDepth(), 0, configHash, now); err != nil {
		log.Error().Err(err).Msg("engine: tick telemetry failed")
	}

	return summary, nil
}

func (e *Engine) scoreHeld(now int64, deps Collaborators) ([]ranking.RankedItem, error) {
	rows, err := e.db.GetAllPositionTracking()
	if err != nil {
		return nil, fmt.Errorf("engine: load position tracking: %w", err)
	}

	held := make([]ranking.RankedItem, 0, len(rows))
	for _, row := range rows {
		currentPrice := deps.PriceUSD(row.Mint)
		lots, err := e.db.GetOpenPositionLots(row.Mint)
		if err != nil {
			return nil, fmt.Errorf("engine: load open lots for %s: %w", row.Mint, err)
		}
		entryTimeMs := now * 1000
		for _, lot := range lots {
			if lot.EntryTimestamp*1000 < entryTimeMs {
				entryTimeMs = lot.EntryTimestamp * 1000
			}
		}

		snapshot := deps.MarketStats(row.Mint)
		h := ranking.HeldPosition{
			Mint: row.Mint, Signal: snapshot.Signal, Regime: snapshot.Regime,
			EntryPrice: row.EntryPrice, PeakPrice: row.PeakPrice, CurrentPrice: currentPrice,
			EntryTimeMs: entryTimeMs, LastTimeMs: now * 1000,
			USDValue: row.TotalTokens * currentPrice, SlotType: ranking.SlotType(row.SlotType),
			PeakPnLPct: row.PeakPnLPct,
		}
		held = append(held, e.ranker.ScoreHeld(h, now*1000))
	}
	return held, nil
}

func (e *Engine) scoreCandidates(held []ranking.RankedItem, deps Collaborators) ([]ranking.RankedItem, error) {
	universe, err := e.db.GetActiveUniverse()
	if err != nil {
		return nil, fmt.Errorf("engine: load trading universe: %w", err)
	}

	heldSet := make(map[string]bool, len(held))
	for _, h := range held {
		heldSet[h.Mint] = true
	}

	candidates := make([]ranking.RankedItem, 0, len(universe))
	for _, u := range universe {
		if heldSet[u.Mint] {
			continue
		}
		snapshot := deps.MarketStats(u.Mint)
		c := ranking.Candidate{
			Mint: u.Mint, Signal: snapshot.Signal, Regime: snapshot.Regime,
			ScannerScore: u.Score, Volume24h: snapshot.Volume24h,
			Liquidity: snapshot.Liquidity, PriceChange24h: snapshot.PriceChange24h,
			FreshnessScore: snapshot.FreshnessScore,
		}
		candidates = append(candidates, e.ranker.ScoreCandidate(c))
	}
	return candidates, nil
}

// actionReason maps a rotation decision to a close_position reason code.
// break_even_lock_exit, trailing_stop_exit and opportunity_cost_rotation
// map to the take-profit family rather than a loss reason, so they do not
// arm the liquidation lock; slot type picks the scout/core variant. These
// actions can fire on a position below its entry price (a break-even exit
// fires only once pnl has dropped below zero). stale timeouts and replacement rotations are forced
// exits unrelated to price, mapped to universe_exit.
func actionReason(action ranking.Action, slot ranking.SlotType) closer.ReasonCode {
	switch action {
	case ranking.ActionScoutStopLossExit:
		return closer.ReasonScoutStopLoss
	case ranking.ActionCoreLossExit:
		return closer.ReasonCoreLossExit
	case ranking.ActionScoutUnderperformGraceExpired:
		return closer.ReasonScoutUnderperformGrace
	case ranking.ActionBreakEvenLockExit, ranking.ActionTrailingStopExit, ranking.ActionOpportunityCostRotation:
		if slot == ranking.SlotScout {
			return closer.ReasonScoutTakeProfit
		}
		return closer.ReasonTakeProfit
	default: // ActionStaleTimeoutExit, ActionStaleRotationWithReplacement
		return closer.ReasonUniverseExit
	}
}

func (e *Engine) applyRotation(ctx context.Context, decision ranking.Decision, held []ranking.RankedItem, now int64, deps Collaborators) error {
	var worst *ranking.RankedItem
	for i := range held {
		if held[i].Mint == decision.WorstMint {
			worst = &held[i]
			break
		}
	}
	if worst == nil || worst.Held == nil {
		return nil
	}

	reason := actionReason(decision.Action, worst.Held.SlotType)
	if err := e.closeMint(ctx, worst.Mint, reason, now, deps); err != nil {
		return err
	}

	if err := e.tele.RecordRotation(string(decision.Action), decision.WorstMint, decision.BestMint, decision.WorstRank, decision.BestRank, string(reason), now); err != nil {
		log.Error().Err(err).Msg("engine: rotation telemetry failed")
	}

	if decision.BestMint != "" {
		if err := e.enqueueCandidate(decision.BestMint, decision.BestRank, now); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) closeMint(ctx context.Context, mint string, reason closer.ReasonCode, now int64, deps Collaborators) error {
	decimals := deps.Decimals(mint)
	priceFn := func() float64 { return deps.PriceUSD(mint) }
	result, err := e.closer.ClosePosition(ctx, mint, reason, deps.ReadBalance, deps.Swap, decimals, priceFn, now)
	if err != nil {
		return fmt.Errorf("engine: close %s: %w", mint, err)
	}
	if result.Success && closer.IsProtective(reason) {
		if err := e.lock.Arm(mint, string(reason), now); err != nil {
			log.Error().Err(err).Str("mint", mint).Msg("engine: arm liquidation lock failed")
		}
	}
	if result.Success {
		e.clearJourney(mint)
	}
	e.watch.Reset(mint)
	return nil
}

func (e *Engine) enqueueCandidate(mint string, score float64, now int64) error {
	existing, err := e.db.GetScoutQueueItem(mint)
	if err != nil {
		return fmt.Errorf("engine: load queue item %s: %w", mint, err)
	}
	if existing != nil && (existing.Status == scoutqueue.StatusPending || existing.Status == scoutqueue.StatusInProgress) {
		return nil
	}
	e.journeyID(mint) // mint the correlation token for this scan -> queue -> buy -> hold -> exit trip
	return e.db.UpsertScoutQueueItem(&storage.ScoutQueueItem{
		Mint: mint, Score: score, Status: scoutqueue.StatusPending,
		QueuedAt: now, NextAttemptAt: now,
	})
}

func (e *Engine) reconcileOrphans(ctx context.Context, candidates []ranking.RankedItem, now int64, deps Collaborators) (int, error) {
	universe, err := e.db.GetActiveUniverse()
	if err != nil {
		return 0, fmt.Errorf("engine: load universe for orphan check: %w", err)
	}
	targetMints := make(map[string]bool, len(universe))
	for _, u := range universe {
		targetMints[u.Mint] = true
	}

	holdings := deps.WalletHoldings()
	ready := e.orphans.Tick(holdings, targetMints, e.cfgMgr.Get().Sizer.MinTradeUSD, now)

	for _, r := range ready {
		if err := e.closeMint(ctx, r.Mint, closer.ReasonUniverseExit, now, deps); err != nil {
			return 0, err
		}
	}
	return len(ready), nil
}

func (e *Engine) queueTargets(held, candidates []ranking.RankedItem, now int64, deps Collaborators) (int, error) {
	cfg := e.cfgMgr.Get()
	items := make([]targets.Item, 0, len(held)+len(candidates))
	for _, h := range held {
		if h.Held == nil {
			continue
		}
		items = append(items, targets.Item{Mint: h.Mint, Score: h.Rank, IsCore: h.Held.SlotType == ranking.SlotCore, CapPct: cfg.Sizer.MaxMintExposurePct})
	}
	for _, c := range candidates {
		items = append(items, targets.Item{Mint: c.Mint, Score: c.Rank, CapPct: cfg.Sizer.MaxMintExposurePct})
	}

	result := e.alloc.Allocate(items, cfg.Risk.MaxPortfolioPct)
	equity := deps.EquityUSD()
	solPrice := deps.SolPriceUSD()

	heldSet := make(map[string]bool, len(held))
	for _, h := range held {
		heldSet[h.Mint] = true
	}

	queued := 0
	for _, t := range result.Targets {
		if t.Pct <= 0 || heldSet[t.Mint] {
			continue
		}
		if e.watch.CheckStuckTarget(t.Mint, now) {
			continue
		}
		locked, err := e.lock.IsLiquidating(t.Mint, now)
		if err != nil {
			return queued, fmt.Errorf("engine: liquidation check for %s: %w", t.Mint, err)
		}
		if locked {
			continue
		}
		if solPrice <= 0 {
			continue
		}
		spendSol := (t.Pct * equity) / solPrice
		if err := e.enqueueCandidate(t.Mint, targetScore(t.Mint, candidates), now); err != nil {
			return queued, err
		}
		if item, err := e.db.GetScoutQueueItem(t.Mint); err == nil && item != nil && item.SpendSol <= 0 {
			item.SpendSol = spendSol
			_ = e.db.UpsertScoutQueueItem(item)
		}
		queued++
	}
	return queued, nil
}

func targetScore(mint string, candidates []ranking.RankedItem) float64 {
	for _, c := range candidates {
		if c.Mint == mint {
			return c.Rank
		}
	}
	return 0
}

func (e *Engine) gateDeps(now int64, deps Collaborators) scoutqueue.GateDeps {
	cfg := e.cfgMgr.Get()
	return scoutqueue.GateDeps{
		IsLiquidationLocked: func(mint string) (bool, error) { return e.lock.IsLiquidating(mint, now) },
		IsOnCooldown:        func(mint string) bool { return e.isOnCooldown(mint, now) },
		DailyEntryCount: func() (int, error) {
			return e.db.CountBotTradesSince("buy", now-86400)
		},
		ScoutSlotsInUse: func() (int, error) {
			return e.db.CountScoutQueueByStatus(scoutqueue.StatusInProgress)
		},
		SolBalanceLamports: deps.SolBalanceLamports,
		WhaleConfirm:       deps.WhaleConfirm,
		BarGate: func(mint string) (string, error) {
			return e.barGate(mint, now, cfg, deps)
		},
		SellabilityProbe:   deps.SellabilityProbe,
		ExitLiquidityProbe: deps.ExitLiquidityProbe,
		SizeTrade: func(mint string) (float64, bool, string) {
			return e.sizeTrade(mint, deps)
		},
		SolPriceUSD: deps.SolPriceUSD,
		ExecuteSwap: deps.ExecuteSwap,
		OnBought: func(item *storage.ScoutQueueItem, txSig string, tokensOut, spendSol float64) error {
			return e.onBought(item, txSig, tokensOut, spendSol, now, deps)
		},
	}
}

// barGate implements the INSUFFICIENT_BARS entry gate: enough bar history
// to compute both windows, price above the trend SMA, and the 15-minute
// return inside the impulse/pullback band.
func (e *Engine) barGate(mint string, now int64, cfg *config.Config, deps Collaborators) (string, error) {
	nowMinute := now / 60
	smaCount, err := e.barsR.BarCount(mint, nowMinute, int64(cfg.Bars.TrendSMAMinutes))
	if err != nil {
		return "", err
	}
	if smaCount < cfg.Bars.TrendSMAMinutes {
		return "insufficient_bars", nil
	}

	sma, known, err := e.barsR.SMA(mint, nowMinute, int64(cfg.Bars.TrendSMAMinutes))
	if err != nil {
		return "", err
	}
	if !known {
		return "insufficient_bars", nil
	}

	ret15, known, err := e.barsR.Return(mint, nowMinute, int64(cfg.Bars.Ret15Minutes))
	if err != nil {
		return "", err
	}
	if !known {
		return "insufficient_bars", nil
	}

	if ret15 < cfg.Bars.Ret15FloorPct || ret15 > cfg.Bars.Ret15CeilingPct {
		return "failed", nil
	}

	if deps.PriceUSD(mint) <= sma {
		return "failed", nil
	}

	return "pass", nil
}

func (e *Engine) sizeTrade(mint string, deps Collaborators) (float64, bool, string) {
	cfg := e.cfgMgr.Get()
	in := sizer.Input{
		Mint: mint, EquityUSD: deps.EquityUSD(), SolPriceUSD: deps.SolPriceUSD(),
		Mode: sizer.ModeScout, StopPct: cfg.Risk.ScoutStopLossPct,
		PoolTVLUSD: deps.PoolTVLUSD(mint), Vol5mUSD: deps.Vol5mUSD(mint), Vol1hUSD: deps.Vol1hUSD(mint),
	}
	result := e.sizer.Size(in, deps.Sweep(mint, sizer.ModeScout))
	return result.SizeUSD, result.Rejected, result.RejectReason
}

func (e *Engine) onBought(item *storage.ScoutQueueItem, txSig string, tokensOut, spendSol float64, now int64, deps Collaborators) error {
	e.watch.Record(item.Mint, watchdog.OutcomeConfirmed, "", now)

	journeyID := e.journeyID(item.Mint)
	cfg := e.cfgMgr.Get()
	if cfg.ScoutQueue.CooldownMinutes > 0 {
		e.setCooldown(item.Mint, now, cfg.ScoutQueue.CooldownMinutes)
	}

	price := deps.PriceUSD(item.Mint)
	entryValueUSD := tokensOut * price

	lotID := fmt.Sprintf("%s-%d", item.Mint, now)
	if err := e.ledger.InsertTradeLot(&storage.TradeLot{
		LotID: lotID, TxSig: txSig, Timestamp: now, Mint: item.Mint, Side: "buy",
		Quantity: tokensOut, USDValue: entryValueUSD, UnitPriceUSD: price, SolPriceUSD: deps.SolPriceUSD(),
	}); err != nil {
		return fmt.Errorf("engine: insert trade lot for %s: %w", item.Mint, err)
	}
	if err := e.db.UpsertPositionTracking(&storage.PositionTrack{
		Mint: item.Mint, EntryPrice: price, PeakPrice: price, PeakTime: now,
		LastPrice: price, LastUpdate: now, TotalTokens: tokensOut, SlotType: "scout", Source: "scout_queue",
	}); err != nil {
		return fmt.Errorf("engine: upsert position tracking for %s: %w", item.Mint, err)
	}
	if _, err := e.tele.RecordTrade(&storage.BotTrade{
		Mint: item.Mint, Side: "buy", Status: "filled", AmountSol: spendSol,
		EntryValue: entryValueUSD, EntryTxSig: txSig, Timestamp: now,
	}, 0); err != nil {
		return fmt.Errorf("engine: record buy trade for %s: %w", item.Mint, err)
	}
	if err := e.tele.RecordAllocation(item.Mint, "bought", "entry_gate_passed", entryValueUSD, "", now); err != nil {
		log.Error().Err(err).Msg("engine: allocation telemetry failed")
	}
	log.Info().Str("mint", item.Mint).Str("journey_id", journeyID).Str("tx_sig", txSig).Msg("engine: scout buy filled")
	return nil
}

func (e *Engine) scoutQueueDepth() int {
	pending, _ := e.db.CountScoutQueueByStatus(scoutqueue.StatusPending)
	inProgress, _ := e.db.CountScoutQueueByStatus(scoutqueue.StatusInProgress)
	return pending + inProgress
}

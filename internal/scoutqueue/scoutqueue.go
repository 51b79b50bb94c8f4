// Package scoutqueue implements the persistent single-flight scout queue:
// one atomic claim per tick, a multi-stage entry gate pipeline, and the
// watchdog that reclaims IN_PROGRESS rows stranded by crashes.
package scoutqueue

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/storage"
)

const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusBought     = "BOUGHT"
	StatusFailed     = "FAILED"
	StatusSkipped    = "SKIPPED"

	barStatusInsufficient = "insufficient_bars"
)

// GateDeps bundles every external check the entry gate pipeline needs,
// kept as a struct of functions so the processor itself stays hermetic
// and unit-testable without a live RPC/HTTP stack.
type GateDeps struct {
	IsLiquidationLocked func(mint string) (bool, error)
	IsOnCooldown        func(mint string) bool
	DailyEntryCount     func() (int, error)
	ScoutSlotsInUse     func() (int, error)
	SolBalanceLamports  func() (uint64, error)
	WhaleConfirm        func(mint string) (bool, error)
	BarGate             func(mint string) (status string, err error)
	SellabilityProbe    func(mint string, spendSol float64) (bool, error)
	ExitLiquidityProbe  func(mint string, qty float64) (bool, error)
	SizeTrade           func(mint string) (sizeUSD float64, rejected bool, reason string)
	SolPriceUSD         func() float64
	ExecuteSwap         func(mint string, spendSol float64) (txSig string, tokensOut float64, err error)
	OnBought            func(item *storage.ScoutQueueItem, txSig string, tokensOut, spendSol float64) error
}

// TickResult summarises what the processor did on one tick.
type TickResult struct {
	Claimed   bool
	Mint      string
	Outcome   string // "bought", "skipped", "failed", "rescheduled", "no_claim", "paused"
	Reason    string
	Recovered int
}

// Processor is the scout queue's tick-driven state machine.
type Processor struct {
	db   *storage.DB
	cfg  config.ScoutQueueConfig
	risk config.RiskConfig
}

// New builds a scout queue processor.
func New(db *storage.DB, cfg config.ScoutQueueConfig, risk config.RiskConfig) *Processor {
	return &Processor{db: db, cfg: cfg, risk: risk}
}

// RecoverStuck moves IN_PROGRESS rows older than stale_minutes back to
// PENDING with exponential backoff, or to SKIPPED once attempts >= max.
func (p *Processor) RecoverStuck(now int64) (int, error) {
	cutoff := now - int64(p.cfg.StaleMinutes*60)
	stale, err := p.db.GetStaleInProgress(cutoff)
	if err != nil {
		return 0, fmt.Errorf("scoutqueue: load stale rows: %w", err)
	}

	for _, item := range stale {
		item.BuyAttempts++
		if item.BuyAttempts >= p.cfg.MaxAttempts {
			item.Status = StatusSkipped
			item.LastError = "claim_stale_max_attempts"
		} else {
			item.Status = StatusPending
			backoffMin := p.cfg.BaseBackoffMinutes * math.Pow(2, float64(item.BuyAttempts-1))
			item.NextAttemptAt = now + int64(backoffMin*60)
			item.LastError = "claim_stale_rescheduled"
		}
		item.LastAttemptAt = now
		if err := p.db.UpsertScoutQueueItem(item); err != nil {
			return 0, fmt.Errorf("scoutqueue: recover stale row %s: %w", item.Mint, err)
		}
	}

	return len(stale), nil
}

// ProcessTick runs one iteration: recovery, claim, gate pipeline, execution.
func (p *Processor) ProcessTick(now int64, paused bool, deps GateDeps) (TickResult, error) {
	recovered, err := p.RecoverStuck(now)
	if err != nil {
		return TickResult{}, err
	}

	if paused {
		return TickResult{Outcome: "paused", Recovered: recovered}, nil
	}

	item, err := p.db.ClaimNextPending(now)
	if err != nil {
		return TickResult{}, fmt.Errorf("scoutqueue: claim: %w", err)
	}
	if item == nil {
		return TickResult{Outcome: "no_claim", Recovered: recovered}, nil
	}

	result := TickResult{Claimed: true, Mint: item.Mint, Recovered: recovered}
	return p.runGatePipeline(now, item, result, deps)
}

// runGatePipeline walks the ordered entry-gate checks for a freshly claimed
// item, writing the terminal or rescheduled status to storage before
// returning.
func (p *Processor) runGatePipeline(now int64, item *storage.ScoutQueueItem, result TickResult, deps GateDeps) (TickResult, error) {
	skip := func(reason string) (TickResult, error) {
		item.Status = StatusSkipped
		item.LastError = reason
		item.LastAttemptAt = now
		if err := p.db.UpsertScoutQueueItem(item); err != nil {
			return result, fmt.Errorf("scoutqueue: skip %s: %w", item.Mint, err)
		}
		_ = p.db.InsertAllocationEvent(item.Mint, "SKIPPED", reason, 0, "", now)
		result.Outcome = "skipped"
		result.Reason = reason
		return result, nil
	}

	reschedule := func(reason string, delaySec int64) (TickResult, error) {
		item.Status = StatusPending
		item.LastError = reason
		item.LastAttemptAt = now
		item.NextAttemptAt = now + delaySec
		if err := p.db.UpsertScoutQueueItem(item); err != nil {
			return result, fmt.Errorf("scoutqueue: reschedule %s: %w", item.Mint, err)
		}
		result.Outcome = "rescheduled"
		result.Reason = reason
		return result, nil
	}

	fail := func(reason string) (TickResult, error) {
		item.BuyAttempts++
		item.LastAttemptAt = now
		item.LastError = reason
		if item.BuyAttempts >= p.cfg.MaxAttempts {
			item.Status = StatusFailed
		} else {
			item.Status = StatusPending
			backoffMin := p.cfg.BaseBackoffMinutes * math.Pow(2, float64(item.BuyAttempts-1))
			item.NextAttemptAt = now + int64(backoffMin*60)
		}
		if err := p.db.UpsertScoutQueueItem(item); err != nil {
			return result, fmt.Errorf("scoutqueue: fail %s: %w", item.Mint, err)
		}
		result.Outcome = "failed"
		result.Reason = reason
		return result, nil
	}

	if deps.IsLiquidationLocked != nil {
		locked, err := deps.IsLiquidationLocked(item.Mint)
		if err != nil {
			return result, fmt.Errorf("scoutqueue: liquidation check: %w", err)
		}
		if locked {
			return skip("liquidation_lock")
		}
	}

	if deps.IsOnCooldown != nil && deps.IsOnCooldown(item.Mint) {
		return reschedule("mint_on_cooldown", int64(p.cfg.BaseBackoffMinutes*60))
	}

	if deps.DailyEntryCount != nil {
		count, err := deps.DailyEntryCount()
		if err != nil {
			return result, fmt.Errorf("scoutqueue: daily count: %w", err)
		}
		if count >= p.risk.DailyLimit {
			return skip("daily_entry_limit")
		}
	}

	if deps.ScoutSlotsInUse != nil {
		inUse, err := deps.ScoutSlotsInUse()
		if err != nil {
			return result, fmt.Errorf("scoutqueue: scout slot count: %w", err)
		}
		if inUse >= p.risk.ScoutSlots {
			return skip("scout_slots_full")
		}
	}

	if deps.SolBalanceLamports != nil {
		bal, err := deps.SolBalanceLamports()
		if err != nil {
			return result, fmt.Errorf("scoutqueue: sol balance: %w", err)
		}
		if bal < p.cfg.ReserveLamports+p.cfg.TxFeeBufferLamports {
			return reschedule("insufficient_sol_balance", int64(p.cfg.BaseBackoffMinutes*60))
		}
	}

	if p.cfg.WhaleConfirmEnabled && deps.WhaleConfirm != nil {
		ok, err := deps.WhaleConfirm(item.Mint)
		if err != nil {
			return result, fmt.Errorf("scoutqueue: whale confirm: %w", err)
		}
		if !ok {
			return skip("whale_confirmation_failed")
		}
	}

	if deps.BarGate != nil {
		status, err := deps.BarGate(item.Mint)
		if err != nil {
			return result, fmt.Errorf("scoutqueue: bar gate: %w", err)
		}
		if status == barStatusInsufficient {
			item.WarmupAttempts++
			ageMin := float64(now-item.QueuedAt) / 60
			if ageMin >= p.cfg.WarmupTimeoutMinutes {
				return skip("insufficient_bars_warmup_timeout")
			}
			return reschedule("insufficient_bars", int64(p.cfg.BaseBackoffMinutes*60))
		}
		if status != "pass" {
			return skip("bar_gate_failed")
		}
	}

	sizeUSD, rejected, reason := 0.0, false, ""
	if deps.SizeTrade != nil {
		sizeUSD, rejected, reason = deps.SizeTrade(item.Mint)
		if rejected {
			return skip("sizer_rejected:" + reason)
		}
	}

	spendSol := item.SpendSol
	if spendSol <= 0 {
		if deps.SolPriceUSD == nil {
			return skip("no_sol_price_for_sizing")
		}
		solPrice := deps.SolPriceUSD()
		if solPrice <= 0 {
			return reschedule("no_sol_price_available", int64(p.cfg.BaseBackoffMinutes*60))
		}
		spendSol = sizeUSD / solPrice
		item.SpendSol = spendSol
	}

	if deps.SellabilityProbe != nil {
		ok, err := deps.SellabilityProbe(item.Mint, spendSol)
		if err != nil {
			return result, fmt.Errorf("scoutqueue: sellability probe: %w", err)
		}
		if !ok {
			return skip("sellability_probe_failed")
		}
	}

	if deps.ExitLiquidityProbe != nil {
		ok, err := deps.ExitLiquidityProbe(item.Mint, spendSol)
		if err != nil {
			return result, fmt.Errorf("scoutqueue: exit liquidity probe: %w", err)
		}
		if !ok {
			return skip("exit_liquidity_probe_failed")
		}
	}

	if deps.ExecuteSwap == nil {
		return skip("no_executor_configured")
	}

	txSig, tokensOut, err := deps.ExecuteSwap(item.Mint, spendSol)
	if err != nil {
		log.Warn().Str("mint", item.Mint).Err(err).Msg("scoutqueue: swap execution failed")
		return fail("swap_execution_failed")
	}

	item.Status = StatusBought
	item.LastAttemptAt = now
	item.LastError = ""
	if err := p.db.UpsertScoutQueueItem(item); err != nil {
		return result, fmt.Errorf("scoutqueue: mark bought %s: %w", item.Mint, err)
	}

	if deps.OnBought != nil {
		if err := deps.OnBought(item, txSig, tokensOut, spendSol); err != nil {
			return result, fmt.Errorf("scoutqueue: on-bought callback %s: %w", item.Mint, err)
		}
	}

	result.Outcome = "bought"
	return result, nil
}

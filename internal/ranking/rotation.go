package ranking

import "solana-spot-engine/internal/config"

// Action is a rotation-evaluator outcome reason code.
type Action string

const (
	ActionNone                          Action = "no_op"
	ActionBreakEvenLockExit             Action = "break_even_lock_exit"
	ActionScoutStopLossExit             Action = "scout_stop_loss_exit"
	ActionCoreLossExit                  Action = "core_loss_exit"
	ActionScoutUnderperformGraceExpired Action = "scout_underperform_grace_expired"
	ActionTrailingStopExit              Action = "trailing_stop_exit"
	ActionStaleTimeoutExit              Action = "stale_timeout_exit"
	ActionOpportunityCostRotation       Action = "opportunity_cost_rotation"
	ActionStaleRotationWithReplacement  Action = "stale_rotation_with_replacement"
)

// Decision is the rotation evaluator's single output per tick.
type Decision struct {
	Action       Action
	WorstMint    string
	BestMint     string
	WorstRank    float64
	BestRank     float64
	Reason       string
}

// Evaluator runs the deterministic 12-step rotation cascade.
type Evaluator struct {
	rotation config.RotationConfig
	risk     config.RiskConfig
}

// NewEvaluator builds a rotation evaluator.
func NewEvaluator(rotation config.RotationConfig, risk config.RiskConfig) *Evaluator {
	return &Evaluator{rotation: rotation, risk: risk}
}

// Evaluate runs the cascade over held ranked positions and ranked
// candidates, producing at most one action.
func (e *Evaluator) Evaluate(held []RankedItem, candidates []RankedItem, nowHoursStale map[string]float64) Decision {
	// Step 1: break_even_lock_exit, worst PnL first.
	pnlOf := func(r *RankedItem) float64 {
		if r.Held == nil || r.Held.EntryPrice <= 0 {
			return 0
		}
		return (r.Held.CurrentPrice - r.Held.EntryPrice) / r.Held.EntryPrice
	}
	var beWorst *RankedItem
	for i := range held {
		if held[i].Flags.BreakEvenExitTriggered && (beWorst == nil || pnlOf(&held[i]) < pnlOf(beWorst)) {
			beWorst = &held[i]
		}
	}
	if beWorst != nil {
		return Decision{Action: ActionBreakEvenLockExit, WorstMint: beWorst.Mint, WorstRank: beWorst.Rank}
	}

	// Step 2: scout_stop_loss_exit.
	if item := pickWorst(held, func(r RankedItem) bool { return r.Flags.ScoutStopLossTriggered }); item != nil {
		return Decision{Action: ActionScoutStopLossExit, WorstMint: item.Mint, WorstRank: item.Rank}
	}

	// Step 3: core_loss_exit.
	if item := pickWorst(held, func(r RankedItem) bool { return r.Flags.CoreLossExitTriggered }); item != nil {
		return Decision{Action: ActionCoreLossExit, WorstMint: item.Mint, WorstRank: item.Rank}
	}

	// Step 4: scout_underperform_grace_expired, not break-even-locked.
	if item := pickWorst(held, func(r RankedItem) bool {
		return r.Flags.ScoutGraceExpired && !r.Flags.BreakEvenLocked
	}); item != nil {
		return Decision{Action: ActionScoutUnderperformGraceExpired, WorstMint: item.Mint, WorstRank: item.Rank}
	}

	// Step 5: build the opportunity-cost/rotation candidate pool.
	pool := filterHeld(held, func(r RankedItem) bool {
		return (r.Flags.TrailingStopTriggered && r.Held.SlotType == SlotCore) ||
			r.Flags.BreakEvenLocked ||
			r.Flags.EligibleForRotation ||
			(r.Flags.IsStale && !r.Flags.BreakEvenLocked)
	})
	if len(pool) == 0 {
		return Decision{Action: ActionNone}
	}
	worst := lowestRank(pool)

	// Step 6: trailing stop exit, no replacement required.
	if worst.Flags.TrailingStopTriggered {
		return Decision{Action: ActionTrailingStopExit, WorstMint: worst.Mint, WorstRank: worst.Rank}
	}

	// Step 7: stale timeout exit.
	if worst.Flags.IsStale && !worst.Flags.BreakEvenLocked {
		if hours, ok := nowHoursStale[worst.Mint]; ok && hours >= e.risk.StaleExitHours {
			return Decision{Action: ActionStaleTimeoutExit, WorstMint: worst.Mint, WorstRank: worst.Rank}
		}
	}

	// Step 8: open capacity and candidates exist — no rotation needed, a
	// fresh slot will be opened elsewhere by the scout queue.
	totalHeld := len(held)
	if totalHeld < e.rotation.TotalSlots && len(candidates) > 0 {
		return Decision{Action: ActionNone}
	}

	// Step 9: best viable candidate.
	best := highestViableCandidate(candidates, held)
	if best == nil {
		if worst.Flags.TrailingStopTriggered || (worst.Flags.IsStale && !worst.Flags.BreakEvenLocked) {
			return Decision{Action: ActionStaleTimeoutExit, WorstMint: worst.Mint, WorstRank: worst.Rank}
		}
		return Decision{Action: ActionNone}
	}

	// Step 10: opportunity cost rotation.
	if best.Rank-worst.Rank >= e.rotation.RotationThreshold {
		return Decision{Action: ActionOpportunityCostRotation, WorstMint: worst.Mint, BestMint: best.Mint, WorstRank: worst.Rank, BestRank: best.Rank}
	}

	// Step 11: stale rotation with replacement.
	if worst.Flags.IsStale && !worst.Flags.BreakEvenLocked && best.Rank-worst.Rank > 0 {
		return Decision{Action: ActionStaleRotationWithReplacement, WorstMint: worst.Mint, BestMint: best.Mint, WorstRank: worst.Rank, BestRank: best.Rank}
	}

	// Step 12: no rotation.
	return Decision{Action: ActionNone}
}

func pickWorst(items []RankedItem, pred func(RankedItem) bool) *RankedItem {
	var worst *RankedItem
	for i := range items {
		if !pred(items[i]) {
			continue
		}
		if worst == nil || items[i].Rank < worst.Rank {
			item := items[i]
			worst = &item
		}
	}
	return worst
}

func filterHeld(items []RankedItem, pred func(RankedItem) bool) []RankedItem {
	var out []RankedItem
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

func lowestRank(items []RankedItem) RankedItem {
	worst := items[0]
	for _, it := range items[1:] {
		if it.Rank < worst.Rank {
			worst = it
		}
	}
	return worst
}

func highestViableCandidate(candidates []RankedItem, held []RankedItem) *RankedItem {
	heldSet := make(map[string]bool, len(held))
	for _, h := range held {
		heldSet[h.Mint] = true
	}

	var best *RankedItem
	for i := range candidates {
		c := candidates[i]
		if c.Rank <= 0 || heldSet[c.Mint] {
			continue
		}
		if best == nil || c.Rank > best.Rank {
			item := c
			best = &item
		}
	}
	return best
}

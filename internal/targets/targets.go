// Package targets allocates the total deployable capital cap across held
// core positions and scored candidates: core-baseline reservation first,
// then proportional distribution, then multi-pass utilisation scaling.
package targets

import "solana-spot-engine/internal/config"

// Item is one position or candidate eligible for a capital target.
type Item struct {
	Mint    string
	Score   float64
	IsCore  bool
	CapPct  float64 // per-asset cap, as a fraction of equity
}

// Target is the resulting allocation for one item.
type Target struct {
	Mint   string
	Pct    float64
	Capped bool
}

// Result bundles the computed targets with the allocator's metadata.
type Result struct {
	Targets     []Target
	SumRaw      float64
	SumScaled   float64
	ScaleFactor float64
	ClampedCount int
	PassesUsed  int
}

// Allocator computes targets per config.TargetsConfig.
type Allocator struct {
	cfg config.TargetsConfig
}

// New builds an Allocator.
func New(cfg config.TargetsConfig) *Allocator {
	return &Allocator{cfg: cfg}
}

// Allocate runs the three-step allocation: core-baseline reservation,
// proportional distribution of the remaining budget, then multi-pass
// utilisation scaling toward deploy_target_pct.
func (a *Allocator) Allocate(items []Item, totalCapPct float64) Result {
	targets := make(map[string]*Target, len(items))
	for _, it := range items {
		targets[it.Mint] = &Target{Mint: it.Mint}
	}

	// Step 1: core-baseline reservation, pro-rated if aggregate exceeds cap.
	coreBaseline := a.cfg.CoreTargetPct
	if a.cfg.MaxPosPct < coreBaseline {
		coreBaseline = a.cfg.MaxPosPct
	}

	var cores []*Item
	for i := range items {
		if items[i].IsCore {
			cores = append(cores, &items[i])
		}
	}

	coreReserved := 0.0
	aggregateCoreDemand := coreBaseline * float64(len(cores))
	proRate := 1.0
	if aggregateCoreDemand > totalCapPct && aggregateCoreDemand > 0 {
		proRate = totalCapPct / aggregateCoreDemand
	}
	for _, c := range cores {
		pct := coreBaseline * proRate
		if maxAllowed := effectiveCap(c.CapPct, a.cfg.MaxPosPct); pct > maxAllowed {
			pct = maxAllowed
		}
		targets[c.Mint].Pct = pct
		coreReserved += pct
	}

	// Step 2: proportional distribution of the remaining budget across
	// positive-score non-core candidates. The budget targets
	// deploy_target_pct, not the full risk-ceiling cap, leaving headroom
	// for utilisation scaling in step 3 when per-asset caps bite.
	remainingBudget := a.cfg.DeployTargetPct - coreReserved
	if remainingBudget < 0 {
		remainingBudget = 0
	}
	if remainingBudget > totalCapPct-coreReserved {
		remainingBudget = totalCapPct - coreReserved
	}

	var candidates []*Item
	totalScore := 0.0
	for i := range items {
		it := &items[i]
		if it.IsCore || it.Score <= 0 {
			continue
		}
		candidates = append(candidates, it)
		totalScore += it.Score
	}

	clampedCount := 0
	if totalScore > 0 {
		for _, c := range candidates {
			share := c.Score / totalScore
			pct := remainingBudget * share
			maxAllowed := effectiveCap(c.CapPct, a.cfg.MaxPosPct)
			if pct > maxAllowed {
				pct = maxAllowed
				clampedCount++
				targets[c.Mint].Capped = true
			}
			targets[c.Mint].Pct = pct
		}
	}

	sumRaw := 0.0
	for _, t := range targets {
		sumRaw += t.Pct
	}

	// Step 3: utilisation scaling — multi-pass redistribution of the
	// deploy-target deficit among uncapped targets.
	passesUsed := 0
	sumScaled := sumRaw
	scaleFactor := 1.0

	if sumRaw < a.cfg.DeployTargetPct {
		capped := make(map[string]bool)
		for mint, t := range targets {
			if t.Capped {
				capped[mint] = true
			}
		}
		for pass := 0; pass < a.cfg.MaxScalePasses; pass++ {
			passesUsed++
			deficit := a.cfg.DeployTargetPct - sumScaled
			if deficit <= 0 || sumScaled >= a.cfg.DeployTargetPct*0.99 {
				break
			}

			var uncapped []*Target
			uncappedSum := 0.0
			for mint, t := range targets {
				if capped[mint] || t.Pct <= 0 {
					continue
				}
				uncapped = append(uncapped, t)
				uncappedSum += t.Pct
			}
			if len(uncapped) == 0 || uncappedSum <= 0 {
				break
			}

			anyScaled := false
			for _, t := range uncapped {
				share := t.Pct / uncappedSum
				addition := deficit * share
				scaled := t.Pct + addition

				var capPct float64
				for i := range items {
					if items[i].Mint == t.Mint {
						capPct = effectiveCap(items[i].CapPct, a.cfg.MaxPosPct)
						break
					}
				}
				if scaled >= capPct {
					scaled = capPct
					capped[t.Mint] = true
					t.Capped = true
				}
				if scaled != t.Pct {
					anyScaled = true
				}
				t.Pct = scaled
			}

			sumScaled = 0.0
			for _, t := range targets {
				sumScaled += t.Pct
			}
			if !anyScaled {
				break
			}
		}
	}

	if sumRaw > 0 {
		scaleFactor = sumScaled / sumRaw
	}

	out := make([]Target, 0, len(targets))
	for _, it := range items {
		out = append(out, *targets[it.Mint])
	}

	return Result{
		Targets: out, SumRaw: sumRaw, SumScaled: sumScaled,
		ScaleFactor: scaleFactor, ClampedCount: clampedCount, PassesUsed: passesUsed,
	}
}

func effectiveCap(itemCap, maxPosPct float64) float64 {
	if itemCap > 0 && itemCap < maxPosPct {
		return itemCap
	}
	return maxPosPct
}

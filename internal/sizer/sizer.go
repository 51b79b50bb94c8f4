// Package sizer implements the capital sizer: converts (equity, stop, mode,
// liquidity sweep) into a final trade size and rejection reason, and governs
// the adaptive slippage haircut from realised-vs-quoted telemetry.
package sizer

import (
	"math"
	"sort"
	"sync"

	"solana-spot-engine/internal/config"
)

// Mode is the capital-sizing risk tier.
type Mode string

const (
	ModeScout Mode = "scout"
	ModeCore  Mode = "core"
)

var sweepMultipliers = []float64{0.5, 1, 2, 4, 8}

// Input describes one sizing request.
type Input struct {
	Mint                   string
	EquityUSD              float64
	SolPriceUSD            float64
	Mode                   Mode
	StopPct                float64
	ExpectedMovePct        float64
	CurrentMintExposureUSD float64
	PoolTVLUSD             float64
	Vol5mUSD               float64
	Vol1hUSD               float64
}

// SweepSample is one liquidity-sweep probe: quote a buy of base*multiplier,
// then a sell of 90% of the tokens received, returning the round-trip ratio
// and each leg's price impact.
type SweepSample func(multiplier float64) (roundTrip, buyImpact, sellImpact float64, err error)

// Result is the sizer's decision.
type Result struct {
	SizeUSD        float64
	Rejected       bool
	RejectReason   string
	LimitingFactor string
}

// Sizer converts risk/liquidity/edge/concentration caps into a trade size.
type Sizer struct {
	cfg      config.SizerConfig
	governor *Governor
}

// New builds a sizer over the given config and a fresh governor.
func New(cfg config.SizerConfig) *Sizer {
	return &Sizer{
		cfg: cfg,
		governor: &Governor{
			haircut:      cfg.SafetyHaircut,
			minTVLCore:   cfg.GovernorTVLFloorCore,
			minTVLScout:  cfg.GovernorTVLFloorScout,
			minSamples:   cfg.GovernorMinSamples,
			haircutFloor: cfg.GovernorHaircutFloor,
			haircutCeil:  cfg.GovernorHaircutCeil,
		},
	}
}

// Governor returns the adaptive slippage governor so callers can feed it
// realised-vs-quoted telemetry.
func (s *Sizer) Governor() *Governor {
	return s.governor
}

// Size computes the final trade size for one decision.
func (s *Sizer) Size(in Input, sweep SweepSample) Result {
	cfg := s.cfg

	minTVL, min5m, entryMax, exitMax, minRoundTrip := s.modeThresholds(in.Mode)

	if in.PoolTVLUSD < minTVL || in.Vol5mUSD < min5m {
		return Result{Rejected: true, RejectReason: "liquidity"}
	}

	riskPerTrade := cfg.RiskPerTradeScout
	if in.Mode == ModeCore {
		riskPerTrade = cfg.RiskPerTradeCore
	}
	stopPct := in.StopPct
	if stopPct <= 0 {
		stopPct = 0.01
	}
	riskCap := in.EquityUSD * riskPerTrade / stopPct

	var base float64
	if in.Mode == ModeCore {
		base = 2 * cfg.MinTradeUSD
	} else {
		base = clamp(cfg.BaseUSD*math.Sqrt(in.EquityUSD/cfg.BaseEquityUSD), cfg.MinTradeUSD, cfg.MaxTradeUSD)
	}

	maxPassing := 0.0
	baseRoundTripCost := 1.0
	haveBaseRoundTrip := false
	for _, m := range sweepMultipliers {
		roundTrip, buyImpact, sellImpact, err := sweep(m)
		if err != nil {
			continue
		}
		if m == 1 {
			baseRoundTripCost = 1 - roundTrip
			haveBaseRoundTrip = true
		}
		if buyImpact <= entryMax && sellImpact <= exitMax && roundTrip >= minRoundTrip {
			candidate := base * m
			if candidate > maxPassing {
				maxPassing = candidate
			}
		}
	}
	if !haveBaseRoundTrip {
		if roundTrip, _, _, err := sweep(1); err == nil {
			baseRoundTripCost = 1 - roundTrip
		}
	}
	liquidityCap := maxPassing * s.governor.Haircut()

	buffer := cfg.EdgeBufferPct
	netEdge := in.ExpectedMovePct - baseRoundTripCost - buffer
	edgeCap := 0.0
	if netEdge > 0 {
		edgeCap = base * math.Min(netEdge/buffer, 2)
	}

	maxMintPct := cfg.MaxMintExposurePct
	mintCap := math.Max(0, in.EquityUSD*maxMintPct-in.CurrentMintExposureUSD)

	participation5m := in.Vol5mUSD * cfg.MaxParticipation5m
	participation1h := in.Vol1hUSD * cfg.MaxParticipation1h

	type capEntry struct {
		name  string
		value float64
	}
	caps := []capEntry{
		{"risk", riskCap},
		{"liquidity", liquidityCap},
		{"edge", edgeCap},
		{"mint", mintCap},
		{"participation_5m", participation5m},
		{"participation_1h", participation1h},
	}

	final := caps[0].value
	limiting := caps[0].name
	for _, c := range caps[1:] {
		if c.value < final {
			final = c.value
			limiting = c.name
		}
	}

	if final < cfg.MinTradeUSD {
		return Result{Rejected: true, RejectReason: "minimum", LimitingFactor: limiting}
	}

	return Result{SizeUSD: final, LimitingFactor: limiting}
}

func (s *Sizer) modeThresholds(mode Mode) (minTVL, min5mVol, entryMax, exitMax, minRoundTrip float64) {
	cfg := s.cfg
	if mode == ModeCore {
		return s.governor.MinTVL(ModeCore), cfg.Min5mVolumeCore, cfg.EntryImpactMaxCore, cfg.ExitImpactMaxCore, cfg.MinRoundTripCore
	}
	return s.governor.MinTVL(ModeScout), cfg.Min5mVolumeScout, cfg.EntryImpactMaxScout, cfg.ExitImpactMaxScout, cfg.MinRoundTripScout
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- Governor ----------------------------------------------------------

type slippageSample struct {
	quoted, realized float64
}

// Governor adaptively tunes the safety haircut and minimum-TVL gates from a
// sliding buffer of realised-vs-quoted slippage telemetry.
type Governor struct {
	mu           sync.Mutex
	samples      []slippageSample
	haircut      float64
	minTVLCore   float64
	minTVLScout  float64
	minSamples   int
	haircutFloor float64
	haircutCeil  float64
}

const governorBufferSize = 200

// RecordSlippage appends a (quoted, realized) slippage-pct pair and
// re-evaluates the haircut once enough samples have accumulated.
func (g *Governor) RecordSlippage(quotedPct, realizedPct float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.samples = append(g.samples, slippageSample{quoted: quotedPct, realized: realizedPct})
	if len(g.samples) > governorBufferSize {
		g.samples = g.samples[len(g.samples)-governorBufferSize:]
	}
	if len(g.samples) < g.minSamples {
		return
	}

	medQuoted := median(extract(g.samples, func(s slippageSample) float64 { return s.quoted }))
	medRealized := median(extract(g.samples, func(s slippageSample) float64 { return s.realized }))
	if medQuoted <= 0 {
		return
	}
	ratio := medRealized / medQuoted

	switch {
	case ratio > 1.5:
		severity := math.Min(ratio-1.5, 1.0)
		g.haircut = clamp(g.haircut-(0.02+severity*0.08), g.haircutFloor, g.haircutCeil)
		bump := 10000 + severity*40000
		g.minTVLCore += bump
		g.minTVLScout += bump / 5
	case ratio < 0.8:
		severity := math.Min(0.8-ratio, 0.8)
		g.haircut = clamp(g.haircut+(0.01+severity*0.04), g.haircutFloor, g.haircutCeil)
		relax := 5000 + severity*20000
		g.minTVLCore = math.Max(50000, g.minTVLCore-relax)
		g.minTVLScout = math.Max(10000, g.minTVLScout-relax/5)
	}
}

// Haircut returns the current adaptive safety haircut.
func (g *Governor) Haircut() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.haircut
}

// MinTVL returns the current adaptive minimum pool TVL for a mode.
func (g *Governor) MinTVL(mode Mode) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if mode == ModeCore {
		return g.minTVLCore
	}
	return g.minTVLScout
}

func extract(samples []slippageSample, f func(slippageSample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Package ranking scores held positions and candidates into ranked items
// with exit/promotion flags, and evaluates the rotation cascade that yields
// zero or one action per tick.
package ranking

import (
	"math"

	"solana-spot-engine/internal/config"
)

// Regime is the market regime tag carried on a Rankable.
type Regime string

const (
	RegimeTrend  Regime = "trend"
	RegimeChop   Regime = "chop"
	RegimeUnknown Regime = "unknown"
)

// SlotType distinguishes scout (probationary) from core (promoted) capacity.
type SlotType string

const (
	SlotScout SlotType = "scout"
	SlotCore  SlotType = "core"
)

// HeldPosition is a Rankable held in the portfolio.
type HeldPosition struct {
	Mint             string
	Signal           float64
	Regime           Regime
	EntryPrice       float64
	PeakPrice        float64
	CurrentPrice     float64
	EntryTimeMs      int64
	LastTimeMs       int64
	USDValue         float64
	SlotType         SlotType
	FIFODiscrepancy  bool
	PeakPnLPct       float64
}

// Candidate is a Rankable not currently held.
type Candidate struct {
	Mint            string
	Signal          float64
	Regime          Regime
	ScannerScore    float64
	Volume24h       float64
	Liquidity       float64
	PriceChange24h  float64
	FreshnessScore  float64
}

// Flags are the ten boolean outcomes a RankedItem for a held position can carry.
type Flags struct {
	IsStale                 bool
	TrailingStopTriggered   bool
	EligibleForPromotion    bool
	EligibleForRotation     bool
	ScoutStopLossTriggered  bool
	CoreLossExitTriggered   bool
	ScoutUnderperforming    bool
	ScoutGraceExpired       bool
	BreakEvenLocked         bool
	BreakEvenExitTriggered  bool
}

// RankedItem is the scored output for either a held position or a candidate.
type RankedItem struct {
	Mint       string
	Rank       float64
	SignalC    float64
	MomentumC  float64
	TimeC      float64
	TrailingC  float64
	FreshnessC float64
	QualityC   float64
	Flags      Flags
	Held       *HeldPosition
	Candidate  *Candidate
}

// Engine scores Rankables per config.RankingConfig and config.RiskConfig.
type Engine struct {
	ranking config.RankingConfig
	risk    config.RiskConfig
}

// New builds a ranking engine.
func New(ranking config.RankingConfig, risk config.RiskConfig) *Engine {
	return &Engine{ranking: ranking, risk: risk}
}

// ScoreHeld scores one held position at nowMs.
func (e *Engine) ScoreHeld(h HeldPosition, nowMs int64) RankedItem {
	r := e.ranking
	risk := e.risk

	pnl := 0.0
	if h.EntryPrice > 0 {
		pnl = (h.CurrentPrice - h.EntryPrice) / h.EntryPrice
	}
	hoursHeld := float64(nowMs-h.EntryTimeMs) / 3_600_000.0
	minutesHeld := float64(nowMs-h.EntryTimeMs) / 60_000.0

	signalC := h.Signal * r.WeightSignal
	momentumC := math.Tanh(5*pnl) * r.WeightMomentum

	timeC := 0.0
	isStale := false
	if hoursHeld > risk.StaleHours {
		timeC = -math.Min((hoursHeld-risk.StaleHours)/24, 2) * r.WeightTime
		if math.Abs(pnl) < risk.StaleBandPct {
			timeC += r.StalePenalty
			isStale = true
		}
	}

	trailingC := 0.0
	trailingStopTriggered := false
	if h.SlotType == SlotCore && h.PeakPrice > 0 {
		drop := (h.PeakPrice - h.CurrentPrice) / h.PeakPrice
		threshold := r.TrailingBasePct
		if pnl >= r.TrailingProfitThresh {
			threshold = r.TrailingTightPct
		}
		profitFloor := math.Max(0, risk.TakeProfitPct/2)
		switch {
		case drop > threshold && pnl < profitFloor:
			trailingStopTriggered = true
			trailingC = r.TrailingStopPenalty
		case drop > threshold:
			trailingC = -drop * r.WeightTrailing * 2
		case drop > threshold/2:
			trailingC = -drop * r.WeightTrailing
		}
	}

	rank := signalC + momentumC + timeC + trailingC

	scoutStopLoss := h.SlotType == SlotScout && pnl <= -risk.ScoutStopLossPct
	coreLossExit := h.SlotType == SlotCore && pnl <= -risk.CoreLossExitPct
	scoutUnderperforming := h.SlotType == SlotScout && pnl < 0 && minutesHeld >= risk.UnderperformMinutes
	scoutGraceExpired := scoutUnderperforming && minutesHeld >= risk.UnderperformMinutes+risk.GraceMinutes

	breakEvenLocked := pnl >= risk.BreakEvenLockPct || h.PeakPnLPct >= risk.BreakEvenLockPct
	breakEvenExit := breakEvenLocked && pnl < -0.005

	eligiblePromotion := h.SlotType == SlotScout && h.Regime == RegimeTrend &&
		pnl >= risk.PromoMinPnLPct && h.Signal >= risk.PromoMinSignal &&
		hoursHeld >= risk.PromoMinHours && !h.FIFODiscrepancy

	eligibleRotation := rank < 0

	return RankedItem{
		Mint: h.Mint, Rank: rank, SignalC: signalC, MomentumC: momentumC, TimeC: timeC, TrailingC: trailingC,
		Held: &h,
		Flags: Flags{
			IsStale:                isStale,
			TrailingStopTriggered:  trailingStopTriggered,
			EligibleForPromotion:   eligiblePromotion,
			EligibleForRotation:    eligibleRotation,
			ScoutStopLossTriggered: scoutStopLoss,
			CoreLossExitTriggered:  coreLossExit,
			ScoutUnderperforming:   scoutUnderperforming,
			ScoutGraceExpired:      scoutGraceExpired,
			BreakEvenLocked:        breakEvenLocked,
			BreakEvenExitTriggered: breakEvenExit,
		},
	}
}

// ScoreCandidate scores a not-yet-held candidate.
func (e *Engine) ScoreCandidate(c Candidate) RankedItem {
	r := e.ranking

	signalC := c.Signal * r.WeightSignal
	momentumC := math.Tanh(5*c.PriceChange24h) * r.WeightMomentum
	freshnessC := c.FreshnessScore * r.WeightTime

	volumeTier := tierScore(c.Volume24h, 50_000, 250_000)
	liquidityTier := tierScore(c.Liquidity, 20_000, 100_000)
	scannerTier := math.Min(c.ScannerScore/10, 1)
	qualityC := (volumeTier + liquidityTier + scannerTier) * r.WeightQuality

	rank := signalC + momentumC + freshnessC + qualityC

	return RankedItem{
		Mint: c.Mint, Rank: rank, SignalC: signalC, MomentumC: momentumC,
		FreshnessC: freshnessC, QualityC: qualityC, Candidate: &c,
	}
}

func tierScore(value, lowThreshold, highThreshold float64) float64 {
	switch {
	case value >= highThreshold:
		return 0.5
	case value >= lowThreshold:
		return 0.25
	default:
		return 0
	}
}

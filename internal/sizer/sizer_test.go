package sizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/config"
)

// S6: edge cap binds once risk, liquidity and mint caps are all looser.
func TestSize_EdgeCapBinds(t *testing.T) {
	cfg := config.SizerConfig{
		RiskPerTradeCore:   0.006,
		MinTradeUSD:        10,
		MaxTradeUSD:        500,
		MinPoolTVLCore:     50000,
		Min5mVolumeCore:    5000,
		EntryImpactMaxCore: 0.02,
		ExitImpactMaxCore:  0.02,
		MinRoundTripCore:   0.95,
		SafetyHaircut:      0.85,
		EdgeBufferPct:      0.01,
		MaxMintExposurePct: 0.25,
		MaxParticipation5m: 0.50,
		MaxParticipation1h: 0.50,
		GovernorMinSamples: 20,
		GovernorHaircutFloor: 0.50,
		GovernorHaircutCeil:  0.95,
		GovernorTVLFloorCore: 50000,
	}
	s := New(cfg)

	in := Input{
		Mint:                   "MintCore",
		EquityUSD:              1000,
		Mode:                   ModeCore,
		StopPct:                0.02,
		ExpectedMovePct:        0.03,
		CurrentMintExposureUSD: 0,
		PoolTVLUSD:             60000,
		Vol5mUSD:               10000,
		Vol1hUSD:               50000,
	}

	sweep := func(multiplier float64) (roundTrip, buyImpact, sellImpact float64, err error) {
		return 1.0, 0.005, 0.005, nil
	}

	result := s.Size(in, sweep)

	require.False(t, result.Rejected)
	require.Equal(t, "edge", result.LimitingFactor)
	require.InDelta(t, 40.0, result.SizeUSD, 0.01)
}

func TestSize_RejectsBelowLiquidityTier(t *testing.T) {
	cfg := config.SizerConfig{
		MinPoolTVLScout:  10000,
		Min5mVolumeScout: 2000,
	}
	s := New(cfg)

	in := Input{Mode: ModeScout, PoolTVLUSD: 500, Vol5mUSD: 100}
	result := s.Size(in, func(float64) (float64, float64, float64, error) { return 1, 0, 0, nil })

	require.True(t, result.Rejected)
	require.Equal(t, "liquidity", result.RejectReason)
}

func TestSize_RejectsBelowMinimum(t *testing.T) {
	cfg := config.SizerConfig{
		RiskPerTradeScout:  0.0001,
		MinTradeUSD:        10,
		MaxTradeUSD:        500,
		BaseUSD:            20,
		BaseEquityUSD:      1000,
		MinPoolTVLScout:    1000,
		Min5mVolumeScout:   100,
		EntryImpactMaxScout: 0.5,
		ExitImpactMaxScout:  0.5,
		MinRoundTripScout:   0.5,
		SafetyHaircut:       0.85,
		MaxMintExposurePct:  0.25,
	}
	s := New(cfg)

	in := Input{Mode: ModeScout, EquityUSD: 100, StopPct: 0.10, PoolTVLUSD: 2000, Vol5mUSD: 500}
	result := s.Size(in, func(float64) (float64, float64, float64, error) { return 1, 0, 0, nil })

	require.True(t, result.Rejected)
	require.Equal(t, "minimum", result.RejectReason)
}

func TestGovernor_RelaxesHaircutOnGoodFills(t *testing.T) {
	g := &Governor{haircut: 0.70, minTVLCore: 50000, minTVLScout: 10000, minSamples: 5, haircutFloor: 0.50, haircutCeil: 0.95}
	for i := 0; i < 6; i++ {
		g.RecordSlippage(0.02, 0.01)
	}
	require.Greater(t, g.Haircut(), 0.70)
}

func TestGovernor_TightensHaircutOnBadFills(t *testing.T) {
	g := &Governor{haircut: 0.85, minTVLCore: 50000, minTVLScout: 10000, minSamples: 5, haircutFloor: 0.50, haircutCeil: 0.95}
	for i := 0; i < 6; i++ {
		g.RecordSlippage(0.01, 0.03)
	}
	require.Less(t, g.Haircut(), 0.85)
}

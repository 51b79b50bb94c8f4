package orphan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_ReadyAfterGraceTicks(t *testing.T) {
	tr := New(3)
	targets := map[string]bool{}
	holdings := []Holding{{Mint: "MintA", Symbol: "AAA", USDValue: 50}}

	ready := tr.Tick(holdings, targets, 10, 1)
	require.Empty(t, ready)
	ready = tr.Tick(holdings, targets, 10, 2)
	require.Empty(t, ready)
	ready = tr.Tick(holdings, targets, 10, 3)
	require.Len(t, ready, 1)
	require.Equal(t, "MintA", ready[0].Mint)
	require.Equal(t, 3, ready[0].TicksMissing)
}

func TestTracker_ReappearanceInTargetsResolvesOrphan(t *testing.T) {
	tr := New(2)
	holdings := []Holding{{Mint: "MintA", Symbol: "AAA", USDValue: 50}}

	tr.Tick(holdings, map[string]bool{}, 10, 1)
	_, tracked := tr.Get("MintA")
	require.True(t, tracked)

	tr.Tick(holdings, map[string]bool{"MintA": true}, 10, 2)
	_, tracked = tr.Get("MintA")
	require.False(t, tracked)
}

func TestTracker_BelowThresholdConsumesEntry(t *testing.T) {
	tr := New(2)
	tr.Tick([]Holding{{Mint: "MintA", Symbol: "AAA", USDValue: 50}}, map[string]bool{}, 10, 1)
	_, tracked := tr.Get("MintA")
	require.True(t, tracked)

	tr.Tick([]Holding{{Mint: "MintA", Symbol: "AAA", USDValue: 0}}, map[string]bool{}, 10, 2)
	_, tracked = tr.Get("MintA")
	require.False(t, tracked)
}

func TestTracker_VanishedFromWalletConsumesEntry(t *testing.T) {
	tr := New(2)
	tr.Tick([]Holding{{Mint: "MintA", Symbol: "AAA", USDValue: 50}}, map[string]bool{}, 10, 1)
	require.Equal(t, 1, tr.Len())

	tr.Tick(nil, map[string]bool{}, 10, 2)
	require.Equal(t, 0, tr.Len())
}

package watchdog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/config"
)

func testWatchdog() *Watchdog {
	return New(config.WatchdogConfig{Enabled: true, MaxAttempts: 3, BaseMinutes: 5})
}

// S5 / invariant 6: after the 3rd failure, blocked for 5 minutes; after the
// 4th, blocked for 10 minutes (base x 2^(failures-max_attempts)).
func TestWatchdog_BackoffDoubling(t *testing.T) {
	w := testWatchdog()
	mint := "MintS5"
	now := int64(0)

	w.Record(mint, OutcomeFailed, "skip_route_failed", now)
	w.Record(mint, OutcomeFailed, "skip_route_failed", now)
	require.False(t, w.CheckStuckTarget(mint, now))

	w.Record(mint, OutcomeFailed, "skip_route_failed", now)
	require.True(t, w.CheckStuckTarget(mint, now+299))
	require.False(t, w.CheckStuckTarget(mint, now+301))

	w.Record(mint, OutcomeFailed, "skip_route_failed", now+301)
	require.True(t, w.CheckStuckTarget(mint, now+301+599))
	require.False(t, w.CheckStuckTarget(mint, now+301+601))
}

func TestWatchdog_SuccessClearsState(t *testing.T) {
	w := testWatchdog()
	mint := "MintReset"
	w.Record(mint, OutcomeFailed, "x", 0)
	w.Record(mint, OutcomeFailed, "x", 0)
	w.Record(mint, OutcomeFailed, "x", 0)
	require.True(t, w.CheckStuckTarget(mint, 0))

	w.Record(mint, OutcomeConfirmed, "", 0)
	require.False(t, w.CheckStuckTarget(mint, 0))
	require.Equal(t, 0, w.Failures(mint))
}

func TestWatchdog_DisabledIsNoOp(t *testing.T) {
	w := New(config.WatchdogConfig{Enabled: false, MaxAttempts: 1, BaseMinutes: 5})
	mint := "MintDisabled"
	w.Record(mint, OutcomeFailed, "x", 0)
	w.Record(mint, OutcomeFailed, "x", 0)
	require.False(t, w.CheckStuckTarget(mint, 0))
}

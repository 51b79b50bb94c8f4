package liquidation

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/storage"
)

func newTestLock(t *testing.T) (*Lock, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, config.LiquidationConfig{BanHours: 4}), db
}

// Invariant 8: between protective-exit time and reentry_ban_until, the
// mint reads as liquidating; the scout queue layer maps that to SKIPPED
// with reason liquidation_lock (exercised in scoutqueue's own tests via
// the IsLiquidationLocked hook).
func TestLock_ArmBlocksUntilBanExpires(t *testing.T) {
	l, _ := newTestLock(t)
	mint := "MintLock"
	now := int64(1000)

	require.NoError(t, l.Arm(mint, "core_loss_exit", now))

	locked, err := l.IsLiquidating(mint, now)
	require.NoError(t, err)
	require.True(t, locked)

	locked, err = l.IsLiquidating(mint, now+4*3600-1)
	require.NoError(t, err)
	require.True(t, locked)

	locked, err = l.IsLiquidating(mint, now+4*3600+1)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestLock_ArmCreatesRowIfAbsent(t *testing.T) {
	l, db := newTestLock(t)
	mint := "MintFresh"
	require.NoError(t, l.Arm(mint, "flash_close", 0))

	row, err := db.GetPositionTracking(mint)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.True(t, row.Liquidating)
	require.Equal(t, "flash_close", row.LiquidatingReason)
}

func TestLock_ClearReleasesBan(t *testing.T) {
	l, _ := newTestLock(t)
	mint := "MintClear"
	require.NoError(t, l.Arm(mint, "universe_exit", 0))

	locked, err := l.IsLiquidating(mint, 0)
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, l.Clear(mint))
	locked, err = l.IsLiquidating(mint, 0)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestLock_UnknownMintNotLiquidating(t *testing.T) {
	l, _ := newTestLock(t)
	locked, err := l.IsLiquidating("MintUnknown", 0)
	require.NoError(t, err)
	require.False(t, locked)
}

// Package liquidation implements the reentry-ban lock armed by protective
// exits: once a mint is liquidated for a protective reason, the scout
// queue refuses to reclaim it until the ban expires.
package liquidation

import (
	"fmt"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/storage"
)

// Lock drives the liquidation lock against position_tracking rows.
type Lock struct {
	db  *storage.DB
	cfg config.LiquidationConfig
}

// New builds a Lock.
func New(db *storage.DB, cfg config.LiquidationConfig) *Lock {
	return &Lock{db: db, cfg: cfg}
}

// Arm sets the liquidation lock for a mint, creating the position_tracking
// row if it is absent.
func (l *Lock) Arm(mint, reason string, now int64) error {
	row, err := l.db.GetPositionTracking(mint)
	if err != nil {
		return fmt.Errorf("liquidation: load tracking row for %s: %w", mint, err)
	}
	if row == nil {
		row = &storage.PositionTrack{Mint: mint}
	}

	row.Liquidating = true
	row.LiquidatingReason = reason
	row.LiquidatingSince = now
	row.ReentryBanUntil = now + int64(l.cfg.BanHours*3600)

	if err := l.db.UpsertPositionTracking(row); err != nil {
		return fmt.Errorf("liquidation: arm lock for %s: %w", mint, err)
	}
	return nil
}

// IsLiquidating reports whether a mint is currently locked: liquidating is
// set and reentry_ban_until has not yet passed. An expired ban reads as
// unlocked without needing an explicit clear.
func (l *Lock) IsLiquidating(mint string, now int64) (bool, error) {
	row, err := l.db.GetPositionTracking(mint)
	if err != nil {
		return false, fmt.Errorf("liquidation: load tracking row for %s: %w", mint, err)
	}
	if row == nil {
		return false, nil
	}
	return row.Liquidating && row.ReentryBanUntil > now, nil
}

// Clear explicitly releases a mint's liquidation lock.
func (l *Lock) Clear(mint string) error {
	row, err := l.db.GetPositionTracking(mint)
	if err != nil {
		return fmt.Errorf("liquidation: load tracking row for %s: %w", mint, err)
	}
	if row == nil {
		return nil
	}
	row.Liquidating = false
	row.LiquidatingReason = ""
	row.LiquidatingSince = 0
	row.ReentryBanUntil = 0
	if err := l.db.UpsertPositionTracking(row); err != nil {
		return fmt.Errorf("liquidation: clear lock for %s: %w", mint, err)
	}
	return nil
}

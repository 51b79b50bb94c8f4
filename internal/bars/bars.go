// Package bars writes one price observation per mint per minute and reads
// back SMAs, returns, highs, and drawdowns over bar windows.
package bars

import (
	"fmt"
	"sort"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/storage"
)

// WriteResult summarises one fill-forward writer pass.
type WriteResult struct {
	Tracked          int
	Written          int
	SkippedNoPrice   int
	SkippedExists    int
	Evicted          int
}

// Writer is the per-minute bar writer with LRU eviction over a bounded
// tracked-mint set.
type Writer struct {
	db  *storage.DB
	cfg config.BarsConfig

	lastSeen map[string]int64
}

// New builds a bar writer.
func New(db *storage.DB, cfg config.BarsConfig) *Writer {
	return &Writer{db: db, cfg: cfg, lastSeen: make(map[string]int64)}
}

// Write records one bar per tracked mint with a known last price,
// idempotent on (mint, minute), then evicts mints stale past the TTL or
// beyond the tracked-set size cap (oldest lastSeen first).
func (w *Writer) Write(lastPriceByMint map[string]float64, nowMinute int64) (WriteResult, error) {
	var result WriteResult
	result.Tracked = len(lastPriceByMint)

	for mint, price := range lastPriceByMint {
		w.lastSeen[mint] = nowMinute
		if price <= 0 {
			result.SkippedNoPrice++
			continue
		}
		written, err := w.db.InsertPriceBarIfAbsent(mint, nowMinute, price)
		if err != nil {
			return result, fmt.Errorf("bars: insert bar for %s: %w", mint, err)
		}
		if written {
			result.Written++
		} else {
			result.SkippedExists++
		}
	}

	evicted, err := w.evict(nowMinute)
	if err != nil {
		return result, err
	}
	result.Evicted = evicted

	return result, nil
}

func (w *Writer) evict(nowMinute int64) (int, error) {
	ttlMinutes := int64(w.cfg.TrackedMintTTLHours) * 60
	evicted := 0

	for mint, seen := range w.lastSeen {
		if nowMinute-seen > ttlMinutes {
			if err := w.db.DeleteBarsForMint(mint); err != nil {
				return evicted, fmt.Errorf("bars: evict stale mint %s: %w", mint, err)
			}
			delete(w.lastSeen, mint)
			evicted++
		}
	}

	if w.cfg.MaxTrackedMints > 0 && len(w.lastSeen) > w.cfg.MaxTrackedMints {
		type seenAt struct {
			mint string
			ts   int64
		}
		ordered := make([]seenAt, 0, len(w.lastSeen))
		for m, ts := range w.lastSeen {
			ordered = append(ordered, seenAt{m, ts})
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].ts < ordered[j].ts })

		overflow := len(w.lastSeen) - w.cfg.MaxTrackedMints
		for i := 0; i < overflow; i++ {
			mint := ordered[i].mint
			if err := w.db.DeleteBarsForMint(mint); err != nil {
				return evicted, fmt.Errorf("bars: LRU evict %s: %w", mint, err)
			}
			delete(w.lastSeen, mint)
			evicted++
		}
	}

	return evicted, nil
}

// Reader computes derived price metrics over stored bar windows.
type Reader struct {
	db *storage.DB
}

// NewReader builds a bars Reader.
func NewReader(db *storage.DB) *Reader {
	return &Reader{db: db}
}

// SMA returns the simple moving average over the trailing windowMinutes,
// and whether the window is "known" (bar count >= window minutes).
func (r *Reader) SMA(mint string, nowMinute int64, windowMinutes int64) (float64, bool, error) {
	bars, err := r.db.GetPriceBars(mint, nowMinute-windowMinutes+1, nowMinute)
	if err != nil {
		return 0, false, fmt.Errorf("bars: load SMA window for %s: %w", mint, err)
	}
	if int64(len(bars)) < windowMinutes {
		return 0, false, nil
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.UsdPrice
	}
	return sum / float64(len(bars)), true, nil
}

// Return computes the simple return over the trailing windowMinutes from
// the earliest to latest bar in range.
func (r *Reader) Return(mint string, nowMinute int64, windowMinutes int64) (float64, bool, error) {
	bars, err := r.db.GetPriceBars(mint, nowMinute-windowMinutes+1, nowMinute)
	if err != nil {
		return 0, false, fmt.Errorf("bars: load return window for %s: %w", mint, err)
	}
	if len(bars) < 2 || bars[0].UsdPrice <= 0 {
		return 0, false, nil
	}
	first, last := bars[0].UsdPrice, bars[len(bars)-1].UsdPrice
	return (last - first) / first, true, nil
}

// High returns the highest observed price over the trailing windowMinutes.
func (r *Reader) High(mint string, nowMinute int64, windowMinutes int64) (float64, bool, error) {
	bars, err := r.db.GetPriceBars(mint, nowMinute-windowMinutes+1, nowMinute)
	if err != nil {
		return 0, false, fmt.Errorf("bars: load high window for %s: %w", mint, err)
	}
	if len(bars) == 0 {
		return 0, false, nil
	}
	high := bars[0].UsdPrice
	for _, b := range bars[1:] {
		if b.UsdPrice > high {
			high = b.UsdPrice
		}
	}
	return high, true, nil
}

// Drawdown returns the max drawdown (as a negative fraction) from the
// trailing windowMinutes' running peak to its trough.
func (r *Reader) Drawdown(mint string, nowMinute int64, windowMinutes int64) (float64, bool, error) {
	bars, err := r.db.GetPriceBars(mint, nowMinute-windowMinutes+1, nowMinute)
	if err != nil {
		return 0, false, fmt.Errorf("bars: load drawdown window for %s: %w", mint, err)
	}
	if len(bars) == 0 {
		return 0, false, nil
	}
	peak := bars[0].UsdPrice
	maxDD := 0.0
	for _, b := range bars {
		if b.UsdPrice > peak {
			peak = b.UsdPrice
		}
		if peak > 0 {
			dd := (b.UsdPrice - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, true, nil
}

// BarCount returns how many bars exist for a mint in the trailing window,
// the input to the INSUFFICIENT_BARS entry-gate check.
func (r *Reader) BarCount(mint string, nowMinute int64, windowMinutes int64) (int, error) {
	bars, err := r.db.GetPriceBars(mint, nowMinute-windowMinutes+1, nowMinute)
	if err != nil {
		return 0, fmt.Errorf("bars: count bars for %s: %w", mint, err)
	}
	return len(bars), nil
}

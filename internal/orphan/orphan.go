// Package orphan tracks wallet holdings that have fallen off the current
// target universe, giving them a grace period before flagging them ready
// for a forced exit.
package orphan

import "sync"

// Entry is one tracked orphan holding.
type Entry struct {
	Mint           string
	Symbol         string
	FirstMissingAt int64
	TicksMissing   int
	LastUSDValue   float64
}

// Tracker holds in-memory orphan state across ticks.
type Tracker struct {
	graceTicks int

	mu      sync.RWMutex
	entries map[string]*Entry
}

// New builds an orphan tracker.
func New(graceTicks int) *Tracker {
	return &Tracker{graceTicks: graceTicks, entries: make(map[string]*Entry)}
}

// Holding is one wallet position observed this tick.
type Holding struct {
	Mint     string
	Symbol   string
	USDValue float64
}

// ReadyForExit is an orphan whose grace period has elapsed.
type ReadyForExit struct {
	Mint         string
	Symbol       string
	TicksMissing int
	LastUSDValue float64
}

// Tick reconciles wallet holdings against the current target set and the
// minimum trade-worthy USD value, returning holdings whose grace period
// has elapsed. Reappearance in targets or falling below min_trade_usd
// both clear the entry.
func (t *Tracker) Tick(holdings []Holding, targetMints map[string]bool, minTradeUSD float64, now int64) []ReadyForExit {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(holdings))
	var ready []ReadyForExit

	for _, h := range holdings {
		if h.USDValue < minTradeUSD {
			continue // below threshold: not trade-worthy, never tracked or already consumed below
		}
		seen[h.Mint] = true

		if targetMints[h.Mint] {
			delete(t.entries, h.Mint) // back in targets: orphan resolved
			continue
		}

		entry, ok := t.entries[h.Mint]
		if !ok {
			entry = &Entry{Mint: h.Mint, Symbol: h.Symbol, FirstMissingAt: now}
			t.entries[h.Mint] = entry
		}
		entry.TicksMissing++
		entry.LastUSDValue = h.USDValue
		entry.Symbol = h.Symbol

		if entry.TicksMissing >= t.graceTicks {
			ready = append(ready, ReadyForExit{
				Mint: entry.Mint, Symbol: entry.Symbol,
				TicksMissing: entry.TicksMissing, LastUSDValue: entry.LastUSDValue,
			})
		}
	}

	for mint := range t.entries {
		if !seen[mint] {
			delete(t.entries, mint) // consumed: balance fell below threshold or vanished from the wallet
		}
	}

	return ready
}

// Get returns the current orphan entry for a mint, if tracked.
func (t *Tracker) Get(mint string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[mint]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of currently tracked orphan entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

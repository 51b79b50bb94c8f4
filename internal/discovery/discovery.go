// Package discovery scans the market feed's search endpoint for new
// candidate mints and seeds them into the trading universe and scout queue:
// this engine sources its own universe rather than waiting on an external
// signal feed.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/market"
	"solana-spot-engine/internal/storage"
)

// Scanner periodically searches the market feed and upserts qualifying
// pairs into trading_universe plus a fresh scout_queue row.
type Scanner struct {
	db     *storage.DB
	client *market.Client
	cfgMgr *config.Manager
}

// New builds a universe scanner.
func New(db *storage.DB, client *market.Client, cfgMgr *config.Manager) *Scanner {
	return &Scanner{db: db, client: client, cfgMgr: cfgMgr}
}

// Run polls on the configured interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	cfg := s.cfgMgr.Get().Discovery
	interval := time.Duration(cfg.ScanIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context) {
	cfg := s.cfgMgr.Get().Discovery

	universe, err := s.db.GetActiveUniverse()
	if err != nil {
		log.Error().Err(err).Msg("discovery: load active universe")
		return
	}
	if len(universe) >= cfg.MaxUniverseSize {
		return
	}

	pairs, err := s.client.SearchPairs(ctx, cfg.SearchQuery)
	if err != nil {
		log.Warn().Err(err).Str("query", cfg.SearchQuery).Msg("discovery: search failed")
		return
	}

	known := make(map[string]bool, len(universe))
	for _, u := range universe {
		known[u.Mint] = true
	}

	added := 0
	room := cfg.MaxUniverseSize - len(universe)
	now := time.Now().Unix()
	for _, p := range pairs {
		if added >= room {
			break
		}
		mint := p.BaseToken.Address
		if mint == "" || known[mint] {
			continue
		}
		if p.Liquidity.Usd < cfg.MinLiquidityUSD || p.Volume.M5 < cfg.MinVolume5mUSD {
			continue
		}

		score := scoreOf(p)
		if err := s.db.AddToUniverse(&storage.UniverseMember{
			Mint: mint, Symbol: p.BaseToken.Symbol, AddedAt: now, Score: score,
		}); err != nil {
			log.Error().Err(err).Str("mint", mint).Msg("discovery: add to universe")
			continue
		}
		if err := s.db.UpsertScoutQueueItem(&storage.ScoutQueueItem{
			Mint: mint, Symbol: p.BaseToken.Symbol, Score: score,
			Reasons: fmt.Sprintf("discovery:%s", cfg.SearchQuery),
			Status:  "PENDING", QueuedAt: now, NextAttemptAt: now,
		}); err != nil {
			log.Error().Err(err).Str("mint", mint).Msg("discovery: enqueue scout candidate")
			continue
		}
		known[mint] = true
		added++
	}
	if added > 0 {
		log.Info().Int("added", added).Str("query", cfg.SearchQuery).Msg("discovery: seeded new candidates")
	}
}

// scoreOf turns liquidity and volume into a coarse scanner score on a
// 0-100 scale.
func scoreOf(p market.Pair) float64 {
	score := 50.0
	if p.Liquidity.Usd > 0 {
		score += min(p.Liquidity.Usd/10000.0, 25.0)
	}
	if p.Volume.M5 > 0 {
		score += min(p.Volume.M5/2000.0, 25.0)
	}
	return score
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

package market

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"solana-spot-engine/internal/engine"
)

// Snapshot is the cached market state for one mint, refreshed on each poll.
type Snapshot struct {
	PriceUSD       float64
	Volume24h      float64
	Vol5mUSD       float64
	Vol1hUSD       float64
	Liquidity      float64
	PriceChange24h float64
	FreshnessScore float64
}

// Poller refreshes a mint-keyed snapshot cache on a fixed interval,
// mirroring the refresh-on-interval caching internal/blockchain uses for
// wallet keys and blockhashes.
type Poller struct {
	client   *Client
	interval time.Duration

	mu   sync.RWMutex
	data map[string]Snapshot
}

// NewPoller builds a poller against client, refreshing every interval.
func NewPoller(client *Client, interval time.Duration) *Poller {
	return &Poller{
		client:   client,
		interval: interval,
		data:     make(map[string]Snapshot),
	}
}

// Run polls every mint returned by universe() until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, universe func() []string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refreshAll(ctx, universe())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshAll(ctx, universe())
		}
	}
}

func (p *Poller) refreshAll(ctx context.Context, mints []string) {
	for _, mint := range mints {
		pairs, err := p.client.GetPairs(ctx, mint)
		if err != nil {
			log.Warn().Err(err).Str("mint", mint).Msg("market: poll failed")
			continue
		}
		best, ok := BestPair(pairs)
		if !ok {
			continue
		}
		p.store(mint, best)
	}
}

func (p *Poller) store(mint string, pair Pair) {
	price := parsePrice(pair.PriceUsd)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[mint] = Snapshot{
		PriceUSD:       price,
		Volume24h:      pair.Volume.H24,
		Vol5mUSD:       pair.Volume.M5,
		Vol1hUSD:       pair.Volume.H1,
		Liquidity:      pair.Liquidity.Usd,
		PriceChange24h: pair.PriceChange.H24,
		FreshnessScore: freshnessScore(pair.PairCreatedAt),
	}
}

// freshnessScore decays linearly from 1 at listing to 0 at 30 days old.
func freshnessScore(createdAtMs int64) float64 {
	if createdAtMs <= 0 {
		return 0
	}
	ageDays := time.Since(time.UnixMilli(createdAtMs)).Hours() / 24
	const maxAgeDays = 30.0
	if ageDays <= 0 {
		return 1
	}
	if ageDays >= maxAgeDays {
		return 0
	}
	return 1 - ageDays/maxAgeDays
}

func parsePrice(s string) float64 {
	price, _ := strconv.ParseFloat(s, 64)
	return price
}

// LastPrices satisfies engine.Collaborators.LastPrices.
func (p *Poller) LastPrices() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.data))
	for mint, s := range p.data {
		out[mint] = s.PriceUSD
	}
	return out
}

// PriceUSD satisfies engine.Collaborators.PriceUSD.
func (p *Poller) PriceUSD(mint string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data[mint].PriceUSD
}

// PoolTVLUSD satisfies engine.Collaborators.PoolTVLUSD.
func (p *Poller) PoolTVLUSD(mint string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data[mint].Liquidity
}

// Vol5mUSD satisfies engine.Collaborators.Vol5mUSD.
func (p *Poller) Vol5mUSD(mint string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data[mint].Vol5mUSD
}

// Vol1hUSD satisfies engine.Collaborators.Vol1hUSD.
func (p *Poller) Vol1hUSD(mint string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data[mint].Vol1hUSD
}

// MarketStats satisfies engine.Collaborators.MarketStats. Regime and
// ScannerScore are left zero-valued: regime classification and the
// composite scanner score come from the (out-of-scope) market scanner this
// feed supplements, not from raw DexScreener fields.
func (p *Poller) MarketStats(mint string) engine.MarketSnapshot {
	p.mu.RLock()
	s := p.data[mint]
	p.mu.RUnlock()
	return engine.MarketSnapshot{
		Volume24h:      s.Volume24h,
		Liquidity:      s.Liquidity,
		PriceChange24h: s.PriceChange24h,
		FreshnessScore: s.FreshnessScore,
	}
}

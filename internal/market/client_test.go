package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, pairs []Pair) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(pairsResponse{Pairs: pairs}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetPairs_DecodesResponse(t *testing.T) {
	srv := newTestServer(t, []Pair{
		{PairAddress: "p1", PriceUsd: "1.5", Liquidity: struct {
			Usd float64 `json:"usd"`
		}{Usd: 50000}},
	})
	client := NewClient(srv.URL, time.Second)

	pairs, err := client.GetPairs(context.Background(), "MintA")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.Equal(t, "1.5", pairs[0].PriceUsd)
}

func TestBestPair_PicksHighestLiquidity(t *testing.T) {
	low := Pair{PairAddress: "low"}
	low.Liquidity.Usd = 1000
	high := Pair{PairAddress: "high"}
	high.Liquidity.Usd = 9000

	best, ok := BestPair([]Pair{low, high})
	require.True(t, ok)
	require.Equal(t, "high", best.PairAddress)
}

func TestBestPair_EmptyReturnsFalse(t *testing.T) {
	_, ok := BestPair(nil)
	require.False(t, ok)
}

func TestPoller_RefreshAllPopulatesSnapshots(t *testing.T) {
	pair := Pair{PairAddress: "p1", PriceUsd: "2.0"}
	pair.Liquidity.Usd = 20000
	pair.Volume.H24 = 5000
	srv := newTestServer(t, []Pair{pair})

	client := NewClient(srv.URL, time.Second)
	poller := NewPoller(client, time.Minute)

	poller.refreshAll(context.Background(), []string{"MintA"})

	require.Equal(t, 2.0, poller.PriceUSD("MintA"))
	require.Equal(t, 20000.0, poller.PoolTVLUSD("MintA"))
	require.Equal(t, map[string]float64{"MintA": 2.0}, poller.LastPrices())
}

func TestFreshnessScore_DecaysWithAge(t *testing.T) {
	now := time.Now().UnixMilli()
	require.InDelta(t, 1.0, freshnessScore(now), 0.01)
	require.Equal(t, 0.0, freshnessScore(0))

	old := time.Now().Add(-60 * 24 * time.Hour).UnixMilli()
	require.Equal(t, 0.0, freshnessScore(old))
}

package bars

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriter_IdempotentPerMinute(t *testing.T) {
	db := newTestDB(t)
	w := New(db, config.BarsConfig{TrackedMintTTLHours: 6, MaxTrackedMints: 200})

	result, err := w.Write(map[string]float64{"MintA": 1.0}, 100)
	require.NoError(t, err)
	require.Equal(t, 1, result.Written)

	result, err = w.Write(map[string]float64{"MintA": 1.5}, 100)
	require.NoError(t, err)
	require.Equal(t, 0, result.Written)
	require.Equal(t, 1, result.SkippedExists)
}

func TestWriter_SkipsNoPrice(t *testing.T) {
	db := newTestDB(t)
	w := New(db, config.BarsConfig{TrackedMintTTLHours: 6, MaxTrackedMints: 200})

	result, err := w.Write(map[string]float64{"MintA": 0}, 100)
	require.NoError(t, err)
	require.Equal(t, 1, result.SkippedNoPrice)
	require.Equal(t, 0, result.Written)
}

func TestWriter_TTLEvictsStaleMint(t *testing.T) {
	db := newTestDB(t)
	w := New(db, config.BarsConfig{TrackedMintTTLHours: 1, MaxTrackedMints: 200})

	_, err := w.Write(map[string]float64{"MintA": 1.0}, 0)
	require.NoError(t, err)

	result, err := w.Write(map[string]float64{"MintA": 1.0}, 0)
	require.NoError(t, err)
	_ = result

	result, err = w.Write(map[string]float64{"MintB": 1.0}, 61)
	require.NoError(t, err)
	require.Equal(t, 1, result.Evicted)

	bars, err := db.GetPriceBars("MintA", 0, 0)
	require.NoError(t, err)
	require.Empty(t, bars)
}

func TestWriter_LRUEvictsOverCap(t *testing.T) {
	db := newTestDB(t)
	w := New(db, config.BarsConfig{TrackedMintTTLHours: 6, MaxTrackedMints: 2})

	_, err := w.Write(map[string]float64{"MintA": 1.0}, 0)
	require.NoError(t, err)
	_, err = w.Write(map[string]float64{"MintB": 1.0}, 1)
	require.NoError(t, err)
	result, err := w.Write(map[string]float64{"MintC": 1.0}, 2)
	require.NoError(t, err)
	require.Equal(t, 1, result.Evicted)

	bars, err := db.GetPriceBars("MintA", 0, 0)
	require.NoError(t, err)
	require.Empty(t, bars)
}

func TestReader_SMAUnknownBelowWindow(t *testing.T) {
	db := newTestDB(t)
	w := New(db, config.BarsConfig{TrackedMintTTLHours: 6, MaxTrackedMints: 200})
	for i := int64(0); i < 3; i++ {
		_, err := w.Write(map[string]float64{"MintA": 1.0 + float64(i)}, i)
		require.NoError(t, err)
	}

	r := NewReader(db)
	_, known, err := r.SMA("MintA", 2, 5)
	require.NoError(t, err)
	require.False(t, known)
}

func TestReader_SMAKnownAtWindow(t *testing.T) {
	db := newTestDB(t)
	w := New(db, config.BarsConfig{TrackedMintTTLHours: 6, MaxTrackedMints: 200})
	for i := int64(0); i < 5; i++ {
		_, err := w.Write(map[string]float64{"MintA": 2.0}, i)
		require.NoError(t, err)
	}

	r := NewReader(db)
	sma, known, err := r.SMA("MintA", 4, 5)
	require.NoError(t, err)
	require.True(t, known)
	require.InDelta(t, 2.0, sma, 1e-9)
}

func TestReader_ReturnAndDrawdown(t *testing.T) {
	db := newTestDB(t)
	w := New(db, config.BarsConfig{TrackedMintTTLHours: 6, MaxTrackedMints: 200})
	prices := []float64{1.0, 1.2, 0.9, 1.1}
	for i, p := range prices {
		_, err := w.Write(map[string]float64{"MintA": p}, int64(i))
		require.NoError(t, err)
	}

	r := NewReader(db)
	ret, known, err := r.Return("MintA", 3, 4)
	require.NoError(t, err)
	require.True(t, known)
	require.InDelta(t, 0.1, ret, 1e-9)

	dd, known, err := r.Drawdown("MintA", 3, 4)
	require.NoError(t, err)
	require.True(t, known)
	require.InDelta(t, (0.9-1.2)/1.2, dd, 1e-9)
}

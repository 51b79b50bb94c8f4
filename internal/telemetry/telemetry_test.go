package telemetry

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

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

func TestRecordTick_PersistsAndSamples(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, prometheus.NewRegistry())

	require.NoError(t, r.RecordTick("tick-1", 42, 3, 5, 2, 0, "cfg-hash", 1000))
	require.NoError(t, r.RecordTick("tick-2", 84, 3, 5, 2, 0, "cfg-hash", 1060))

	require.Equal(t, int64(63), r.TickAvg())
}

func TestRecordCapacity_Persists(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, prometheus.NewRegistry())

	require.NoError(t, r.RecordCapacity(2, 1, 5, 3, 1000))
}

func TestRecordRotationAndAllocation_Persist(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, prometheus.NewRegistry())

	require.NoError(t, r.RecordRotation("rotate_out", "WorstMint", "BestMint", -1.5, 2.5, "stop_loss", 1000))
	require.NoError(t, r.RecordAllocation("MintA", "bought", "entry_gate_passed", 150.0, "", 1000))
}

func TestRecordTrade_IncrementsCounterAndInserts(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, prometheus.NewRegistry())

	id, err := r.RecordTrade(&storage.BotTrade{
		Mint: "MintA", Side: "buy", Status: "filled", AmountSol: 0.5,
		EntryValue: 100, Timestamp: 1000,
	}, 35.0)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))
}

func TestExportTradesCSV_WritesHeaderAndRows(t *testing.T) {
	db := newTestDB(t)
	_, err := db.InsertBotTrade(&storage.BotTrade{
		Mint: "MintA", TokenName: "Alpha", Side: "buy", Status: "filled",
		AmountSol: 0.5, EntryValue: 100, Timestamp: 1000,
	})
	require.NoError(t, err)
	_, err = db.InsertBotTrade(&storage.BotTrade{
		Mint: "MintB", TokenName: "Beta", Side: "sell", Status: "filled",
		AmountSol: 0.3, ExitValue: 80, PnL: 10, Timestamp: 1001,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := ExportTradesCSV(db, &buf, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, tradeCSVHeader, rows[0])
}

func TestExportTradesCSV_RespectsLimit(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		_, err := db.InsertBotTrade(&storage.BotTrade{
			Mint: "MintA", Side: "buy", Status: "filled", Timestamp: int64(1000 + i),
		})
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	n, err := ExportTradesCSV(db, &buf, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

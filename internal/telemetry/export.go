package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"solana-spot-engine/internal/storage"
)

var tradeCSVHeader = []string{
	"id", "mint", "token_name", "side", "reason_code", "status",
	"amount_sol", "entry_value", "exit_value", "pnl", "fees_usd",
	"duration", "entry_tx_sig", "exit_tx_sig", "timestamp",
}

// ExportTradesCSV writes up to limit recent bot_trades rows to w as CSV,
// most recent first, and returns the number of rows written.
func ExportTradesCSV(db *storage.DB, w io.Writer, limit int) (int, error) {
	trades, err := db.GetRecentTrades(limit)
	if err != nil {
		return 0, fmt.Errorf("telemetry: load trades for export: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(tradeCSVHeader); err != nil {
		return 0, fmt.Errorf("telemetry: write csv header: %w", err)
	}

	for _, t := range trades {
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Mint,
			t.TokenName,
			t.Side,
			t.ReasonCode,
			t.Status,
			strconv.FormatFloat(t.AmountSol, 'f', -1, 64),
			strconv.FormatFloat(t.EntryValue, 'f', -1, 64),
			strconv.FormatFloat(t.ExitValue, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
			strconv.FormatFloat(t.FeesUSD, 'f', -1, 64),
			strconv.FormatInt(t.Duration, 10),
			t.EntryTxSig,
			t.ExitTxSig,
			strconv.FormatInt(t.Timestamp, 10),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("telemetry: write csv row for trade %d: %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("telemetry: flush csv: %w", err)
	}

	return len(trades), nil
}

package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database backing every durable table the engine needs.
type DB struct {
	db *sql.DB
}

// NewDB opens (and migrates) the database at path.
func NewDB(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db}, nil
}

// DBHandle exposes the underlying *sql.DB for packages that need their own
// prepared statements (ledger two-phase commit runs inside a transaction).
func (d *DB) DBHandle() *sql.DB {
	return d.db
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bot_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mint TEXT NOT NULL,
		token_name TEXT NOT NULL,
		side TEXT NOT NULL,
		reason_code TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ok',
		amount_sol REAL NOT NULL DEFAULT 0,
		entry_value REAL NOT NULL DEFAULT 0,
		exit_value REAL NOT NULL DEFAULT 0,
		pnl REAL NOT NULL DEFAULT 0,
		fees_usd REAL NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		entry_tx_sig TEXT NOT NULL DEFAULT '',
		exit_tx_sig TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bot_trades_timestamp ON bot_trades(timestamp);
	CREATE INDEX IF NOT EXISTS idx_bot_trades_mint ON bot_trades(mint);

	CREATE TABLE IF NOT EXISTS trade_lots (
		lot_id TEXT PRIMARY KEY,
		tx_sig TEXT NOT NULL UNIQUE,
		timestamp INTEGER NOT NULL,
		mint TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		usd_value REAL NOT NULL,
		unit_price_usd REAL NOT NULL,
		sol_price_usd REAL NOT NULL DEFAULT 0,
		fee_usd REAL NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'confirmed',
		decision_id TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_trade_lots_mint ON trade_lots(mint, timestamp);

	CREATE TABLE IF NOT EXISTS position_lots (
		lot_id TEXT PRIMARY KEY REFERENCES trade_lots(lot_id),
		mint TEXT NOT NULL,
		original_qty REAL NOT NULL,
		remaining_qty REAL NOT NULL,
		cost_basis_usd REAL NOT NULL,
		unit_cost_usd REAL NOT NULL,
		entry_timestamp INTEGER NOT NULL,
		is_closed INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_position_lots_mint ON position_lots(mint, entry_timestamp);

	CREATE TABLE IF NOT EXISTS pnl_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mint TEXT NOT NULL,
		lot_id TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		cost_basis_usd REAL NOT NULL DEFAULT 0,
		pnl_usd REAL NOT NULL DEFAULT 0,
		quantity REAL NOT NULL DEFAULT 0,
		tx_sig TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pnl_events_mint ON pnl_events(mint, timestamp);

	CREATE TABLE IF NOT EXISTS position_tracking (
		mint TEXT PRIMARY KEY,
		entry_price REAL NOT NULL,
		peak_price REAL NOT NULL,
		peak_time INTEGER NOT NULL,
		last_price REAL NOT NULL,
		last_update INTEGER NOT NULL,
		total_tokens REAL NOT NULL,
		slot_type TEXT NOT NULL DEFAULT 'scout',
		promotion_count INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		liquidating INTEGER NOT NULL DEFAULT 0,
		liquidating_reason TEXT NOT NULL DEFAULT '',
		liquidating_since INTEGER NOT NULL DEFAULT 0,
		reentry_ban_until INTEGER NOT NULL DEFAULT 0,
		peak_pnl_pct REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trading_universe (
		mint TEXT PRIMARY KEY,
		symbol TEXT NOT NULL DEFAULT '',
		added_at INTEGER NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS scout_queue (
		mint TEXT PRIMARY KEY,
		symbol TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		reasons TEXT NOT NULL DEFAULT '',
		spend_sol REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'PENDING',
		buy_attempts INTEGER NOT NULL DEFAULT 0,
		warmup_attempts INTEGER NOT NULL DEFAULT 0,
		in_progress_at INTEGER NOT NULL DEFAULT 0,
		next_attempt_at INTEGER NOT NULL DEFAULT 0,
		last_attempt_at INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		tx_sig TEXT NOT NULL DEFAULT '',
		queued_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scout_queue_status ON scout_queue(status, next_attempt_at);

	CREATE TABLE IF NOT EXISTS rotation_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		worst_mint TEXT NOT NULL DEFAULT '',
		best_mint TEXT NOT NULL DEFAULT '',
		worst_rank REAL NOT NULL DEFAULT 0,
		best_rank REAL NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS allocation_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mint TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		size_usd REAL NOT NULL DEFAULT 0,
		limiting_factor TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_allocation_events_ts ON allocation_events(timestamp);

	CREATE TABLE IF NOT EXISTS equity_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		equity_usd REAL NOT NULL,
		sol_price_usd REAL NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bot_tick_telemetry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick_id TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		positions_count INTEGER NOT NULL DEFAULT 0,
		candidates_count INTEGER NOT NULL DEFAULT 0,
		queue_depth INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0,
		config_hash TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watch_candidates (
		mint TEXT PRIMARY KEY,
		symbol TEXT NOT NULL DEFAULT '',
		first_seen_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS capacity_telemetry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scout_slots_used INTEGER NOT NULL DEFAULT 0,
		core_slots_used INTEGER NOT NULL DEFAULT 0,
		scout_slots_total INTEGER NOT NULL DEFAULT 0,
		core_slots_total INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bot_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_bars (
		mint TEXT NOT NULL,
		ts_minute INTEGER NOT NULL,
		usd_price REAL NOT NULL,
		PRIMARY KEY (mint, ts_minute)
	);
	CREATE INDEX IF NOT EXISTS idx_price_bars_mint_ts ON price_bars(mint, ts_minute);
	`

	_, err := db.Exec(schema)
	return err
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Now returns current Unix timestamp (helper, matches the rest of the
// codebase's convention of stamping rows with int64 unix seconds).
func Now() int64 {
	return time.Now().Unix()
}

// --- bot_trades -----------------------------------------------------------

// BotTrade is one row per attempted swap.
type BotTrade struct {
	ID         int64
	Mint       string
	TokenName  string
	Side       string
	ReasonCode string
	Status     string
	AmountSol  float64
	EntryValue float64
	ExitValue  float64
	PnL        float64
	FeesUSD    float64
	Duration   int64
	EntryTxSig string
	ExitTxSig  string
	Timestamp  int64
}

// InsertBotTrade logs a completed or attempted swap.
func (d *DB) InsertBotTrade(t *BotTrade) (int64, error) {
	res, err := d.db.Exec(`
		INSERT INTO bot_trades
		(mint, token_name, side, reason_code, status, amount_sol, entry_value, exit_value, pnl, fees_usd, duration, entry_tx_sig, exit_tx_sig, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Mint, t.TokenName, t.Side, t.ReasonCode, t.Status, t.AmountSol, t.EntryValue, t.ExitValue, t.PnL, t.FeesUSD, t.Duration, t.EntryTxSig, t.ExitTxSig, t.Timestamp)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetRecentTrades retrieves the most recent trades.
func (d *DB) GetRecentTrades(limit int) ([]*BotTrade, error) {
	rows, err := d.db.Query(`
		SELECT id, mint, token_name, side, reason_code, status, amount_sol, entry_value, exit_value, pnl, fees_usd, duration, entry_tx_sig, exit_tx_sig, timestamp
		FROM bot_trades ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*BotTrade
	for rows.Next() {
		var t BotTrade
		if err := rows.Scan(&t.ID, &t.Mint, &t.TokenName, &t.Side, &t.ReasonCode, &t.Status, &t.AmountSol, &t.EntryValue, &t.ExitValue, &t.PnL, &t.FeesUSD, &t.Duration, &t.EntryTxSig, &t.ExitTxSig, &t.Timestamp); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

// GetTradingStats returns aggregate trading stats.
func (d *DB) GetTradingStats() (totalTrades int, winRate float64, totalPnL float64, err error) {
	var wins int
	err = d.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END) as wins,
			COALESCE(SUM(pnl), 0) as total_pnl
		FROM bot_trades WHERE side = 'sell'`).Scan(&totalTrades, &wins, &totalPnL)
	if err != nil {
		return
	}
	if totalTrades > 0 {
		winRate = float64(wins) / float64(totalTrades) * 100
	}
	return
}

// --- trade_lots / position_lots / pnl_events ------------------------------

// TradeLot is an immutable record of one fill.
type TradeLot struct {
	LotID        string
	TxSig        string
	Timestamp    int64
	Mint         string
	Side         string
	Quantity     float64
	USDValue     float64
	UnitPriceUSD float64
	SolPriceUSD  float64
	FeeUSD       float64
	Source       string
	Status       string
	DecisionID   string
}

// PositionLot is the live remainder of a buy lot.
type PositionLot struct {
	LotID          string
	Mint           string
	OriginalQty    float64
	RemainingQty   float64
	CostBasisUSD   float64
	UnitCostUSD    float64
	EntryTimestamp int64
	IsClosed       bool
}

// PnLEvent records a realized P&L outcome.
type PnLEvent struct {
	ID           int64
	Mint         string
	LotID        string
	EventType    string
	CostBasisUSD float64
	PnLUSD       float64
	Quantity     float64
	TxSig        string
	Timestamp    int64
}

// GetTradeLotByTxSig returns the lot for a tx_sig, or nil if absent. Used to
// make insert_trade_lot idempotent.
func (d *DB) GetTradeLotByTxSig(txSig string) (*TradeLot, error) {
	var l TradeLot
	err := d.db.QueryRow(`
		SELECT lot_id, tx_sig, timestamp, mint, side, quantity, usd_value, unit_price_usd, sol_price_usd, fee_usd, source, status, decision_id
		FROM trade_lots WHERE tx_sig = ?`, txSig).Scan(
		&l.LotID, &l.TxSig, &l.Timestamp, &l.Mint, &l.Side, &l.Quantity, &l.USDValue, &l.UnitPriceUSD, &l.SolPriceUSD, &l.FeeUSD, &l.Source, &l.Status, &l.DecisionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertTradeLot inserts a new immutable lot row.
func (d *DB) InsertTradeLot(l *TradeLot) error {
	_, err := d.db.Exec(`
		INSERT INTO trade_lots
		(lot_id, tx_sig, timestamp, mint, side, quantity, usd_value, unit_price_usd, sol_price_usd, fee_usd, source, status, decision_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.LotID, l.TxSig, l.Timestamp, l.Mint, l.Side, l.Quantity, l.USDValue, l.UnitPriceUSD, l.SolPriceUSD, l.FeeUSD, l.Source, l.Status, l.DecisionID)
	return err
}

// InsertPositionLot creates the open-position lot matching a buy.
func (d *DB) InsertPositionLot(p *PositionLot) error {
	_, err := d.db.Exec(`
		INSERT INTO position_lots
		(lot_id, mint, original_qty, remaining_qty, cost_basis_usd, unit_cost_usd, entry_timestamp, is_closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.LotID, p.Mint, p.OriginalQty, p.RemainingQty, p.CostBasisUSD, p.UnitCostUSD, p.EntryTimestamp, boolToInt(p.IsClosed))
	return err
}

// GetOpenPositionLots returns open lots for a mint, oldest first (FIFO order).
func (d *DB) GetOpenPositionLots(mint string) ([]*PositionLot, error) {
	rows, err := d.db.Query(`
		SELECT lot_id, mint, original_qty, remaining_qty, cost_basis_usd, unit_cost_usd, entry_timestamp, is_closed
		FROM position_lots WHERE mint = ? AND is_closed = 0 ORDER BY entry_timestamp ASC`, mint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []*PositionLot
	for rows.Next() {
		var p PositionLot
		var closed int
		if err := rows.Scan(&p.LotID, &p.Mint, &p.OriginalQty, &p.RemainingQty, &p.CostBasisUSD, &p.UnitCostUSD, &p.EntryTimestamp, &closed); err != nil {
			return nil, err
		}
		p.IsClosed = closed != 0
		lots = append(lots, &p)
	}
	return lots, rows.Err()
}

// UpdatePositionLotRemaining writes back a lot's remaining quantity and
// closed flag after a FIFO match commits.
func (d *DB) UpdatePositionLotRemaining(lotID string, remainingQty float64, isClosed bool) error {
	_, err := d.db.Exec(`UPDATE position_lots SET remaining_qty = ?, is_closed = ? WHERE lot_id = ?`,
		remainingQty, boolToInt(isClosed), lotID)
	return err
}

// InsertPnLEvent records a realized P&L outcome.
func (d *DB) InsertPnLEvent(e *PnLEvent) error {
	_, err := d.db.Exec(`
		INSERT INTO pnl_events (mint, lot_id, event_type, cost_basis_usd, pnl_usd, quantity, tx_sig, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Mint, e.LotID, e.EventType, e.CostBasisUSD, e.PnLUSD, e.Quantity, e.TxSig, e.Timestamp)
	return err
}

// GetPnLEvents returns the most recent pnl_events for a mint.
func (d *DB) GetPnLEvents(mint string, limit int) ([]*PnLEvent, error) {
	rows, err := d.db.Query(`
		SELECT id, mint, lot_id, event_type, cost_basis_usd, pnl_usd, quantity, tx_sig, timestamp
		FROM pnl_events WHERE mint = ? ORDER BY timestamp DESC LIMIT ?`, mint, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*PnLEvent
	for rows.Next() {
		var e PnLEvent
		if err := rows.Scan(&e.ID, &e.Mint, &e.LotID, &e.EventType, &e.CostBasisUSD, &e.PnLUSD, &e.Quantity, &e.TxSig, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- position_tracking ------------------------------------------------------

// PositionTrack is one row per currently-held mint.
type PositionTrack struct {
	Mint              string
	EntryPrice        float64
	PeakPrice         float64
	PeakTime          int64
	LastPrice         float64
	LastUpdate        int64
	TotalTokens       float64
	SlotType          string
	PromotionCount    int
	Source            string
	Liquidating       bool
	LiquidatingReason string
	LiquidatingSince  int64
	ReentryBanUntil   int64
	PeakPnLPct        float64
}

// UpsertPositionTracking creates or replaces a position_tracking row.
func (d *DB) UpsertPositionTracking(p *PositionTrack) error {
	_, err := d.db.Exec(`
		INSERT INTO position_tracking
		(mint, entry_price, peak_price, peak_time, last_price, last_update, total_tokens, slot_type, promotion_count, source, liquidating, liquidating_reason, liquidating_since, reentry_ban_until, peak_pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mint) DO UPDATE SET
			entry_price=excluded.entry_price, peak_price=excluded.peak_price, peak_time=excluded.peak_time,
			last_price=excluded.last_price, last_update=excluded.last_update, total_tokens=excluded.total_tokens,
			slot_type=excluded.slot_type, promotion_count=excluded.promotion_count, source=excluded.source,
			liquidating=excluded.liquidating, liquidating_reason=excluded.liquidating_reason,
			liquidating_since=excluded.liquidating_since, reentry_ban_until=excluded.reentry_ban_until,
			peak_pnl_pct=excluded.peak_pnl_pct`,
		p.Mint, p.EntryPrice, p.PeakPrice, p.PeakTime, p.LastPrice, p.LastUpdate, p.TotalTokens, p.SlotType,
		p.PromotionCount, p.Source, boolToInt(p.Liquidating), p.LiquidatingReason, p.LiquidatingSince, p.ReentryBanUntil, p.PeakPnLPct)
	return err
}

// GetPositionTracking fetches one position_tracking row, nil if absent.
func (d *DB) GetPositionTracking(mint string) (*PositionTrack, error) {
	var p PositionTrack
	var liquidating int
	err := d.db.QueryRow(`
		SELECT mint, entry_price, peak_price, peak_time, last_price, last_update, total_tokens, slot_type, promotion_count, source, liquidating, liquidating_reason, liquidating_since, reentry_ban_until, peak_pnl_pct
		FROM position_tracking WHERE mint = ?`, mint).Scan(
		&p.Mint, &p.EntryPrice, &p.PeakPrice, &p.PeakTime, &p.LastPrice, &p.LastUpdate, &p.TotalTokens, &p.SlotType,
		&p.PromotionCount, &p.Source, &liquidating, &p.LiquidatingReason, &p.LiquidatingSince, &p.ReentryBanUntil, &p.PeakPnLPct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Liquidating = liquidating != 0
	return &p, nil
}

// GetAllPositionTracking returns every held mint's tracking row.
func (d *DB) GetAllPositionTracking() ([]*PositionTrack, error) {
	rows, err := d.db.Query(`
		SELECT mint, entry_price, peak_price, peak_time, last_price, last_update, total_tokens, slot_type, promotion_count, source, liquidating, liquidating_reason, liquidating_since, reentry_ban_until, peak_pnl_pct
		FROM position_tracking`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PositionTrack
	for rows.Next() {
		var p PositionTrack
		var liquidating int
		if err := rows.Scan(&p.Mint, &p.EntryPrice, &p.PeakPrice, &p.PeakTime, &p.LastPrice, &p.LastUpdate, &p.TotalTokens, &p.SlotType,
			&p.PromotionCount, &p.Source, &liquidating, &p.LiquidatingReason, &p.LiquidatingSince, &p.ReentryBanUntil, &p.PeakPnLPct); err != nil {
			return nil, err
		}
		p.Liquidating = liquidating != 0
		out = append(out, &p)
	}
	return out, rows.Err()
}

// DeletePositionTracking removes a mint's tracking row on full close.
func (d *DB) DeletePositionTracking(mint string) error {
	_, err := d.db.Exec("DELETE FROM position_tracking WHERE mint = ?", mint)
	return err
}

// --- scout_queue ------------------------------------------------------------

// ScoutQueueItem is one row of the persistent scout queue.
type ScoutQueueItem struct {
	Mint           string
	Symbol         string
	Score          float64
	Reasons        string
	SpendSol       float64
	Status         string
	BuyAttempts    int
	WarmupAttempts int
	InProgressAt   int64
	NextAttemptAt  int64
	LastAttemptAt  int64
	LastError      string
	TxSig          string
	QueuedAt       int64
}

// UpsertScoutQueueItem inserts or replaces a scout queue row.
func (d *DB) UpsertScoutQueueItem(s *ScoutQueueItem) error {
	_, err := d.db.Exec(`
		INSERT INTO scout_queue
		(mint, symbol, score, reasons, spend_sol, status, buy_attempts, warmup_attempts, in_progress_at, next_attempt_at, last_attempt_at, last_error, tx_sig, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mint) DO UPDATE SET
			symbol=excluded.symbol, score=excluded.score, reasons=excluded.reasons, spend_sol=excluded.spend_sol,
			status=excluded.status, buy_attempts=excluded.buy_attempts, warmup_attempts=excluded.warmup_attempts,
			in_progress_at=excluded.in_progress_at, next_attempt_at=excluded.next_attempt_at,
			last_attempt_at=excluded.last_attempt_at, last_error=excluded.last_error, tx_sig=excluded.tx_sig`,
		s.Mint, s.Symbol, s.Score, s.Reasons, s.SpendSol, s.Status, s.BuyAttempts, s.WarmupAttempts,
		s.InProgressAt, s.NextAttemptAt, s.LastAttemptAt, s.LastError, s.TxSig, s.QueuedAt)
	return err
}

// ClaimNextPending atomically claims the oldest due PENDING row, transitioning
// it to IN_PROGRESS. Returns nil, nil if nothing is claimable. The single-row
// conditional UPDATE is the serialisation point referenced by the claim
// exclusivity requirement: only one caller's UPDATE can match a given row.
func (d *DB) ClaimNextPending(now int64) (*ScoutQueueItem, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var mint string
	err = tx.QueryRow(`
		SELECT mint FROM scout_queue
		WHERE status = 'PENDING' AND next_attempt_at <= ?
		ORDER BY queued_at ASC LIMIT 1`, now).Scan(&mint)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.Exec(`
		UPDATE scout_queue SET status = 'IN_PROGRESS', in_progress_at = ?
		WHERE mint = ? AND status = 'PENDING'`, now, mint)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	var s ScoutQueueItem
	err = tx.QueryRow(`
		SELECT mint, symbol, score, reasons, spend_sol, status, buy_attempts, warmup_attempts, in_progress_at, next_attempt_at, last_attempt_at, last_error, tx_sig, queued_at
		FROM scout_queue WHERE mint = ?`, mint).Scan(
		&s.Mint, &s.Symbol, &s.Score, &s.Reasons, &s.SpendSol, &s.Status, &s.BuyAttempts, &s.WarmupAttempts,
		&s.InProgressAt, &s.NextAttemptAt, &s.LastAttemptAt, &s.LastError, &s.TxSig, &s.QueuedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStaleInProgress returns IN_PROGRESS rows whose in_progress_at predates
// the cutoff, for watchdog recovery.
func (d *DB) GetStaleInProgress(cutoff int64) ([]*ScoutQueueItem, error) {
	rows, err := d.db.Query(`
		SELECT mint, symbol, score, reasons, spend_sol, status, buy_attempts, warmup_attempts, in_progress_at, next_attempt_at, last_attempt_at, last_error, tx_sig, queued_at
		FROM scout_queue WHERE status = 'IN_PROGRESS' AND in_progress_at < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScoutQueueItem
	for rows.Next() {
		var s ScoutQueueItem
		if err := rows.Scan(&s.Mint, &s.Symbol, &s.Score, &s.Reasons, &s.SpendSol, &s.Status, &s.BuyAttempts, &s.WarmupAttempts,
			&s.InProgressAt, &s.NextAttemptAt, &s.LastAttemptAt, &s.LastError, &s.TxSig, &s.QueuedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// GetScoutQueueItem fetches a single row by mint.
func (d *DB) GetScoutQueueItem(mint string) (*ScoutQueueItem, error) {
	var s ScoutQueueItem
	err := d.db.QueryRow(`
		SELECT mint, symbol, score, reasons, spend_sol, status, buy_attempts, warmup_attempts, in_progress_at, next_attempt_at, last_attempt_at, last_error, tx_sig, queued_at
		FROM scout_queue WHERE mint = ?`, mint).Scan(
		&s.Mint, &s.Symbol, &s.Score, &s.Reasons, &s.SpendSol, &s.Status, &s.BuyAttempts, &s.WarmupAttempts,
		&s.InProgressAt, &s.NextAttemptAt, &s.LastAttemptAt, &s.LastError, &s.TxSig, &s.QueuedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountScoutQueueByStatus returns the number of rows in a given status.
func (d *DB) CountScoutQueueByStatus(status string) (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM scout_queue WHERE status = ?`, status).Scan(&n)
	return n, err
}

// CountBotTradesSince counts bot_trades rows (for the daily entry limit gate).
func (d *DB) CountBotTradesSince(side string, since int64) (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM bot_trades WHERE side = ? AND timestamp >= ?`, side, since).Scan(&n)
	return n, err
}

// --- trading_universe -------------------------------------------------------

// UniverseMember is one row in the trading universe.
type UniverseMember struct {
	Mint    string
	Symbol  string
	AddedAt int64
	Score   float64
	Active  bool
}

// AddToUniverse inserts or reactivates a mint in the target universe.
func (d *DB) AddToUniverse(u *UniverseMember) error {
	_, err := d.db.Exec(`
		INSERT INTO trading_universe (mint, symbol, added_at, score, active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(mint) DO UPDATE SET symbol=excluded.symbol, score=excluded.score, active=1`,
		u.Mint, u.Symbol, u.AddedAt, u.Score)
	return err
}

// GetActiveUniverse returns the currently active universe.
func (d *DB) GetActiveUniverse() ([]*UniverseMember, error) {
	rows, err := d.db.Query(`SELECT mint, symbol, added_at, score, active FROM trading_universe WHERE active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*UniverseMember
	for rows.Next() {
		var u UniverseMember
		var active int
		if err := rows.Scan(&u.Mint, &u.Symbol, &u.AddedAt, &u.Score, &active); err != nil {
			return nil, err
		}
		u.Active = active != 0
		out = append(out, &u)
	}
	return out, rows.Err()
}

// --- rotation_log / allocation_events / equity_snapshots --------------------

// InsertRotationLog records a rotation-evaluator decision.
func (d *DB) InsertRotationLog(action, worstMint, bestMint string, worstRank, bestRank float64, reason string, ts int64) error {
	_, err := d.db.Exec(`
		INSERT INTO rotation_log (action, worst_mint, best_mint, worst_rank, best_rank, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		action, worstMint, bestMint, worstRank, bestRank, reason, ts)
	return err
}

// InsertAllocationEvent records a sizer/scout-queue outcome.
func (d *DB) InsertAllocationEvent(mint, outcome, reason string, sizeUSD float64, limitingFactor string, ts int64) error {
	_, err := d.db.Exec(`
		INSERT INTO allocation_events (mint, outcome, reason, size_usd, limiting_factor, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		mint, outcome, reason, sizeUSD, limitingFactor, ts)
	return err
}

// InsertEquitySnapshot records a point-in-time equity reading.
func (d *DB) InsertEquitySnapshot(equityUSD, solPriceUSD float64, ts int64) error {
	_, err := d.db.Exec(`INSERT INTO equity_snapshots (equity_usd, sol_price_usd, timestamp) VALUES (?, ?, ?)`,
		equityUSD, solPriceUSD, ts)
	return err
}

// --- bot_tick_telemetry / watch_candidates / capacity_telemetry ------------

// InsertTickTelemetry records one tick's summary counters.
func (d *DB) InsertTickTelemetry(tickID string, durationMs int64, positions, candidates, queueDepth, errs int, configHash string, ts int64) error {
	_, err := d.db.Exec(`
		INSERT INTO bot_tick_telemetry (tick_id, duration_ms, positions_count, candidates_count, queue_depth, errors_count, config_hash, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tickID, durationMs, positions, candidates, queueDepth, errs, configHash, ts)
	return err
}

// UpsertWatchCandidate tracks a mint stuck in INSUFFICIENT_BARS warmup.
func (d *DB) UpsertWatchCandidate(mint, symbol, reason string, ts int64) error {
	_, err := d.db.Exec(`
		INSERT INTO watch_candidates (mint, symbol, first_seen_at, last_seen_at, reason, attempts)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(mint) DO UPDATE SET last_seen_at=excluded.last_seen_at, reason=excluded.reason, attempts=attempts+1`,
		mint, symbol, ts, ts, reason)
	return err
}

// DeleteWatchCandidate removes a mint once it leaves warmup.
func (d *DB) DeleteWatchCandidate(mint string) error {
	_, err := d.db.Exec(`DELETE FROM watch_candidates WHERE mint = ?`, mint)
	return err
}

// InsertCapacityTelemetry records slot utilisation for a tick.
func (d *DB) InsertCapacityTelemetry(scoutUsed, coreUsed, scoutTotal, coreTotal int, ts int64) error {
	_, err := d.db.Exec(`
		INSERT INTO capacity_telemetry (scout_slots_used, core_slots_used, scout_slots_total, core_slots_total, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		scoutUsed, coreUsed, scoutTotal, coreTotal, ts)
	return err
}

// --- bot_settings ------------------------------------------------------------

// GetSetting reads a key/value setting, "" if absent.
func (d *DB) GetSetting(key string) (string, error) {
	var v string
	err := d.db.QueryRow(`SELECT value FROM bot_settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SetSetting writes a key/value setting.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO bot_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

// --- price_bars --------------------------------------------------------------

// PriceBar is one per-minute price observation.
type PriceBar struct {
	Mint     string
	TsMinute int64
	UsdPrice float64
}

// InsertPriceBarIfAbsent inserts a bar, a no-op if (mint, ts_minute) exists.
// Returns true if a row was written.
func (d *DB) InsertPriceBarIfAbsent(mint string, tsMinute int64, usdPrice float64) (bool, error) {
	res, err := d.db.Exec(`INSERT OR IGNORE INTO price_bars (mint, ts_minute, usd_price) VALUES (?, ?, ?)`,
		mint, tsMinute, usdPrice)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetPriceBars returns bars for a mint within [sinceMinute, untilMinute], ascending.
func (d *DB) GetPriceBars(mint string, sinceMinute, untilMinute int64) ([]*PriceBar, error) {
	rows, err := d.db.Query(`
		SELECT mint, ts_minute, usd_price FROM price_bars
		WHERE mint = ? AND ts_minute >= ? AND ts_minute <= ? ORDER BY ts_minute ASC`,
		mint, sinceMinute, untilMinute)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PriceBar
	for rows.Next() {
		var b PriceBar
		if err := rows.Scan(&b.Mint, &b.TsMinute, &b.UsdPrice); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// DistinctBarMints returns every mint with at least one bar row, used by the
// fill-forward writer's TTL eviction pass.
func (d *DB) DistinctBarMints() ([]string, error) {
	rows, err := d.db.Query(`SELECT DISTINCT mint FROM price_bars`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		mints = append(mints, m)
	}
	return mints, rows.Err()
}

// DeleteBarsForMint evicts all bars for a mint (LRU eviction of tracked set).
func (d *DB) DeleteBarsForMint(mint string) error {
	_, err := d.db.Exec(`DELETE FROM price_bars WHERE mint = ?`, mint)
	return err
}

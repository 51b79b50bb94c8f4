// Package closer implements balance-truth position closure: sell whatever
// is actually on-chain, retry under tightening slippage, and guarantee the
// exit invariant terminates with either a flat position or a durable
// partial_exit_remaining record — never an infinite retry loop.
package closer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/ledger"
	"solana-spot-engine/internal/storage"
)

// ReasonCode enumerates the fixed set of exit reasons.
type ReasonCode string

const (
	ReasonScoutStopLoss          ReasonCode = "scout_stop_loss_exit"
	ReasonScoutUnderperformGrace ReasonCode = "scout_underperform_grace_expired"
	ReasonScoutTakeProfit        ReasonCode = "scout_take_profit_exit"
	ReasonCoreLossExit           ReasonCode = "core_loss_exit"
	ReasonTakeProfit             ReasonCode = "take_profit"
	ReasonFlashClose             ReasonCode = "flash_close"
	ReasonUniverseExit           ReasonCode = "universe_exit"
)

// protectiveExitReasons is the subset that additionally arms the
// liquidation lock: the loss-driven and forced exits, not the
// profit-taking ones.
var protectiveExitReasons = map[ReasonCode]bool{
	ReasonScoutStopLoss:          true,
	ReasonScoutUnderperformGrace: true,
	ReasonCoreLossExit:           true,
	ReasonFlashClose:             true,
	ReasonUniverseExit:           true,
}

// IsProtective reports whether a reason code arms the liquidation lock.
func IsProtective(reason ReasonCode) bool {
	return protectiveExitReasons[reason]
}

// BalanceReader reads the live on-chain token balance for a mint, in token
// base units.
type BalanceReader func(ctx context.Context, mint string) (uint64, error)

// Swapper submits a sell swap for a given base-unit amount at a given
// slippage cap and returns the tx signature, base-unit amount sold, and
// USD proceeds realised.
type Swapper func(ctx context.Context, mint string, amountBaseUnits uint64, slippageBps int, outputIsUSDC bool) (txSig string, soldBaseUnits uint64, proceedsUSD float64, err error)

// Result is the outcome of a close_position call.
type Result struct {
	Success      bool
	FullyClosed  bool
	Sold         float64
	Remaining    float64
	ProceedsUSD  float64
	RealizedPnL  float64
	TxSig        string
	Retried      int
	Status       string // "closed", "triggered_cleanup", "failed"
}

// Closer drives close_position.
type Closer struct {
	db     *storage.DB
	ledger *ledger.Ledger
	cfg    config.CloserConfig
}

// New builds a Closer.
func New(db *storage.DB, lg *ledger.Ledger, cfg config.CloserConfig) *Closer {
	return &Closer{db: db, ledger: lg, cfg: cfg}
}

// ClosePosition implements the close_position contract: balance-truth
// read, sell, retry with tightening slippage, exit-invariant sub-algorithm,
// then durable partial_exit_remaining on terminal failure.
func (c *Closer) ClosePosition(ctx context.Context, mint string, reason ReasonCode, readBalance BalanceReader, swap Swapper, decimals int, priceUSD func() float64, now int64) (Result, error) {
	unitScale := pow10(decimals)

	balance, err := readBalance(ctx, mint)
	if err != nil {
		return Result{}, fmt.Errorf("closer: read balance %s: %w", mint, err)
	}
	if float64(balance)/unitScale <= c.cfg.MinQty {
		c.finalizeClosed(mint, float64(balance)/unitScale*priceUSD())
		return Result{Success: true, FullyClosed: true, Status: "closed"}, nil
	}

	outputIsUSDC := reason == ReasonFlashClose
	sellAmount := balance
	if reason == ReasonFlashClose {
		// flash close: sell 95% of the token balance with USDC as output; the
		// other 5% stays in the wallet. No SOL reserve is deducted here.
		sellAmount = uint64(float64(balance) * 0.95)
	}

	txSig, sold, proceeds, err := swap(ctx, mint, sellAmount, c.cfg.InitialSlippageBps, outputIsUSDC)
	if err != nil {
		log.Warn().Str("mint", mint).Err(err).Msg("closer: initial sell failed")
		return Result{Status: "failed"}, nil
	}

	totalSold := sold
	totalProceeds := proceeds
	c.bookProceeds(mint, txSig, sold, proceeds, unitScale, reason, now)

	time.Sleep(500 * time.Millisecond)
	balance, err = readBalance(ctx, mint)
	if err != nil {
		return Result{}, fmt.Errorf("closer: re-read balance %s: %w", mint, err)
	}
	residualUSD := float64(balance) / unitScale * priceUSD()

	retried := 0
	if residualUSD > c.cfg.DustThresholdUSD {
		slippage := minInt(c.cfg.InitialSlippageBps*2, c.cfg.MaxSlippageBps)
		txSig2, sold2, proceeds2, err := swap(ctx, mint, balance, slippage, outputIsUSDC)
		retried++
		if err == nil {
			totalSold += sold2
			totalProceeds += proceeds2
			c.bookProceeds(mint, txSig2, sold2, proceeds2, unitScale, reason, now)
			txSig = txSig2
		}

		balance, err = readBalance(ctx, mint)
		if err != nil {
			return Result{}, fmt.Errorf("closer: retry balance read %s: %w", mint, err)
		}
		residualUSD = float64(balance) / unitScale * priceUSD()
	}

	if residualUSD <= c.cfg.DustThresholdUSD {
		c.finalizeClosed(mint, residualUSD)
		status := "closed"
		if retried > 0 {
			status = "triggered_cleanup"
		}
		return Result{Success: true, FullyClosed: true, Sold: float64(totalSold) / unitScale, ProceedsUSD: totalProceeds, TxSig: txSig, Retried: retried, Status: status}, nil
	}

	maxRetries := c.cfg.MaxRetries
	if c.cfg.ForceExactRetries > 0 {
		maxRetries = c.cfg.ForceExactRetries
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		time.Sleep(time.Duration(c.cfg.RetryDelayMs) * time.Millisecond)

		balance, err = readBalance(ctx, mint)
		if err != nil {
			return Result{}, fmt.Errorf("closer: invariant-loop balance read %s: %w", mint, err)
		}
		qty := float64(balance) / unitScale
		usd := qty * priceUSD()
		if qty <= c.cfg.MinQty || usd <= c.cfg.MinUSD {
			c.finalizeClosed(mint, usd)
			return Result{Success: true, FullyClosed: true, Sold: float64(totalSold) / unitScale, ProceedsUSD: totalProceeds, TxSig: txSig, Retried: retried + attempt + 1, Status: "triggered_cleanup"}, nil
		}

		// dust buffer: leave 10 base units unsold to avoid a rounding-driven
		// insufficient-balance rejection on the swap route.
		dustBuffer := uint64(10)
		sellBase := balance
		if sellBase > dustBuffer {
			sellBase -= dustBuffer
		}

		slippage := minInt(c.cfg.InitialSlippageBps*2, c.cfg.MaxSlippageBps)
		txSigN, soldN, proceedsN, err := swap(ctx, mint, sellBase, slippage, outputIsUSDC)
		if err != nil {
			continue
		}
		totalSold += soldN
		totalProceeds += proceedsN
		c.bookProceeds(mint, txSigN, soldN, proceedsN, unitScale, reason, now)
		txSig = txSigN
	}

	balance, err = readBalance(ctx, mint)
	if err != nil {
		return Result{}, fmt.Errorf("closer: final balance read %s: %w", mint, err)
	}
	residualQty := float64(balance) / unitScale
	residualUSD = residualQty * priceUSD()

	if residualUSD <= c.cfg.DustThresholdUSD || residualQty <= c.cfg.MinQty {
		c.finalizeClosed(mint, residualUSD)
		return Result{Success: true, FullyClosed: true, Sold: float64(totalSold) / unitScale, ProceedsUSD: totalProceeds, TxSig: txSig, Retried: maxRetries, Status: "triggered_cleanup"}, nil
	}

	if err := c.db.InsertPnLEvent(&storage.PnLEvent{
		Mint: mint, EventType: "partial_exit_remaining", PnLUSD: -residualUSD,
		Quantity: residualQty, Timestamp: now,
	}); err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("closer: failed to insert partial_exit_remaining event")
	}

	return Result{Success: false, FullyClosed: false, Sold: float64(totalSold) / unitScale, Remaining: residualQty, ProceedsUSD: totalProceeds, TxSig: txSig, Retried: maxRetries, Status: "failed"}, nil
}

func (c *Closer) bookProceeds(mint, txSig string, soldBaseUnits uint64, proceedsUSD, unitScale float64, reason ReasonCode, now int64) {
	qty := float64(soldBaseUnits) / unitScale
	if qty <= 0 {
		return
	}
	_, err := c.ledger.ProcessSellWithFIFO(txSig, mint, qty, proceedsUSD, nil)
	if err != nil {
		log.Error().Err(err).Str("mint", mint).Str("reason", string(reason)).Msg("closer: FIFO booking failed")
	}
}

func (c *Closer) finalizeClosed(mint string, residualValueUSD float64) {
	if residualValueUSD > 0 {
		if err := c.ledger.WriteOffDust(mint, residualValueUSD); err != nil {
			log.Error().Err(err).Str("mint", mint).Msg("closer: dust writeoff failed")
		}
	}
	if err := c.db.DeletePositionTracking(mint); err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("closer: failed to delete position tracking row")
	}
}

func pow10(decimals int) float64 {
	v := 1.0
	for i := 0; i < decimals; i++ {
		v *= 10
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

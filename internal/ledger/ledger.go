// Package ledger implements the lot-based P&L engine: immutable buy/sell
// lots, open-position lots, and FIFO sell-matching with PnL-sanity clamping
// against ground-truth portfolio deltas.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"solana-spot-engine/internal/storage"
)

const dustQty = 1e-6

// EventType values stored in pnl_events.event_type.
const (
	EventRealizedGain       = "realized_gain"
	EventRealizedLoss       = "realized_loss"
	EventDustWriteoff       = "dust_writeoff"
	EventFee                = "fee"
	EventPartialExitRemain  = "partial_exit_remaining"
)

// Ledger is the lot ledger backed by the relational store.
type Ledger struct {
	db *storage.DB
}

// New wraps a store as a lot ledger.
func New(db *storage.DB) *Ledger {
	return &Ledger{db: db}
}

// SellResult is the outcome of a FIFO sell match.
type SellResult struct {
	RealizedPnL float64
	LotsMatched int
	Suspicious  bool
	Unmatched   float64
}

// InsertTradeLot records one fill. Idempotent on tx_sig: a second call with
// the same tx_sig is a no-op. On a buy it also opens the matching
// position-lot with remaining = original.
func (l *Ledger) InsertTradeLot(lot *storage.TradeLot) error {
	existing, err := l.db.GetTradeLotByTxSig(lot.TxSig)
	if err != nil {
		return fmt.Errorf("ledger: check existing lot: %w", err)
	}
	if existing != nil {
		return nil
	}

	if lot.LotID == "" {
		lot.LotID = uuid.NewString()
	}

	if err := l.db.InsertTradeLot(lot); err != nil {
		return fmt.Errorf("ledger: insert trade lot: %w", err)
	}

	if lot.Side == "buy" {
		unitCost := 0.0
		if lot.Quantity > 0 {
			unitCost = lot.USDValue / lot.Quantity
		}
		pos := &storage.PositionLot{
			LotID:          lot.LotID,
			Mint:           lot.Mint,
			OriginalQty:    lot.Quantity,
			RemainingQty:   lot.Quantity,
			CostBasisUSD:   lot.USDValue,
			UnitCostUSD:    unitCost,
			EntryTimestamp: lot.Timestamp,
			IsClosed:       false,
		}
		if err := l.db.InsertPositionLot(pos); err != nil {
			return fmt.Errorf("ledger: open position lot: %w", err)
		}
	}

	return nil
}

type matchedLot struct {
	lotID        string
	qtyMatched   float64
	costBasis    decimal.Decimal
	newRemaining float64
}

// ProcessSellWithFIFO is the central invariant: matches a sell against open
// lots in FIFO order, applies the suspicious-PnL sanity filter, and commits
// position-lot and pnl_event updates.
func (l *Ledger) ProcessSellWithFIFO(txSig, mint string, sellQty, proceedsUSD float64, portfolioDeltaUSD *float64) (SellResult, error) {
	openLots, err := l.db.GetOpenPositionLots(mint)
	if err != nil {
		return SellResult{}, fmt.Errorf("ledger: load open lots: %w", err)
	}

	sellQtyDec := decimal.NewFromFloat(sellQty)
	proceedsDec := decimal.NewFromFloat(proceedsUSD)
	remaining := sellQtyDec

	var matches []matchedLot
	totalCostBasis := decimal.Zero
	totalMatchedQty := decimal.Zero

	for _, lot := range openLots {
		if remaining.LessThanOrEqual(decimal.NewFromFloat(dustQty)) {
			break
		}
		lotRemaining := decimal.NewFromFloat(lot.RemainingQty)
		qtyMatched := decimal.Min(lotRemaining, remaining)
		if qtyMatched.LessThanOrEqual(decimal.Zero) {
			continue
		}
		unitCost := decimal.NewFromFloat(lot.UnitCostUSD)
		costBasisMatched := qtyMatched.Mul(unitCost)

		newRemaining := lotRemaining.Sub(qtyMatched)
		matches = append(matches, matchedLot{
			lotID:        lot.LotID,
			qtyMatched:   qtyMatched.InexactFloat64(),
			costBasis:    costBasisMatched,
			newRemaining: newRemaining.InexactFloat64(),
		})

		totalCostBasis = totalCostBasis.Add(costBasisMatched)
		totalMatchedQty = totalMatchedQty.Add(qtyMatched)
		remaining = remaining.Sub(qtyMatched)
	}

	unmatchedQty := decimal.Max(remaining, decimal.Zero)

	calculatedPnL := proceedsDec.Sub(totalCostBasis)

	suspicious := isSuspicious(totalCostBasis, calculatedPnL, proceedsDec)

	if portfolioDeltaUSD != nil {
		delta := decimal.NewFromFloat(*portfolioDeltaUSD)
		threshold := decimal.Max(decimal.NewFromInt(1), proceedsDec.Mul(decimal.NewFromFloat(0.5)))
		if calculatedPnL.Sub(delta).Abs().GreaterThan(threshold) {
			suspicious = true
		}
	}

	adjustedPnL := calculatedPnL
	if suspicious {
		if portfolioDeltaUSD != nil {
			adjustedPnL = decimal.NewFromFloat(*portfolioDeltaUSD)
		} else {
			adjustedPnL = decimal.Zero
		}
	}

	now := storage.Now()

	if len(matches) > 0 && !totalMatchedQty.IsZero() {
		for _, m := range matches {
			share := decimal.NewFromFloat(m.qtyMatched).Div(totalMatchedQty)
			var pnlShare decimal.Decimal
			if suspicious {
				pnlShare = adjustedPnL.Mul(share)
			} else {
				pnlShare = proceedsDec.Mul(share).Sub(m.costBasis)
			}

			isClosed := m.newRemaining < dustQty
			if err := l.db.UpdatePositionLotRemaining(m.lotID, m.newRemaining, isClosed); err != nil {
				return SellResult{}, fmt.Errorf("ledger: update lot remaining: %w", err)
			}

			eventType := EventRealizedGain
			if pnlShare.IsNegative() {
				eventType = EventRealizedLoss
			}
			if err := l.db.InsertPnLEvent(&storage.PnLEvent{
				Mint:         mint,
				LotID:        m.lotID,
				EventType:    eventType,
				CostBasisUSD: m.costBasis.InexactFloat64(),
				PnLUSD:       pnlShare.InexactFloat64(),
				Quantity:     m.qtyMatched,
				TxSig:        txSig,
				Timestamp:    now,
			}); err != nil {
				return SellResult{}, fmt.Errorf("ledger: insert pnl event: %w", err)
			}
		}
	}

	if unmatchedQty.GreaterThan(decimal.NewFromFloat(dustQty)) {
		unmatchedPnL := decimal.Zero
		if !totalMatchedQty.IsZero() && !sellQtyDec.IsZero() {
			share := unmatchedQty.Div(sellQtyDec)
			unmatchedPnL = adjustedPnL.Mul(share)
		} else if portfolioDeltaUSD != nil {
			unmatchedPnL = decimal.NewFromFloat(*portfolioDeltaUSD)
		}
		eventType := EventRealizedGain
		if unmatchedPnL.IsNegative() {
			eventType = EventRealizedLoss
		}
		if err := l.db.InsertPnLEvent(&storage.PnLEvent{
			Mint:         mint,
			EventType:    eventType,
			CostBasisUSD: 0,
			PnLUSD:       unmatchedPnL.InexactFloat64(),
			Quantity:     unmatchedQty.InexactFloat64(),
			TxSig:        txSig,
			Timestamp:    now,
		}); err != nil {
			return SellResult{}, fmt.Errorf("ledger: insert unmatched pnl event: %w", err)
		}
	}

	sellLotID := uuid.NewString()
	unitPrice := 0.0
	if sellQty > 0 {
		unitPrice = proceedsUSD / sellQty
	}
	if err := l.db.InsertTradeLot(&storage.TradeLot{
		LotID:        sellLotID,
		TxSig:        txSig,
		Timestamp:    now,
		Mint:         mint,
		Side:         "sell",
		Quantity:     sellQty,
		USDValue:     proceedsUSD,
		UnitPriceUSD: unitPrice,
		Status:       "confirmed",
	}); err != nil {
		return SellResult{}, fmt.Errorf("ledger: insert sell trade lot: %w", err)
	}

	realized := adjustedPnL
	if !suspicious {
		realized = calculatedPnL
	}

	log.Debug().Str("mint", mint).Float64("sell_qty", sellQty).
		Float64("proceeds", proceedsUSD).Bool("suspicious", suspicious).
		Float64("realized_pnl", realized.InexactFloat64()).Msg("fifo sell processed")

	return SellResult{
		RealizedPnL: realized.InexactFloat64(),
		LotsMatched: len(matches),
		Suspicious:  suspicious,
		Unmatched:   unmatchedQty.InexactFloat64(),
	}, nil
}

// isSuspicious applies the three-way sanity filter from the FIFO matcher
// contract: tiny cost basis with outsized PnL, PnL/cost ratio blowouts, or
// PnL exceeding proceeds outright.
func isSuspicious(costBasis, pnl, proceeds decimal.Decimal) bool {
	if costBasis.LessThan(decimal.NewFromFloat(0.01)) && pnl.GreaterThan(decimal.NewFromInt(1)) {
		return true
	}
	if costBasis.GreaterThan(decimal.Zero) {
		ratio := pnl.Div(costBasis)
		if ratio.GreaterThan(decimal.NewFromFloat(5.0)) {
			return true
		}
	}
	if pnl.GreaterThan(proceeds.Mul(decimal.NewFromInt(2))) {
		return true
	}
	return false
}

// WriteOffDust zeros all open lots for a mint and books a dust_writeoff
// event whose PnL is remaining_value - total_cost_basis.
func (l *Ledger) WriteOffDust(mint string, remainingValueUSD float64) error {
	openLots, err := l.db.GetOpenPositionLots(mint)
	if err != nil {
		return fmt.Errorf("ledger: load open lots for writeoff: %w", err)
	}
	if len(openLots) == 0 {
		return nil
	}

	totalCostBasis := decimal.Zero
	for _, lot := range openLots {
		totalCostBasis = totalCostBasis.Add(decimal.NewFromFloat(lot.CostBasisUSD).Mul(
			decimal.NewFromFloat(lot.RemainingQty).Div(decimal.NewFromFloat(lot.OriginalQty))))
		if err := l.db.UpdatePositionLotRemaining(lot.LotID, 0, true); err != nil {
			return fmt.Errorf("ledger: zero lot on writeoff: %w", err)
		}
	}

	pnl := decimal.NewFromFloat(remainingValueUSD).Sub(totalCostBasis)
	return l.db.InsertPnLEvent(&storage.PnLEvent{
		Mint:         mint,
		EventType:    EventDustWriteoff,
		CostBasisUSD: totalCostBasis.InexactFloat64(),
		PnLUSD:       pnl.InexactFloat64(),
		Timestamp:    storage.Now(),
	})
}

// IntegrityResult flags mismatches between the FIFO ledger and
// position_tracking for a mint.
type IntegrityResult struct {
	FIFOMissing      bool
	QuantityMismatch bool
	PriceMismatch    bool
}

// Any reports whether any discrepancy flag is set.
func (r IntegrityResult) Any() bool {
	return r.FIFOMissing || r.QuantityMismatch || r.PriceMismatch
}

// CheckIntegrity compares open-lot aggregates against the position-tracking
// row for a mint. These flags propagate to ranking and suppress promotion.
func (l *Ledger) CheckIntegrity(mint string, trackedTotalTokens, trackedEntryPrice float64) (IntegrityResult, error) {
	openLots, err := l.db.GetOpenPositionLots(mint)
	if err != nil {
		return IntegrityResult{}, fmt.Errorf("ledger: load open lots for integrity check: %w", err)
	}
	if len(openLots) == 0 {
		if trackedTotalTokens > dustQty {
			return IntegrityResult{FIFOMissing: true}, nil
		}
		return IntegrityResult{}, nil
	}

	var totalQty, totalCost float64
	for _, lot := range openLots {
		totalQty += lot.RemainingQty
		totalCost += lot.RemainingQty * lot.UnitCostUSD
	}
	avgCost := 0.0
	if totalQty > 0 {
		avgCost = totalCost / totalQty
	}

	var result IntegrityResult
	if trackedTotalTokens > 0 {
		diff := (totalQty - trackedTotalTokens) / trackedTotalTokens
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.20 {
			result.QuantityMismatch = true
		}
	}
	if trackedEntryPrice > 0 && avgCost > 0 {
		ratio := avgCost / trackedEntryPrice
		if ratio > 2.0 || ratio < 0.5 {
			result.PriceMismatch = true
		}
	}
	return result, nil
}

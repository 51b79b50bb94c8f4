// Package execution composes the blockchain and Jupiter primitives into the
// narrow collaborator functions internal/engine and internal/closer need
// (quote, sign, send), pulled out here so engine and closer stay free of
// transport concerns.
package execution

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"solana-spot-engine/internal/blockchain"
	"solana-spot-engine/internal/jupiter"
	"solana-spot-engine/internal/sizer"
)

// maxProbeImpactPct gates the sellability/exit-liquidity probes: a route
// whose quoted price impact exceeds this is treated as not sellable.
const maxProbeImpactPct = 0.15

// USDCMint is the canonical USDC mint on mainnet, used as the flash-close
// liquidation target instead of routing back through SOL.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// defaultDecimals is used for mints this runner hasn't observed a token
// account for yet; nearly all SPL meme-coin mints use 6.
const defaultDecimals = 6

// Runner bundles the on-chain primitives a swap needs.
type Runner struct {
	Wallet    *blockchain.Wallet
	RPC       *blockchain.RPCClient
	Jupiter   *jupiter.Client
	TxBuilder *blockchain.TransactionBuilder

	mu       sync.RWMutex
	decimals map[string]int
}

// New builds a swap runner from the wired blockchain components.
func New(wallet *blockchain.Wallet, rpc *blockchain.RPCClient, jup *jupiter.Client, txBuilder *blockchain.TransactionBuilder) *Runner {
	return &Runner{Wallet: wallet, RPC: rpc, Jupiter: jup, TxBuilder: txBuilder, decimals: make(map[string]int)}
}

// Decimals returns the last-observed decimal precision for mint, learned
// opportunistically from ReadBalance calls, satisfying
// engine.Collaborators.Decimals.
func (r *Runner) Decimals(mint string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.decimals[mint]; ok {
		return d
	}
	return defaultDecimals
}

// Buy swaps spendSol SOL (converted to lamports) for mint and returns the tokens
// received, satisfying engine.Collaborators.ExecuteSwap.
func (r *Runner) Buy(mint string, spendSol float64) (string, float64, error) {
	ctx := context.Background()
	lamports := uint64(spendSol * 1e9)

	quote, err := r.Jupiter.GetQuote(ctx, jupiter.SOLMint, mint, lamports)
	if err != nil {
		return "", 0, fmt.Errorf("execution: quote buy %s: %w", mint, err)
	}

	swapTx, err := r.Jupiter.GetSwapTransaction(ctx, jupiter.SOLMint, mint, r.Wallet.Address(), lamports)
	if err != nil {
		return "", 0, fmt.Errorf("execution: build swap for %s: %w", mint, err)
	}

	signedTx, err := r.TxBuilder.SignSerializedTransaction(swapTx)
	if err != nil {
		return "", 0, fmt.Errorf("execution: sign swap for %s: %w", mint, err)
	}

	txSig, err := r.RPC.SendTransaction(ctx, signedTx, true)
	if err != nil {
		return "", 0, fmt.Errorf("execution: send swap for %s: %w", mint, err)
	}

	outAmount, err := strconv.ParseFloat(quote.OutAmount, 64)
	if err != nil {
		return txSig, 0, fmt.Errorf("execution: parse quote outAmount for %s: %w", mint, err)
	}

	log.Info().Str("mint", mint).Str("tx", txSig).Float64("spendSol", spendSol).Msg("execution: buy submitted")
	return txSig, outAmount, nil
}

// ReadBalance returns the base-unit token balance the wallet currently
// holds for mint, satisfying closer.BalanceReader.
func (r *Runner) ReadBalance(ctx context.Context, mint string) (uint64, error) {
	accounts, err := r.RPC.GetTokenAccountsByOwner(ctx, r.Wallet.Address(), mint)
	if err != nil {
		return 0, fmt.Errorf("execution: read balance for %s: %w", mint, err)
	}
	var total uint64
	if len(accounts) > 0 {
		r.mu.Lock()
		r.decimals[mint] = int(accounts[0].Decimals)
		r.mu.Unlock()
	}
	for _, a := range accounts {
		total += a.Amount
	}
	return total, nil
}

// NewSeller returns a swap function that sells amountBaseUnits of mint for
// SOL (or USDC under a flash close) and reports the proceeds, satisfying
// closer.Swapper. solPriceUSD supplies
// the current SOL/USD rate to convert SOL proceeds into a USD figure; USDC
// proceeds are already dollar-denominated.
func NewSeller(r *Runner, solPriceUSD func() float64) func(ctx context.Context, mint string, amountBaseUnits uint64, slippageBps int, outputIsUSDC bool) (string, uint64, float64, error) {
	return func(ctx context.Context, mint string, amountBaseUnits uint64, slippageBps int, outputIsUSDC bool) (string, uint64, float64, error) {
		outputMint := jupiter.SOLMint
		if outputIsUSDC {
			outputMint = USDCMint
		}

		quote, err := r.Jupiter.GetQuote(ctx, mint, outputMint, amountBaseUnits)
		if err != nil {
			return "", 0, 0, fmt.Errorf("execution: quote sell %s: %w", mint, err)
		}

		swapTx, err := r.Jupiter.GetSwapTransaction(ctx, mint, outputMint, r.Wallet.Address(), amountBaseUnits)
		if err != nil {
			return "", 0, 0, fmt.Errorf("execution: build sell swap for %s: %w", mint, err)
		}

		signedTx, err := r.TxBuilder.SignSerializedTransaction(swapTx)
		if err != nil {
			return "", 0, 0, fmt.Errorf("execution: sign sell swap for %s: %w", mint, err)
		}

		txSig, err := r.RPC.SendTransaction(ctx, signedTx, true)
		if err != nil {
			return "", 0, 0, fmt.Errorf("execution: send sell swap for %s: %w", mint, err)
		}

		outAmount, err := strconv.ParseFloat(quote.OutAmount, 64)
		if err != nil {
			return txSig, 0, 0, fmt.Errorf("execution: parse sell outAmount for %s: %w", mint, err)
		}

		proceedsUSD := outAmount / 1e6 // USDC has 6 decimals
		if !outputIsUSDC {
			proceedsUSD = (outAmount / 1e9) * solPriceUSD()
		}

		log.Info().Str("mint", mint).Str("tx", txSig).Bool("usdc", outputIsUSDC).Msg("execution: sell submitted")
		return txSig, amountBaseUnits, proceedsUSD, nil
	}
}

// SellabilityProbe quotes a buy of spendSol worth of mint and rejects
// routes whose price impact is too steep to be worth entering.
func (r *Runner) SellabilityProbe(mint string, spendSol float64) (bool, error) {
	lamports := uint64(spendSol * 1e9)
	quote, err := r.Jupiter.GetQuote(context.Background(), jupiter.SOLMint, mint, lamports)
	if err != nil {
		return false, fmt.Errorf("execution: sellability probe for %s: %w", mint, err)
	}
	return withinImpact(quote.PriceImpactPct), nil
}

// ExitLiquidityProbe quotes a sell of qty base units of mint back to SOL,
// confirming the exit route is still liquid enough to trust the entry.
func (r *Runner) ExitLiquidityProbe(mint string, qty float64) (bool, error) {
	quote, err := r.Jupiter.GetQuote(context.Background(), mint, jupiter.SOLMint, uint64(qty))
	if err != nil {
		return false, fmt.Errorf("execution: exit liquidity probe for %s: %w", mint, err)
	}
	return withinImpact(quote.PriceImpactPct), nil
}

func withinImpact(priceImpactPct string) bool {
	impact, err := strconv.ParseFloat(priceImpactPct, 64)
	if err != nil {
		return false
	}
	return impact <= maxProbeImpactPct
}

// Sweep returns a liquidity-sweep sample function for mint: it quotes a
// round trip (buy then sell 90% of tokens received) at baseUSD*multiplier,
// reporting the round-trip ratio and each leg's price impact, satisfying
// engine.Collaborators.Sweep.
func (r *Runner) Sweep(mint string, mode sizer.Mode, baseUSD, solPriceUSD float64) sizer.SweepSample {
	return func(multiplier float64) (float64, float64, float64, error) {
		if solPriceUSD <= 0 {
			return 0, 0, 0, fmt.Errorf("execution: sweep %s: no SOL price available", mint)
		}
		spendSol := (baseUSD * multiplier) / solPriceUSD
		lamports := uint64(spendSol * 1e9)

		buyQuote, err := r.Jupiter.GetQuote(context.Background(), jupiter.SOLMint, mint, lamports)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("execution: sweep buy leg for %s: %w", mint, err)
		}
		tokensOut, err := strconv.ParseFloat(buyQuote.OutAmount, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("execution: sweep parse buy leg for %s: %w", mint, err)
		}
		buyImpact, _ := strconv.ParseFloat(buyQuote.PriceImpactPct, 64)

		sellQuote, err := r.Jupiter.GetQuote(context.Background(), mint, jupiter.SOLMint, uint64(tokensOut*0.9))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("execution: sweep sell leg for %s: %w", mint, err)
		}
		solBack, err := strconv.ParseFloat(sellQuote.OutAmount, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("execution: sweep parse sell leg for %s: %w", mint, err)
		}
		sellImpact, _ := strconv.ParseFloat(sellQuote.PriceImpactPct, 64)

		roundTrip := 0.0
		if lamports > 0 {
			roundTrip = (solBack / 0.9) / float64(lamports)
		}
		return roundTrip, buyImpact, sellImpact, nil
	}
}

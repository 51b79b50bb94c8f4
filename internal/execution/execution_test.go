package execution

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/blockchain"
	"solana-spot-engine/internal/jupiter"
)

func newTestWallet(t *testing.T) *blockchain.Wallet {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	wallet, err := blockchain.NewWallet(base58.Encode(priv))
	require.NoError(t, err)
	return wallet
}

func newJupiterServer(t *testing.T, outAmount string) *httptest.Server {
	return newJupiterServerWithImpact(t, outAmount, "0.01")
}

func newJupiterServerWithImpact(t *testing.T, outAmount, priceImpactPct string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/quote":
			json.NewEncoder(w).Encode(map[string]any{
				"inputMint": "in", "outputMint": "out", "outAmount": outAmount, "inAmount": "1",
				"priceImpactPct": priceImpactPct,
			})
		case r.URL.Path == "/swap":
			json.NewEncoder(w).Encode(map[string]any{
				"swapTransaction": "AAE=", // sigCount=0, message=[0x01]
			})
		}
	}))
}

type rpcResult struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Result  any    `json:"result"`
}

func newRPCServer(t *testing.T, sendResult string, accounts []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Method {
		case "sendTransaction":
			json.NewEncoder(w).Encode(rpcResult{JSONRPC: "2.0", ID: 1, Result: sendResult})
		case "getTokenAccountsByOwner":
			json.NewEncoder(w).Encode(rpcResult{JSONRPC: "2.0", ID: 1, Result: map[string]any{"value": accounts}})
		default:
			json.NewEncoder(w).Encode(rpcResult{JSONRPC: "2.0", ID: 1, Result: map[string]any{}})
		}
	}))
}

func TestRunner_Buy_SubmitsSwapAndParsesTokensOut(t *testing.T) {
	jupSrv := newJupiterServer(t, "123456")
	defer jupSrv.Close()
	rpcSrv := newRPCServer(t, "BuyTxSig", nil)
	defer rpcSrv.Close()

	wallet := newTestWallet(t)
	jupClient := jupiter.NewClient(jupSrv.URL, 100, 0)
	rpcClient := blockchain.NewRPCClient(rpcSrv.URL, rpcSrv.URL, "")
	txBuilder := blockchain.NewTransactionBuilder(wallet, nil, 0)

	runner := New(wallet, rpcClient, jupClient, txBuilder)
	txSig, tokensOut, err := runner.Buy("MintA", 0.1)
	require.NoError(t, err)
	require.Equal(t, "BuyTxSig", txSig)
	require.Equal(t, 123456.0, tokensOut)
}

func TestRunner_ReadBalance_SumsTokenAccounts(t *testing.T) {
	accounts := []map[string]any{
		{"pubkey": "acct1", "account": map[string]any{"data": map[string]any{"parsed": map[string]any{"info": map[string]any{
			"mint": "MintA", "tokenAmount": map[string]any{"amount": "500", "decimals": 6},
		}}}}},
	}
	rpcSrv := newRPCServer(t, "", accounts)
	defer rpcSrv.Close()

	wallet := newTestWallet(t)
	rpcClient := blockchain.NewRPCClient(rpcSrv.URL, rpcSrv.URL, "")
	runner := New(wallet, rpcClient, nil, nil)

	balance, err := runner.ReadBalance(context.Background(), "MintA")
	require.NoError(t, err)
	require.Equal(t, uint64(500), balance)
}

func TestNewSeller_ConvertsSolProceedsToUSD(t *testing.T) {
	jupSrv := newJupiterServer(t, "2000000000") // 2 SOL in lamports
	defer jupSrv.Close()
	rpcSrv := newRPCServer(t, "SellTxSig", nil)
	defer rpcSrv.Close()

	wallet := newTestWallet(t)
	jupClient := jupiter.NewClient(jupSrv.URL, 100, 0)
	rpcClient := blockchain.NewRPCClient(rpcSrv.URL, rpcSrv.URL, "")
	txBuilder := blockchain.NewTransactionBuilder(wallet, nil, 0)
	runner := New(wallet, rpcClient, jupClient, txBuilder)

	sell := NewSeller(runner, func() float64 { return 150.0 })
	txSig, sold, proceedsUSD, err := sell(context.Background(), "MintA", 1000, 100, false)
	require.NoError(t, err)
	require.Equal(t, "SellTxSig", txSig)
	require.Equal(t, uint64(1000), sold)
	require.InDelta(t, 300.0, proceedsUSD, 0.001)
}

func TestNewSeller_UsesUSDCMintWhenFlashClosing(t *testing.T) {
	jupSrv := newJupiterServer(t, "50000000") // 50 USDC (6 decimals)
	defer jupSrv.Close()
	rpcSrv := newRPCServer(t, "FlashTxSig", nil)
	defer rpcSrv.Close()

	wallet := newTestWallet(t)
	jupClient := jupiter.NewClient(jupSrv.URL, 100, 0)
	rpcClient := blockchain.NewRPCClient(rpcSrv.URL, rpcSrv.URL, "")
	txBuilder := blockchain.NewTransactionBuilder(wallet, nil, 0)
	runner := New(wallet, rpcClient, jupClient, txBuilder)

	sell := NewSeller(runner, func() float64 { return 150.0 })
	_, _, proceedsUSD, err := sell(context.Background(), "MintA", 1000, 100, true)
	require.NoError(t, err)
	require.InDelta(t, 50.0, proceedsUSD, 0.001)
}

func TestSellabilityProbe_RejectsSteepImpact(t *testing.T) {
	jupSrv := newJupiterServerWithImpact(t, "1000", "0.40")
	defer jupSrv.Close()

	runner := New(newTestWallet(t), nil, jupiter.NewClient(jupSrv.URL, 100, 0), nil)
	ok, err := runner.SellabilityProbe("MintA", 0.1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSellabilityProbe_AcceptsShallowImpact(t *testing.T) {
	jupSrv := newJupiterServerWithImpact(t, "1000", "0.02")
	defer jupSrv.Close()

	runner := New(newTestWallet(t), nil, jupiter.NewClient(jupSrv.URL, 100, 0), nil)
	ok, err := runner.SellabilityProbe("MintA", 0.1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSweep_ReportsRoundTripAndImpacts(t *testing.T) {
	jupSrv := newJupiterServerWithImpact(t, "1000000", "0.01")
	defer jupSrv.Close()

	runner := New(newTestWallet(t), nil, jupiter.NewClient(jupSrv.URL, 100, 0), nil)
	sample := runner.Sweep("MintA", "scout", 20.0, 150.0)
	roundTrip, buyImpact, sellImpact, err := sample(1.0)
	require.NoError(t, err)
	require.Greater(t, roundTrip, 0.0)
	require.InDelta(t, 0.01, buyImpact, 0.0001)
	require.InDelta(t, 0.01, sellImpact, 0.0001)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-spot-engine/internal/adminhttp"
	"solana-spot-engine/internal/blockchain"
	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/discovery"
	"solana-spot-engine/internal/engine"
	"solana-spot-engine/internal/execution"
	"solana-spot-engine/internal/health"
	"solana-spot-engine/internal/jupiter"
	"solana-spot-engine/internal/market"
	"solana-spot-engine/internal/orphan"
	"solana-spot-engine/internal/sizer"
	"solana-spot-engine/internal/storage"
	"solana-spot-engine/internal/tui"
)

func main() {
	headless := os.Getenv("HEADLESS") == "1"
	if headless {
		setupLogger()
	} else {
		redirectLogsToFile()
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfgMgr, err := config.NewManager(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := cfgMgr.Get()

	db, err := storage.NewDB(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}

	wallet := loadWallet(cfgMgr)
	rpc := blockchain.NewRPCClient(cfgMgr.PrimaryRPCURL(), cfgMgr.FallbackRPCURL(), "")
	blockhashCache := blockchain.NewBlockhashCache(rpc, cfgMgr.BlockhashRefresh(), time.Duration(cfg.Blockchain.BlockhashTTLSeconds)*time.Second)
	if err := blockhashCache.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start blockhash cache")
	}
	defer blockhashCache.Stop()

	txBuilder := blockchain.NewTransactionBuilder(wallet, blockhashCache, 0)
	balanceTracker := blockchain.NewBalanceTracker(wallet, rpc)
	if err := balanceTracker.Refresh(context.Background()); err != nil {
		log.Warn().Err(err).Msg("initial balance refresh failed")
	}
	log.Info().Str("address", wallet.Address()).Float64("balance", balanceTracker.BalanceSOL()).Msg("wallet ready")

	jupCfg := cfg.Jupiter
	jupClient := jupiter.NewClient(jupCfg.QuoteAPIURL, jupCfg.SlippageBps, time.Duration(jupCfg.TimeoutSeconds)*time.Second)
	runner := execution.New(wallet, rpc, jupClient, txBuilder)

	marketClient := market.NewClient(cfg.Market.PriceAPIURL, 10*time.Second)
	poller := market.NewPoller(marketClient, time.Duration(cfg.Market.PollIntervalSecs)*time.Second)
	scanner := discovery.New(db, marketClient, cfgMgr)

	reg := prometheus.NewRegistry()
	eng := engine.New(db, cfgMgr, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Rehydrate(ctx, time.Now().Unix()); err != nil {
		log.Error().Err(err).Msg("rehydrate failed")
	}

	healthChecker := health.NewChecker(cfgMgr.PrimaryRPCURL(), cfg.Market.PriceAPIURL)
	healthChecker.Start(ctx)

	go poller.Run(ctx, func() []string { return trackedMints(db) })
	go scanner.Run(ctx)
	go func() {
		ticker := time.NewTicker(cfgMgr.BalanceRefresh())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := balanceTracker.Refresh(ctx); err != nil {
					log.Warn().Err(err).Msg("balance refresh failed")
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range healthChecker.GetStatuses() {
					if !s.Healthy {
						log.Warn().Str("component", s.Name).Str("error", s.Error).Msg("health check failed")
					}
				}
			}
		}
	}()

	var paused bool
	deps := collaborators(cfgMgr, db, poller, runner, balanceTracker, wallet, rpc)

	adminSrv := adminhttp.NewServer(cfg.Admin.ListenHost, cfg.Admin.ListenPort, &adminhttp.Handler{
		Pause:  func() { paused = true },
		Resume: func() { paused = false },
		Paused: func() bool { return paused },
		ForceClose: func(mint, reason string) error {
			return eng.ForceClose(ctx, mint, time.Now().Unix(), deps)
		},
		ExportTrades:  func(w io.Writer, limit int) (int, error) { return eng.ExportTrades(w, limit) },
		HeldPositions: func() []adminhttp.PositionView { return heldPositionViews(eng, poller) },
	})
	go func() {
		if err := adminSrv.Start(); err != nil {
			log.Error().Err(err).Msg("admin server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if headless {
		runTickLoop(ctx, eng, cfgMgr, &paused, deps, nil)
		<-quit
	} else {
		model := tui.NewModel(cfgMgr)
		model.SetCallbacks(
			func() { paused = !paused },
			func(mint string) { _ = eng.ForceClose(ctx, mint, time.Now().Unix(), deps) },
		)
		program := tea.NewProgram(model, tea.WithAltScreen())
		go runTickLoop(ctx, eng, cfgMgr, &paused, deps, program)
		go func() {
			<-quit
			program.Quit()
		}()
		if _, err := program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		}
	}

	log.Info().Msg("shutting down")
	cancel()
	_ = adminSrv.Shutdown()
}

// runTickLoop drives the engine's tick loop on a fixed cadence, pushing
// TUI updates when program is non-nil.
func runTickLoop(ctx context.Context, eng *engine.Engine, cfgMgr *config.Manager, paused *bool, deps engine.Collaborators, program *tea.Program) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if *paused {
				continue
			}
			now := time.Now().Unix()
			tickID := uuid.NewString()
			summary, err := eng.Tick(ctx, now, tickID, deps)
			if err != nil {
				log.Error().Err(err).Str("tick_id", tickID).Msg("tick failed")
				continue
			}
			if program != nil {
				program.Send(tui.TickSummaryMsg{Summary: summary})
			}
		}
	}
}

func loadWallet(cfgMgr *config.Manager) *blockchain.Wallet {
	if key := cfgMgr.PrivateKey(); key != "" {
		wallet, err := blockchain.NewWallet(key)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load wallet from private key")
		}
		return wallet
	}
	keyManager := blockchain.NewCachedKeyManager("./data", 10*time.Minute)
	wallet, err := keyManager.GetOrGenerate()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate wallet")
	}
	log.Warn().Str("address", wallet.Address()).Msg("using auto-generated wallet — fund this address to trade")
	return wallet
}

func trackedMints(db *storage.DB) []string {
	universe, err := db.GetActiveUniverse()
	if err != nil {
		log.Error().Err(err).Msg("trackedMints: load universe")
		return nil
	}
	mints := make([]string, 0, len(universe)+1)
	mints = append(mints, jupiter.SOLMint)
	for _, u := range universe {
		mints = append(mints, u.Mint)
	}
	held, err := db.GetAllPositionTracking()
	if err != nil {
		return mints
	}
	for _, h := range held {
		mints = append(mints, h.Mint)
	}
	return mints
}

func heldPositionViews(eng *engine.Engine, poller *market.Poller) []adminhttp.PositionView {
	rows, err := eng.HeldSnapshot()
	if err != nil {
		log.Error().Err(err).Msg("heldPositionViews: load positions")
		return nil
	}
	views := make([]adminhttp.PositionView, 0, len(rows))
	for _, r := range rows {
		last := poller.PriceUSD(r.Mint)
		pnlPct := 0.0
		if r.EntryPrice > 0 {
			pnlPct = (last - r.EntryPrice) / r.EntryPrice * 100
		}
		views = append(views, adminhttp.PositionView{
			Mint: r.Mint, SlotType: r.SlotType, EntryPrice: r.EntryPrice,
			LastPrice: last, PeakPrice: r.PeakPrice, PnLPct: pnlPct,
		})
	}
	return views
}

// collaborators wires the live engine.Collaborators from the blockchain,
// Jupiter, and market-feed components.
func collaborators(cfgMgr *config.Manager, db *storage.DB, poller *market.Poller, runner *execution.Runner, balanceTracker *blockchain.BalanceTracker, wallet *blockchain.Wallet, rpc *blockchain.RPCClient) engine.Collaborators {
	solPriceUSD := func() float64 { return poller.PriceUSD(jupiter.SOLMint) }
	seller := execution.NewSeller(runner, solPriceUSD)

	equityUSD := func() float64 {
		equity := balanceTracker.BalanceSOL() * solPriceUSD()
		rows, err := db.GetAllPositionTracking()
		if err != nil {
			return equity
		}
		for _, r := range rows {
			equity += r.TotalTokens * poller.PriceUSD(r.Mint)
		}
		return equity
	}

	walletHoldings := func() []orphan.Holding {
		accounts, err := rpc.GetTokenAccountsByOwner(context.Background(), wallet.Address(), "")
		if err != nil {
			log.Error().Err(err).Msg("walletHoldings: fetch token accounts")
			return nil
		}
		holdings := make([]orphan.Holding, 0, len(accounts))
		for _, a := range accounts {
			if a.Amount == 0 {
				continue
			}
			price := poller.PriceUSD(a.Mint)
			qty := float64(a.Amount)
			if a.Decimals > 0 {
				qty /= pow10(int(a.Decimals))
			}
			holdings = append(holdings, orphan.Holding{Mint: a.Mint, Symbol: a.Mint, USDValue: qty * price})
		}
		return holdings
	}

	baseUSDFor := func(mode sizer.Mode) float64 {
		cfg := cfgMgr.Get().Sizer
		if mode == sizer.ModeCore {
			return 2 * cfg.MinTradeUSD
		}
		return cfg.MinTradeUSD
	}

	return engine.Collaborators{
		LastPrices:         poller.LastPrices,
		PriceUSD:           poller.PriceUSD,
		SolPriceUSD:        solPriceUSD,
		EquityUSD:          equityUSD,
		SolBalanceLamports: func() (uint64, error) { return balanceTracker.BalanceLamports(), nil },
		WalletHoldings:     walletHoldings,
		Decimals:           runner.Decimals,
		MarketStats:        poller.MarketStats,

		WhaleConfirm:       func(mint string) (bool, error) { return true, nil },
		SellabilityProbe:   runner.SellabilityProbe,
		ExitLiquidityProbe: runner.ExitLiquidityProbe,
		Sweep: func(mint string, mode sizer.Mode) sizer.SweepSample {
			return runner.Sweep(mint, mode, baseUSDFor(mode), solPriceUSD())
		},
		PoolTVLUSD: poller.PoolTVLUSD,
		Vol5mUSD:   poller.Vol5mUSD,
		Vol1hUSD:   poller.Vol1hUSD,

		ExecuteSwap: runner.Buy,
		ReadBalance: runner.ReadBalance,
		Swap:        seller,
	}
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func setupLogger() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func redirectLogsToFile() {
	logFile, err := os.OpenFile("data/engine.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file: %v\n", err)
		log.Logger = zerolog.Nop()
		return
	}
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

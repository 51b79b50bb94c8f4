package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	Wallet      WalletConfig      `mapstructure:"wallet"`
	RPC         RPCConfig         `mapstructure:"rpc"`
	Jupiter     JupiterConfig     `mapstructure:"jupiter"`
	Market      MarketConfig      `mapstructure:"market"`
	Blockchain  BlockchainConfig  `mapstructure:"blockchain"`
	Storage     StorageConfig     `mapstructure:"storage"`
	TUI         TUIConfig         `mapstructure:"tui"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Sizer       SizerConfig       `mapstructure:"sizer"`
	Ranking     RankingConfig     `mapstructure:"ranking"`
	Rotation    RotationConfig    `mapstructure:"rotation"`
	ScoutQueue  ScoutQueueConfig  `mapstructure:"scout_queue"`
	Liquidation LiquidationConfig `mapstructure:"liquidation"`
	Orphan      OrphanConfig      `mapstructure:"orphan"`
	Bars        BarsConfig        `mapstructure:"bars"`
	Targets     TargetsConfig     `mapstructure:"targets"`
	Closer      CloserConfig      `mapstructure:"closer"`
	Watchdog    WatchdogConfig    `mapstructure:"watchdog"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
}

type WalletConfig struct {
	PrivateKeyEnv string `mapstructure:"private_key_env"`
	BaseMint      string `mapstructure:"base_mint"`
}

type RPCConfig struct {
	PrimaryURL        string `mapstructure:"primary_url"`
	PrimaryAPIKeyEnv  string `mapstructure:"primary_api_key_env"`
	FallbackURL       string `mapstructure:"fallback_url"`
	FallbackAPIKeyEnv string `mapstructure:"fallback_api_key_env"`
}

type JupiterConfig struct {
	QuoteAPIURL    string `mapstructure:"quote_api_url"`
	SwapAPIURL     string `mapstructure:"swap_api_url"`
	APIKeyEnv      string `mapstructure:"api_key_env"`
	SlippageBps    int    `mapstructure:"slippage_bps"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MarketConfig points at the external price/trending feed (DexScreener-shaped).
type MarketConfig struct {
	PriceAPIURL      string `mapstructure:"price_api_url"`
	TokenCachePath   string `mapstructure:"token_cache_path"`
	PollIntervalSecs int    `mapstructure:"poll_interval_seconds"`
}

type BlockchainConfig struct {
	BlockhashRefreshMs    int `mapstructure:"blockhash_refresh_ms"`
	BlockhashTTLSeconds   int `mapstructure:"blockhash_ttl_seconds"`
	BalanceRefreshSeconds int `mapstructure:"balance_refresh_seconds"`
}

type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

type TUIConfig struct {
	RefreshRateMs int `mapstructure:"refresh_rate_ms"`
	LogLines      int `mapstructure:"log_lines"`
}

// AdminConfig is the internal control-plane HTTP surface (pause/resume,
// force-close, CSV export).
type AdminConfig struct {
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`
}

// RiskConfig holds the per-mode (scout/core) risk parameters used across the
// ranking engine, rotation evaluator, and capital sizer.
type RiskConfig struct {
	ScoutSlots  int `mapstructure:"scout_slots"`
	CoreSlots   int `mapstructure:"core_slots"`
	DailyLimit  int `mapstructure:"daily_entry_limit"`

	ScoutStopLossPct     float64 `mapstructure:"scout_stop_loss_pct"`
	CoreLossExitPct      float64 `mapstructure:"core_loss_exit_pct"`
	UnderperformMinutes  float64 `mapstructure:"underperform_minutes"`
	GraceMinutes         float64 `mapstructure:"grace_minutes"`
	BreakEvenLockPct     float64 `mapstructure:"break_even_lock_pct"`
	TakeProfitPct        float64 `mapstructure:"take_profit_pct"`
	StaleHours           float64 `mapstructure:"stale_hours"`
	StaleBandPct         float64 `mapstructure:"stale_band_pct"`
	StaleExitHours       float64 `mapstructure:"stale_exit_hours"`

	PromoMinPnLPct   float64 `mapstructure:"promo_min_pnl_pct"`
	PromoMinSignal   float64 `mapstructure:"promo_min_signal"`
	PromoMinHours    float64 `mapstructure:"promo_min_hours"`

	LiquidationBanHours float64 `mapstructure:"liquidation_ban_hours"`

	// MaxPortfolioPct bounds total deployed capital as a fraction of equity,
	// the outer cap that internal/targets allocates within.
	MaxPortfolioPct float64 `mapstructure:"max_portfolio_pct"`
}

type SizerConfig struct {
	RiskPerTradeScout  float64 `mapstructure:"risk_per_trade_scout"`
	RiskPerTradeCore   float64 `mapstructure:"risk_per_trade_core"`
	BaseUSD            float64 `mapstructure:"base_usd"`
	BaseEquityUSD      float64 `mapstructure:"base_equity_usd"`
	MinTradeUSD        float64 `mapstructure:"min_trade_usd"`
	MaxTradeUSD        float64 `mapstructure:"max_trade_usd"`
	MinPoolTVLScout    float64 `mapstructure:"min_pool_tvl_scout"`
	MinPoolTVLCore     float64 `mapstructure:"min_pool_tvl_core"`
	Min5mVolumeScout   float64 `mapstructure:"min_5m_volume_scout"`
	Min5mVolumeCore    float64 `mapstructure:"min_5m_volume_core"`
	EntryImpactMaxScout float64 `mapstructure:"entry_impact_max_scout"`
	EntryImpactMaxCore  float64 `mapstructure:"entry_impact_max_core"`
	ExitImpactMaxScout  float64 `mapstructure:"exit_impact_max_scout"`
	ExitImpactMaxCore   float64 `mapstructure:"exit_impact_max_core"`
	MinRoundTripScout   float64 `mapstructure:"min_round_trip_scout"`
	MinRoundTripCore    float64 `mapstructure:"min_round_trip_core"`
	SafetyHaircut       float64 `mapstructure:"safety_haircut"`
	EdgeBufferPct       float64 `mapstructure:"edge_buffer_pct"`
	MaxMintExposurePct  float64 `mapstructure:"max_mint_exposure_pct"`
	MaxParticipation5m  float64 `mapstructure:"max_participation_5m"`
	MaxParticipation1h  float64 `mapstructure:"max_participation_1h"`

	GovernorMinSamples   int     `mapstructure:"governor_min_samples"`
	GovernorHaircutFloor float64 `mapstructure:"governor_haircut_floor"`
	GovernorHaircutCeil  float64 `mapstructure:"governor_haircut_ceil"`
	GovernorTVLFloorCore  float64 `mapstructure:"governor_tvl_floor_core"`
	GovernorTVLFloorScout float64 `mapstructure:"governor_tvl_floor_scout"`
}

type RankingConfig struct {
	WeightSignal   float64 `mapstructure:"weight_signal"`
	WeightMomentum float64 `mapstructure:"weight_momentum"`
	WeightTime     float64 `mapstructure:"weight_time"`
	WeightTrailing float64 `mapstructure:"weight_trailing"`
	WeightQuality  float64 `mapstructure:"weight_quality"`
	StalePenalty   float64 `mapstructure:"stale_penalty"`

	TrailingTightPct      float64 `mapstructure:"trailing_tight_pct"`
	TrailingBasePct       float64 `mapstructure:"trailing_base_pct"`
	TrailingProfitThresh  float64 `mapstructure:"trailing_profit_threshold"`
	TrailingStopPenalty   float64 `mapstructure:"trailing_stop_penalty"`
}

type RotationConfig struct {
	TotalSlots        int     `mapstructure:"total_slots"`
	RotationThreshold float64 `mapstructure:"rotation_threshold"`
}

type ScoutQueueConfig struct {
	StaleMinutes          float64 `mapstructure:"stale_minutes"`
	MaxAttempts           int     `mapstructure:"max_attempts"`
	BaseBackoffMinutes    float64 `mapstructure:"base_backoff_minutes"`
	WarmupTimeoutMinutes  float64 `mapstructure:"warmup_timeout_minutes"`
	ReserveLamports       uint64  `mapstructure:"reserve_lamports"`
	TxFeeBufferLamports   uint64  `mapstructure:"tx_fee_buffer_lamports"`
	WhaleConfirmEnabled   bool    `mapstructure:"whale_confirm_enabled"`
	CooldownMinutes       float64 `mapstructure:"cooldown_minutes"`
}

type LiquidationConfig struct {
	BanHours float64 `mapstructure:"ban_hours"`
}

// WatchdogConfig tunes per-mint stuck-target backoff.
type WatchdogConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxAttempts      int     `mapstructure:"max_attempts"`
	BaseMinutes      float64 `mapstructure:"base_minutes"`
}

type OrphanConfig struct {
	GraceTicks int `mapstructure:"grace_ticks"`
}

type BarsConfig struct {
	TrackedMintTTLHours int `mapstructure:"tracked_mint_ttl_hours"`
	MaxTrackedMints     int `mapstructure:"max_tracked_mints"`

	// TrendSMAMinutes/Ret15Minutes size the entry-gate's trend and impulse
	// windows: price must sit above the trend SMA, and the impulse return
	// must land inside [Ret15FloorPct, Ret15CeilingPct] — enough pullback
	// to not be chasing, enough momentum to not be dead.
	TrendSMAMinutes int     `mapstructure:"trend_sma_minutes"`
	Ret15Minutes    int     `mapstructure:"ret15_minutes"`
	Ret15FloorPct   float64 `mapstructure:"ret15_floor_pct"`
	Ret15CeilingPct float64 `mapstructure:"ret15_ceiling_pct"`
}

type TargetsConfig struct {
	CoreTargetPct  float64 `mapstructure:"core_target_pct"`
	MaxPosPct      float64 `mapstructure:"max_pos_pct"`
	DeployTargetPct float64 `mapstructure:"deploy_target_pct"`
	MaxScalePasses int     `mapstructure:"max_scale_passes"`
}

// DiscoveryConfig drives the universe scanner that feeds new mints into
// trading_universe from the market feed's search endpoint.
type DiscoveryConfig struct {
	SearchQuery      string  `mapstructure:"search_query"`
	ScanIntervalSecs int     `mapstructure:"scan_interval_seconds"`
	MaxUniverseSize  int     `mapstructure:"max_universe_size"`
	MinLiquidityUSD  float64 `mapstructure:"min_liquidity_usd"`
	MinVolume5mUSD   float64 `mapstructure:"min_volume_5m_usd"`
}

type CloserConfig struct {
	DustThresholdUSD   float64 `mapstructure:"dust_threshold_usd"`
	MinQty             float64 `mapstructure:"min_qty"`
	MinUSD             float64 `mapstructure:"min_usd"`
	MaxRetries         int     `mapstructure:"max_retries"`
	ForceExactRetries  int     `mapstructure:"force_exact_retries"`
	RetryDelayMs       int     `mapstructure:"retry_delay_ms"`
	InitialSlippageBps int     `mapstructure:"initial_slippage_bps"`
	MaxSlippageBps     int     `mapstructure:"max_slippage_bps"`
	SolReserveLamports uint64  `mapstructure:"sol_reserve_lamports"`
}

// ExecutionMode selects the paper/live execution trait.
type ExecutionMode string

const (
	ModePaper ExecutionMode = "paper"
	ModeLive  ExecutionMode = "live"
)

// Manager handles config loading and hot-reload via viper + fsnotify.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	onChange func(*Config)
	mode     ExecutionMode
}

// NewManager creates a new config manager.
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	m := &Manager{
		config: &cfg,
		viper:  v,
		mode:   ExecutionMode(os.Getenv("EXECUTION_MODE")),
	}
	if m.mode == "" {
		m.mode = ModePaper
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config file changed, reloading")
		m.reload()
	})

	return m, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wallet.private_key_env", "WALLET_PRIVATE_KEY")
	v.SetDefault("rpc.primary_api_key_env", "RPC_API_KEY")
	v.SetDefault("rpc.fallback_api_key_env", "RPC_FALLBACK_API_KEY")
	v.SetDefault("rpc.fallback_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("jupiter.quote_api_url", "https://api.jup.ag/swap/v1/quote")
	v.SetDefault("jupiter.swap_api_url", "https://api.jup.ag/swap/v1/swap")
	v.SetDefault("jupiter.api_key_env", "JUPITER_API_KEY")
	v.SetDefault("jupiter.slippage_bps", 100)
	v.SetDefault("jupiter.timeout_seconds", 10)
	v.SetDefault("market.price_api_url", "https://api.dexscreener.com")
	v.SetDefault("market.token_cache_path", "./data/tokens_cache.json")
	v.SetDefault("market.poll_interval_seconds", 15)
	v.SetDefault("blockchain.blockhash_refresh_ms", 100)
	v.SetDefault("blockchain.blockhash_ttl_seconds", 60)
	v.SetDefault("blockchain.balance_refresh_seconds", 5)
	v.SetDefault("storage.sqlite_path", "./data/engine.db")
	v.SetDefault("tui.refresh_rate_ms", 250)
	v.SetDefault("tui.log_lines", 100)
	v.SetDefault("admin.listen_host", "127.0.0.1")
	v.SetDefault("admin.listen_port", 8787)

	v.SetDefault("risk.scout_slots", 8)
	v.SetDefault("risk.core_slots", 4)
	v.SetDefault("risk.daily_entry_limit", 20)
	v.SetDefault("risk.scout_stop_loss_pct", 0.07)
	v.SetDefault("risk.core_loss_exit_pct", 0.10)
	v.SetDefault("risk.underperform_minutes", 30.0)
	v.SetDefault("risk.grace_minutes", 30.0)
	v.SetDefault("risk.break_even_lock_pct", 0.10)
	v.SetDefault("risk.take_profit_pct", 0.30)
	v.SetDefault("risk.stale_hours", 6.0)
	v.SetDefault("risk.stale_band_pct", 0.02)
	v.SetDefault("risk.stale_exit_hours", 24.0)
	v.SetDefault("risk.promo_min_pnl_pct", 0.05)
	v.SetDefault("risk.promo_min_signal", 0.6)
	v.SetDefault("risk.promo_min_hours", 2.0)
	v.SetDefault("risk.liquidation_ban_hours", 6.0)
	v.SetDefault("risk.max_portfolio_pct", 0.80)

	v.SetDefault("sizer.risk_per_trade_scout", 0.01)
	v.SetDefault("sizer.risk_per_trade_core", 0.02)
	v.SetDefault("sizer.base_usd", 20.0)
	v.SetDefault("sizer.base_equity_usd", 1000.0)
	v.SetDefault("sizer.min_trade_usd", 10.0)
	v.SetDefault("sizer.max_trade_usd", 500.0)
	v.SetDefault("sizer.min_pool_tvl_scout", 10000.0)
	v.SetDefault("sizer.min_pool_tvl_core", 50000.0)
	v.SetDefault("sizer.min_5m_volume_scout", 2000.0)
	v.SetDefault("sizer.min_5m_volume_core", 5000.0)
	v.SetDefault("sizer.entry_impact_max_scout", 0.03)
	v.SetDefault("sizer.entry_impact_max_core", 0.02)
	v.SetDefault("sizer.exit_impact_max_scout", 0.03)
	v.SetDefault("sizer.exit_impact_max_core", 0.02)
	v.SetDefault("sizer.min_round_trip_scout", 0.92)
	v.SetDefault("sizer.min_round_trip_core", 0.95)
	v.SetDefault("sizer.safety_haircut", 0.85)
	v.SetDefault("sizer.edge_buffer_pct", 0.01)
	v.SetDefault("sizer.max_mint_exposure_pct", 0.25)
	v.SetDefault("sizer.max_participation_5m", 0.10)
	v.SetDefault("sizer.max_participation_1h", 0.05)
	v.SetDefault("sizer.governor_min_samples", 20)
	v.SetDefault("sizer.governor_haircut_floor", 0.50)
	v.SetDefault("sizer.governor_haircut_ceil", 0.95)
	v.SetDefault("sizer.governor_tvl_floor_core", 50000.0)
	v.SetDefault("sizer.governor_tvl_floor_scout", 10000.0)

	v.SetDefault("ranking.weight_signal", 1.0)
	v.SetDefault("ranking.weight_momentum", 1.0)
	v.SetDefault("ranking.weight_time", 1.0)
	v.SetDefault("ranking.weight_trailing", 1.0)
	v.SetDefault("ranking.weight_quality", 1.0)
	v.SetDefault("ranking.stale_penalty", 0.25)
	v.SetDefault("ranking.trailing_tight_pct", 0.05)
	v.SetDefault("ranking.trailing_base_pct", 0.12)
	v.SetDefault("ranking.trailing_profit_threshold", 0.20)
	v.SetDefault("ranking.trailing_stop_penalty", -5.0)

	v.SetDefault("rotation.total_slots", 12)
	v.SetDefault("rotation.rotation_threshold", 0.75)

	v.SetDefault("scout_queue.stale_minutes", 5.0)
	v.SetDefault("scout_queue.max_attempts", 3)
	v.SetDefault("scout_queue.base_backoff_minutes", 5.0)
	v.SetDefault("scout_queue.warmup_timeout_minutes", 15.0)
	v.SetDefault("scout_queue.reserve_lamports", 20_000_000)
	v.SetDefault("scout_queue.tx_fee_buffer_lamports", 5_000_000)
	v.SetDefault("scout_queue.whale_confirm_enabled", false)
	v.SetDefault("scout_queue.cooldown_minutes", 2.0)

	v.SetDefault("liquidation.ban_hours", 6.0)
	v.SetDefault("orphan.grace_ticks", 10)
	v.SetDefault("bars.tracked_mint_ttl_hours", 6)
	v.SetDefault("bars.max_tracked_mints", 200)
	v.SetDefault("bars.trend_sma_minutes", 60)
	v.SetDefault("bars.ret15_minutes", 15)
	v.SetDefault("bars.ret15_floor_pct", 0.01)
	v.SetDefault("bars.ret15_ceiling_pct", 0.25)

	v.SetDefault("targets.core_target_pct", 0.15)
	v.SetDefault("targets.max_pos_pct", 0.20)
	v.SetDefault("targets.deploy_target_pct", 0.80)
	v.SetDefault("targets.max_scale_passes", 5)

	v.SetDefault("closer.dust_threshold_usd", 1.0)
	v.SetDefault("closer.max_retries", 5)
	v.SetDefault("closer.force_exact_retries", 10)
	v.SetDefault("closer.retry_delay_ms", 500)
	v.SetDefault("closer.initial_slippage_bps", 100)
	v.SetDefault("closer.max_slippage_bps", 500)
	v.SetDefault("closer.min_qty", 0.000001)
	v.SetDefault("closer.min_usd", 0.05)
	v.SetDefault("closer.sol_reserve_lamports", 5_000_000)

	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.max_attempts", 3)
	v.SetDefault("watchdog.base_minutes", 5.0)

	v.SetDefault("discovery.search_query", "solana")
	v.SetDefault("discovery.scan_interval_seconds", 60)
	v.SetDefault("discovery.max_universe_size", 200)
	v.SetDefault("discovery.min_liquidity_usd", 10000.0)
	v.SetDefault("discovery.min_volume_5m_usd", 1000.0)
}

// Get returns the current config snapshot (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Mode returns the execution mode (paper|live), read from EXECUTION_MODE at
// startup and updated only by ReloadSecrets.
func (m *Manager) Mode() ExecutionMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetOnChange registers a callback invoked whenever the config is reloaded.
func (m *Manager) SetOnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal config on reload")
		return
	}

	m.config = &cfg
	if m.onChange != nil {
		m.onChange(&cfg)
	}
}

// ReloadSecrets re-reads EXECUTION_MODE from the environment and updates
// Mode. It caches no secrets: PrivateKey, PrimaryRPCURL, FallbackRPCURL and
// JupiterAPIKey read their environment variables on every call, so a changed
// secret takes effect on the next call without a reload.
func (m *Manager) ReloadSecrets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode := ExecutionMode(os.Getenv("EXECUTION_MODE")); mode != "" {
		m.mode = mode
	}
}

// PrivateKey loads the signer secret from environment.
func (m *Manager) PrivateKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Wallet.PrivateKeyEnv)
}

// PrimaryRPCURL returns the primary RPC URL with API key injected.
func (m *Manager) PrimaryRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return injectKey(m.config.RPC.PrimaryURL, "api_key", os.Getenv(m.config.RPC.PrimaryAPIKeyEnv))
}

// FallbackRPCURL returns the fallback RPC URL with API key injected.
func (m *Manager) FallbackRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	url := m.config.RPC.FallbackURL
	key := os.Getenv(m.config.RPC.FallbackAPIKeyEnv)
	param := "api_key"
	if strings.Contains(url, "helius") {
		param = "api-key"
	}
	return injectKey(url, param, key)
}

// JupiterAPIKey returns the aggregator API key, if configured.
func (m *Manager) JupiterAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Jupiter.APIKeyEnv)
}

func injectKey(url, param, key string) string {
	if key == "" {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&" + param + "=" + key
	}
	return url + "?" + param + "=" + key
}

// BlockhashRefresh returns the blockhash prefetch interval.
func (m *Manager) BlockhashRefresh() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Blockchain.BlockhashRefreshMs) * time.Millisecond
}

// BalanceRefresh returns the wallet balance refresh interval.
func (m *Manager) BalanceRefresh() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Blockchain.BalanceRefreshSeconds) * time.Second
}

// SnapshotHash returns a stable FNV-1a hash of the current settings
// snapshot, used to attribute telemetry rows to the config that produced
// them.
func (m *Manager) SnapshotHash() uint64 {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	keys := m.viper.AllKeys()
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte("="))
		h.Write([]byte(toStableString(m.viper.Get(k))))
		h.Write([]byte(";"))
	}
	_ = cfg
	return h.Sum64()
}

func toStableString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

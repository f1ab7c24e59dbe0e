package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
	"github.com/vitos/crypto_breakout_bot/internal/infrastructure/exchange"
	"github.com/vitos/crypto_breakout_bot/internal/infrastructure/feed"
	"github.com/vitos/crypto_breakout_bot/internal/infrastructure/logger"
	"github.com/vitos/crypto_breakout_bot/internal/infrastructure/storage"
	"github.com/vitos/crypto_breakout_bot/internal/usecase"
)

type Config struct {
	Exchange struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		Testnet   bool   `yaml:"testnet"`
	} `yaml:"exchange"`

	Symbol         string  `yaml:"symbol"`
	Interval       string  `yaml:"interval"`
	Simulation     bool    `yaml:"simulation"`
	Capital        float64 `yaml:"capital"`
	Leverage       int     `yaml:"leverage"`
	IsolatedMargin bool    `yaml:"isolated_margin"`
	FeeRate        float64 `yaml:"fee_rate"`
	StopMode       string  `yaml:"stop_mode"`

	Filters domain.FilterConfig `yaml:"filters"`
	Stops   usecase.RiskParams  `yaml:"stops"`

	Risk struct {
		MaxLossAbs       float64 `yaml:"max_loss_abs"`
		MaxDrawdownPct   float64 `yaml:"max_drawdown_pct"`
		CooldownSeconds  int     `yaml:"cooldown_seconds"`
		MaxTradesPerHour int     `yaml:"max_trades_per_hour"`
	} `yaml:"risk"`

	Position struct {
		MaxHoldCandles   int     `yaml:"max_hold_candles"`
		PartialClose     bool    `yaml:"partial_close"`
		PartialClosePct  float64 `yaml:"partial_close_pct"`
		PartialProfitPct float64 `yaml:"partial_profit_pct"`
		MinPositionUnit  float64 `yaml:"min_position_unit"`
	} `yaml:"position"`

	Feed struct {
		QueueSize     int    `yaml:"queue_size"`
		BackfillLimit int    `yaml:"backfill_limit"`
		RequireClosed bool   `yaml:"require_closed"`
		WSEndpoint    string `yaml:"ws_endpoint"`
	} `yaml:"feed"`

	Watchdog struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		StaleSeconds    int `yaml:"stale_seconds"`
	} `yaml:"watchdog"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Symbol = "BTCUSDT"
	cfg.Interval = "1m"
	cfg.Simulation = true
	cfg.Capital = 1000
	cfg.Leverage = 3
	cfg.FeeRate = 0.0004
	cfg.StopMode = string(usecase.StopModeAuto)
	cfg.Filters = domain.FilterConfig{
		RSIEMA:           true,
		Lookback:         20,
		BreakoutBuffer:   1.0,
		VolumeMultiplier: 2.0,
	}
	cfg.Stops = usecase.DefaultRiskParams()
	cfg.Risk.CooldownSeconds = 900
	cfg.Position.PartialClosePct = 0.5
	cfg.Feed.QueueSize = 64
	cfg.Feed.BackfillLimit = 50
	cfg.Feed.RequireClosed = true
	cfg.Logging.Level = "info"
	cfg.Storage.Path = "bot.db"
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	path := "config/config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		log.Fatal("invalid candle interval", zap.String("interval", cfg.Interval), zap.Error(err))
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	if cfg.Exchange.Testnet {
		futures.UseTestnet = true
	}
	restClient := futures.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret)

	sink := logger.NewLogSink(log)

	var exch domain.Exchange
	if cfg.Simulation {
		exch = exchange.NewPaper(cfg.Symbol, log.Named("paper"))
		log.Info("running in simulation mode, orders are paper-filled")
	} else {
		exch = exchange.NewBinanceFutures(restClient, cfg.Symbol, cfg.Leverage, cfg.IsolatedMargin, log.Named("exchange"))
	}

	source := feed.NewBinanceSource(feed.Config{
		Symbol:        cfg.Symbol,
		Interval:      cfg.Interval,
		BackfillLimit: cfg.Feed.BackfillLimit,
		QueueSize:     cfg.Feed.QueueSize,
		RequireClosed: cfg.Feed.RequireClosed,
		WSURL:         cfg.Feed.WSEndpoint,
	}, restClient, sink, log.Named("feed"))

	limits := domain.RiskLimits{
		MaxLossAbs:       cfg.Risk.MaxLossAbs,
		MaxDrawdownPct:   cfg.Risk.MaxDrawdownPct,
		Cooldown:         time.Duration(cfg.Risk.CooldownSeconds) * time.Second,
		MaxTradesPerHour: cfg.Risk.MaxTradesPerHour,
	}

	signals := usecase.NewSignalEngine(cfg.Filters, 120)
	cooldown := usecase.NewCooldownGate(limits.Cooldown)
	risk := usecase.NewRiskManager(limits, cfg.Capital, log.Named("risk"))
	calc := usecase.NewAdaptiveRiskCalculator(cfg.Stops)
	machine := usecase.NewPositionStateMachine(usecase.PositionConfig{
		Symbol:           cfg.Symbol,
		Leverage:         cfg.Leverage,
		FeeRate:          cfg.FeeRate,
		StopMode:         usecase.StopMode(cfg.StopMode),
		MaxHoldCandles:   cfg.Position.MaxHoldCandles,
		Simulation:       cfg.Simulation,
		PartialClose:     cfg.Position.PartialClose,
		PartialClosePct:  cfg.Position.PartialClosePct,
		PartialProfitPct: cfg.Position.PartialProfitPct,
		MinPositionUnit:  cfg.Position.MinPositionUnit,
	}, calc, exch, store, cooldown, sink, log.Named("position"))

	state := usecase.NewEngineState()
	engine := usecase.NewEngine(usecase.EngineConfig{
		InitialCapital: cfg.Capital,
		PollTimeout:    time.Second,
		StartupWait:    20 * time.Second,
		Limits:         limits,
	}, source, signals, machine, cooldown, risk, state, sink, log.Named("engine"))

	staleAfter := 2 * interval
	if cfg.Watchdog.StaleSeconds > 0 {
		staleAfter = time.Duration(cfg.Watchdog.StaleSeconds) * time.Second
	}
	watchdog := usecase.NewFeedWatchdog(source, state, sink, log.Named("watchdog"),
		time.Duration(cfg.Watchdog.IntervalSeconds)*time.Second, staleAfter)

	if err := source.Start(context.Background()); err != nil {
		log.Fatal("Failed to start candle source", zap.Error(err))
	}
	engine.Start()
	watchdog.Start()

	if cfg.Metrics.Port > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("bot started",
		zap.String("symbol", cfg.Symbol),
		zap.String("interval", cfg.Interval),
		zap.Bool("simulation", cfg.Simulation))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	watchdog.Stop()
	engine.Stop()
	source.Stop()
}

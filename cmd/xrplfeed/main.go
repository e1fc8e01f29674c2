package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/songzhibin97/xrplfeed/internal/configs"
	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/data/collector"
	"github.com/songzhibin97/xrplfeed/internal/data/collector/binance"
	"github.com/songzhibin97/xrplfeed/internal/data/collector/coingecko"
	"github.com/songzhibin97/xrplfeed/internal/data/collector/kraken"
	"github.com/songzhibin97/xrplfeed/internal/data/collector/xrplmeta"
	"github.com/songzhibin97/xrplfeed/internal/data/storage"
	"github.com/songzhibin97/xrplfeed/internal/feed"
	"github.com/songzhibin97/xrplfeed/internal/prefs"
	"github.com/songzhibin97/xrplfeed/internal/realtime"
	"github.com/songzhibin97/xrplfeed/internal/search"
	"github.com/songzhibin97/xrplfeed/internal/server"
)

var (
	flagconf string

	level = new(slog.LevelVar)

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       level,
		ReplaceAttr: nil,
	}))
)

func init() {
	flag.StringVar(&flagconf, "conf", "", "config path, eg: -conf config.yaml")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func realtimeOptions(cfg configs.Realtime) realtime.Options {
	def := realtime.DefaultOptions()
	endpoints := make([]realtime.Endpoint, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		endpoints = append(endpoints, realtime.Endpoint{
			URL:     ep.URL,
			Timeout: configs.Duration(ep.Timeout, 5*time.Second),
		})
	}
	return realtime.Options{
		Endpoints:    endpoints,
		Streams:      cfg.Streams,
		BaseDelay:    configs.Duration(cfg.BaseDelay, def.BaseDelay),
		MaxDelay:     configs.Duration(cfg.MaxDelay, def.MaxDelay),
		MaxAttempts:  cfg.MaxAttempts,
		PingInterval: configs.Duration(cfg.PingInterval, def.PingInterval),
		ReadTimeout:  def.ReadTimeout,
	}
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, flagconf)
	stop()
	os.Exit(code)
}

// run wires and serves the feed until ctx ends. It returns the process exit
// code: 1 for any startup or serve failure.
func run(ctx context.Context, confPath string) int {
	// 加载配置
	config, err := configs.Load(confPath)
	if err != nil {
		log.Error("Error loading config", "err", err)
		return 1
	}
	level.Set(parseLevel(config.LogLevel))

	log.Debug("Loaded config", "config", config)

	store, err := storage.Open(config.Database.Driver, config.Database.ConnStr)
	if err != nil {
		log.Error("Error creating storage", "err", err)
		return 1
	}
	defer closeStore(store)

	log.Debug("init storage", "driver", config.Database.Driver)

	favorites, err := prefs.LoadFavorites(ctx, store, log)
	if err != nil {
		log.Error("Error loading favorites", "err", err)
		return 1
	}
	tickers, err := prefs.LoadTickerPreference(ctx, store, log)
	if err != nil {
		log.Error("Error loading ticker preference", "err", err)
		return 1
	}

	log.Debug("init preferences", "favorites", len(favorites.IDs()), "showTickers", tickers.Enabled())

	// 汇率来源按优先级排列
	oracle := collector.NewMultiSourceOracle([]data.RateProvider{
		coingecko.NewCoinGeckoRateSource(config.Providers.CoinGecko),
		binance.NewBinanceRateSource(config.Providers.Binance, nil),
		kraken.NewKrakenRateSource(config.Providers.Kraken),
	}, config.RateCacheTTL(), log)

	log.Debug("init oracle")

	client := xrplmeta.NewClient(config.MetaBaseURL, oracle, log, xrplmeta.Options{
		PageLimit: config.Limits.PageLimit,
		BatchSize: config.Limits.BatchSize,
		MaxTokens: config.Limits.MaxTokens,
	})

	channel := realtime.NewChannel(realtimeOptions(config.Realtime), websocket.DefaultDialer, log)

	log.Debug("init realtime channel")

	controller := feed.NewController(client, channel, search.NewWorker(), favorites, log, feed.Options{
		PollInterval:    config.PollEvery(),
		Debounce:        config.DebounceDelay(),
		DisplayPageSize: config.Limits.DisplayPageSize,
		MaxSearchable:   config.Limits.MaxSearchable,
	})

	srv := server.New(config.Listen, server.Deps{
		Feed:      controller,
		Favorites: favorites,
		Tickers:   tickers,
		Oracle:    oracle,
		Status:    client,
		Pages:     client,
	}, log, config.Debug)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	go controller.Start(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("Server error", "err", serveErr)
		}
	}

	controller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down server", "err", err)
	}

	if serveErr != nil {
		return 1
	}
	return 0
}

func closeStore(store data.KeyValueStore) {
	if err := store.Close(); err != nil {
		log.Error("Error closing storage", "err", err)
	}
}

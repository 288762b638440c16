package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"CryptoLens/internal/analysis"
	"CryptoLens/internal/api"
	"CryptoLens/internal/cache"
	"CryptoLens/internal/collector"
	"CryptoLens/internal/config"
	"CryptoLens/internal/metrics"
	"CryptoLens/internal/model"
	"CryptoLens/internal/narrative"
	"CryptoLens/internal/notifier"
	"CryptoLens/internal/publish"
	"CryptoLens/internal/recorder"
	"CryptoLens/internal/scheduler"
	"CryptoLens/internal/validator"
	"CryptoLens/internal/watchlist"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] CryptoLens starting...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] load .env: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	targets, err := cfg.WatchItems()
	if err != nil {
		log.Fatalf("[FATAL] watchlist: %v", err)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.NewMetrics()

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init provider chain
	col := collector.NewCollector(
		buildProviders(cfg),
		validator.New(cfg.RangeOverrides()),
		cache.New(cfg.Cache.TTL.Std(), cache.SystemClock),
		collector.Options{
			Timeout:         cfg.Providers.Timeout.Std(),
			BreakerFailures: cfg.Providers.Breaker.Failures,
			BreakerReset:    cfg.Providers.Breaker.Reset.Std(),
		},
	)
	col.OnAttempt = func(a model.FetchAttempt) {
		m.ObserveAttempt(a)
		if err := rec.RecordAttempt(&a); err != nil {
			log.Printf("[ERROR] record attempt: %v", err)
		}
	}
	col.OnCacheLookup = m.ObserveCache
	col.OnBreakerChange = func(provider string, _, to collector.BreakerState) {
		m.ObserveBreaker(provider, to)
	}
	col.OnExhausted = func(model.AssetPair, model.Timeframe) { m.Exhaustions.Inc() }
	log.Printf("[INFO] providers: %v", col.Providers())

	// Init narrator
	narrator := &narrative.Narrator{}
	if cfg.LLMEnabled() {
		narrator.LLM = narrative.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout.Std())
		log.Println("[INFO] LLM narratives enabled")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := api.NewHub()
	hub.OnClientCount = func(n int) { m.WSClients.Set(float64(n)) }

	// Init publisher. With Redis every instance receives every analysis
	// through the subscription, so the service must not broadcast locally.
	var pub publish.Publisher = publish.NewNoopPublisher()
	var redisPub *publish.RedisPublisher
	if cfg.Redis.Addr != "" {
		rp, err := publish.New(publish.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			LatestTTL: cfg.Redis.LatestTTL.Std(),
		})
		if err != nil {
			log.Printf("[WARN] init redis publisher failed, publishing locally: %v", err)
		} else {
			redisPub, pub = rp, rp
			defer rp.Close()
		}
	}

	svc := analysis.NewService(col, narrator, rec, pub, m)
	if redisPub != nil {
		go redisPub.Subscribe(ctx, hub.Broadcast)
	} else {
		svc.Broadcast = hub.Broadcast
	}

	// Init watchlist
	wl, err := watchlist.NewManager(cfg.Watchlist.StateFile)
	if err != nil {
		log.Fatalf("[FATAL] init watchlist: %v", err)
	}
	schedTargets := make([]scheduler.Target, len(targets))
	for i, t := range targets {
		schedTargets[i] = scheduler.Target{Pair: t.Pair, Timeframe: t.Timeframe}
	}

	// Init Telegram notifier
	var sender notifier.Sender
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Providers.Proxy)
		sender = tn
	} else {
		log.Println("[WARN] telegram is not configured, alerts are disabled")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, svc, wl, schedTargets, sender)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.DigestCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// HTTP server
	srv := api.NewServer(col, svc, rec, m, hub).NewHTTPServer(cfg.Server.Listen)
	go func() {
		log.Printf("[INFO] HTTP server listening on %s", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, refreshing watchlist now")
		go sched.RunRefreshNow()
	}

	log.Println("[INFO] CryptoLens is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	log.Println("[INFO] CryptoLens stopped")
}

// buildProviders returns the chain in priority order: CryptoAPIs, Smithery,
// CoinCap, CoinGecko. Mock mode replaces the chain with generated data.
func buildProviders(cfg *config.Config) []collector.Provider {
	if cfg.Providers.Mock {
		log.Println("[WARN] providers.mock enabled, serving generated data")
		return []collector.Provider{&collector.MockProvider{}}
	}
	pc := cfg.Providers
	client := collector.NewHTTPClient(pc.Timeout.Std(), pc.Proxy)
	return []collector.Provider{
		collector.NewCryptoAPIsProvider(pc.CryptoAPIs.BaseURL, pc.CryptoAPIs.APIKey, pc.CryptoAPIs.UseBackupPrices, client),
		collector.NewSmitheryProvider(pc.Smithery.URL, client),
		collector.NewCoinCapProvider(pc.CoinCap.BaseURL, pc.CoinCap.APIKey, client),
		collector.NewCoinGeckoProvider(pc.CoinGecko.BaseURL, pc.CoinGecko.APIKey, client),
	}
}

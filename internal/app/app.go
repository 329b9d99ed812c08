package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chartfeed/config"
	v1 "chartfeed/internal/api/v1"
	"chartfeed/internal/bybit/memorystore"
	"chartfeed/internal/bybit/snapshot"
	"chartfeed/internal/bybit/stream"
	"chartfeed/internal/bybit/symbolmeta"
	"chartfeed/internal/datafeed"
	"chartfeed/pkg/bybit"
	"chartfeed/pkg/storage/postgres"
	pricecache "chartfeed/pkg/storage/redis"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	priceFlushInterval = 2 * time.Second
	statsInterval      = 30 * time.Second
)

// Run wires the Bybit transport, the bar engine and the HTTP datafeed API,
// then serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Optional symbol catalog persistence
	var repo snapshot.SymbolRepository
	var postgresClient *postgres.PostgresClient
	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrateSymbolRecord(cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer client.Close()
		postgresClient = client
		repo = client
	}

	// Optional last-price mirror
	var prices *pricecache.PriceCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		prices = pricecache.NewPriceCache(rdb, cfg.Redis.PriceTTL, logger)

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := prices.Ping(pingCtx)
		pingCancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	restClient := bybit.NewRESTClient(cfg.Bybit.REST.BaseURL, bybit.Category(cfg.Bybit.Category),
		cfg.Bybit.REST.Timeout, cfg.Bybit.REST.RateLimit)
	wsClient := bybit.NewWSClient(cfg.Bybit.WS.URL, cfg.Bybit.WS.PingInterval, logger)

	opts := datafeed.EngineOptions{
		QueueSize:            cfg.Feed.QueueSize,
		PriceMode:            datafeed.PriceMode(cfg.Feed.PriceMode),
		UnsubscribeClearsAll: cfg.Feed.UnsubscribeClearsAll,
	}
	if prices != nil {
		opts.OnPrice = prices.Offer
	}
	hub := datafeed.NewHub(wsClient, opts, logger)

	if prices != nil {
		loadCtx, loadCancel := context.WithTimeout(ctx, 5*time.Second)
		seeded, err := prices.LoadPrices(loadCtx)
		loadCancel()
		if err != nil {
			logger.Warn("failed to load cached prices", zap.Error(err))
		}
		for symbol, price := range seeded {
			hub.SeedLastPrice(symbol, price)
		}
		logger.Info("seeded last prices", zap.Int("count", len(seeded)))
		prices.StartWorker(ctx, priceFlushInterval)
	}

	// Symbol catalog, refreshed every UTC midnight
	symbolStore := memorystore.NewSymbolStore()
	loader := &snapshot.SymbolLoader{
		Source:  restClient,
		Repo:    repo,
		Timeout: cfg.Bybit.REST.Timeout,
		Logger:  logger,
	}
	scheduler := &symbolmeta.MidnightLoader{Load: symbolmeta.DefaultLoadFn(loader)}
	scheduler.Start(ctx, func(ch <-chan datafeed.SymbolMeta) {
		symbolStore.ReplaceWorker(ch, nil)
	})

	// Live transport
	wsClient.SetMessageHandler(stream.MakeMessageHandler(logger, hub))
	go hub.Run(ctx)
	if err := wsClient.Connect(); err != nil {
		// Listen keeps retrying; subscriptions are replayed once connected
		logger.Warn("initial websocket connect failed", zap.Error(err))
	}
	go wsClient.Listen(ctx)

	feed := datafeed.NewFeed(hub.NewEngine(), datafeed.NewFetcher(restClient, logger), symbolStore,
		datafeed.FeedOptions{Exchange: cfg.Feed.Exchange, HistoryTimeout: cfg.Feed.HistoryTimeout}, logger)
	// every stream connection gets its own engine over the shared transport
	openFeed := func() (datafeed.Datafeed, func()) {
		engine := hub.NewEngine()
		return feed.WithEngine(engine), func() { hub.Release(engine) }
	}

	stats := func() map[string]int {
		s := map[string]int{
			"subscriptions": hub.Subscriptions(),
			"consumers":     hub.Consumers(),
			"symbols":       symbolStore.Count(),
			"topics":        len(wsClient.Topics()),
		}
		if prices != nil {
			s["pending_prices"] = prices.Pending()
		}
		return s
	}
	check := func(ctx context.Context) map[string]error {
		res := map[string]error{}
		if postgresClient != nil {
			res["postgres"] = nil
			if !postgresClient.IsHealthy(ctx) {
				res["postgres"] = errors.New("ping failed")
			}
		}
		if prices != nil {
			res["redis"] = prices.Ping(ctx)
		}
		return res
	}

	router := http.NewServeMux()
	v1.SetChartRoutes(router,
		v1.NewChartHandler(feed, hub, logger),
		v1.NewStreamHandler(openFeed, cfg.HTTP.StreamBuffer, logger),
		v1.NewHealthHandler(check, stats, logger),
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Periodically print engine state for visibility
	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := stats()
				logger.Info("feed stats",
					zap.Int("subscriptions", s["subscriptions"]),
					zap.Int("consumers", s["consumers"]),
					zap.Int("symbols", s["symbols"]),
					zap.Int("topics", s["topics"]))
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("chartfeed stopped")
	return nil
}

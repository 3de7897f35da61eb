package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/arbitrage"
	"github.com/mselser95/prediction-arb/internal/circuitbreaker"
	"github.com/mselser95/prediction-arb/internal/constraints"
	"github.com/mselser95/prediction-arb/internal/kalshi"
	"github.com/mselser95/prediction-arb/internal/matcher"
	"github.com/mselser95/prediction-arb/internal/polymarket"
	"github.com/mselser95/prediction-arb/internal/ratelimit"
	"github.com/mselser95/prediction-arb/internal/scanner"
	"github.com/mselser95/prediction-arb/internal/spot"
	"github.com/mselser95/prediction-arb/internal/storage"
	"github.com/mselser95/prediction-arb/pkg/cache"
	"github.com/mselser95/prediction-arb/pkg/config"
	"github.com/mselser95/prediction-arb/pkg/healthprobe"
	"github.com/mselser95/prediction-arb/pkg/httpserver"
	"github.com/mselser95/prediction-arb/pkg/websocket"
)

// New assembles the application. Construction is fail-fast: credential
// loading, match-cache parsing and sink connections all happen here, so a
// misconfigured process never reaches the scan loop.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := setupHealthChecker()

	appCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	limiter, err := setupLimiter(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup rate limiter: %w", err)
	}

	polyClient, err := setupPolymarket(cfg, logger, limiter, appCache)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup polymarket client: %w", err)
	}

	kalshiClient, err := setupKalshi(cfg, logger, limiter)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup kalshi client: %w", err)
	}

	spotClient, err := setupSpot(cfg, logger, limiter)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup spot client: %w", err)
	}

	pairMatcher, err := setupMatcher(cfg, logger, appCache)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup matcher: %w", err)
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	csvLogger, err := storage.NewCSVLogger(cfg.LogFile, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup csv logger: %w", err)
	}

	scn, err := setupScanner(cfg, logger, polyClient, kalshiClient, spotClient, pairMatcher, store, csvLogger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup scanner: %w", err)
	}

	hub, err := websocket.New(&websocket.Config{
		Source: scn,
		Logger: logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup websocket hub: %w", err)
	}

	httpServer := setupHTTPServer(cfg, logger, healthChecker, scn, store, hub)

	healthChecker.AddCheck("scanner", scannerCheck(scn))

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		hub:           hub,
		scanner:       scn,
		store:         store,
		csv:           csvLogger,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New()
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items
		MaxCost:     1000,  // outcome-token sets plus embedding vectors
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupLimiter(cfg *config.Config, logger *zap.Logger) (*ratelimit.Limiter, error) {
	return ratelimit.New(&ratelimit.Config{
		Logger: logger,
		Budgets: map[string]float64{
			"kalshi": cfg.KalshiRateLimit,
			"clob":   cfg.ClobRateLimit,
			"gamma":  cfg.GammaRateLimit,
			"spot":   cfg.SpotRateLimit,
		},
	})
}

func setupPolymarket(cfg *config.Config, logger *zap.Logger, limiter *ratelimit.Limiter, tokenCache cache.Cache) (*polymarket.Client, error) {
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Venue:  "polymarket",
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return polymarket.New(&polymarket.Config{
		GammaURL:    cfg.PolymarketGammaURL,
		ClobURL:     cfg.PolymarketClobURL,
		HTTPTimeout: cfg.HTTPTimeout,
		Limiter:     limiter,
		Breaker:     breaker,
		TokenCache:  tokenCache,
		Logger:      logger,
	})
}

func setupKalshi(cfg *config.Config, logger *zap.Logger, limiter *ratelimit.Limiter) (*kalshi.Client, error) {
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Venue:  "kalshi",
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return kalshi.New(&kalshi.Config{
		BaseURL:     cfg.KalshiBaseURL,
		APIKey:      cfg.KalshiAPIKey,
		PrivateKey:  cfg.KalshiPrivateKey,
		HTTPTimeout: cfg.HTTPTimeout,
		Limiter:     limiter,
		Breaker:     breaker,
		Logger:      logger,
	})
}

func setupSpot(cfg *config.Config, logger *zap.Logger, limiter *ratelimit.Limiter) (*spot.Client, error) {
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Venue:  "spot",
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return spot.New(&spot.Config{
		BaseURL:     cfg.SpotBaseURL,
		HTTPTimeout: cfg.HTTPTimeout,
		Limiter:     limiter,
		Breaker:     breaker,
		Logger:      logger,
	})
}

func setupMatcher(cfg *config.Config, logger *zap.Logger, vectors cache.Cache) (*matcher.Matcher, error) {
	db, err := matcher.OpenDB(cfg.MatchCacheFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open match cache: %w", err)
	}

	var embedder matcher.Embedder
	if cfg.OpenAIAPIKey != "" {
		openAI, err := matcher.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		embedder = openAI
		logger.Info("semantic-matching-enabled")
	} else {
		logger.Info("semantic-matching-disabled",
			zap.String("reason", "OPENAI_API_KEY not set"))
	}

	return matcher.New(&matcher.Config{
		DB:       db,
		Embedder: embedder,
		Vectors:  vectors,
		Logger:   logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			DSN:    cfg.DatabaseURL,
			Bot:    cfg.BotName,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}
	return storage.NewConsoleStorage(logger), nil
}

func setupScanner(
	cfg *config.Config,
	logger *zap.Logger,
	polyClient *polymarket.Client,
	kalshiClient *kalshi.Client,
	spotClient *spot.Client,
	pairMatcher *matcher.Matcher,
	store storage.Storage,
	csvLogger *storage.CSVLogger,
) (*scanner.Scanner, error) {
	evaluator, err := arbitrage.New(&arbitrage.Config{
		MinProfitCents: cfg.MinProfitCents,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	detector, err := constraints.New(&constraints.Config{
		MinProfitCents: cfg.MinProfitCents,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create constraint detector: %w", err)
	}

	return scanner.New(&scanner.Config{
		Poly:      polyClient,
		Kalshi:    kalshiClient,
		Spot:      spotClient,
		Matcher:   pairMatcher,
		Evaluator: evaluator,
		Detector:  detector,
		Storage:   store,
		CSV:       csvLogger,
		Logger:    logger,

		PollInterval:         cfg.PollInterval,
		MarketFetchLimit:     cfg.MarketFetchLimit,
		MaxPairsPerTick:      cfg.MaxPairsPerTick,
		MaxMultiOutcome:      cfg.MaxMultiOutcomeMarkets,
		MaxSpotLagFetches:    cfg.MaxSpotLagBookFetches,
		MaxConstraintFetches: cfg.MaxConstraintFetches,
		RematchInterval:      cfg.RematchInterval,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	scn *scanner.Scanner,
	store storage.Storage,
	hub *websocket.Hub,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.DashboardPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		State:         scn,
		Stats:         store,
		Hub:           hub,
	})
}

// scannerCheck reports ready once the scan loop has published its first
// completed tick.
func scannerCheck(scn *scanner.Scanner) func() error {
	return func() error {
		if status := scn.Snapshot().Status; status != "running" {
			return fmt.Errorf("scanner is %s", status)
		}
		return nil
	}
}

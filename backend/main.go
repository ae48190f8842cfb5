package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pharmastore/m/internal/ai"
	"pharmastore/m/internal/api"
	"pharmastore/m/internal/auth"
	"pharmastore/m/internal/cache"
	"pharmastore/m/internal/checkout"
	"pharmastore/m/internal/config"
	"pharmastore/m/internal/database"
	"pharmastore/m/internal/feed"
	"pharmastore/m/internal/logger"
	"pharmastore/m/internal/loyalty"
	"pharmastore/m/internal/metrics"
	"pharmastore/m/internal/migrations"
	"pharmastore/m/internal/pricing"
	"pharmastore/m/internal/seed"
	"pharmastore/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.Init(cfg.LogLevel, cfg.Env, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	db, err := database.Connect(cfg.DB.Driver, cfg.DB.DSN, cfg.DB.MaxOpenConns)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	m := metrics.New(cfg.Metrics.Prefix)

	var (
		broker  feed.Broker = feed.NewMemoryBroker()
		backend cache.Cache = cache.Nop{}
	)
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, using in-memory feed without cache", zap.Error(err))
		} else {
			defer client.Close()
			broker = feed.NewRedisBroker(client, log)
			backend = cache.NewRedisCache(client, cfg.ServiceName, cfg.Redis.CacheTTL)
		}
	}
	defer broker.Close()

	st := store.New(db, broker, m, log)

	tokens := auth.NewTokens(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpirationHours)*time.Hour)
	authSvc := auth.NewService(st, tokens)
	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if _, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal("failed to bootstrap admin", zap.Error(err))
		}
	}

	if cfg.SeedProductsCSV != "" {
		seed.LoadProducts(ctx, st, cfg.SeedProductsCSV)
	}

	calc := pricing.Calculator{DeliveryFee: cfg.Store.DeliveryFee, RedemptionValue: cfg.Store.RedemptionValue}
	policy := loyalty.Policy{Threshold: cfg.Store.RedemptionThreshold}
	checkoutSvc := checkout.NewService(st, calc, policy, m, cfg.Store.BusinessPhone)

	var gen ai.Generator
	if cfg.AI.APIKey != "" {
		g, err := ai.NewGeminiGenerator(ctx, cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
		if err != nil {
			log.Fatal("failed to create AI client", zap.Error(err))
		}
		gen = g
	} else {
		log.Info("AI_API_KEY not set, assistant will answer with fallbacks")
	}

	productCache := cache.NewTracked(backend)
	if err := cache.InvalidateOn(ctx, broker, store.CollProducts, productCache, log); err != nil {
		log.Fatal("failed to subscribe cache invalidation", zap.Error(err))
	}

	handler := api.New(api.Deps{
		Store:     st,
		Auth:      authSvc,
		Checkout:  checkoutSvc,
		Assistant: ai.NewAssistant(gen, st, m),
		Feed:      broker,
		Cache:     productCache,
		Metrics:   m,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("pharmacy server starting", zap.String("port", cfg.HTTPPort), zap.String("db_driver", cfg.DB.Driver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}

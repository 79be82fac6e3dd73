package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/config"
	"github.com/fjod/go_shop/internal/events"
	h "github.com/fjod/go_shop/internal/http"
	"github.com/fjod/go_shop/internal/logger"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("shop service starting", zap.String("db_driver", cfg.DBDriver), zap.Bool("kafka", cfg.KafkaEnabled()))
	var wg sync.WaitGroup

	// Database setup
	creds := &repository.Credentials{
		Driver:            cfg.DBDriver,
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		SQLitePath:        cfg.SQLitePath,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database migrations completed")

	// Carts live in MongoDB
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoDB, err := repository.ConnectMongoDB(startupCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			log.Warn("error disconnecting mongodb", zap.Error(err))
		}
	}()
	carts := repository.NewCartStore(mongoDB, cfg.CartTTL)
	if err := carts.CreateIndexes(startupCtx); err != nil {
		log.Fatal("failed to create cart indexes", zap.Error(err))
	}

	// Redis cache behind a circuit breaker
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	redisCache := cache.NewRedisCache(redisClient)
	if err := redisCache.Ping(startupCtx); err != nil {
		// reads fall back to the database while the breaker is open
		log.Warn("redis is not reachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	startupCancel()
	orderCache := cache.NewBreakerCache(redisCache, cache.BreakerSettings{}, log)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaEnabled() {
		kafkaPublisher := events.NewKafkaPublisher(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	orders := service.NewOrderService(service.OrderDeps{
		Orders:    repo.Orders(),
		Products:  repo.Products(),
		Users:     repo.Users(),
		Tx:        repo,
		Cache:     orderCache,
		Publisher: publisher,
		Logger:    log,
		CacheTTL:  cfg.CacheTTL,
	})
	cartService := service.NewCartService(carts, repo.Products(), orders, orderCache, cfg.CacheTTL, log)
	products := service.NewProductService(repo.Products(), log)
	users := service.NewUserService(repo.Users(), log)

	// Payment outcomes arrive over Kafka
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	var paymentConsumer *events.PaymentConsumer
	if cfg.KafkaEnabled() {
		paymentConsumer = events.NewPaymentConsumer(orders, service.IsClientError, log, cfg.PaymentEventsTopic, cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			paymentConsumer.Run(consumerCtx)
		}()
	}

	router := h.NewRouter(h.Handlers{
		Orders:   h.NewOrdersHandler(orders, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(cartService, cfg.RequestTimeout),
		Products: h.NewProductHandler(products, cfg.RequestTimeout),
		Users:    h.NewUserHandler(users, cfg.RequestTimeout),
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "shop"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	consumerCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info("consumer stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("consumer didn't stop in time")
	}

	if paymentConsumer != nil {
		paymentConsumer.Close()
	}
	log.Info("server exited")
}

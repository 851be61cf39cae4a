// Storefront 购物车一致性与计价引擎
// 功能：乐观数量编辑的防抖批量上行、权威购物车与持久化镜像同步、
// 库存评估与结算金额计算
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	cartapp "github.com/deshkart/storefront/internal/cart/application"
	cartdomain "github.com/deshkart/storefront/internal/cart/domain"
	cartclient "github.com/deshkart/storefront/internal/cart/infrastructure/client"
	"github.com/deshkart/storefront/internal/cart/infrastructure/messaging"
	"github.com/deshkart/storefront/internal/cart/infrastructure/notification"
	cartmysql "github.com/deshkart/storefront/internal/cart/infrastructure/persistence/mysql"
	carthttp "github.com/deshkart/storefront/internal/cart/interfaces/http"
	checkoutapp "github.com/deshkart/storefront/internal/checkout/application"
	checkoutclient "github.com/deshkart/storefront/internal/checkout/infrastructure/client"
	checkouthttp "github.com/deshkart/storefront/internal/checkout/interfaces/http"
	stockapp "github.com/deshkart/storefront/internal/stock/application"
	stockclient "github.com/deshkart/storefront/internal/stock/infrastructure/client"
	"github.com/deshkart/storefront/pkg/cache"
	"github.com/deshkart/storefront/pkg/config"
	"github.com/deshkart/storefront/pkg/db"
	"github.com/deshkart/storefront/pkg/logger"
	"github.com/deshkart/storefront/pkg/metrics"
	"github.com/deshkart/storefront/pkg/middleware"
	"github.com/deshkart/storefront/pkg/mq"
	"github.com/deshkart/storefront/pkg/ratelimit"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/storefront/config.toml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting storefront cart engine",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化数据库（持久化镜像）
	database, err := db.Init(db.Config{
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()
	if err := database.AutoMigrate(&cartmysql.CartMirror{}, &cartmysql.CartMirrorLine{}); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 4. 初始化 Redis（库存快照缓存与限流）
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	// 5. 初始化 Kafka 生产者（镜像变更通知）
	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Kafka producer", "error", err)
	}
	defer producer.Close()

	// 6. 初始化指标
	metricsInstance := metrics.New("cart")
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Port > 0 {
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
		}
	}

	// 7. 远端网关
	upstreamTimeout := time.Duration(cfg.Upstream.Timeout) * time.Second
	cartGateway := cartclient.NewCartClient(cfg.Upstream.BaseURL, upstreamTimeout)
	stockGateway := stockclient.NewStockClient(cfg.Upstream.BaseURL, upstreamTimeout)
	couponGateway := checkoutclient.NewCouponClient(cfg.Upstream.BaseURL, upstreamTimeout)

	// 8. 组装核心：会话存储管理器、库存轮询器、结算服务
	publisher := messaging.NewKafkaEventPublisher(producer)
	notifier := notification.NewLogNotifier()
	mirror := cartmysql.NewCartMirrorRepository(database)

	manager := cartapp.NewStoreManager(
		time.Duration(cfg.Cart.DebounceMillis)*time.Millisecond,
		cartGateway, mirror, publisher, notifier, nil, metricsInstance,
	)

	poller := stockapp.NewStockPoller(
		stockGateway, redisCache, manager.ProductIDs,
		time.Duration(cfg.Stock.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Stock.CacheTTLSeconds)*time.Second,
		metricsInstance,
	)
	manager.SetStockProvider(poller)
	poller.Start(ctx)
	defer poller.Stop()

	linesProvider := func(ctx context.Context, sessionID string) ([]cartdomain.CartLine, error) {
		store, err := manager.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return store.EffectiveLines(), nil
	}
	checkout := checkoutapp.NewCheckoutService(couponGateway, linesProvider, metricsInstance)

	// 9. HTTP 服务器
	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
	router := gin.New()
	router.Use(
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinCORSMiddleware(),
		middleware.RateLimitMiddleware(rateLimiter, middleware.RateLimitConfig{Enabled: true, QPS: 50, Burst: 100}),
	)

	root := router.Group("")
	carthttp.NewCartHandler(manager).RegisterRoutes(root)
	checkouthttp.NewCheckoutHandler(checkout).RegisterRoutes(root)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server failed", "error", err)
		}
	}()

	// 10. 优雅退出：先停轮询与计时器，再关 HTTP
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down...")

	manager.Close()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown failed", "error", err)
	}
}

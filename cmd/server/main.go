package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-pay/internal/config"
	"github.com/bitfantasy/nimo-pay/internal/handler"
	"github.com/bitfantasy/nimo-pay/internal/middleware"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-pay service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化ID生成器
	seq, err := sequence.New(cfg.Sequence.NodeID)
	if err != nil {
		zapLogger.Fatal("Failed to init sequence generator", zap.Error(err))
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, seq, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 交易接入
		transactions := authorized.Group("/transactions")
		{
			transactions.POST("", h.Transaction.Ingest)
			transactions.GET("", h.Transaction.List)
			transactions.GET("/:id", h.Transaction.Get)
			transactions.GET("/:id/audit", h.Transaction.AuditTrail)
			transactions.GET("/vendor/:vendor_tx_id", h.Transaction.GetByVendorTxID)
		}

		// 渠道路由
		routing := authorized.Group("/routing")
		{
			routing.POST("/select", h.Routing.Select)
			routing.GET("/rules", h.Routing.ListRules)
			routing.POST("/rules", middleware.RequirePermission("routing:admin"), h.Routing.CreateRule)
			routing.PUT("/rules/:id", middleware.RequirePermission("routing:admin"), h.Routing.UpdateRule)
			routing.GET("/usage", h.Routing.GetUsage)
		}

		// 结算批次
		settlement := authorized.Group("/settlement")
		{
			settlement.POST("/batches", h.Settlement.CreateBatch)
			settlement.GET("/batches", h.Settlement.ListBatches)
			settlement.GET("/batches/:id", h.Settlement.GetBatch)
			settlement.POST("/batches/:id/run", h.Settlement.RunBatch)
			settlement.POST("/batches/:id/cancel", h.Settlement.CancelBatch)
			settlement.GET("/batches/:id/summary", h.Settlement.GetSummary)
			settlement.GET("/batches/:id/details", h.Settlement.ListDetails)
			settlement.GET("/batches/:id/export", h.Settlement.ExportReport)
			settlement.POST("/batches/:id/archive", h.Settlement.ArchiveReport)
		}

		// 钱包
		wallets := authorized.Group("/wallets")
		{
			wallets.GET("/:id", h.Wallet.Get)
			wallets.GET("/:id/entries", h.Wallet.ListEntries)
			wallets.POST("/:id/adjust", middleware.RequirePermission("wallet:admin"), h.Wallet.Adjust)
		}

		// 商户与加盟商开户
		merchants := authorized.Group("/merchants")
		{
			merchants.GET("/:id", h.Merchant.GetMerchant)
			merchants.POST("", middleware.RequirePermission("merchant:admin"), h.Merchant.CreateMerchant)
		}
		franchises := authorized.Group("/franchises")
		{
			franchises.POST("", middleware.RequirePermission("merchant:admin"), h.Merchant.CreateFranchise)
		}

		// 费率配置
		rates := authorized.Group("/rates")
		{
			rates.GET("", h.Rate.List)
			rates.POST("", middleware.RequirePermission("rate:admin"), h.Rate.Create)
		}
	}
}

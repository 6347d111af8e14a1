package service

import (
	"time"

	"github.com/bitfantasy/nimo-pay/internal/config"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Commission  *CommissionCalculator
	Routing     *RoutingService
	Settlement  *SettlementService
	Transaction *TransactionService
	Wallet      *WalletService
	Rate        *RateService
	Merchant    *MerchantService
	Report      *ReportService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, seq *sequence.Generator, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端，未配置时报表归档不可用
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio client init failed, report archiving disabled", zap.Error(err))
			minioClient = nil
		}
	}

	calc := NewCommissionCalculator()
	routing := NewRoutingService(repos.Routing, seq, logger)
	defaultWindow := time.Duration(cfg.Settlement.DefaultWindowHours) * time.Hour
	settlement := NewSettlementService(db, repos, calc, seq, rdb, defaultWindow, logger)

	return &Services{
		Commission:  calc,
		Routing:     routing,
		Settlement:  settlement,
		Transaction: NewTransactionService(repos.Transaction, repos.Audit, routing, seq, logger),
		Wallet:      NewWalletService(db, repos.Wallet, seq),
		Rate:        NewRateService(repos.Rate, seq),
		Merchant:    NewMerchantService(db, repos.Merchant, repos.Wallet, seq),
		Report:      NewReportService(repos.Batch, minioClient, cfg.MinIO.Bucket, logger),
	}
}

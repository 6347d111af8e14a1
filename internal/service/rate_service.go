package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/shopspring/decimal"
)

// RateService 费率配置服务
type RateService struct {
	repo *repository.RateRepository
	seq  *sequence.Generator
}

// NewRateService 创建费率服务
func NewRateService(repo *repository.RateRepository, seq *sequence.Generator) *RateService {
	return &RateService{repo: repo, seq: seq}
}

// CreateRateRequest 新建费率请求
type CreateRateRequest struct {
	ProductID     string          `json:"product_id" binding:"required"`
	CardType      string          `json:"card_type" binding:"required"`
	Channel       string          `json:"channel" binding:"required"`
	Scheme        string          `json:"scheme" binding:"required"`
	MerchantRate  decimal.Decimal `json:"merchant_rate" binding:"required"`
	FranchiseRate decimal.Decimal `json:"franchise_rate"`
	SystemFee     decimal.Decimal `json:"system_fee"`
}

// Create 新建费率配置
func (s *RateService) Create(ctx context.Context, req *CreateRateRequest) (*entity.RateConfig, error) {
	rate := &entity.RateConfig{
		ID:            s.seq.NextID(),
		ProductID:     req.ProductID,
		CardType:      req.CardType,
		Channel:       req.Channel,
		Scheme:        req.Scheme,
		MerchantRate:  req.MerchantRate,
		FranchiseRate: req.FranchiseRate,
		SystemFee:     req.SystemFee,
		Enabled:       true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.repo.Create(ctx, rate); err != nil {
		return nil, fmt.Errorf("create rate config: %w", err)
	}
	return rate, nil
}

// List 分页查询费率配置
func (s *RateService) List(ctx context.Context, page, pageSize int, productID string) ([]entity.RateConfig, int64, error) {
	return s.repo.List(ctx, page, pageSize, productID)
}

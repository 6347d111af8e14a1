package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoEligibleVendor 所有槽位均不可用，交易无法路由
var ErrNoEligibleVendor = errors.New("no eligible vendor")

// RoutingService 渠道路由引擎：按槽位固定优先级选择渠道，
// 受金额区间与当日配额约束。
type RoutingService struct {
	repo   *repository.RoutingRepository
	seq    *sequence.Generator
	logger *zap.Logger
}

// NewRoutingService 创建路由服务
func NewRoutingService(repo *repository.RoutingRepository, seq *sequence.Generator, logger *zap.Logger) *RoutingService {
	return &RoutingService{repo: repo, seq: seq, logger: logger}
}

// SelectVendor 为一笔待发交易选择渠道。
// 槽位顺序固定 1..3，不随负载重排；首个通过金额与配额检查的槽位胜出，
// 其当日用量在返回前原子累加。全部失败返回 ErrNoEligibleVendor 且不产生任何用量变更。
func (s *RoutingService) SelectVendor(ctx context.Context, productID string, amount decimal.Decimal, asOf time.Time) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("invalid amount %s", amount)
	}

	rules, err := s.repo.ListRulesByProduct(ctx, productID)
	if err != nil {
		return "", fmt.Errorf("list routing rules: %w", err)
	}
	if len(rules) == 0 {
		return "", ErrNoEligibleVendor
	}

	date := asOf.Format("2006-01-02")

	for i := range rules {
		rule := &rules[i]

		if !rule.Matches(amount) {
			continue
		}

		// 预检配额，明显超限的槽位直接跳过，避免无谓的条件更新
		usage, err := s.repo.GetUsage(ctx, rule.VendorID, rule.ProductID, date)
		if err != nil {
			return "", fmt.Errorf("get usage: %w", err)
		}
		if usage.TxCount >= rule.DailyTxLimit {
			continue
		}
		if usage.TotalAmount.Add(amount).GreaterThan(rule.DailyAmountLimit) {
			continue
		}

		// 条件更新复核配额并累加用量，并发下只有一个调用方能占到最后的名额
		err = s.repo.TryConsumeQuota(ctx, s.seq.NextID(), rule, date, amount)
		if err != nil {
			if errors.Is(err, repository.ErrQuotaExceeded) {
				continue
			}
			return "", fmt.Errorf("consume quota: %w", err)
		}

		s.logger.Info("vendor selected",
			zap.String("product_id", productID),
			zap.String("vendor_id", rule.VendorID),
			zap.Int("slot", rule.Slot),
			zap.String("amount", amount.String()),
			zap.String("usage_date", date),
		)
		return rule.VendorID, nil
	}

	return "", ErrNoEligibleVendor
}

// CreateRuleRequest 新建路由规则请求
type CreateRuleRequest struct {
	ProductID        string           `json:"product_id" binding:"required"`
	Slot             int              `json:"slot" binding:"required,min=1,max=3"`
	VendorID         string           `json:"vendor_id" binding:"required"`
	MinAmount        *decimal.Decimal `json:"min_amount"`
	MaxAmount        *decimal.Decimal `json:"max_amount"`
	DailyTxLimit     int64            `json:"daily_tx_limit" binding:"required,min=1"`
	DailyAmountLimit decimal.Decimal  `json:"daily_amount_limit" binding:"required"`
}

// CreateRule 新建路由规则
func (s *RoutingService) CreateRule(ctx context.Context, req *CreateRuleRequest) (*entity.VendorRoutingRule, error) {
	rule := &entity.VendorRoutingRule{
		ID:               s.seq.NextID(),
		ProductID:        req.ProductID,
		Slot:             req.Slot,
		VendorID:         req.VendorID,
		MinAmount:        req.MinAmount,
		MaxAmount:        req.MaxAmount,
		DailyTxLimit:     req.DailyTxLimit,
		DailyAmountLimit: req.DailyAmountLimit,
		Enabled:          true,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("create routing rule: %w", err)
	}
	return rule, nil
}

// UpdateRuleRequest 更新路由规则请求
type UpdateRuleRequest struct {
	VendorID         string           `json:"vendor_id"`
	MinAmount        *decimal.Decimal `json:"min_amount"`
	MaxAmount        *decimal.Decimal `json:"max_amount"`
	DailyTxLimit     int64            `json:"daily_tx_limit"`
	DailyAmountLimit *decimal.Decimal `json:"daily_amount_limit"`
	Enabled          *bool            `json:"enabled"`
}

// UpdateRule 更新路由规则，槽位本身不可变更
func (s *RoutingService) UpdateRule(ctx context.Context, id string, req *UpdateRuleRequest) (*entity.VendorRoutingRule, error) {
	rule, err := s.repo.FindRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.VendorID != "" {
		rule.VendorID = req.VendorID
	}
	if req.MinAmount != nil {
		rule.MinAmount = req.MinAmount
	}
	if req.MaxAmount != nil {
		rule.MaxAmount = req.MaxAmount
	}
	if req.DailyTxLimit > 0 {
		rule.DailyTxLimit = req.DailyTxLimit
	}
	if req.DailyAmountLimit != nil {
		rule.DailyAmountLimit = *req.DailyAmountLimit
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	rule.UpdatedAt = time.Now()

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("update routing rule: %w", err)
	}
	return rule, nil
}

// ListRules 查询产品的路由规则
func (s *RoutingService) ListRules(ctx context.Context, productID string) ([]entity.VendorRoutingRule, error) {
	rules, err := s.repo.ListRulesByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list routing rules: %w", err)
	}
	return rules, nil
}

// GetUsage 查询渠道当日用量
func (s *RoutingService) GetUsage(ctx context.Context, vendorID, productID string, asOf time.Time) (*entity.DailyVendorUsage, error) {
	return s.repo.GetUsage(ctx, vendorID, productID, asOf.Format("2006-01-02"))
}

package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoutingRepository 路由规则与按日用量仓库
type RoutingRepository struct {
	db *gorm.DB
}

// NewRoutingRepository 创建路由仓库
func NewRoutingRepository(db *gorm.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

// ListRulesByProduct 按槽位顺序返回产品启用的路由规则
func (r *RoutingRepository) ListRulesByProduct(ctx context.Context, productID string) ([]entity.VendorRoutingRule, error) {
	var rules []entity.VendorRoutingRule
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND enabled = ?", productID, true).
		Order("slot ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// FindRule 根据ID查找路由规则
func (r *RoutingRepository) FindRule(ctx context.Context, id string) (*entity.VendorRoutingRule, error) {
	var rule entity.VendorRoutingRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// CreateRule 新建路由规则，产品+槽位唯一
func (r *RoutingRepository) CreateRule(ctx context.Context, rule *entity.VendorRoutingRule) error {
	err := r.db.WithContext(ctx).Create(rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateRule 更新路由规则
func (r *RoutingRepository) UpdateRule(ctx context.Context, rule *entity.VendorRoutingRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// GetUsage 查询渠道某日用量，不存在时返回零值
func (r *RoutingRepository) GetUsage(ctx context.Context, vendorID, productID, date string) (*entity.DailyVendorUsage, error) {
	var usage entity.DailyVendorUsage
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND product_id = ? AND usage_date = ?", vendorID, productID, date).
		First(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &entity.DailyVendorUsage{
				VendorID:    vendorID,
				ProductID:   productID,
				UsageDate:   date,
				TotalAmount: decimal.Zero,
			}, nil
		}
		return nil, err
	}
	return &usage, nil
}

// TryConsumeQuota 原子消耗当日配额：条件更新同时复核笔数与金额上限，
// 两个并发调用不可能同时通过只容得下一个的检查。
// 返回 ErrQuotaExceeded 表示该渠道当日额度不足，用量未变。
func (r *RoutingRepository) TryConsumeQuota(ctx context.Context, usageID string, rule *entity.VendorRoutingRule, date string, amount decimal.Decimal) error {
	// 先保证用量行存在，冲突则忽略
	seed := entity.DailyVendorUsage{
		ID:          usageID,
		VendorID:    rule.VendorID,
		ProductID:   rule.ProductID,
		UsageDate:   date,
		TxCount:     0,
		TotalAmount: decimal.Zero,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vendor_id"}, {Name: "product_id"}, {Name: "usage_date"}},
			DoNothing: true,
		}).
		Create(&seed).Error
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&entity.DailyVendorUsage{}).
		Where("vendor_id = ? AND product_id = ? AND usage_date = ?", rule.VendorID, rule.ProductID, date).
		Where("tx_count < ?", rule.DailyTxLimit).
		Where("total_amount + ? <= ?", amount, rule.DailyAmountLimit).
		Updates(map[string]interface{}{
			"tx_count":     gorm.Expr("tx_count + 1"),
			"total_amount": gorm.Expr("total_amount + ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"gorm.io/gorm"
)

// RateRepository 费率配置仓库
type RateRepository struct {
	db *gorm.DB
}

// NewRateRepository 创建费率仓库
func NewRateRepository(db *gorm.DB) *RateRepository {
	return &RateRepository{db: db}
}

// FindRate 按维度查找启用的费率配置
func (r *RateRepository) FindRate(ctx context.Context, productID, cardType, channel, scheme string) (*entity.RateConfig, error) {
	var rate entity.RateConfig
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND card_type = ? AND channel = ? AND scheme = ? AND enabled = ?",
			productID, cardType, channel, scheme, true).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rate, nil
}

// Create 新建费率配置，维度唯一
func (r *RateRepository) Create(ctx context.Context, rate *entity.RateConfig) error {
	err := r.db.WithContext(ctx).Create(rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// List 分页查询费率配置
func (r *RateRepository) List(ctx context.Context, page, pageSize int, productID string) ([]entity.RateConfig, int64, error) {
	var rates []entity.RateConfig
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.RateConfig{})
	if productID != "" {
		query = query.Where("product_id = ?", productID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rates).Error
	if err != nil {
		return nil, 0, err
	}
	return rates, total, nil
}

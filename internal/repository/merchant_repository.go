package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"gorm.io/gorm"
)

// MerchantRepository 商户与加盟商仓库
type MerchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository 创建商户仓库
func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

// FindByID 根据ID查找商户，带加盟商信息
func (r *MerchantRepository) FindByID(ctx context.Context, id string) (*entity.Merchant, error) {
	var merchant entity.Merchant
	err := r.db.WithContext(ctx).
		Preload("Franchise").
		Where("id = ?", id).
		First(&merchant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &merchant, nil
}

// Create 在事务内创建商户，与钱包开户一起提交
func (r *MerchantRepository) Create(tx *gorm.DB, merchant *entity.Merchant) error {
	err := tx.Create(merchant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindFranchise 根据ID查找加盟商
func (r *MerchantRepository) FindFranchise(ctx context.Context, id string) (*entity.Franchise, error) {
	var franchise entity.Franchise
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&franchise).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &franchise, nil
}

// CreateFranchise 在事务内创建加盟商，与钱包开户一起提交
func (r *MerchantRepository) CreateFranchise(tx *gorm.DB, franchise *entity.Franchise) error {
	err := tx.Create(franchise).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

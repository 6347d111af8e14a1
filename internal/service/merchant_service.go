package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"gorm.io/gorm"
)

// MerchantService 商户与加盟商开户服务
type MerchantService struct {
	db     *gorm.DB
	repo   *repository.MerchantRepository
	wallet *repository.WalletRepository
	seq    *sequence.Generator
}

// NewMerchantService 创建商户服务
func NewMerchantService(db *gorm.DB, repo *repository.MerchantRepository, wallet *repository.WalletRepository, seq *sequence.Generator) *MerchantService {
	return &MerchantService{db: db, repo: repo, wallet: wallet, seq: seq}
}

// CreateMerchantRequest 商户开户请求
type CreateMerchantRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	FranchiseID *string `json:"franchise_id"`
}

// CreateMerchant 商户开户：校验归属加盟商，钱包与商户记录同一事务内创建
func (s *MerchantService) CreateMerchant(ctx context.Context, req *CreateMerchantRequest) (*entity.Merchant, error) {
	if req.FranchiseID != nil {
		if _, err := s.repo.FindFranchise(ctx, *req.FranchiseID); err != nil {
			return nil, fmt.Errorf("find franchise: %w", err)
		}
	}

	now := time.Now()
	merchantID := s.seq.NextID()
	wallet := &entity.Wallet{
		ID:        s.seq.NextID(),
		OwnerType: "merchant",
		OwnerID:   merchantID,
		Currency:  "CNY",
		CreatedAt: now,
		UpdatedAt: now,
	}
	merchant := &entity.Merchant{
		ID:          merchantID,
		Code:        req.Code,
		Name:        req.Name,
		FranchiseID: req.FranchiseID,
		WalletID:    wallet.ID,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.wallet.Create(tx, wallet); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		return s.repo.Create(tx, merchant)
	})
	if err != nil {
		return nil, err
	}
	return merchant, nil
}

// CreateFranchiseRequest 加盟商开户请求
type CreateFranchiseRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// CreateFranchise 加盟商开户，分润钱包同事务创建
func (s *MerchantService) CreateFranchise(ctx context.Context, req *CreateFranchiseRequest) (*entity.Franchise, error) {
	now := time.Now()
	franchiseID := s.seq.NextID()
	wallet := &entity.Wallet{
		ID:        s.seq.NextID(),
		OwnerType: "franchise",
		OwnerID:   franchiseID,
		Currency:  "CNY",
		CreatedAt: now,
		UpdatedAt: now,
	}
	franchise := &entity.Franchise{
		ID:        franchiseID,
		Code:      req.Code,
		Name:      req.Name,
		WalletID:  wallet.ID,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.wallet.Create(tx, wallet); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		return s.repo.CreateFranchise(tx, franchise)
	})
	if err != nil {
		return nil, err
	}
	return franchise, nil
}

// GetMerchant 查询商户，带加盟商信息
func (s *MerchantService) GetMerchant(ctx context.Context, id string) (*entity.Merchant, error) {
	return s.repo.FindByID(ctx, id)
}

package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 钱包查询与人工调账服务，结算入账只发生在结算事务内
type WalletService struct {
	db   *gorm.DB
	repo *repository.WalletRepository
	seq  *sequence.Generator
}

// NewWalletService 创建钱包服务
func NewWalletService(db *gorm.DB, repo *repository.WalletRepository, seq *sequence.Generator) *WalletService {
	return &WalletService{db: db, repo: repo, seq: seq}
}

// Get 查询钱包余额
func (s *WalletService) Get(ctx context.Context, id string) (*entity.Wallet, error) {
	return s.repo.FindByID(ctx, id)
}

// ListEntries 分页查询钱包流水
func (s *WalletService) ListEntries(ctx context.Context, walletID string, page, pageSize int) ([]entity.WalletEntry, int64, error) {
	return s.repo.ListEntries(ctx, walletID, page, pageSize)
}

// AdjustRequest 人工调账请求
type AdjustRequest struct {
	Direction string          `json:"direction" binding:"required,oneof=CREDIT DEBIT"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Remark    string          `json:"remark" binding:"required"`
	Operator  string          `json:"-"`
}

// Adjust 人工调账：入账或出账一笔，出账余额不足时整体拒绝
func (s *WalletService) Adjust(ctx context.Context, walletID string, req *AdjustRequest) (decimal.Decimal, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("adjust amount must be positive, got %s", req.Amount)
	}

	var newBalance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch req.Direction {
		case entity.EntryDirectionCredit:
			newBalance, err = s.repo.Credit(tx, s.seq.NextID(), walletID, req.Amount,
				"adjustment", req.Operator, req.Remark)
		case entity.EntryDirectionDebit:
			newBalance, err = s.repo.Debit(tx, s.seq.NextID(), walletID, req.Amount,
				"adjustment", req.Operator, req.Remark)
		default:
			err = fmt.Errorf("unknown direction %s", req.Direction)
		}
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

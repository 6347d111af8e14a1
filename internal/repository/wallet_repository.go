package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository 钱包仓库，余额变动与流水在同一事务内落账
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓库
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// FindByID 根据ID查找钱包
func (r *WalletRepository) FindByID(ctx context.Context, id string) (*entity.Wallet, error) {
	var wallet entity.Wallet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// Create 在事务内创建钱包，可与持有方记录一起提交
func (r *WalletRepository) Create(tx *gorm.DB, wallet *entity.Wallet) error {
	return tx.Create(wallet).Error
}

// Credit 在事务内给钱包入账并记流水，返回变动后余额。金额必须为正。
func (r *WalletRepository) Credit(tx *gorm.DB, entryID, walletID string, amount decimal.Decimal, refType, refID, remark string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("credit amount must be positive, got %s", amount)
	}

	wallet, err := r.lock(tx, walletID)
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := wallet.Balance.Add(amount)
	err = tx.Model(&entity.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", newBalance).Error
	if err != nil {
		return decimal.Zero, err
	}

	entry := &entity.WalletEntry{
		ID:           entryID,
		WalletID:     walletID,
		Direction:    entity.EntryDirectionCredit,
		Amount:       amount,
		BalanceAfter: newBalance,
		RefType:      refType,
		RefID:        refID,
		Remark:       remark,
		CreatedAt:    time.Now(),
	}
	if err := tx.Create(entry).Error; err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// Debit 在事务内给钱包出账并记流水，余额不足返回 ErrInsufficientFunds。金额必须为正。
func (r *WalletRepository) Debit(tx *gorm.DB, entryID, walletID string, amount decimal.Decimal, refType, refID, remark string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("debit amount must be positive, got %s", amount)
	}

	wallet, err := r.lock(tx, walletID)
	if err != nil {
		return decimal.Zero, err
	}

	if wallet.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}

	newBalance := wallet.Balance.Sub(amount)
	err = tx.Model(&entity.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", newBalance).Error
	if err != nil {
		return decimal.Zero, err
	}

	entry := &entity.WalletEntry{
		ID:           entryID,
		WalletID:     walletID,
		Direction:    entity.EntryDirectionDebit,
		Amount:       amount,
		BalanceAfter: newBalance,
		RefType:      refType,
		RefID:        refID,
		Remark:       remark,
		CreatedAt:    time.Now(),
	}
	if err := tx.Create(entry).Error; err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// ListEntries 分页查询钱包流水
func (r *WalletRepository) ListEntries(ctx context.Context, walletID string, page, pageSize int) ([]entity.WalletEntry, int64, error) {
	var entries []entity.WalletEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.WalletEntry{}).Where("wallet_id = ?", walletID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *WalletRepository) lock(tx *gorm.DB, walletID string) (*entity.Wallet, error) {
	var wallet entity.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", walletID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

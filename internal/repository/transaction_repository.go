package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepository 渠道交易仓库
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建渠道交易仓库
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 写入交易流水，vendor_tx_id 唯一
func (r *TransactionRepository) Create(ctx context.Context, txn *entity.VendorTransaction) error {
	err := r.db.WithContext(ctx).Create(txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindByID 根据ID查找交易
func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*entity.VendorTransaction, error) {
	var txn entity.VendorTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// FindByVendorTxID 根据渠道交易号查找交易
func (r *TransactionRepository) FindByVendorTxID(ctx context.Context, vendorTxID string) (*entity.VendorTransaction, error) {
	var txn entity.VendorTransaction
	err := r.db.WithContext(ctx).Where("vendor_tx_id = ?", vendorTxID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// ListUnsettledInWindow 查询窗口内未结算交易，按发生时间排序
func (r *TransactionRepository) ListUnsettledInWindow(ctx context.Context, productID string, start, end time.Time) ([]entity.VendorTransaction, error) {
	var txns []entity.VendorTransaction
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ? AND occurred_at >= ? AND occurred_at < ?",
			productID, entity.TxStatusUnsettled, start, end).
		Order("occurred_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// LockForSettlement 在事务内加行锁读取交易，结算写入前的幂等检查依赖该锁
func (r *TransactionRepository) LockForSettlement(tx *gorm.DB, id string) (*entity.VendorTransaction, error) {
	var txn entity.VendorTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// MarkSettled 在事务内将交易置为已结算
func (r *TransactionRepository) MarkSettled(tx *gorm.DB, id, batchID string, settledAt time.Time) error {
	result := tx.Model(&entity.VendorTransaction{}).
		Where("id = ? AND status = ?", id, entity.TxStatusUnsettled).
		Updates(map[string]interface{}{
			"status":     entity.TxStatusSettled,
			"batch_id":   batchID,
			"settled_at": settledAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 分页查询交易
func (r *TransactionRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.VendorTransaction, int64, error) {
	var txns []entity.VendorTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.VendorTransaction{})
	if v, ok := filters["status"]; ok {
		query = query.Where("status = ?", v)
	}
	if v, ok := filters["vendor_id"]; ok {
		query = query.Where("vendor_id = ?", v)
	}
	if v, ok := filters["merchant_id"]; ok {
		query = query.Where("merchant_id = ?", v)
	}
	if v, ok := filters["product_id"]; ok {
		query = query.Where("product_id = ?", v)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("occurred_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

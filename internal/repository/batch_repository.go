package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"gorm.io/gorm"
)

// BatchRepository 结算批次仓库
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository 创建结算批次仓库
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

var nonTerminalStatuses = []string{entity.BatchStatusCreated, entity.BatchStatusProcessing}

// CreateExclusive 创建批次，同一产品存在非终态批次时拒绝。
// 事务级咨询锁按产品串行化创建，非终态计数检查与插入之间不会插入并发批次，
// 批次启动失败不留任何状态。
func (r *BatchRepository) CreateExclusive(ctx context.Context, batch *entity.SettlementBatch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", batch.ProductID).Error; err != nil {
			return err
		}

		var count int64
		err := tx.Model(&entity.SettlementBatch{}).
			Where("product_id = ? AND status IN ?", batch.ProductID, nonTerminalStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return tx.Create(batch).Error
	})
}

// FindByID 根据ID查找批次
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*entity.SettlementBatch, error) {
	var batch entity.SettlementBatch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// StartProcessing 状态守卫迁移 CREATED → PROCESSING，已被抢占时返回 ErrDuplicate
func (r *BatchRepository) StartProcessing(ctx context.Context, id string, startedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&entity.SettlementBatch{}).
		Where("id = ? AND status = ?", id, entity.BatchStatusCreated).
		Updates(map[string]interface{}{
			"status":                entity.BatchStatusProcessing,
			"processing_started_at": startedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// Finalize 写入批次终态与汇总数据
func (r *BatchRepository) Finalize(ctx context.Context, batch *entity.SettlementBatch) error {
	return r.db.WithContext(ctx).Model(&entity.SettlementBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]interface{}{
			"status":                  batch.Status,
			"total_transactions":      batch.TotalTransactions,
			"processed_transactions":  batch.ProcessedTransactions,
			"failed_transactions":     batch.FailedTransactions,
			"total_amount":            batch.TotalAmount,
			"total_fees":              batch.TotalFees,
			"total_net_amount":        batch.TotalNetAmount,
			"processing_completed_at": batch.ProcessingCompletedAt,
			"error_message":           batch.ErrorMessage,
		}).Error
}

// List 分页查询批次
func (r *BatchRepository) List(ctx context.Context, page, pageSize int, productID, status string) ([]entity.SettlementBatch, int64, error) {
	var batches []entity.SettlementBatch
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.SettlementBatch{})
	if productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&batches).Error
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// CreateDetail 写入单笔结算结果，可运行在结算事务内
func (r *BatchRepository) CreateDetail(tx *gorm.DB, detail *entity.SettlementDetail) error {
	return tx.Create(detail).Error
}

// ListDetails 查询批次的全部结算结果
func (r *BatchRepository) ListDetails(ctx context.Context, batchID string) ([]entity.SettlementDetail, error) {
	var details []entity.SettlementDetail
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

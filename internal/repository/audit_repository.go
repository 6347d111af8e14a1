package repository

import (
	"context"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"gorm.io/gorm"
)

// AuditRepository 审计日志仓库
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建审计仓库
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateInTx 在业务事务内写审计记录，与状态变更一起提交
func (r *AuditRepository) CreateInTx(tx *gorm.DB, log *entity.AuditLog) error {
	return tx.Create(log).Error
}

// ListByEntity 查询某实体的审计轨迹
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]entity.AuditLog, error) {
	var logs []entity.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

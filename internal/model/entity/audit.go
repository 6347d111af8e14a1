package entity

import "time"

// AuditLog 审计日志，由变更方同步写入
type AuditLog struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	EntityType string    `json:"entity_type" gorm:"size:32;not null;index:idx_audit_entity"`
	EntityID   string    `json:"entity_id" gorm:"size:64;not null;index:idx_audit_entity"`
	Action     string    `json:"action" gorm:"size:32;not null"`
	OldValue   string    `json:"old_value" gorm:"size:256"`
	NewValue   string    `json:"new_value" gorm:"size:256"`
	Operator   string    `json:"operator" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

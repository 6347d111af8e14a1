package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 结算批次状态机：CREATED → PROCESSING → 终态
const (
	BatchStatusCreated             = "CREATED"
	BatchStatusProcessing          = "PROCESSING"
	BatchStatusCompleted           = "COMPLETED"
	BatchStatusCompletedWithErrors = "COMPLETED_WITH_ERRORS"
	BatchStatusFailed              = "FAILED"
	BatchStatusCancelled           = "CANCELLED"
)

// IsTerminal 判断批次状态是否为终态
func IsTerminalBatchStatus(status string) bool {
	switch status {
	case BatchStatusCompleted, BatchStatusCompletedWithErrors, BatchStatusFailed, BatchStatusCancelled:
		return true
	}
	return false
}

// SettlementBatch 结算批次，同一产品同时只允许一个非终态批次
type SettlementBatch struct {
	ID                    string          `json:"id" gorm:"primaryKey;size:32"`
	BatchNo               string          `json:"batch_no" gorm:"size:32;not null;uniqueIndex"`
	ProductID             string          `json:"product_id" gorm:"size:32;not null;index"`
	WindowStart           time.Time       `json:"window_start" gorm:"not null"`
	WindowEnd             time.Time       `json:"window_end" gorm:"not null"`
	Status                string          `json:"status" gorm:"size:32;not null;default:CREATED;index"`
	TotalTransactions     int             `json:"total_transactions" gorm:"not null;default:0"`
	ProcessedTransactions int             `json:"processed_transactions" gorm:"not null;default:0"`
	FailedTransactions    int             `json:"failed_transactions" gorm:"not null;default:0"`
	TotalAmount           decimal.Decimal `json:"total_amount" gorm:"type:decimal(18,2);not null;default:0"`
	TotalFees             decimal.Decimal `json:"total_fees" gorm:"type:decimal(18,2);not null;default:0"`
	TotalNetAmount        decimal.Decimal `json:"total_net_amount" gorm:"type:decimal(18,2);not null;default:0"`
	ProcessingStartedAt   *time.Time      `json:"processing_started_at"`
	ProcessingCompletedAt *time.Time      `json:"processing_completed_at"`
	ErrorMessage          string          `json:"error_message" gorm:"type:text"`
	CreatedBy             string          `json:"created_by" gorm:"size:32"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (SettlementBatch) TableName() string {
	return "settlement_batches"
}

// 单笔结算结果状态
const (
	SettleStatusOK             = "OK"
	SettleStatusAlreadySettled = "ALREADY_SETTLED"
	SettleStatusFailed         = "FAILED"
)

// SettlementDetail 单笔结算结果，写入后不再变更。
// 费率字段回填自分润拆解，加盟商相关比例为 nil 表示不适用。
type SettlementDetail struct {
	ID                  string           `json:"id" gorm:"primaryKey;size:32"`
	BatchID             string           `json:"batch_id" gorm:"size:32;not null;index"`
	VendorTxID          string           `json:"vendor_tx_id" gorm:"size:64;not null;index"`
	Status              string           `json:"status" gorm:"size:16;not null"`
	Message             string           `json:"message" gorm:"size:256"`
	Amount              decimal.Decimal  `json:"amount" gorm:"type:decimal(18,2);not null;default:0"`
	Fee                 decimal.Decimal  `json:"fee" gorm:"type:decimal(18,2);not null;default:0"`
	Net                 decimal.Decimal  `json:"net" gorm:"type:decimal(18,2);not null;default:0"`
	FranchiseCommission *decimal.Decimal `json:"franchise_commission" gorm:"type:decimal(18,2)"`
	MerchantRate        decimal.Decimal  `json:"merchant_rate" gorm:"type:decimal(8,4);not null;default:0"`
	FranchiseRate       *decimal.Decimal `json:"franchise_rate" gorm:"type:decimal(8,4)"`
	CommissionRate      *decimal.Decimal `json:"commission_rate" gorm:"type:decimal(8,4)"`
	CreatedAt           time.Time        `json:"created_at"`
}

func (SettlementDetail) TableName() string {
	return "settlement_details"
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 交易结算状态
const (
	TxStatusUnsettled = "UNSETTLED"
	TxStatusSettled   = "SETTLED"
	TxStatusFailed    = "FAILED"
)

// 卡类型
const (
	CardTypeCredit = "CREDIT"
	CardTypeDebit  = "DEBIT"
)

// VendorTransaction 渠道交易流水
type VendorTransaction struct {
	ID         string          `json:"id" gorm:"primaryKey;size:32"`
	VendorTxID string          `json:"vendor_tx_id" gorm:"size:64;not null;uniqueIndex"`
	VendorID   string          `json:"vendor_id" gorm:"size:32;not null;index"`
	MerchantID string          `json:"merchant_id" gorm:"size:32;not null;index"`
	ProductID  string          `json:"product_id" gorm:"size:32;not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null"`
	CardType   string          `json:"card_type" gorm:"size:16"`
	BrandType  string          `json:"brand_type" gorm:"size:32"`
	Channel    string          `json:"channel" gorm:"size:32"`
	Status     string          `json:"status" gorm:"size:16;not null;default:UNSETTLED;index"`
	BatchID    string          `json:"batch_id" gorm:"size:32;index"`
	OccurredAt time.Time       `json:"occurred_at" gorm:"not null;index"`
	SettledAt  *time.Time      `json:"settled_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (VendorTransaction) TableName() string {
	return "vendor_transactions"
}

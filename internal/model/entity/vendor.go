package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor 上游渠道商
type Vendor struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Code      string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Status    string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vendor) TableName() string {
	return "vendors"
}

// VendorRoutingRule 渠道路由规则，每个产品最多3个优先级槽位
type VendorRoutingRule struct {
	ID               string           `json:"id" gorm:"primaryKey;size:32"`
	ProductID        string           `json:"product_id" gorm:"size:32;not null;uniqueIndex:idx_product_slot"`
	Slot             int              `json:"slot" gorm:"not null;uniqueIndex:idx_product_slot"`
	VendorID         string           `json:"vendor_id" gorm:"size:32;not null;index"`
	MinAmount        *decimal.Decimal `json:"min_amount" gorm:"type:decimal(18,2)"`
	MaxAmount        *decimal.Decimal `json:"max_amount" gorm:"type:decimal(18,2)"`
	DailyTxLimit     int64            `json:"daily_tx_limit" gorm:"not null"`
	DailyAmountLimit decimal.Decimal  `json:"daily_amount_limit" gorm:"type:decimal(18,2);not null"`
	Enabled          bool             `json:"enabled" gorm:"not null;default:true"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (VendorRoutingRule) TableName() string {
	return "vendor_routing_rules"
}

// Matches 判断金额是否落在规则区间内（边界包含，空边界不限制）
func (r *VendorRoutingRule) Matches(amount decimal.Decimal) bool {
	if r.MinAmount != nil && amount.LessThan(*r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && amount.GreaterThan(*r.MaxAmount) {
		return false
	}
	return true
}

// DailyVendorUsage 渠道按日用量，key 含日期，自然日切换即归零
type DailyVendorUsage struct {
	ID          string          `json:"id" gorm:"primaryKey;size:32"`
	VendorID    string          `json:"vendor_id" gorm:"size:32;not null;uniqueIndex:idx_vendor_product_date"`
	ProductID   string          `json:"product_id" gorm:"size:32;not null;uniqueIndex:idx_vendor_product_date"`
	UsageDate   string          `json:"usage_date" gorm:"size:10;not null;uniqueIndex:idx_vendor_product_date"`
	TxCount     int64           `json:"tx_count" gorm:"not null;default:0"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(18,2);not null;default:0"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (DailyVendorUsage) TableName() string {
	return "daily_vendor_usages"
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Merchant 商户，可挂在加盟商名下
type Merchant struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	FranchiseID *string   `json:"franchise_id" gorm:"size:32;index"`
	WalletID    string    `json:"wallet_id" gorm:"size:32;not null"`
	Status      string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Franchise *Franchise `json:"franchise,omitempty" gorm:"foreignKey:FranchiseID"`
}

func (Merchant) TableName() string {
	return "merchants"
}

// Franchise 加盟商，按分润比例参与商户结算
type Franchise struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Code      string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	WalletID  string    `json:"wallet_id" gorm:"size:32;not null"`
	Status    string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Franchise) TableName() string {
	return "franchises"
}

// RateConfig 费率配置，按产品+卡类型+通道+卡组织维度
type RateConfig struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	ProductID     string          `json:"product_id" gorm:"size:32;not null;uniqueIndex:idx_rate_dim"`
	CardType      string          `json:"card_type" gorm:"size:16;not null;uniqueIndex:idx_rate_dim"`
	Channel       string          `json:"channel" gorm:"size:32;not null;uniqueIndex:idx_rate_dim"`
	Scheme        string          `json:"scheme" gorm:"size:32;not null;uniqueIndex:idx_rate_dim"`
	MerchantRate  decimal.Decimal `json:"merchant_rate" gorm:"type:decimal(8,4);not null"`
	FranchiseRate decimal.Decimal `json:"franchise_rate" gorm:"type:decimal(8,4);not null;default:0"`
	SystemFee     decimal.Decimal `json:"system_fee" gorm:"type:decimal(18,2);not null;default:0"`
	Enabled       bool            `json:"enabled" gorm:"not null;default:true"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (RateConfig) TableName() string {
	return "rate_configs"
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 钱包账务方向
const (
	EntryDirectionCredit = "CREDIT"
	EntryDirectionDebit  = "DEBIT"
)

// Wallet 资金钱包
type Wallet struct {
	ID        string          `json:"id" gorm:"primaryKey;size:32"`
	OwnerType string          `json:"owner_type" gorm:"size:16;not null"` // merchant / franchise
	OwnerID   string          `json:"owner_id" gorm:"size:32;not null;index"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:decimal(18,2);not null;default:0"`
	Currency  string          `json:"currency" gorm:"size:8;not null;default:CNY"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// WalletEntry 钱包流水，每次余额变动记一笔
type WalletEntry struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	WalletID     string          `json:"wallet_id" gorm:"size:32;not null;index"`
	Direction    string          `json:"direction" gorm:"size:8;not null"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null"`
	BalanceAfter decimal.Decimal `json:"balance_after" gorm:"type:decimal(18,2);not null"`
	RefType      string          `json:"ref_type" gorm:"size:32"` // settlement / adjustment
	RefID        string          `json:"ref_id" gorm:"size:64;index"`
	Remark       string          `json:"remark" gorm:"size:256"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (WalletEntry) TableName() string {
	return "wallet_entries"
}

package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrQuotaExceeded     = errors.New("daily quota exceeded")
)

// Repositories 仓库集合
type Repositories struct {
	Transaction *TransactionRepository
	Routing     *RoutingRepository
	Batch       *BatchRepository
	Wallet      *WalletRepository
	Rate        *RateRepository
	Merchant    *MerchantRepository
	Audit       *AuditRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Transaction: NewTransactionRepository(db),
		Routing:     NewRoutingRepository(db),
		Batch:       NewBatchRepository(db),
		Wallet:      NewWalletRepository(db),
		Rate:        NewRateRepository(db),
		Merchant:    NewMerchantRepository(db),
		Audit:       NewAuditRepository(db),
	}
}

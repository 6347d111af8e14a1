package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionService 交易接入服务
type TransactionService struct {
	repo    *repository.TransactionRepository
	audit   *repository.AuditRepository
	routing *RoutingService
	seq     *sequence.Generator
	logger  *zap.Logger
}

// NewTransactionService 创建交易接入服务
func NewTransactionService(repo *repository.TransactionRepository, audit *repository.AuditRepository, routing *RoutingService, seq *sequence.Generator, logger *zap.Logger) *TransactionService {
	return &TransactionService{repo: repo, audit: audit, routing: routing, seq: seq, logger: logger}
}

// IngestRequest 交易接入请求。vendor_id 为空时先走路由引擎选择渠道。
type IngestRequest struct {
	VendorTxID string          `json:"vendor_tx_id" binding:"required"`
	VendorID   string          `json:"vendor_id"`
	MerchantID string          `json:"merchant_id" binding:"required"`
	ProductID  string          `json:"product_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	CardType   string          `json:"card_type"`
	BrandType  string          `json:"brand_type"`
	Channel    string          `json:"channel"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Ingest 接入一笔渠道交易，初始状态 UNSETTLED。
// 路由成功后才建交易记录，调用方不得对已提交的交易重复路由。
func (s *TransactionService) Ingest(ctx context.Context, req *IngestRequest) (*entity.VendorTransaction, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("invalid amount %s", req.Amount)
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	vendorID := req.VendorID
	if vendorID == "" {
		selected, err := s.routing.SelectVendor(ctx, req.ProductID, req.Amount, occurredAt)
		if err != nil {
			return nil, err
		}
		vendorID = selected
	}

	txn := &entity.VendorTransaction{
		ID:         s.seq.NextID(),
		VendorTxID: req.VendorTxID,
		VendorID:   vendorID,
		MerchantID: req.MerchantID,
		ProductID:  req.ProductID,
		Amount:     req.Amount,
		CardType:   req.CardType,
		BrandType:  req.BrandType,
		Channel:    req.Channel,
		Status:     entity.TxStatusUnsettled,
		OccurredAt: occurredAt,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info("transaction ingested",
		zap.String("vendor_tx_id", txn.VendorTxID),
		zap.String("vendor_id", txn.VendorID),
		zap.String("amount", txn.Amount.String()),
	)
	return txn, nil
}

// Get 查询交易
func (s *TransactionService) Get(ctx context.Context, id string) (*entity.VendorTransaction, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByVendorTxID 按渠道交易号查询交易，对账排查用
func (s *TransactionService) GetByVendorTxID(ctx context.Context, vendorTxID string) (*entity.VendorTransaction, error) {
	return s.repo.FindByVendorTxID(ctx, vendorTxID)
}

// AuditTrail 查询交易的审计轨迹
func (s *TransactionService) AuditTrail(ctx context.Context, id string) ([]entity.AuditLog, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.audit.ListByEntity(ctx, "vendor_transaction", txn.VendorTxID)
}

// List 分页查询交易
func (s *TransactionService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.VendorTransaction, int64, error) {
	return s.repo.List(ctx, page, pageSize, filters)
}

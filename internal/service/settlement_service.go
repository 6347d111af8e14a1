package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBatchActive 同一产品已有非终态批次
	ErrBatchActive = errors.New("another batch is active for this product")
	// ErrBatchNotStartable 批次不在可启动状态
	ErrBatchNotStartable = errors.New("batch is not in CREATED status")
)

// 单笔结算失败原因
const (
	MsgInvalidAmount     = "INVALID_AMOUNT"
	MsgMissingRateConfig = "MISSING_RATE_CONFIG"
	MsgLedgerFailure     = "LEDGER_FAILURE"
	MsgNonPositiveNet    = "NON_POSITIVE_NET"
)

const rateCacheTTL = 5 * time.Minute

// SettlementService 结算批处理器。
// 批次状态机 CREATED → PROCESSING → COMPLETED / COMPLETED_WITH_ERRORS / FAILED / CANCELLED，
// 每笔交易独立原子结算，单笔失败不影响已提交的其他交易。
type SettlementService struct {
	db     *gorm.DB
	txRepo *repository.TransactionRepository
	batch  *repository.BatchRepository
	wallet *repository.WalletRepository
	rate   *repository.RateRepository
	mch    *repository.MerchantRepository
	audit  *repository.AuditRepository
	calc   *CommissionCalculator
	seq    *sequence.Generator
	rdb    *redis.Client
	logger *zap.Logger

	// 未显式指定窗口终点时的默认窗口长度
	defaultWindow time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewSettlementService 创建结算服务
func NewSettlementService(db *gorm.DB, repos *repository.Repositories, calc *CommissionCalculator, seq *sequence.Generator, rdb *redis.Client, defaultWindow time.Duration, logger *zap.Logger) *SettlementService {
	if defaultWindow <= 0 {
		defaultWindow = 24 * time.Hour
	}
	return &SettlementService{
		db:            db,
		txRepo:        repos.Transaction,
		batch:         repos.Batch,
		wallet:        repos.Wallet,
		rate:          repos.Rate,
		mch:           repos.Merchant,
		audit:         repos.Audit,
		calc:          calc,
		seq:           seq,
		rdb:           rdb,
		logger:        logger,
		defaultWindow: defaultWindow,
		running:       make(map[string]context.CancelFunc),
	}
}

// CreateBatchRequest 创建批次请求。window_end 缺省时按配置的默认窗口长度推算。
type CreateBatchRequest struct {
	ProductID   string    `json:"product_id" binding:"required"`
	WindowStart time.Time `json:"window_start" binding:"required"`
	WindowEnd   time.Time `json:"window_end"`
	Operator    string    `json:"-"`
}

// CreateBatch 创建结算批次。同一产品同时只允许一个非终态批次，
// 冲突时整体拒绝，不留任何状态。
func (s *SettlementService) CreateBatch(ctx context.Context, req *CreateBatchRequest) (*entity.SettlementBatch, error) {
	if req.WindowEnd.IsZero() {
		req.WindowEnd = req.WindowStart.Add(s.defaultWindow)
	}
	if !req.WindowEnd.After(req.WindowStart) {
		return nil, fmt.Errorf("window end must be after window start")
	}

	now := time.Now()
	batch := &entity.SettlementBatch{
		ID:             s.seq.NextID(),
		BatchNo:        s.seq.NextBatchNo(now),
		ProductID:      req.ProductID,
		WindowStart:    req.WindowStart,
		WindowEnd:      req.WindowEnd,
		Status:         entity.BatchStatusCreated,
		TotalAmount:    decimal.Zero,
		TotalFees:      decimal.Zero,
		TotalNetAmount: decimal.Zero,
		CreatedBy:      req.Operator,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.batch.CreateExclusive(ctx, batch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrBatchActive
		}
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.logger.Info("settlement batch created",
		zap.String("batch_id", batch.ID),
		zap.String("batch_no", batch.BatchNo),
		zap.String("product_id", batch.ProductID),
	)
	return batch, nil
}

// Run 执行批次结算。CREATED → PROCESSING 迁移带状态守卫，
// 已被其他调用方启动时拒绝。
func (s *SettlementService) Run(ctx context.Context, batchID string) (*entity.SettlementBatch, error) {
	batch, err := s.batch.FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	if entity.IsTerminalBatchStatus(batch.Status) {
		return nil, ErrBatchNotStartable
	}

	startedAt := time.Now()
	if err := s.batch.StartProcessing(ctx, batchID, startedAt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrBatchNotStartable
		}
		return nil, fmt.Errorf("start batch: %w", err)
	}
	batch.Status = entity.BatchStatusProcessing
	batch.ProcessingStartedAt = &startedAt

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.running[batchID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.running, batchID)
		s.mu.Unlock()
	}()

	txns, err := s.txRepo.ListUnsettledInWindow(ctx, batch.ProductID, batch.WindowStart, batch.WindowEnd)
	if err != nil {
		// 批次已进入 PROCESSING，必须落到终态，否则该产品被永久占用
		s.failBatch(ctx, batch, fmt.Sprintf("load unsettled transactions: %v", err))
		return nil, fmt.Errorf("load unsettled transactions: %w", err)
	}
	batch.TotalTransactions = len(txns)

	cancelled := false
	for i := range txns {
		if runCtx.Err() != nil {
			cancelled = true
			break
		}

		detail := s.settleOne(runCtx, batch, &txns[i])
		switch detail.Status {
		case entity.SettleStatusOK:
			batch.ProcessedTransactions++
			batch.TotalAmount = batch.TotalAmount.Add(detail.Amount)
			batch.TotalFees = batch.TotalFees.Add(detail.Fee)
			batch.TotalNetAmount = batch.TotalNetAmount.Add(detail.Net)
		case entity.SettleStatusFailed:
			batch.FailedTransactions++
		case entity.SettleStatusAlreadySettled:
			// 幂等空转，不计入任何计数
		}
	}

	completedAt := time.Now()
	batch.ProcessingCompletedAt = &completedAt
	batch.Status = finalStatus(batch, cancelled)
	if cancelled {
		batch.ErrorMessage = "batch cancelled before completion"
	}

	// 取消触发的收尾也要落库，脱离请求上下文的取消信号
	if err := s.batch.Finalize(context.WithoutCancel(ctx), batch); err != nil {
		return nil, fmt.Errorf("finalize batch: %w", err)
	}

	s.logger.Info("settlement batch finished",
		zap.String("batch_id", batch.ID),
		zap.String("status", batch.Status),
		zap.Int("total", batch.TotalTransactions),
		zap.Int("processed", batch.ProcessedTransactions),
		zap.Int("failed", batch.FailedTransactions),
		zap.String("total_amount", batch.TotalAmount.String()),
	)
	return batch, nil
}

// Cancel 请求停止正在运行的批次，已提交的单笔结果不回滚
func (s *SettlementService) Cancel(batchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[batchID]; ok {
		cancel()
		return true
	}
	return false
}

// failBatch 将运行中的批次落为 FAILED 终态并记录原因
func (s *SettlementService) failBatch(ctx context.Context, batch *entity.SettlementBatch, reason string) {
	completedAt := time.Now()
	batch.Status = entity.BatchStatusFailed
	batch.ErrorMessage = reason
	batch.ProcessingCompletedAt = &completedAt
	if err := s.batch.Finalize(context.WithoutCancel(ctx), batch); err != nil {
		s.logger.Error("finalize failed batch",
			zap.String("batch_id", batch.ID),
			zap.Error(err),
		)
	}
}

func finalStatus(batch *entity.SettlementBatch, cancelled bool) string {
	if cancelled {
		return entity.BatchStatusCancelled
	}
	if batch.FailedTransactions == 0 {
		return entity.BatchStatusCompleted
	}
	if batch.ProcessedTransactions == 0 {
		return entity.BatchStatusFailed
	}
	return entity.BatchStatusCompletedWithErrors
}

// settleOne 结算单笔交易。钱包入账、交易状态变更、审计与结果明细
// 在同一数据库事务内提交；失败则整组回滚，仅失败明细落库。
func (s *SettlementService) settleOne(ctx context.Context, batch *entity.SettlementBatch, txn *entity.VendorTransaction) *entity.SettlementDetail {
	detail := &entity.SettlementDetail{
		ID:         s.seq.NextID(),
		BatchID:    batch.ID,
		VendorTxID: txn.VendorTxID,
		Amount:     txn.Amount,
		Fee:        decimal.Zero,
		Net:        decimal.Zero,
		CreatedAt:  time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.txRepo.LockForSettlement(tx, txn.ID)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}

		// 幂等检查：行锁内复核状态，重复结算直接空转
		if locked.Status == entity.TxStatusSettled {
			detail.Status = entity.SettleStatusAlreadySettled
			detail.Message = "transaction already settled"
			return s.batch.CreateDetail(tx, detail)
		}

		if locked.Amount.LessThanOrEqual(decimal.Zero) {
			detail.Status = entity.SettleStatusFailed
			detail.Message = MsgInvalidAmount
			return s.batch.CreateDetail(tx, detail)
		}

		rate, err := s.resolveRate(ctx, locked.ProductID, locked.CardType, locked.Channel, locked.BrandType)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				detail.Status = entity.SettleStatusFailed
				detail.Message = MsgMissingRateConfig
				return s.batch.CreateDetail(tx, detail)
			}
			return fmt.Errorf("resolve rate: %w", err)
		}

		merchant, err := s.mch.FindByID(ctx, locked.MerchantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				detail.Status = entity.SettleStatusFailed
				detail.Message = "merchant not found"
				return s.batch.CreateDetail(tx, detail)
			}
			return fmt.Errorf("find merchant: %w", err)
		}

		net, commission := s.splitAmounts(locked.Amount, rate, merchant)

		// 费率过高或固定费用吃掉净额时拒绝结算，不允许负数入账
		if net.LessThanOrEqual(decimal.Zero) {
			detail.Status = entity.SettleStatusFailed
			detail.Message = MsgNonPositiveNet
			return s.batch.CreateDetail(tx, detail)
		}

		sysFee := rate.SystemFee
		breakdown := s.calc.Compute(locked.Amount, &net, commission, &sysFee)

		// 商户入账
		if _, err := s.wallet.Credit(tx, s.seq.NextID(), merchant.WalletID, net,
			"settlement", txn.VendorTxID, "merchant settlement"); err != nil {
			return fmt.Errorf("%s: credit merchant: %w", MsgLedgerFailure, err)
		}

		// 加盟商分润入账
		if breakdown.HasFranchise() && merchant.Franchise != nil && commission.IsPositive() {
			if _, err := s.wallet.Credit(tx, s.seq.NextID(), merchant.Franchise.WalletID, *commission,
				"settlement", txn.VendorTxID, "franchise commission"); err != nil {
				return fmt.Errorf("%s: credit franchise: %w", MsgLedgerFailure, err)
			}
		}

		settledAt := time.Now()
		if err := s.txRepo.MarkSettled(tx, locked.ID, batch.ID, settledAt); err != nil {
			return fmt.Errorf("mark settled: %w", err)
		}

		auditLog := &entity.AuditLog{
			ID:         s.seq.NextID(),
			EntityType: "vendor_transaction",
			EntityID:   locked.VendorTxID,
			Action:     "settle",
			OldValue:   entity.TxStatusUnsettled,
			NewValue:   entity.TxStatusSettled,
			Operator:   batch.CreatedBy,
			CreatedAt:  settledAt,
		}
		if err := s.audit.CreateInTx(tx, auditLog); err != nil {
			return fmt.Errorf("write audit log: %w", err)
		}

		detail.Status = entity.SettleStatusOK
		detail.Message = "settled"
		detail.Fee = locked.Amount.Sub(net)
		detail.Net = net
		detail.FranchiseCommission = commission
		detail.MerchantRate = breakdown.MerchantRate
		detail.FranchiseRate = breakdown.FranchiseRate
		detail.CommissionRate = breakdown.CommissionRate
		return s.batch.CreateDetail(tx, detail)
	})

	if err != nil {
		// 结算事务已整体回滚，单独落一笔失败明细供重跑排查。
		// 幂等空转只是明细落库失败，交易本身仍是已结算，不能计为失败。
		if detail.Status != entity.SettleStatusAlreadySettled {
			detail.Status = entity.SettleStatusFailed
			if detail.Message == "" {
				detail.Message = fmt.Sprintf("%s: %v", MsgLedgerFailure, err)
			}
			detail.Fee = decimal.Zero
			detail.Net = decimal.Zero
			detail.FranchiseCommission = nil
			detail.MerchantRate = decimal.Zero
			detail.FranchiseRate = nil
			detail.CommissionRate = nil
		}
		if dbErr := s.batch.CreateDetail(s.db.WithContext(ctx), detail); dbErr != nil {
			s.logger.Error("write failure detail",
				zap.String("vendor_tx_id", txn.VendorTxID),
				zap.Error(dbErr),
			)
		}
		s.logger.Warn("transaction settlement failed",
			zap.String("vendor_tx_id", txn.VendorTxID),
			zap.Error(err),
		)
	}

	return detail
}

// splitAmounts 按费率拆分：商户净额、加盟商分润（无加盟商时为 nil）
func (s *SettlementService) splitAmounts(amount decimal.Decimal, rate *entity.RateConfig, merchant *entity.Merchant) (decimal.Decimal, *decimal.Decimal) {
	gross := amount.Mul(rate.MerchantRate).Div(hundred).Round(2)
	net := amount.Sub(gross).Sub(rate.SystemFee)

	if merchant.FranchiseID == nil || merchant.Franchise == nil {
		return net, nil
	}

	spread := rate.MerchantRate.Sub(rate.FranchiseRate)
	if spread.LessThanOrEqual(decimal.Zero) {
		zero := decimal.Zero
		return net, &zero
	}
	commission := amount.Mul(spread).Div(hundred).Round(2)
	return net, &commission
}

type cachedRate struct {
	MerchantRate  decimal.Decimal `json:"merchant_rate"`
	FranchiseRate decimal.Decimal `json:"franchise_rate"`
	SystemFee     decimal.Decimal `json:"system_fee"`
}

// resolveRate 读费率配置，redis 读穿缓存，客户端缺省时直查数据库
func (s *SettlementService) resolveRate(ctx context.Context, productID, cardType, channel, scheme string) (*entity.RateConfig, error) {
	key := fmt.Sprintf("nimo-pay:rate:%s:%s:%s:%s", productID, cardType, channel, scheme)

	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
			var cached cachedRate
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &entity.RateConfig{
					ProductID:     productID,
					CardType:      cardType,
					Channel:       channel,
					Scheme:        scheme,
					MerchantRate:  cached.MerchantRate,
					FranchiseRate: cached.FranchiseRate,
					SystemFee:     cached.SystemFee,
				}, nil
			}
		}
	}

	rate, err := s.rate.FindRate(ctx, productID, cardType, channel, scheme)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(cachedRate{
			MerchantRate:  rate.MerchantRate,
			FranchiseRate: rate.FranchiseRate,
			SystemFee:     rate.SystemFee,
		}); err == nil {
			s.rdb.Set(ctx, key, raw, rateCacheTTL)
		}
	}
	return rate, nil
}

// GetBatch 查询批次
func (s *SettlementService) GetBatch(ctx context.Context, id string) (*entity.SettlementBatch, error) {
	return s.batch.FindByID(ctx, id)
}

// ListBatches 分页查询批次
func (s *SettlementService) ListBatches(ctx context.Context, page, pageSize int, productID, status string) ([]entity.SettlementBatch, int64, error) {
	return s.batch.List(ctx, page, pageSize, productID, status)
}

// ListDetails 查询批次结算明细
func (s *SettlementService) ListDetails(ctx context.Context, batchID string) ([]entity.SettlementDetail, error) {
	return s.batch.ListDetails(ctx, batchID)
}

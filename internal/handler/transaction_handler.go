package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/gin-gonic/gin"
)

// TransactionHandler 交易接入处理器
type TransactionHandler struct {
	svc *service.TransactionService
}

// NewTransactionHandler 创建交易处理器
func NewTransactionHandler(svc *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// Ingest 接入一笔渠道交易
func (h *TransactionHandler) Ingest(c *gin.Context) {
	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.svc.Ingest(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			Conflict(c, "vendor_tx_id already exists")
		case errors.Is(err, service.ErrNoEligibleVendor):
			Error(c, 42200, "no eligible vendor for this transaction")
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Created(c, txn)
}

// Get 查询交易
func (h *TransactionHandler) Get(c *gin.Context) {
	txn, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "transaction not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, txn)
}

// GetByVendorTxID 按渠道交易号查询交易
func (h *TransactionHandler) GetByVendorTxID(c *gin.Context) {
	txn, err := h.svc.GetByVendorTxID(c.Request.Context(), c.Param("vendor_tx_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "transaction not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, txn)
}

// AuditTrail 查询交易审计轨迹
func (h *TransactionHandler) AuditTrail(c *gin.Context) {
	logs, err := h.svc.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "transaction not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, logs)
}

// List 分页查询交易
func (h *TransactionHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)

	filters := make(map[string]interface{})
	for _, key := range []string{"status", "vendor_id", "merchant_id", "product_id"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	txns, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      txns,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/gin-gonic/gin"
)

// WalletHandler 钱包查询处理器
type WalletHandler struct {
	svc *service.WalletService
}

// NewWalletHandler 创建钱包处理器
func NewWalletHandler(svc *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// Get 查询钱包余额
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "wallet not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, wallet)
}

// Adjust 人工调账
func (h *WalletHandler) Adjust(c *gin.Context) {
	var req service.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Operator = GetUserID(c)

	newBalance, err := h.svc.Adjust(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "wallet not found")
		case errors.Is(err, repository.ErrInsufficientFunds):
			Conflict(c, "insufficient funds")
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Success(c, gin.H{"balance": newBalance})
}

// ListEntries 分页查询钱包流水
func (h *WalletHandler) ListEntries(c *gin.Context) {
	page, pageSize := parsePagination(c)

	entries, total, err := h.svc.ListEntries(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      entries,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

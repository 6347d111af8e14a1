package handler

import (
	"errors"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RoutingHandler 路由处理器
type RoutingHandler struct {
	svc *service.RoutingService
}

// NewRoutingHandler 创建路由处理器
func NewRoutingHandler(svc *service.RoutingService) *RoutingHandler {
	return &RoutingHandler{svc: svc}
}

// SelectVendorRequest 路由选择请求
type SelectVendorRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// Select 为一笔交易同步选择渠道
func (h *RoutingHandler) Select(c *gin.Context) {
	var req SelectVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	vendorID, err := h.svc.SelectVendor(c.Request.Context(), req.ProductID, req.Amount, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrNoEligibleVendor) {
			Error(c, 42200, "no eligible vendor for this transaction")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, gin.H{"vendor_id": vendorID})
}

// CreateRule 新建路由规则
func (h *RoutingHandler) CreateRule(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rule, err := h.svc.CreateRule(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			Conflict(c, "slot already configured for this product")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Created(c, rule)
}

// UpdateRule 更新路由规则
func (h *RoutingHandler) UpdateRule(c *gin.Context) {
	var req service.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rule, err := h.svc.UpdateRule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "routing rule not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, rule)
}

// ListRules 查询产品的路由规则
func (h *RoutingHandler) ListRules(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		BadRequest(c, "product_id is required")
		return
	}

	rules, err := h.svc.ListRules(c.Request.Context(), productID)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, rules)
}

// GetUsage 查询渠道当日用量
func (h *RoutingHandler) GetUsage(c *gin.Context) {
	vendorID := c.Query("vendor_id")
	productID := c.Query("product_id")
	if vendorID == "" || productID == "" {
		BadRequest(c, "vendor_id and product_id are required")
		return
	}

	usage, err := h.svc.GetUsage(c.Request.Context(), vendorID, productID, time.Now())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, usage)
}

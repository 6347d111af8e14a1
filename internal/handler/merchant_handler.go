package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/gin-gonic/gin"
)

// MerchantHandler 商户与加盟商开户处理器
type MerchantHandler struct {
	svc *service.MerchantService
}

// NewMerchantHandler 创建商户处理器
func NewMerchantHandler(svc *service.MerchantService) *MerchantHandler {
	return &MerchantHandler{svc: svc}
}

// CreateMerchant 商户开户
func (h *MerchantHandler) CreateMerchant(c *gin.Context) {
	var req service.CreateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	merchant, err := h.svc.CreateMerchant(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			BadRequest(c, "franchise not found")
		case errors.Is(err, repository.ErrDuplicate):
			Conflict(c, "merchant code already exists")
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Created(c, merchant)
}

// CreateFranchise 加盟商开户
func (h *MerchantHandler) CreateFranchise(c *gin.Context) {
	var req service.CreateFranchiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	franchise, err := h.svc.CreateFranchise(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			Conflict(c, "franchise code already exists")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Created(c, franchise)
}

// GetMerchant 查询商户
func (h *MerchantHandler) GetMerchant(c *gin.Context) {
	merchant, err := h.svc.GetMerchant(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "merchant not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, merchant)
}

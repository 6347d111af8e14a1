package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/gin-gonic/gin"
)

// RateHandler 费率配置处理器
type RateHandler struct {
	svc *service.RateService
}

// NewRateHandler 创建费率处理器
func NewRateHandler(svc *service.RateService) *RateHandler {
	return &RateHandler{svc: svc}
}

// Create 新建费率配置
func (h *RateHandler) Create(c *gin.Context) {
	var req service.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rate, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			Conflict(c, "rate config already exists for this dimension")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Created(c, rate)
}

// List 分页查询费率配置
func (h *RateHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)

	rates, total, err := h.svc.List(c.Request.Context(), page, pageSize, c.Query("product_id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      rates,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/gin-gonic/gin"
)

// SettlementHandler 结算批次处理器
type SettlementHandler struct {
	svc    *service.SettlementService
	report *service.ReportService
}

// NewSettlementHandler 创建结算处理器
func NewSettlementHandler(svc *service.SettlementService, report *service.ReportService) *SettlementHandler {
	return &SettlementHandler{svc: svc, report: report}
}

// CreateBatch 创建结算批次
func (h *SettlementHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Operator = GetUserID(c)

	batch, err := h.svc.CreateBatch(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrBatchActive) {
			Conflict(c, "another batch is active for this product")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Created(c, batch)
}

// RunBatch 执行批次结算
func (h *SettlementHandler) RunBatch(c *gin.Context) {
	batch, err := h.svc.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "batch not found")
		case errors.Is(err, service.ErrBatchNotStartable):
			Conflict(c, "batch is not in CREATED status")
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Success(c, batch)
}

// CancelBatch 请求停止正在运行的批次
func (h *SettlementHandler) CancelBatch(c *gin.Context) {
	if !h.svc.Cancel(c.Param("id")) {
		NotFound(c, "batch is not running")
		return
	}
	Success(c, gin.H{"cancelled": true})
}

// GetBatch 查询批次
func (h *SettlementHandler) GetBatch(c *gin.Context) {
	batch, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "batch not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, batch)
}

// ListBatches 分页查询批次
func (h *SettlementHandler) ListBatches(c *gin.Context) {
	page, pageSize := parsePagination(c)

	batches, total, err := h.svc.ListBatches(c.Request.Context(), page, pageSize,
		c.Query("product_id"), c.Query("status"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      batches,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// GetSummary 查询批次对外汇总
func (h *SettlementHandler) GetSummary(c *gin.Context) {
	summary, err := h.report.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "batch not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, summary)
}

// ListDetails 查询批次结算明细
func (h *SettlementHandler) ListDetails(c *gin.Context) {
	details, err := h.svc.ListDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, details)
}

// ExportReport 导出批次结算报表
func (h *SettlementHandler) ExportReport(c *gin.Context) {
	f, filename, err := h.report.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "batch not found")
			return
		}
		InternalError(c, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		InternalError(c, err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

// ArchiveReport 归档批次报表到对象存储
func (h *SettlementHandler) ArchiveReport(c *gin.Context) {
	objectName, err := h.report.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "batch not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, gin.H{"object": objectName})
}

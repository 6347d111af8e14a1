package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// BatchSummary 批次对外汇总
type BatchSummary struct {
	BatchID               string  `json:"batch_id"`
	BatchNo               string  `json:"batch_no"`
	ProductID             string  `json:"product_id"`
	Status                string  `json:"status"`
	WindowStart           string  `json:"window_start"`
	WindowEnd             string  `json:"window_end"`
	TotalTransactions     int     `json:"total_transactions"`
	ProcessedTransactions int     `json:"processed_transactions"`
	FailedTransactions    int     `json:"failed_transactions"`
	TotalAmount           string  `json:"total_amount"`
	TotalFees             string  `json:"total_fees"`
	TotalNetAmount        string  `json:"total_net_amount"`
	ProcessingStartedAt   *string `json:"processing_started_at"`
	ProcessingCompletedAt *string `json:"processing_completed_at"`
	ErrorMessage          string  `json:"error_message,omitempty"`
}

// ReportService 结算报表服务：汇总、导出、归档
type ReportService struct {
	batchRepo   *repository.BatchRepository
	minioClient *minio.Client
	bucket      string
	logger      *zap.Logger
}

// NewReportService 创建报表服务
func NewReportService(batchRepo *repository.BatchRepository, minioClient *minio.Client, bucket string, logger *zap.Logger) *ReportService {
	return &ReportService{batchRepo: batchRepo, minioClient: minioClient, bucket: bucket, logger: logger}
}

const timeLayout = "2006-01-02 15:04:05"

// Summary 生成批次汇总
func (s *ReportService) Summary(ctx context.Context, batchID string) (*BatchSummary, error) {
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return buildSummary(batch), nil
}

func buildSummary(batch *entity.SettlementBatch) *BatchSummary {
	summary := &BatchSummary{
		BatchID:               batch.ID,
		BatchNo:               batch.BatchNo,
		ProductID:             batch.ProductID,
		Status:                batch.Status,
		WindowStart:           batch.WindowStart.Format(timeLayout),
		WindowEnd:             batch.WindowEnd.Format(timeLayout),
		TotalTransactions:     batch.TotalTransactions,
		ProcessedTransactions: batch.ProcessedTransactions,
		FailedTransactions:    batch.FailedTransactions,
		TotalAmount:           batch.TotalAmount.StringFixed(2),
		TotalFees:             batch.TotalFees.StringFixed(2),
		TotalNetAmount:        batch.TotalNetAmount.StringFixed(2),
		ErrorMessage:          batch.ErrorMessage,
	}
	if batch.ProcessingStartedAt != nil {
		v := batch.ProcessingStartedAt.Format(timeLayout)
		summary.ProcessingStartedAt = &v
	}
	if batch.ProcessingCompletedAt != nil {
		v := batch.ProcessingCompletedAt.Format(timeLayout)
		summary.ProcessingCompletedAt = &v
	}
	return summary
}

var detailExportHeaders = []string{
	"渠道交易号", "状态", "消息", "交易金额", "手续费", "净额", "加盟商分润", "商户费率(%)", "加盟商费率(%)", "平台分润率(%)",
}

// Export 导出批次结算报表为 Excel
func (s *ReportService) Export(ctx context.Context, batchID string) (*excelize.File, string, error) {
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, "", fmt.Errorf("find batch: %w", err)
	}
	details, err := s.batchRepo.ListDetails(ctx, batchID)
	if err != nil {
		return nil, "", fmt.Errorf("list details: %w", err)
	}

	f := excelize.NewFile()
	sheet := "结算明细"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// 批次汇总区
	f.SetCellValue(sheet, "A1", "批次号")
	f.SetCellValue(sheet, "B1", batch.BatchNo)
	f.SetCellValue(sheet, "A2", "状态")
	f.SetCellValue(sheet, "B2", batch.Status)
	f.SetCellValue(sheet, "A3", "结算窗口")
	f.SetCellValue(sheet, "B3", fmt.Sprintf("%s ~ %s",
		batch.WindowStart.Format(timeLayout), batch.WindowEnd.Format(timeLayout)))
	f.SetCellValue(sheet, "A4", "总金额/手续费/净额")
	f.SetCellValue(sheet, "B4", fmt.Sprintf("%s / %s / %s",
		batch.TotalAmount.StringFixed(2), batch.TotalFees.StringFixed(2), batch.TotalNetAmount.StringFixed(2)))

	// 明细表头
	headerRow := 6
	for i, h := range detailExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, headerRow)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i, d := range details {
		row := headerRow + 1 + i
		commission := ""
		if d.FranchiseCommission != nil {
			commission = d.FranchiseCommission.StringFixed(2)
		}
		franchiseRate := ""
		if d.FranchiseRate != nil {
			franchiseRate = d.FranchiseRate.StringFixed(4)
		}
		commissionRate := ""
		if d.CommissionRate != nil {
			commissionRate = d.CommissionRate.StringFixed(4)
		}
		values := []interface{}{
			d.VendorTxID, d.Status, d.Message,
			d.Amount.StringFixed(2), d.Fee.StringFixed(2), d.Net.StringFixed(2), commission,
			d.MerchantRate.StringFixed(4), franchiseRate, commissionRate,
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
		}
	}

	filename := fmt.Sprintf("settlement_%s.xlsx", batch.BatchNo)
	return f, filename, nil
}

// Archive 导出报表并上传对象存储，返回对象键
func (s *ReportService) Archive(ctx context.Context, batchID string) (string, error) {
	if s.minioClient == nil {
		return "", fmt.Errorf("object storage is not configured")
	}

	f, filename, err := s.Export(ctx, batchID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}

	objectName := fmt.Sprintf("settlement-reports/%s", filename)
	_, err = s.minioClient.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"})
	if err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}

	s.logger.Info("settlement report archived",
		zap.String("batch_id", batchID),
		zap.String("object", objectName),
	)
	return objectName, nil
}

package service

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
)

// CommissionBreakdown 分润拆解结果。
// FranchiseRate / CommissionRate 为 nil 表示商户无加盟商、比例不适用，
// 与计算出的零值严格区分。
type CommissionBreakdown struct {
	MerchantRate     decimal.Decimal  `json:"merchant_rate"`
	FranchiseRate    *decimal.Decimal `json:"franchise_rate"`
	CommissionRate   *decimal.Decimal `json:"commission_rate"`
	SettleAmount     decimal.Decimal  `json:"settle_amount"`
	SystemFee        decimal.Decimal  `json:"system_fee"`
	CommissionAmount decimal.Decimal  `json:"commission_amount"`
}

// HasFranchise 是否含加盟商分润
func (b *CommissionBreakdown) HasFranchise() bool {
	return b.FranchiseRate != nil
}

// CommissionCalculator 分润计算器，纯函数无副作用
type CommissionCalculator struct{}

// NewCommissionCalculator 创建分润计算器
func NewCommissionCalculator() *CommissionCalculator {
	return &CommissionCalculator{}
}

// Compute 按交易金额与各方净额计算费率拆解。
// 比例统一保留4位小数，四舍五入。
// txnAmount <= 0 视为空交易：金额全零，加盟商字段不适用。
func (c *CommissionCalculator) Compute(txnAmount decimal.Decimal, merchantNet, franchiseCommission, systemFee *decimal.Decimal) CommissionBreakdown {
	breakdown := CommissionBreakdown{
		MerchantRate:     decimal.Zero,
		SettleAmount:     decimal.Zero,
		SystemFee:        decimal.Zero,
		CommissionAmount: decimal.Zero,
	}

	if txnAmount.LessThanOrEqual(decimal.Zero) {
		return breakdown
	}

	if merchantNet != nil {
		breakdown.SettleAmount = *merchantNet
	}
	if franchiseCommission != nil {
		breakdown.CommissionAmount = *franchiseCommission
	}
	if systemFee != nil {
		breakdown.SystemFee = *systemFee
	}

	// merchantRate = (txnAmount - settleAmount) / txnAmount * 100
	merchantRate := txnAmount.Sub(breakdown.SettleAmount).
		Div(txnAmount).
		Mul(hundred).
		Round(4)
	breakdown.MerchantRate = merchantRate

	if merchantNet != nil && franchiseCommission != nil {
		// franchiseRate = (txnAmount - (settleAmount + commissionAmount)) / txnAmount * 100
		franchiseRate := txnAmount.Sub(breakdown.SettleAmount.Add(breakdown.CommissionAmount)).
			Div(txnAmount).
			Mul(hundred).
			Round(4)
		commissionRate := merchantRate.Sub(franchiseRate)
		breakdown.FranchiseRate = &franchiseRate
		breakdown.CommissionRate = &commissionRate
	}

	return breakdown
}

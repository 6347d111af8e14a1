package service

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCommissionCalculator_Compute(t *testing.T) {
	calc := NewCommissionCalculator()

	t.Run("带加盟商的标准拆解", func(t *testing.T) {
		// 交易1000，商户到账970，加盟商分润20，系统费0
		b := calc.Compute(dec("1000"), decPtr("970"), decPtr("20"), decPtr("0"))

		if !b.MerchantRate.Equal(dec("3.0000")) {
			t.Errorf("MerchantRate = %s, want 3.0000", b.MerchantRate)
		}
		if b.FranchiseRate == nil || !b.FranchiseRate.Equal(dec("1.0000")) {
			t.Errorf("FranchiseRate = %v, want 1.0000", b.FranchiseRate)
		}
		if b.CommissionRate == nil || !b.CommissionRate.Equal(dec("2.0000")) {
			t.Errorf("CommissionRate = %v, want 2.0000", b.CommissionRate)
		}
		if !b.SettleAmount.Equal(dec("970")) {
			t.Errorf("SettleAmount = %s, want 970", b.SettleAmount)
		}
		if !b.CommissionAmount.Equal(dec("20")) {
			t.Errorf("CommissionAmount = %s, want 20", b.CommissionAmount)
		}
		if !b.HasFranchise() {
			t.Error("HasFranchise() = false, want true")
		}
	})

	t.Run("无加盟商时比例字段不适用", func(t *testing.T) {
		b := calc.Compute(dec("1000"), decPtr("970"), nil, decPtr("2"))

		if !b.MerchantRate.Equal(dec("3.0000")) {
			t.Errorf("MerchantRate = %s, want 3.0000", b.MerchantRate)
		}
		if b.FranchiseRate != nil {
			t.Errorf("FranchiseRate = %s, want nil", b.FranchiseRate)
		}
		if b.CommissionRate != nil {
			t.Errorf("CommissionRate = %s, want nil", b.CommissionRate)
		}
		if !b.SystemFee.Equal(dec("2")) {
			t.Errorf("SystemFee = %s, want 2", b.SystemFee)
		}
		if b.HasFranchise() {
			t.Error("HasFranchise() = true, want false")
		}
	})

	t.Run("分润为零与不适用严格区分", func(t *testing.T) {
		// 加盟商存在但分润为0：比例字段仍然有值
		b := calc.Compute(dec("1000"), decPtr("970"), decPtr("0"), nil)

		if b.FranchiseRate == nil {
			t.Fatal("FranchiseRate is nil, want 3.0000")
		}
		if !b.FranchiseRate.Equal(dec("3.0000")) {
			t.Errorf("FranchiseRate = %s, want 3.0000", b.FranchiseRate)
		}
		if b.CommissionRate == nil || !b.CommissionRate.Equal(dec("0")) {
			t.Errorf("CommissionRate = %v, want 0", b.CommissionRate)
		}
	})

	t.Run("比例保留4位小数四舍五入", func(t *testing.T) {
		// (1000 - 966.67) / 1000 * 100 = 3.333 → 3.3330
		b := calc.Compute(dec("1000"), decPtr("966.67"), nil, nil)
		if !b.MerchantRate.Equal(dec("3.333")) {
			t.Errorf("MerchantRate = %s, want 3.333", b.MerchantRate)
		}

		// (300 - 290) / 300 * 100 = 3.33333... → 3.3333
		b = calc.Compute(dec("300"), decPtr("290"), nil, nil)
		if !b.MerchantRate.Equal(dec("3.3333")) {
			t.Errorf("MerchantRate = %s, want 3.3333", b.MerchantRate)
		}

		// (300 - 289.99) / 300 * 100 = 3.33666... → 3.3367
		b = calc.Compute(dec("300"), decPtr("289.99"), nil, nil)
		if !b.MerchantRate.Equal(dec("3.3367")) {
			t.Errorf("MerchantRate = %s, want 3.3367", b.MerchantRate)
		}
	})

	t.Run("商户费率等于加盟商费率加分润率", func(t *testing.T) {
		cases := []struct {
			amount     string
			net        string
			commission string
		}{
			{"1000", "970", "20"},
			{"500", "485.50", "7.25"},
			{"333.33", "320.00", "6.67"},
			{"10000", "9700", "150"},
		}
		for _, tc := range cases {
			b := calc.Compute(dec(tc.amount), decPtr(tc.net), decPtr(tc.commission), nil)
			if b.FranchiseRate == nil || b.CommissionRate == nil {
				t.Fatalf("amount=%s: franchise fields are nil", tc.amount)
			}
			sum := b.FranchiseRate.Add(*b.CommissionRate)
			if !sum.Equal(b.MerchantRate) {
				t.Errorf("amount=%s: franchiseRate(%s) + commissionRate(%s) = %s, want merchantRate %s",
					tc.amount, b.FranchiseRate, b.CommissionRate, sum, b.MerchantRate)
			}
		}
	})

	t.Run("零金额交易返回全零且加盟商字段不适用", func(t *testing.T) {
		b := calc.Compute(decimal.Zero, decPtr("100"), decPtr("10"), decPtr("1"))

		if !b.MerchantRate.IsZero() {
			t.Errorf("MerchantRate = %s, want 0", b.MerchantRate)
		}
		if !b.SettleAmount.IsZero() || !b.CommissionAmount.IsZero() || !b.SystemFee.IsZero() {
			t.Errorf("amounts = %s/%s/%s, want all zero", b.SettleAmount, b.CommissionAmount, b.SystemFee)
		}
		if b.FranchiseRate != nil || b.CommissionRate != nil {
			t.Error("franchise fields should be nil for empty transaction")
		}
	})

	t.Run("负金额交易按空交易处理", func(t *testing.T) {
		b := calc.Compute(dec("-50"), decPtr("100"), nil, nil)
		if !b.MerchantRate.IsZero() || !b.SettleAmount.IsZero() {
			t.Errorf("got MerchantRate=%s SettleAmount=%s, want zeros", b.MerchantRate, b.SettleAmount)
		}
	})

	t.Run("净额缺省视为零", func(t *testing.T) {
		// 商户到账未知时费率按全额计
		b := calc.Compute(dec("100"), nil, nil, nil)
		if !b.MerchantRate.Equal(dec("100")) {
			t.Errorf("MerchantRate = %s, want 100", b.MerchantRate)
		}
		if !b.SettleAmount.IsZero() {
			t.Errorf("SettleAmount = %s, want 0", b.SettleAmount)
		}
	})
}

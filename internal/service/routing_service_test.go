package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/testutil"
	"go.uber.org/zap"
)

func TestRoutingService_SelectVendor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	seq := testutil.NewSequence(t)
	svc := NewRoutingService(repos.Routing, seq, zap.NewNop())
	ctx := context.Background()
	asOf := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("按槽位顺序跳过金额不匹配的渠道", func(t *testing.T) {
		productID := "PROD_SLOT"
		testutil.SeedRoutingRule(t, db, "rule-s1", productID, 1, "vendor-small",
			decPtr("0"), decPtr("500"), 100, dec("100000"))
		testutil.SeedRoutingRule(t, db, "rule-s2", productID, 2, "vendor-large",
			decPtr("501"), decPtr("5000"), 100, dec("100000"))

		vendorID, err := svc.SelectVendor(ctx, productID, dec("1000"), asOf)
		if err != nil {
			t.Fatalf("SelectVendor() error = %v", err)
		}
		if vendorID != "vendor-large" {
			t.Errorf("vendorID = %s, want vendor-large", vendorID)
		}

		// 胜出槽位的用量累加，被跳过的槽位不变
		usage, err := svc.GetUsage(ctx, "vendor-large", productID, asOf)
		if err != nil {
			t.Fatalf("GetUsage() error = %v", err)
		}
		if usage.TxCount != 1 || !usage.TotalAmount.Equal(dec("1000")) {
			t.Errorf("winner usage = %d/%s, want 1/1000", usage.TxCount, usage.TotalAmount)
		}
		skipped, _ := svc.GetUsage(ctx, "vendor-small", productID, asOf)
		if skipped.TxCount != 0 {
			t.Errorf("skipped slot usage = %d, want 0", skipped.TxCount)
		}
	})

	t.Run("金额边界包含", func(t *testing.T) {
		productID := "PROD_BOUND"
		testutil.SeedRoutingRule(t, db, "rule-b1", productID, 1, "vendor-bound",
			decPtr("100"), decPtr("500"), 100, dec("100000"))

		vendorID, err := svc.SelectVendor(ctx, productID, dec("500"), asOf)
		if err != nil {
			t.Fatalf("SelectVendor() at upper bound error = %v", err)
		}
		if vendorID != "vendor-bound" {
			t.Errorf("vendorID = %s, want vendor-bound", vendorID)
		}

		vendorID, err = svc.SelectVendor(ctx, productID, dec("100"), asOf)
		if err != nil {
			t.Fatalf("SelectVendor() at lower bound error = %v", err)
		}
		if vendorID != "vendor-bound" {
			t.Errorf("vendorID = %s, want vendor-bound", vendorID)
		}

		if _, err = svc.SelectVendor(ctx, productID, dec("500.01"), asOf); !errors.Is(err, ErrNoEligibleVendor) {
			t.Errorf("SelectVendor() above bound error = %v, want ErrNoEligibleVendor", err)
		}
	})

	t.Run("笔数配额耗尽后切换下一槽位", func(t *testing.T) {
		productID := "PROD_TXQ"
		testutil.SeedRoutingRule(t, db, "rule-q1", productID, 1, "vendor-q1",
			nil, nil, 1, dec("100000"))
		testutil.SeedRoutingRule(t, db, "rule-q2", productID, 2, "vendor-q2",
			nil, nil, 100, dec("100000"))

		first, err := svc.SelectVendor(ctx, productID, dec("10"), asOf)
		if err != nil {
			t.Fatalf("first SelectVendor() error = %v", err)
		}
		if first != "vendor-q1" {
			t.Errorf("first vendorID = %s, want vendor-q1", first)
		}

		second, err := svc.SelectVendor(ctx, productID, dec("10"), asOf)
		if err != nil {
			t.Fatalf("second SelectVendor() error = %v", err)
		}
		if second != "vendor-q2" {
			t.Errorf("second vendorID = %s, want vendor-q2", second)
		}
	})

	t.Run("金额配额将超限时不选择该槽位", func(t *testing.T) {
		productID := "PROD_AMQ"
		testutil.SeedRoutingRule(t, db, "rule-a1", productID, 1, "vendor-a1",
			nil, nil, 100, dec("1000"))

		if _, err := svc.SelectVendor(ctx, productID, dec("800"), asOf); err != nil {
			t.Fatalf("first SelectVendor() error = %v", err)
		}

		// 800 + 300 > 1000，唯一槽位超限
		_, err := svc.SelectVendor(ctx, productID, dec("300"), asOf)
		if !errors.Is(err, ErrNoEligibleVendor) {
			t.Errorf("SelectVendor() error = %v, want ErrNoEligibleVendor", err)
		}

		// 恰好用满额度可以通过
		if _, err := svc.SelectVendor(ctx, productID, dec("200"), asOf); err != nil {
			t.Fatalf("exact-fit SelectVendor() error = %v", err)
		}
	})

	t.Run("全部失败时不产生用量变更", func(t *testing.T) {
		productID := "PROD_NOFIT"
		testutil.SeedRoutingRule(t, db, "rule-n1", productID, 1, "vendor-n1",
			decPtr("0"), decPtr("100"), 100, dec("100000"))

		_, err := svc.SelectVendor(ctx, productID, dec("999"), asOf)
		if !errors.Is(err, ErrNoEligibleVendor) {
			t.Fatalf("SelectVendor() error = %v, want ErrNoEligibleVendor", err)
		}

		usage, _ := svc.GetUsage(ctx, "vendor-n1", productID, asOf)
		if usage.TxCount != 0 || !usage.TotalAmount.IsZero() {
			t.Errorf("usage after failure = %d/%s, want 0/0", usage.TxCount, usage.TotalAmount)
		}
	})

	t.Run("无规则的产品直接拒绝", func(t *testing.T) {
		_, err := svc.SelectVendor(ctx, "PROD_UNKNOWN", dec("100"), asOf)
		if !errors.Is(err, ErrNoEligibleVendor) {
			t.Errorf("SelectVendor() error = %v, want ErrNoEligibleVendor", err)
		}
	})

	t.Run("非正金额拒绝", func(t *testing.T) {
		if _, err := svc.SelectVendor(ctx, "PROD_SLOT", dec("0"), asOf); err == nil {
			t.Error("SelectVendor() with zero amount should fail")
		}
		if _, err := svc.SelectVendor(ctx, "PROD_SLOT", dec("-10"), asOf); err == nil {
			t.Error("SelectVendor() with negative amount should fail")
		}
	})

	t.Run("自然日切换后配额归零", func(t *testing.T) {
		productID := "PROD_DAY"
		testutil.SeedRoutingRule(t, db, "rule-d1", productID, 1, "vendor-d1",
			nil, nil, 1, dec("100000"))

		if _, err := svc.SelectVendor(ctx, productID, dec("10"), asOf); err != nil {
			t.Fatalf("day1 SelectVendor() error = %v", err)
		}
		if _, err := svc.SelectVendor(ctx, productID, dec("10"), asOf); !errors.Is(err, ErrNoEligibleVendor) {
			t.Fatalf("day1 second SelectVendor() error = %v, want ErrNoEligibleVendor", err)
		}

		nextDay := asOf.Add(24 * time.Hour)
		if _, err := svc.SelectVendor(ctx, productID, dec("10"), nextDay); err != nil {
			t.Errorf("next-day SelectVendor() error = %v", err)
		}
	})
}

func TestRoutingService_SelectVendor_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	seq := testutil.NewSequence(t)
	svc := NewRoutingService(repos.Routing, seq, zap.NewNop())
	ctx := context.Background()
	asOf := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	productID := "PROD_CONC"
	const quota = 3
	testutil.SeedRoutingRule(t, db, "rule-c1", productID, 1, "vendor-c1",
		nil, nil, quota, dec("100000"))

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SelectVendor(ctx, productID, dec("10"), asOf)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNoEligibleVendor):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if ok != quota {
		t.Errorf("successful selections = %d, want %d", ok, quota)
	}
	if rejected != workers-quota {
		t.Errorf("rejected selections = %d, want %d", rejected, workers-quota)
	}

	usage, err := svc.GetUsage(ctx, "vendor-c1", productID, asOf)
	if err != nil {
		t.Fatalf("GetUsage() error = %v", err)
	}
	if usage.TxCount != quota {
		t.Errorf("usage TxCount = %d, want %d", usage.TxCount, quota)
	}
}

package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/repository"
	"github.com/bitfantasy/nimo-pay/internal/service"
	"github.com/bitfantasy/nimo-pay/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func setupTransactionRouter(t *testing.T) (*gin.Engine, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	seq := testutil.NewSequence(t)
	logger := zap.NewNop()

	routingSvc := service.NewRoutingService(repos.Routing, seq, logger)
	txSvc := service.NewTransactionService(repos.Transaction, repos.Audit, routingSvc, seq, logger)
	h := NewTransactionHandler(txSvc)

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1")
	api.POST("/transactions", h.Ingest)
	api.GET("/transactions", h.List)
	api.GET("/transactions/:id", h.Get)
	api.GET("/transactions/:id/audit", h.AuditTrail)
	api.GET("/transactions/vendor/:vendor_tx_id", h.GetByVendorTxID)
	return r, repos
}

func TestTransactionHandler_Ingest(t *testing.T) {
	r, _ := setupTransactionRouter(t)
	token := testutil.DefaultTestToken()

	body := map[string]interface{}{
		"vendor_tx_id": "VTX-H-001",
		"vendor_id":    "vendor-1",
		"merchant_id":  "mch-1",
		"product_id":   "PROD_H",
		"amount":       "150.50",
		"card_type":    "CREDIT",
		"brand_type":   "VISA",
		"channel":      "ONLINE",
		"occurred_at":  time.Now().UTC().Format(time.RFC3339),
	}

	t.Run("接入成功", func(t *testing.T) {
		w := testutil.DoRequest(r, http.MethodPost, "/api/v1/transactions", body, token)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		resp := testutil.ParseResponse(w)
		data := resp["data"].(map[string]interface{})
		if data["vendor_tx_id"] != "VTX-H-001" {
			t.Errorf("vendor_tx_id = %v, want VTX-H-001", data["vendor_tx_id"])
		}
		if data["status"] != "UNSETTLED" {
			t.Errorf("status = %v, want UNSETTLED", data["status"])
		}
	})

	t.Run("重复渠道交易号冲突", func(t *testing.T) {
		w := testutil.DoRequest(r, http.MethodPost, "/api/v1/transactions", body, token)
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409, body = %s", w.Code, w.Body.String())
		}
		resp := testutil.ParseResponse(w)
		if code, _ := resp["code"].(float64); int(code) != 40900 {
			t.Errorf("code = %v, want 40900", resp["code"])
		}
	})

	t.Run("未指定渠道且无可用路由", func(t *testing.T) {
		noVendor := map[string]interface{}{
			"vendor_tx_id": "VTX-H-002",
			"merchant_id":  "mch-1",
			"product_id":   "PROD_NOROUTE",
			"amount":       "100",
		}
		w := testutil.DoRequest(r, http.MethodPost, "/api/v1/transactions", noVendor, token)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422, body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("缺少必填字段", func(t *testing.T) {
		w := testutil.DoRequest(r, http.MethodPost, "/api/v1/transactions",
			map[string]interface{}{"amount": "10"}, token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("未认证请求拒绝", func(t *testing.T) {
		w := testutil.DoRequest(r, http.MethodPost, "/api/v1/transactions", body, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestTransactionHandler_Get(t *testing.T) {
	r, _ := setupTransactionRouter(t)
	token := testutil.DefaultTestToken()

	t.Run("不存在的交易返回404", func(t *testing.T) {
		w := testutil.DoRequest(r, http.MethodGet, "/api/v1/transactions/no-such-id", nil, token)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("接入后可查询", func(t *testing.T) {
		body := map[string]interface{}{
			"vendor_tx_id": "VTX-H-100",
			"vendor_id":    "vendor-1",
			"merchant_id":  "mch-1",
			"product_id":   "PROD_H",
			"amount":       "88.00",
		}
		created := testutil.DoRequest(r, http.MethodPost, "/api/v1/transactions", body, token)
		if created.Code != http.StatusCreated {
			t.Fatalf("ingest status = %d", created.Code)
		}
		data := testutil.ParseResponse(created)["data"].(map[string]interface{})
		id := data["id"].(string)

		w := testutil.DoRequest(r, http.MethodGet, "/api/v1/transactions/"+id, nil, token)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		got := testutil.ParseResponse(w)["data"].(map[string]interface{})
		amount, _ := decimal.NewFromString(got["amount"].(string))
		if !amount.Equal(decimal.NewFromFloat(88.00)) {
			t.Errorf("amount = %v, want 88.00", got["amount"])
		}

		t.Run("按渠道交易号查询", func(t *testing.T) {
			w := testutil.DoRequest(r, http.MethodGet, "/api/v1/transactions/vendor/VTX-H-100", nil, token)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			data := testutil.ParseResponse(w)["data"].(map[string]interface{})
			if data["id"] != id {
				t.Errorf("id = %v, want %s", data["id"], id)
			}
		})

		t.Run("审计轨迹可查且未结算时为空", func(t *testing.T) {
			w := testutil.DoRequest(r, http.MethodGet, "/api/v1/transactions/"+id+"/audit", nil, token)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if data, ok := testutil.ParseResponse(w)["data"].([]interface{}); ok && len(data) != 0 {
				t.Errorf("audit trail length = %d, want 0", len(data))
			}
		})
	})

	t.Run("不存在的渠道交易号返回404", func(t *testing.T) {
		w := testutil.DoRequest(r, http.MethodGet, "/api/v1/transactions/vendor/VTX-NONE", nil, token)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

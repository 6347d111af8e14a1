package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-pay/internal/middleware"
	"github.com/bitfantasy/nimo-pay/internal/model/entity"
	"github.com/bitfantasy/nimo-pay/internal/pkg/sequence"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_pay"
	JWTSecret  = "nimo-pay-jwt-secret-key-2024"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "nimo")
	password := getEnv("DB_PASSWORD", "nimo123")
	dbname := getEnv("DB_NAME", "nimo_pay")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
		&entity.Vendor{},
		&entity.VendorRoutingRule{},
		&entity.DailyVendorUsage{},
		&entity.VendorTransaction{},
		&entity.SettlementBatch{},
		&entity.SettlementDetail{},
		&entity.Wallet{},
		&entity.WalletEntry{},
		&entity.Merchant{},
		&entity.Franchise{},
		&entity.RateConfig{},
		&entity.AuditLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// NewSequence creates a deterministic ID generator for tests
func NewSequence(t *testing.T) *sequence.Generator {
	t.Helper()
	seq, err := sequence.New(1)
	if err != nil {
		t.Fatalf("Failed to create sequence generator: %v", err)
	}
	return seq
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"roles": roles,
		"perms": permissions,
		"iss":   "nimo-pay",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken(
		"test-user-001",
		"Test Admin",
		[]string{"pay_admin"},
		[]string{"*"},
	)
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedWallet creates a wallet with the given balance
func SeedWallet(t *testing.T, db *gorm.DB, id, ownerType, ownerID string, balance decimal.Decimal) *entity.Wallet {
	t.Helper()
	wallet := &entity.Wallet{
		ID:        id,
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Balance:   balance,
		Currency:  "CNY",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("Failed to seed wallet: %v", err)
	}
	return wallet
}

// SeedMerchant creates a merchant with its wallet; franchiseID may be empty
func SeedMerchant(t *testing.T, db *gorm.DB, id, name, walletID string, franchiseID *string) *entity.Merchant {
	t.Helper()
	merchant := &entity.Merchant{
		ID:          id,
		Code:        "M_" + id,
		Name:        name,
		FranchiseID: franchiseID,
		WalletID:    walletID,
		Status:      "active",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("Failed to seed merchant: %v", err)
	}
	return merchant
}

// SeedFranchise creates a franchise with its wallet
func SeedFranchise(t *testing.T, db *gorm.DB, id, name, walletID string) *entity.Franchise {
	t.Helper()
	franchise := &entity.Franchise{
		ID:        id,
		Code:      "F_" + id,
		Name:      name,
		WalletID:  walletID,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(franchise).Error; err != nil {
		t.Fatalf("Failed to seed franchise: %v", err)
	}
	return franchise
}

// SeedRate creates a rate config
func SeedRate(t *testing.T, db *gorm.DB, id, productID, cardType, channel, scheme string, merchantRate, franchiseRate, systemFee decimal.Decimal) *entity.RateConfig {
	t.Helper()
	rate := &entity.RateConfig{
		ID:            id,
		ProductID:     productID,
		CardType:      cardType,
		Channel:       channel,
		Scheme:        scheme,
		MerchantRate:  merchantRate,
		FranchiseRate: franchiseRate,
		SystemFee:     systemFee,
		Enabled:       true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(rate).Error; err != nil {
		t.Fatalf("Failed to seed rate config: %v", err)
	}
	return rate
}

// SeedRoutingRule creates a routing rule slot for a product
func SeedRoutingRule(t *testing.T, db *gorm.DB, id, productID string, slot int, vendorID string, minAmount, maxAmount *decimal.Decimal, dailyTxLimit int64, dailyAmountLimit decimal.Decimal) *entity.VendorRoutingRule {
	t.Helper()
	rule := &entity.VendorRoutingRule{
		ID:               id,
		ProductID:        productID,
		Slot:             slot,
		VendorID:         vendorID,
		MinAmount:        minAmount,
		MaxAmount:        maxAmount,
		DailyTxLimit:     dailyTxLimit,
		DailyAmountLimit: dailyAmountLimit,
		Enabled:          true,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("Failed to seed routing rule: %v", err)
	}
	return rule
}

// SeedTransaction creates an UNSETTLED vendor transaction
func SeedTransaction(t *testing.T, db *gorm.DB, id, vendorTxID, vendorID, merchantID, productID string, amount decimal.Decimal, occurredAt time.Time) *entity.VendorTransaction {
	t.Helper()
	txn := &entity.VendorTransaction{
		ID:         id,
		VendorTxID: vendorTxID,
		VendorID:   vendorID,
		MerchantID: merchantID,
		ProductID:  productID,
		Amount:     amount,
		CardType:   entity.CardTypeCredit,
		BrandType:  "VISA",
		Channel:    "ONLINE",
		Status:     entity.TxStatusUnsettled,
		OccurredAt: occurredAt,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("Failed to seed transaction: %v", err)
	}
	return txn
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

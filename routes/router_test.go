package routes

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/btcsuite/btcutil/base58"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/daka/config"
	"github.com/cppla/daka/ledger"
	"github.com/cppla/daka/models"
	"github.com/cppla/daka/utils"
)

const testSecret = "router-secret"

type stubLedger struct {
	balance uint64
	calls   atomic.Int64
}

func (s *stubLedger) GetBalance(context.Context, string) (uint64, error) {
	s.calls.Add(1)
	return s.balance, nil
}

func (s *stubLedger) GetSignatures(context.Context, string, int) ([]ledger.Signature, error) {
	s.calls.Add(1)
	return nil, nil
}

func setupRouter(t *testing.T, balance uint64) (http.Handler, *gorm.DB) {
	t.Helper()
	return setupRouterWith(t, &stubLedger{balance: balance})
}

func setupRouterWith(t *testing.T, reader ledger.Reader) (http.Handler, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.CheckIn{}, &models.WalletStreak{}, &models.PolicyEntry{}))

	cfg := config.AppConfig{
		GinMode:            "test",
		JWTSecret:          testSecret,
		RateLimitPerMinute: 600,
		AllowedOrigins:     []string{"*"},
		SignatureWindow:    100,
	}
	return SetupRouter(cfg, Deps{DB: db, Ledger: reader}), db
}

func wallet(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func adminHeader(t *testing.T) map[string]string {
	t.Helper()
	tok, err := utils.GenerateToken(testSecret, "ops", utils.RoleAdmin, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestSubmitFlow(t *testing.T) {
	h, _ := setupRouter(t, 10_000_000)
	w := wallet(t)
	body := `{"wallet":"` + w + `"}`

	rec := do(h, http.MethodPost, "/api/v1/daka", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Recorded"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(h, http.MethodPost, "/api/v1/daka", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Already daka today"}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/v1/daka", `{"wallet":"nope"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid wallet address"}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/v1/daka", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1,"target":"10","testing_mode":false}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/v1/daka/"+w, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Data struct {
			ConsecutiveDays int  `json:"consecutive_days"`
			TotalCheckins   int  `json:"total_checkins"`
			CheckedInToday  bool `json:"checked_in_today"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Data.ConsecutiveDays)
	assert.Equal(t, 1, status.Data.TotalCheckins)
	assert.True(t, status.Data.CheckedInToday)

	rec = do(h, http.MethodGet, "/api/v1/daka/nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitPolicyRejection(t *testing.T) {
	h, _ := setupRouter(t, 9_999_900)

	rec := do(h, http.MethodPost, "/api/v1/daka", `{"wallet":"`+wallet(t)+`"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"SOL balance < 0.01"}`, rec.Body.String())
}

func TestAdminPolicy(t *testing.T) {
	h, _ := setupRouter(t, 0)

	rec := do(h, http.MethodPut, "/api/v1/admin/policy", `{"is_testing_mode":"true"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPut, "/api/v1/admin/policy", `{"min_tx_count":"-1"}`, adminHeader(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPut, "/api/v1/admin/policy", `{"bogus":"1"}`, adminHeader(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPut, "/api/v1/admin/policy", `{"is_testing_mode":"true","target_count":"3"}`, adminHeader(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data struct {
			Values map[string]string `json:"values"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "true", got.Data.Values["is_testing_mode"])

	// zero balance passes once testing mode is on
	rec = do(h, http.MethodPost, "/api/v1/daka", `{"wallet":"`+wallet(t)+`"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/stats", "", nil)
	assert.JSONEq(t, `{"count":1,"target":"3","testing_mode":true}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/v1/admin/policy", "", adminHeader(t))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthMetricsAndNoRoute(t *testing.T) {
	h, _ := setupRouter(t, 0)

	rec := do(h, http.MethodGet, "/health", "", nil)
	assert.JSONEq(t, `{"code":0,"message":"success","data":{"status":"ok"}}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "daka_http_requests_total")

	rec = do(h, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func setupCachedRouter(t *testing.T, balance uint64) (http.Handler, *stubLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stub := &stubLedger{balance: balance}
	h, _ := setupRouterWith(t, ledger.NewCachedReader(stub, client, 3*time.Second, zaptest.NewLogger(t)))
	return h, stub, mr
}

func TestSubmitWithLedgerCacheKeepsOutcomes(t *testing.T) {
	h, stub, mr := setupCachedRouter(t, 10_000_000)
	w := wallet(t)
	body := `{"wallet":"` + w + `"}`

	rec := do(h, http.MethodPost, "/api/v1/daka", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Recorded"}`, rec.Body.String())
	fetched := stub.calls.Load()

	// an immediate repeat is served from the cache and still reaches the unique index
	rec = do(h, http.MethodPost, "/api/v1/daka", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Already daka today"}`, rec.Body.String())
	assert.Equal(t, fetched, stub.calls.Load())

	// malformed addresses never touch the ledger or Redis
	rec = do(h, http.MethodPost, "/api/v1/daka", `{"wallet":"0OIl"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid wallet address"}`, rec.Body.String())
	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "0OIl")
	}
	assert.Equal(t, fetched, stub.calls.Load())
}

func TestConcurrentSubmitWithLedgerCache(t *testing.T) {
	h, _, _ := setupCachedRouter(t, 10_000_000)
	body := `{"wallet":"` + wallet(t) + `"}`

	const n = 10
	var wg sync.WaitGroup
	recs := make([]*httptest.ResponseRecorder, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i] = do(h, http.MethodPost, "/api/v1/daka", body, nil)
		}(i)
	}
	wg.Wait()

	codes := map[int]int{}
	for _, rec := range recs {
		codes[rec.Code]++
		var res struct {
			Success *bool   `json:"success"`
			Message *string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.NotNil(t, res.Success)
		require.NotNil(t, res.Message)
		if rec.Code == http.StatusConflict {
			assert.Equal(t, "Already daka today", *res.Message)
		}
	}
	assert.Equal(t, map[int]int{http.StatusOK: 1, http.StatusConflict: n - 1}, codes)

	rec := do(h, http.MethodGet, "/api/v1/stats", "", nil)
	assert.JSONEq(t, `{"count":1,"target":"10","testing_mode":false}`, rec.Body.String())
}

func TestTestingModeRepeatsWithLedgerCache(t *testing.T) {
	h, stub, _ := setupCachedRouter(t, 0)

	rec := do(h, http.MethodPut, "/api/v1/admin/policy", `{"is_testing_mode":"true"}`, adminHeader(t))
	require.Equal(t, http.StatusOK, rec.Code)

	body := `{"wallet":"` + wallet(t) + `"}`
	for i := 0; i < 3; i++ {
		rec = do(h, http.MethodPost, "/api/v1/daka", body, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"message":"Recorded"}`, rec.Body.String())
	}
	assert.Zero(t, stub.calls.Load())
}

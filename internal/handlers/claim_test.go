package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"reward-guard-backend/internal/ledger"
	"reward-guard-backend/internal/middleware"
	"reward-guard-backend/internal/models"
	"reward-guard-backend/internal/settlement"
)

const testSubject = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

type countingSubmitter struct {
	submitCalls int64
}

func (s *countingSubmitter) IsAuthorized(_ context.Context) (bool, error) {
	return true, nil
}

func (s *countingSubmitter) Submit(_ context.Context, _ common.Address, _ decimal.Decimal, _ string) (string, error) {
	atomic.AddInt64(&s.submitCalls, 1)
	return "0xabc123", nil
}

func (s *countingSubmitter) AwaitConfirmation(_ context.Context, _ string) (*settlement.Receipt, error) {
	return &settlement.Receipt{Success: true, BlockNumber: 1}, nil
}

func stubSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("subject", testSubject)
		c.Next()
	}
}

func newClaimRouter(t *testing.T, store *ledger.MemoryStore, submitter settlement.Submitter) (*gin.Engine, *ledger.Ledger, *settlement.Service) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	claimLedger := ledger.NewLedger(store, store, logger)
	settlementService := settlement.NewService(submitter, nil, logger)
	handler := NewClaimHandler(claimLedger, settlementService, nil, 24*time.Hour, logger)

	router := gin.New()
	api := router.Group("/api", stubSubject())
	api.POST("/claims/init", handler.InitClaim)
	api.POST("/claims/confirm", handler.ConfirmClaim)
	api.GET("/claims/:resource", handler.GetClaim)
	api.GET("/cooldown", handler.Cooldown)

	return router, claimLedger, settlementService
}

func doJSON(router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestClaimFlowEndToEnd(t *testing.T) {
	store := ledger.NewMemoryStore()
	submitter := &countingSubmitter{}
	router, claimLedger, settlementService := newClaimRouter(t, store, submitter)

	_, _, err := claimLedger.RecordReward(context.Background(), testSubject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)

	// Phase 1, twice: same reference both times.
	w, body := doJSON(router, http.MethodPost, "/api/claims/init", gin.H{"resource": "faucet", "amount": "1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reference := body["reference"].(string)
	require.NotEmpty(t, reference)

	w, body = doJSON(router, http.MethodPost, "/api/claims/init", gin.H{"resource": "faucet", "amount": "1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reference, body["reference"])

	// Phase 2: claimed, settlement broadcast exactly once.
	w, body = doJSON(router, http.MethodPost, "/api/claims/confirm", gin.H{"reference": reference})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settlementBody := body["settlement"].(map[string]interface{})
	assert.Equal(t, "broadcast", settlementBody["status"])

	// Repeat confirm: idempotent rejection, no second settlement.
	w, body = doJSON(router, http.MethodPost, "/api/claims/confirm", gin.H{"reference": reference})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(models.KindAlreadyClaimed), body["error"])

	settlementService.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&submitter.submitCalls))

	// Audit trail: record is claimed with the tx hash attached.
	w, body = doJSON(router, http.MethodGet, "/api/claims/faucet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	claim := body["claim"].(map[string]interface{})
	assert.Equal(t, string(models.ClaimStateClaimed), claim["state"])
	assert.Equal(t, "0xabc123", claim["settlement_tx_hash"])
}

func TestInitAmountMismatch(t *testing.T) {
	store := ledger.NewMemoryStore()
	router, claimLedger, _ := newClaimRouter(t, store, &countingSubmitter{})

	_, _, err := claimLedger.RecordReward(context.Background(), testSubject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)

	w, body := doJSON(router, http.MethodPost, "/api/claims/init", gin.H{"resource": "faucet", "amount": "2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(models.KindAmountMismatch), body["error"])

	// The record stays pending.
	record, err := claimLedger.GetClaim(context.Background(), testSubject, "faucet")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatePending, record.State())
}

func TestConfirmUnknownReference(t *testing.T) {
	store := ledger.NewMemoryStore()
	router, _, _ := newClaimRouter(t, store, &countingSubmitter{})

	w, body := doJSON(router, http.MethodPost, "/api/claims/confirm",
		gin.H{"reference": "11111111-2222-4333-8444-555555555555"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(models.KindReferenceNotFound), body["error"])
}

func TestInitUnknownReward(t *testing.T) {
	store := ledger.NewMemoryStore()
	router, _, _ := newClaimRouter(t, store, &countingSubmitter{})

	w, body := doJSON(router, http.MethodPost, "/api/claims/init", gin.H{"resource": "faucet", "amount": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(models.KindRewardNotFound), body["error"])
}

func TestCooldownBlocksNextInit(t *testing.T) {
	store := ledger.NewMemoryStore()
	router, claimLedger, settlementService := newClaimRouter(t, store, &countingSubmitter{})
	defer settlementService.Wait()
	ctx := context.Background()

	_, _, err := claimLedger.RecordReward(ctx, testSubject, "faucet", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, _, err = claimLedger.RecordReward(ctx, testSubject, "daily-game", decimal.NewFromInt(2))
	require.NoError(t, err)

	_, body := doJSON(router, http.MethodPost, "/api/claims/init", gin.H{"resource": "faucet", "amount": "1"})
	w, _ := doJSON(router, http.MethodPost, "/api/claims/confirm", gin.H{"reference": body["reference"]})
	require.Equal(t, http.StatusOK, w.Code)

	// The cooldown is global across resources.
	w, body = doJSON(router, http.MethodPost, "/api/claims/init", gin.H{"resource": "daily-game", "amount": "2"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, string(models.KindRateLimited), body["error"])
	assert.Greater(t, body["retry_after"].(float64), 0.0)

	w, _ = doJSON(router, http.MethodGet, "/api/cooldown", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// spyClaimStore counts every ledger store access so tests can prove the
// ledger was never reached.
type spyClaimStore struct {
	*ledger.MemoryStore
	calls int64
}

func (s *spyClaimStore) GetClaim(ctx context.Context, subject, resource string) (*models.ClaimRecord, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.MemoryStore.GetClaim(ctx, subject, resource)
}

type staticSettings bool

func (s staticSettings) IsMaintenanceMode(_ context.Context) bool { return bool(s) }

func TestMaintenanceShortCircuitsBeforeLedger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	spy := &spyClaimStore{MemoryStore: ledger.NewMemoryStore()}
	claimLedger := ledger.NewLedger(spy, spy.MemoryStore, logger)
	settlementService := settlement.NewService(&countingSubmitter{}, nil, logger)
	handler := NewClaimHandler(claimLedger, settlementService, nil, 24*time.Hour, logger)

	router := gin.New()
	router.Use(middleware.MaintenanceMiddleware(staticSettings(true), "admin-secret"))
	router.POST("/api/claims/init", stubSubject(), handler.InitClaim)

	w, body := doJSON(router, http.MethodPost, "/api/claims/init", gin.H{"resource": "faucet", "amount": "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(models.KindMaintenance), body["error"])
	assert.Equal(t, int64(0), atomic.LoadInt64(&spy.calls), "ledger must never be invoked during maintenance")

	// The admin token bypasses the gate.
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(gin.H{"resource": "faucet", "amount": "1"})
	req := httptest.NewRequest(http.MethodPost, "/api/claims/init", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", "admin-secret")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNotFound, recorder.Code, "bypassed request reaches the ledger")
	assert.Equal(t, int64(1), atomic.LoadInt64(&spy.calls))
}

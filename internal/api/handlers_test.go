package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"hookrelay/internal/account"
	"hookrelay/internal/dispatch"
	"hookrelay/internal/engine"
	"hookrelay/internal/monitor"
	"hookrelay/pkg/config"
	"hookrelay/pkg/exchange"
)

type fakeGateway struct {
	mu             sync.Mutex
	submitted      []exchange.OrderRequest
	submitDeadline bool  // whether the submit ctx carried a deadline
	submitCtxErr   error // ctx.Err() observed at submit time
}

func (f *fakeGateway) LoadMarkets(ctx context.Context) (map[string]exchange.MarketInfo, error) {
	return nil, nil
}
func (f *fakeGateway) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	return exchange.Balance{Free: 1000}, nil
}
func (f *fakeGateway) FetchOrderBook(ctx context.Context, symbol string) (exchange.OrderBook, error) {
	return exchange.OrderBook{BestBid: 29990, BestAsk: 30010}, nil
}
func (f *fakeGateway) FetchPositions(ctx context.Context, symbols []string) ([]exchange.Position, error) {
	return nil, nil
}
func (f *fakeGateway) SubmitMarketOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.submitDeadline = ctx.Deadline()
	f.submitCtxErr = ctx.Err()
	f.submitted = append(f.submitted, req)
	return exchange.OrderResult{OrderID: "oid"}, nil
}

func (f *fakeGateway) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func newTestServer(t *testing.T) (*Server, *fakeGateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := &fakeGateway{}
	acct := account.New(config.AccountConfig{ID: "acct1", Exchange: "bitget", Settle: "USDT", MarginMode: "crossed"}, gw)
	acct.SetCatalog(map[string]exchange.MarketInfo{
		"BTC/USDT:USDT": {Symbol: "BTC/USDT:USDT", ContractSize: 1, MinQty: 0.001, QtyStep: 0.001},
	})

	reg := account.NewRegistry([]*account.Account{acct})
	eng := engine.New(1.0, nil)
	disp := dispatch.New(reg, eng, nil, nil, monitor.New())

	srv := NewServer(reg, disp, nil, nil, monitor.New(), SystemMeta{InstanceID: "test", Version: "dev"}, "test-secret", true)
	return srv, gw
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"active":true`) {
		t.Fatalf("health body missing active flag: %s", w.Body.String())
	}
}

func TestWebhookAcceptsRawText(t *testing.T) {
	srv, gw := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("acct1 buy BTCUSDT 10%"))
	req.Header.Set("Content-Type", "text/plain")
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	waitFor(t, func() bool { return gw.count() == 1 })
}

func TestWebhookAcceptsJSONMessage(t *testing.T) {
	srv, gw := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"acct1 buy BTCUSDT $300"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	waitFor(t, func() bool { return gw.count() == 1 })
}

func TestWebhookDispatchIgnoresRequestDeadline(t *testing.T) {
	srv, gw := newTestServer(t)

	// Alert senders use tight timeouts; a deadline on the inbound
	// request must never propagate to the order submission.
	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("acct1 buy BTCUSDT 10%"))
	req = req.WithContext(reqCtx)
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	<-reqCtx.Done()
	waitFor(t, func() bool { return gw.count() == 1 })

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.submitDeadline {
		t.Fatal("submit context carried a deadline")
	}
	if gw.submitCtxErr != nil {
		t.Fatalf("submit context already canceled: %v", gw.submitCtxErr)
	}
}

func TestWebhookRejectsEmptyJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookInactiveShortCircuits(t *testing.T) {
	srv, gw := newTestServer(t)
	srv.active.Store(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("acct1 buy BTCUSDT 10%"))
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "inactive") {
		t.Fatalf("body = %s, want inactive notice", w.Body.String())
	}
	time.Sleep(50 * time.Millisecond)
	if gw.count() != 0 {
		t.Fatal("inactive relay must not dispatch")
	}
}

func TestConfigRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestConfigToggleWithToken(t *testing.T) {
	srv, _ := newTestServer(t)

	token, err := GenerateToken("test-secret", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if srv.Active() {
		t.Fatal("toggle did not take effect")
	}
}

func TestConfigMissingActiveKey(t *testing.T) {
	srv, _ := newTestServer(t)

	token, _ := GenerateToken("test-secret", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(`{"other":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStatusListsAccounts(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	srv.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"id":"acct1"`) {
		t.Fatalf("status body missing account: %s", w.Body.String())
	}
}

// waitFor polls until cond holds, failing the test after a deadline.
// Webhook dispatch is asynchronous, so tests must wait for the effect.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

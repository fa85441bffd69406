package bitget

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"hookrelay/pkg/exchange"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(Config{
		APIKey:     "key",
		APISecret:  "secret",
		Passphrase: "pass",
		MarginCoin: "USDT",
		BaseURL:    srv.URL,
	})
	return c, srv
}

func envelope(data any) string {
	raw, _ := json.Marshal(data)
	return fmt.Sprintf(`{"code":"00000","msg":"success","data":%s}`, raw)
}

func TestVenueSymbol(t *testing.T) {
	tests := []struct {
		canonical string
		want      string
	}{
		{"BTC/USDT:USDT", "BTCUSDT"},
		{"ETH/USDT:USDT", "ETHUSDT"},
		{"BTCUSDT", "BTCUSDT"},
	}
	for _, tt := range tests {
		if got := venueSymbol(tt.canonical); got != tt.want {
			t.Errorf("venueSymbol(%q) = %q, want %q", tt.canonical, got, tt.want)
		}
	}
}

func TestLoadMarkets(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/mix/market/contracts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("productType"); got != "USDT-FUTURES" {
			t.Errorf("productType = %q", got)
		}
		fmt.Fprint(w, envelope([]contractResp{{
			Symbol:         "BTCUSDT",
			BaseCoin:       "BTC",
			QuoteCoin:      "USDT",
			MinTradeNum:    "0.001",
			SizeMultiplier: "1",
			VolumePlace:    "3",
			PricePlace:     "1",
		}}))
	})
	defer srv.Close()

	markets, err := c.LoadMarkets(context.Background())
	if err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	m, ok := markets["BTC/USDT:USDT"]
	if !ok {
		t.Fatalf("missing canonical market, got %v", markets)
	}
	if m.MinQty != 0.001 || m.QtyStep != 0.001 || m.PriceTick != 0.1 || m.ContractSize != 1 {
		t.Fatalf("market limits = %+v", m)
	}
}

func TestFetchBalanceSignsRequest(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get("ACCESS-TIMESTAMP")
		if r.Header.Get("ACCESS-KEY") != "key" || ts == "" || r.Header.Get("ACCESS-PASSPHRASE") != "pass" {
			t.Error("missing auth headers")
		}
		mac := hmac.New(sha256.New, []byte("secret"))
		mac.Write([]byte(ts + http.MethodGet + r.URL.RequestURI()))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("ACCESS-SIGN"); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}
		fmt.Fprint(w, envelope([]accountResp{{
			MarginCoin:    "USDT",
			Available:     "1234.5",
			Locked:        "10",
			AccountEquity: "1250",
		}}))
	})
	defer srv.Close()

	bal, err := c.FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if bal.Free != 1234.5 || bal.Used != 10 || bal.Total != 1250 {
		t.Fatalf("balance = %+v", bal)
	}
}

func TestFetchOrderBook(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q", got)
		}
		fmt.Fprint(w, envelope([]tickerResp{{Symbol: "BTCUSDT", BidPrice: "29990", AskPrice: "30010"}}))
	})
	defer srv.Close()

	ob, err := c.FetchOrderBook(context.Background(), "BTC/USDT:USDT")
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if ob.BestBid != 29990 || ob.BestAsk != 30010 {
		t.Fatalf("orderbook = %+v", ob)
	}
	if ob.Mid() != 30000 {
		t.Fatalf("mid = %v, want 30000", ob.Mid())
	}
}

func TestFetchPositionsFiltersTracked(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope([]positionResp{
			{Symbol: "BTCUSDT", HoldSide: "long", Total: "0.5", UnrealizedPL: "12.3"},
			{Symbol: "DOGEUSDT", HoldSide: "short", Total: "900", UnrealizedPL: "-1"},
		}))
	})
	defer srv.Close()

	got, err := c.FetchPositions(context.Background(), []string{"BTC/USDT:USDT"})
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("positions = %v, want only tracked symbol", got)
	}
	p := got[0]
	if p.Symbol != "BTC/USDT:USDT" || p.Side != exchange.PositionLong || p.Contracts != 0.5 {
		t.Fatalf("position = %+v", p)
	}
}

func TestSubmitMarketOrder(t *testing.T) {
	var leverageSet bool
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/api/v2/mix/account/set-leverage":
			leverageSet = true
			var req map[string]string
			_ = json.Unmarshal(body, &req)
			if req["leverage"] != "5" {
				t.Errorf("leverage = %q", req["leverage"])
			}
			fmt.Fprint(w, envelope(map[string]string{}))
		case "/api/v2/mix/order/place-order":
			var req map[string]string
			_ = json.Unmarshal(body, &req)
			if req["symbol"] != "BTCUSDT" || req["side"] != "buy" || req["orderType"] != "market" {
				t.Errorf("order body = %v", req)
			}
			if req["size"] != "0.003" {
				t.Errorf("size = %q", req["size"])
			}
			if _, ok := req["reduceOnly"]; ok {
				t.Error("open order must not be reduce-only")
			}
			fmt.Fprint(w, envelope(placeOrderResp{OrderID: "123", ClientOid: "cid-1"}))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer srv.Close()

	res, err := c.SubmitMarketOrder(context.Background(), exchange.OrderRequest{
		Symbol:   "BTC/USDT:USDT",
		Side:     exchange.SideBuy,
		Qty:      0.003,
		Leverage: 5,
		ClientID: "cid-1",
	})
	if err != nil {
		t.Fatalf("SubmitMarketOrder: %v", err)
	}
	if !leverageSet {
		t.Error("leverage was not set before the order")
	}
	if res.OrderID != "123" || res.ClientID != "cid-1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSubmitMarketOrderReduceOnly(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		_ = json.Unmarshal(body, &req)
		if req["reduceOnly"] != "YES" {
			t.Errorf("reduceOnly = %q, want YES", req["reduceOnly"])
		}
		fmt.Fprint(w, envelope(placeOrderResp{OrderID: "124"}))
	})
	defer srv.Close()

	_, err := c.SubmitMarketOrder(context.Background(), exchange.OrderRequest{
		Symbol:     "BTC/USDT:USDT",
		Side:       exchange.SideSell,
		Qty:        0.5,
		ReduceOnly: true,
	})
	if err != nil {
		t.Fatalf("SubmitMarketOrder: %v", err)
	}
}

func TestErrorEnvelope(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"40762","msg":"insufficient balance","data":null}`)
	})
	defer srv.Close()

	_, err := c.SubmitMarketOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTC/USDT:USDT",
		Side:   exchange.SideBuy,
		Qty:    1,
	})
	if !errors.Is(err, exchange.ErrOrderRejected) {
		t.Fatalf("err = %v, want ErrOrderRejected", err)
	}
}

func TestSignedRequestNeedsCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"})
	_, err := c.FetchBalance(context.Background())
	if !errors.Is(err, exchange.ErrBalanceUnavailable) {
		t.Fatalf("err = %v, want ErrBalanceUnavailable", err)
	}
}

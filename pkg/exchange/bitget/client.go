// Package bitget implements the exchange.Gateway interface against the
// Bitget v2 mix (perpetual futures) REST API.
package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hookrelay/pkg/exchange"
)

const defaultBaseURL = "https://api.bitget.com"

// Config holds Bitget API credentials and account settings.
type Config struct {
	APIKey     string
	APISecret  string
	Passphrase string
	MarginCoin string              // settle currency, e.g. "USDT"
	MarginMode exchange.MarginMode // isolated or crossed
	BaseURL    string              // override for tests
}

// Client talks to Bitget USDT-M perpetuals. One client per account.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	counter    *exchange.RequestCounter
}

// NewClient creates a Bitget mix client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.MarginCoin == "" {
		cfg.MarginCoin = "USDT"
	}
	if cfg.MarginMode == "" {
		cfg.MarginMode = exchange.MarginCrossed
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		counter:    exchange.NewRequestCounter(600, time.Minute),
	}
}

func (c *Client) productType() string {
	return c.cfg.MarginCoin + "-FUTURES"
}

// venueSymbol converts a canonical symbol ("BTC/USDT:USDT") to the
// venue form ("BTCUSDT"). Deterministic, so no per-symbol state.
func venueSymbol(canonical string) string {
	s := canonical
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "/", "")
}

// LoadMarkets fetches the contract catalog.
func (c *Client) LoadMarkets(ctx context.Context) (map[string]exchange.MarketInfo, error) {
	params := url.Values{}
	params.Set("productType", c.productType())
	body, err := c.do(ctx, http.MethodGet, "/api/v2/mix/market/contracts", params, nil)
	if err != nil {
		return nil, exchange.WrapOp(exchange.ErrCatalogUnavailable, err)
	}
	var contracts []contractResp
	if err := json.Unmarshal(body, &contracts); err != nil {
		return nil, exchange.WrapOp(exchange.ErrCatalogUnavailable, fmt.Errorf("decode contracts: %w", err))
	}

	markets := make(map[string]exchange.MarketInfo, len(contracts))
	for _, ct := range contracts {
		canonical := ct.BaseCoin + "/" + ct.QuoteCoin + ":" + c.cfg.MarginCoin
		size := parseFloat(ct.SizeMultiplier)
		if size <= 0 {
			size = 1
		}
		markets[canonical] = exchange.MarketInfo{
			Symbol:       canonical,
			Base:         ct.BaseCoin,
			Quote:        ct.QuoteCoin,
			Settle:       c.cfg.MarginCoin,
			ContractSize: size,
			MinQty:       parseFloat(ct.MinTradeNum),
			QtyStep:      placesToStep(ct.VolumePlace),
			PriceTick:    placesToStep(ct.PricePlace),
		}
	}
	return markets, nil
}

// FetchBalance returns the settle-currency balance.
func (c *Client) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	params := url.Values{}
	params.Set("productType", c.productType())
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v2/mix/account/accounts", params, nil)
	if err != nil {
		return exchange.Balance{}, exchange.WrapOp(exchange.ErrBalanceUnavailable, err)
	}
	var accounts []accountResp
	if err := json.Unmarshal(body, &accounts); err != nil {
		return exchange.Balance{}, exchange.WrapOp(exchange.ErrBalanceUnavailable, fmt.Errorf("decode accounts: %w", err))
	}
	for _, a := range accounts {
		if strings.EqualFold(a.MarginCoin, c.cfg.MarginCoin) {
			return exchange.Balance{
				Free:  parseFloat(a.Available),
				Used:  parseFloat(a.Locked),
				Total: parseFloat(a.AccountEquity),
			}, nil
		}
	}
	return exchange.Balance{}, exchange.WrapOp(exchange.ErrBalanceUnavailable,
		fmt.Errorf("no %s account in response", c.cfg.MarginCoin))
}

// FetchOrderBook returns top of book from the ticker endpoint.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (exchange.OrderBook, error) {
	params := url.Values{}
	params.Set("productType", c.productType())
	params.Set("symbol", venueSymbol(symbol))
	body, err := c.do(ctx, http.MethodGet, "/api/v2/mix/market/ticker", params, nil)
	if err != nil {
		return exchange.OrderBook{}, exchange.WrapOp(exchange.ErrQuoteUnavailable, err)
	}
	var tickers []tickerResp
	if err := json.Unmarshal(body, &tickers); err != nil {
		return exchange.OrderBook{}, exchange.WrapOp(exchange.ErrQuoteUnavailable, fmt.Errorf("decode ticker: %w", err))
	}
	if len(tickers) == 0 {
		return exchange.OrderBook{}, exchange.WrapOp(exchange.ErrQuoteUnavailable,
			fmt.Errorf("empty ticker for %s", symbol))
	}
	return exchange.OrderBook{
		BestBid: parseFloat(tickers[0].BidPrice),
		BestAsk: parseFloat(tickers[0].AskPrice),
	}, nil
}

// FetchPositions lists open positions, filtered to the given symbols.
func (c *Client) FetchPositions(ctx context.Context, symbols []string) ([]exchange.Position, error) {
	params := url.Values{}
	params.Set("productType", c.productType())
	params.Set("marginCoin", c.cfg.MarginCoin)
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v2/mix/position/all-position", params, nil)
	if err != nil {
		return nil, exchange.WrapOp(exchange.ErrPositionsUnavailable, err)
	}
	var raw []positionResp
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, exchange.WrapOp(exchange.ErrPositionsUnavailable, fmt.Errorf("decode positions: %w", err))
	}

	wanted := make(map[string]string, len(symbols)) // venue -> canonical
	for _, s := range symbols {
		wanted[venueSymbol(s)] = s
	}

	var out []exchange.Position
	for _, p := range raw {
		canonical, ok := wanted[p.Symbol]
		if !ok {
			continue
		}
		side := exchange.PositionLong
		if strings.EqualFold(p.HoldSide, "short") {
			side = exchange.PositionShort
		}
		out = append(out, exchange.Position{
			Symbol:        canonical,
			Side:          side,
			Contracts:     parseFloat(p.Total),
			UnrealizedPnl: parseFloat(p.UnrealizedPL),
		})
	}
	return out, nil
}

// SubmitMarketOrder places a market order, setting leverage first when
// the request carries one.
func (c *Client) SubmitMarketOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	vsym := venueSymbol(req.Symbol)

	if req.Leverage > 0 {
		lev := map[string]string{
			"symbol":      vsym,
			"productType": c.productType(),
			"marginCoin":  c.cfg.MarginCoin,
			"leverage":    strconv.Itoa(req.Leverage),
		}
		// A leverage rejection is not fatal: the venue keeps its prior
		// setting and the order itself decides success.
		_, _ = c.doSigned(ctx, http.MethodPost, "/api/v2/mix/account/set-leverage", nil, lev)
	}

	order := map[string]string{
		"symbol":      vsym,
		"productType": c.productType(),
		"marginMode":  string(c.cfg.MarginMode),
		"marginCoin":  c.cfg.MarginCoin,
		"size":        formatFloat(req.Qty),
		"side":        string(req.Side),
		"orderType":   "market",
	}
	if req.ReduceOnly {
		order["reduceOnly"] = "YES"
	}
	if req.ClientID != "" {
		order["clientOid"] = req.ClientID
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/api/v2/mix/order/place-order", nil, order)
	if err != nil {
		return exchange.OrderResult{}, exchange.WrapOp(exchange.ErrOrderRejected, err)
	}
	var resp placeOrderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return exchange.OrderResult{}, exchange.WrapOp(exchange.ErrOrderRejected, fmt.Errorf("decode order ack: %w", err))
	}
	return exchange.OrderResult{OrderID: resp.OrderID, ClientID: resp.ClientOid}, nil
}

// do sends an unauthenticated request and unwraps the envelope.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload map[string]string) ([]byte, error) {
	return c.send(ctx, method, path, params, payload, false)
}

// doSigned sends an authenticated request and unwraps the envelope.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values, payload map[string]string) ([]byte, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, fmt.Errorf("bitget: API key/secret required")
	}
	return c.send(ctx, method, path, params, payload, true)
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, payload map[string]string, signed bool) ([]byte, error) {
	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req.Header.Set("ACCESS-KEY", c.cfg.APIKey)
		req.Header.Set("ACCESS-SIGN", sign(c.cfg.APISecret, ts+method+requestPath+string(bodyBytes)))
		req.Header.Set("ACCESS-TIMESTAMP", ts)
		req.Header.Set("ACCESS-PASSPHRASE", c.cfg.Passphrase)
	}

	c.counter.Record()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("bitget %s %s status %d: %s", method, path, res.StatusCode, string(raw))
	}

	var envelope struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("bitget %s %s: decode envelope: %w", method, path, err)
	}
	if envelope.Code != "00000" {
		return nil, fmt.Errorf("bitget %s %s code %s: %s", method, path, envelope.Code, envelope.Msg)
	}
	return envelope.Data, nil
}

// sign computes the Bitget request signature: base64(HMAC-SHA256(secret,
// timestamp + method + requestPath + body)).
func sign(secret, preimage string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(preimage))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// placesToStep converts a decimal-places string ("3") to a step (0.001).
func placesToStep(s string) float64 {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return math.Pow(10, -float64(n))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type contractResp struct {
	Symbol         string `json:"symbol"`
	BaseCoin       string `json:"baseCoin"`
	QuoteCoin      string `json:"quoteCoin"`
	MinTradeNum    string `json:"minTradeNum"`
	SizeMultiplier string `json:"sizeMultiplier"`
	VolumePlace    string `json:"volumePlace"`
	PricePlace     string `json:"pricePlace"`
}

type accountResp struct {
	MarginCoin    string `json:"marginCoin"`
	Available     string `json:"available"`
	Locked        string `json:"locked"`
	AccountEquity string `json:"accountEquity"`
}

type tickerResp struct {
	Symbol   string `json:"symbol"`
	LastPr   string `json:"lastPr"`
	BidPrice string `json:"bidPr"`
	AskPrice string `json:"askPr"`
}

type positionResp struct {
	Symbol       string `json:"symbol"`
	HoldSide     string `json:"holdSide"`
	Total        string `json:"total"`
	UnrealizedPL string `json:"unrealizedPL"`
}

type placeOrderResp struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

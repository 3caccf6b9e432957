package brokerage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/Trader/internal/platform/http"
	"github.com/Alias1177/Trader/models"
)

// HTTPBroker talks to an Alpaca-compatible brokerage REST API.
type HTTPBroker struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// HTTPBrokerOptions holds options for creating an HTTPBroker
type HTTPBrokerOptions struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	RequestTimeout time.Duration
	RequestsPerSec int
}

// NewHTTPBroker creates a brokerage client with rate limiting and retries
func NewHTTPBroker(options HTTPBrokerOptions) *HTTPBroker {
	return &HTTPBroker{
		baseURL:   options.BaseURL,
		apiKey:    options.APIKey,
		apiSecret: options.APISecret,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: options.RequestsPerSec,
		}),
		logger: log.With().Str("component", "brokerage_client").Logger(),
	}
}

type accountResponse struct {
	BuyingPower float64 `json:"buying_power,string"`
	Equity      float64 `json:"equity,string"`
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         int64  `json:"qty,string"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type orderResponse struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	FilledQty      int64   `json:"filled_qty,string"`
	FilledAvgPrice float64 `json:"filled_avg_price,string"`
	FilledAt       string  `json:"filled_at"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Account reads current buying power and equity.
func (b *HTTPBroker) Account(ctx context.Context) (models.Account, error) {
	body, status, err := b.do(ctx, http.MethodGet, "/v2/account", nil)
	if err != nil {
		return models.Account{}, err
	}
	if status != http.StatusOK {
		return models.Account{}, fmt.Errorf("account read failed with status %d: %s", status, body)
	}

	var acct accountResponse
	if err := json.Unmarshal(body, &acct); err != nil {
		return models.Account{}, fmt.Errorf("parsing JSON: %w", err)
	}

	return models.Account{
		BuyingPower: acct.BuyingPower,
		Equity:      acct.Equity,
	}, nil
}

// PlaceMarketOrder submits a day market order and returns its fill.
// A declined order comes back as *OrderRejectedError with the reason
// mapped from the brokerage response.
func (b *HTTPBroker) PlaceMarketOrder(ctx context.Context, order models.Order) (models.Fill, error) {
	payload, err := json.Marshal(orderRequest{
		Symbol:      order.Symbol,
		Qty:         order.Quantity,
		Side:        string(order.Side),
		Type:        "market",
		TimeInForce: "day",
	})
	if err != nil {
		return models.Fill{}, fmt.Errorf("encoding order: %w", err)
	}

	body, status, err := b.do(ctx, http.MethodPost, "/v2/orders", payload)
	if err != nil {
		return models.Fill{}, err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return models.Fill{}, b.rejection(order, status, body)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Fill{}, fmt.Errorf("parsing JSON: %w", err)
	}
	if resp.FilledAvgPrice <= 0 || resp.FilledQty <= 0 {
		return models.Fill{}, fmt.Errorf("order %s accepted but not filled (status %s)", resp.ID, resp.Status)
	}

	filledAt := time.Now()
	if resp.FilledAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.FilledAt); err == nil {
			filledAt = t
		}
	}

	b.logger.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Int64("quantity", resp.FilledQty).
		Float64("price", resp.FilledAvgPrice).
		Msg("Order filled")

	return models.Fill{
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  resp.FilledQty,
		Price:     resp.FilledAvgPrice,
		Timestamp: filledAt,
	}, nil
}

// rejection maps brokerage error responses onto the rejection taxonomy.
func (b *HTTPBroker) rejection(order models.Order, status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	reason := RejectInvalidSymbol
	switch status {
	case http.StatusForbidden:
		reason = RejectInsufficientFunds
	case http.StatusTooManyRequests:
		reason = RejectRateLimited
	case http.StatusUnprocessableEntity:
		reason = RejectInvalidSymbol
	}
	if er.Message != "" && containsMarketClosed(er.Message) {
		reason = RejectMarketClosed
	}

	return &OrderRejectedError{Order: order, Reason: reason, Message: er.Message}
}

func containsMarketClosed(msg string) bool {
	return bytes.Contains(bytes.ToLower([]byte(msg)), []byte("market is closed")) ||
		bytes.Contains(bytes.ToLower([]byte(msg)), []byte("market closed"))
}

func (b *HTTPBroker) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", b.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", b.apiSecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/Trader/internal/platform/http"
	"github.com/Alias1177/Trader/models"
)

// Provider supplies an instrument's rolling daily history plus its
// latest intraday quote. Implementations must be safe for concurrent
// per-symbol calls and must honor the context deadline.
type Provider interface {
	Fetch(ctx context.Context, symbol string) (models.Instrument, error)
}

// Client is the market data API client
type Client struct {
	apiKey     string
	baseURL    string
	sessions   int
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new market data client
type ClientOptions struct {
	BaseURL        string
	APIKey         string
	Sessions       int // daily bars to request per symbol
	RequestTimeout time.Duration
	RequestsPerSec int
}

// NewClient creates a new market data API client
func NewClient(options ClientOptions) *Client {
	sessions := options.Sessions
	if sessions == 0 {
		sessions = 30
	}

	return &Client{
		apiKey:   options.APIKey,
		baseURL:  options.BaseURL,
		sessions: sessions,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: options.RequestsPerSec,
		}),
		logger: log.With().Str("component", "marketdata_client").Logger(),
	}
}

// timeSeriesResponse is the wire format of the daily bars endpoint
type timeSeriesResponse struct {
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   int64   `json:"volume,string,omitempty"`
	} `json:"values"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// quoteResponse is the wire format of the latest quote endpoint
type quoteResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price,string"`
	Open      float64 `json:"open,string"`
	Volume    int64   `json:"volume,string,omitempty"`
	Timestamp int64   `json:"timestamp"`
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
}

// Fetch returns the symbol's daily history (oldest first) and its
// latest intraday quote. A failure or timeout affects only this symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) (models.Instrument, error) {
	history, err := c.getHistory(ctx, symbol)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}

	quote, err := c.getQuote(ctx, symbol)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}

	// The most recent bar can be today's still-running session; the
	// quote already carries today, so drop the duplicate.
	if n := len(history); n > 0 && sameDay(history[n-1].Date, quote.Timestamp) {
		history = history[:n-1]
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Int("bars", len(history)).
		Float64("price", quote.Price).
		Msg("Fetched instrument data")

	return models.Instrument{
		Symbol:  symbol,
		History: history,
		Quote:   quote,
	}, nil
}

func (c *Client) getHistory(ctx context.Context, symbol string) ([]models.Candle, error) {
	u := fmt.Sprintf(
		"%s/time_series?symbol=%s&interval=1day&outputsize=%d&apikey=%s",
		c.baseURL, url.QueryEscape(symbol), c.sessions, c.apiKey,
	)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		return nil, fmt.Errorf("market data API error: %s", data.Message)
	}
	if len(data.Values) == 0 {
		return nil, fmt.Errorf("empty data returned")
	}

	// Sort candles by datetime (oldest first for proper calculations)
	sort.Slice(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	candles := make([]models.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		date, err := time.Parse("2006-01-02", v.Datetime)
		if err != nil {
			return nil, fmt.Errorf("parsing bar date %q: %w", v.Datetime, err)
		}
		candles = append(candles, models.Candle{
			Date:   date,
			Open:   v.Open,
			High:   v.High,
			Low:    v.Low,
			Close:  v.Close,
			Volume: v.Volume,
		})
	}

	return candles, nil
}

func (c *Client) getQuote(ctx context.Context, symbol string) (models.Quote, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s&apikey=%s", c.baseURL, url.QueryEscape(symbol), c.apiKey)

	body, err := c.get(ctx, u)
	if err != nil {
		return models.Quote{}, err
	}

	var data quoteResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return models.Quote{}, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		return models.Quote{}, fmt.Errorf("market data API error: %s", data.Message)
	}
	if data.Price <= 0 {
		return models.Quote{}, fmt.Errorf("no usable quote returned")
	}

	ts := time.Now()
	if data.Timestamp > 0 {
		ts = time.Unix(data.Timestamp, 0)
	}

	return models.Quote{
		Symbol:    symbol,
		Price:     data.Price,
		Open:      data.Open,
		Volume:    data.Volume,
		Timestamp: ts,
	}, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpClient.HTTPStatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.UTC().Format("2006-01-02")
}

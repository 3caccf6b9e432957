package brokerage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Trader/models"
)

func newHTTPBrokerServer(t *testing.T, handler http.Handler) *HTTPBroker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPBroker(HTTPBrokerOptions{
		BaseURL:        srv.URL,
		APIKey:         "key",
		APISecret:      "secret",
		RequestTimeout: 5 * time.Second,
		RequestsPerSec: 100,
	})
}

func TestHTTPBrokerAccount(t *testing.T) {
	b := newHTTPBrokerServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		w.Write([]byte(`{"buying_power": "25000.50", "equity": "30000"}`))
	}))

	acct, err := b.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25000.50, acct.BuyingPower)
	assert.Equal(t, 30000.0, acct.Equity)
}

func TestHTTPBrokerOrderFilled(t *testing.T) {
	b := newHTTPBrokerServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/orders", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AAPL", req["symbol"])
		assert.Equal(t, "10", req["qty"])
		assert.Equal(t, "buy", req["side"])
		assert.Equal(t, "market", req["type"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"id": "ord-1",
			"status": "filled",
			"filled_qty": "10",
			"filled_avg_price": "94.12",
			"filled_at": "2024-03-04T14:30:00Z"
		}`))
	}))

	fill, err := b.PlaceMarketOrder(context.Background(), models.Order{
		Symbol: "AAPL", Side: models.OrderBuy, Quantity: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), fill.Quantity)
	assert.Equal(t, 94.12, fill.Price)
	assert.Equal(t, time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC), fill.Timestamp.UTC())
}

func TestHTTPBrokerRejectionMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		message string
		want    RejectReason
	}{
		{"insufficient funds", http.StatusForbidden, "insufficient buying power", RejectInsufficientFunds},
		{"rate limited", http.StatusTooManyRequests, "too many requests", RejectRateLimited},
		{"invalid symbol", http.StatusUnprocessableEntity, "could not find asset", RejectInvalidSymbol},
		{"market closed", http.StatusForbidden, "market is closed", RejectMarketClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newHTTPBrokerServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(errorResponse{Code: tc.status, Message: tc.message})
			}))

			_, err := b.PlaceMarketOrder(context.Background(), models.Order{
				Symbol: "AAPL", Side: models.OrderBuy, Quantity: 10,
			})
			require.Error(t, err)

			var rejected *OrderRejectedError
			require.True(t, errors.As(err, &rejected))
			assert.Equal(t, tc.want, rejected.Reason)
		})
	}
}

func TestHTTPBrokerAcceptedButUnfilled(t *testing.T) {
	b := newHTTPBrokerServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "ord-2", "status": "pending_new", "filled_qty": "0", "filled_avg_price": "0"}`))
	}))

	_, err := b.PlaceMarketOrder(context.Background(), models.Order{
		Symbol: "AAPL", Side: models.OrderBuy, Quantity: 10,
	})
	require.Error(t, err)

	var rejected *OrderRejectedError
	assert.False(t, errors.As(err, &rejected), "unfilled accepted order is an error, not a rejection")
}

package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "dGVzdC1zZWNyZXQ=" // base64("test-secret")

func newTestClient(srv *httptest.Server) *Client {
	c := New(Config{
		APIKey:    "test-key",
		APISecret: testSecret,
		BaseURL:   srv.URL,
	})
	c.nonce = func() int64 { return 1700000000000000001 }
	return c
}

func TestTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Ticker", r.URL.Path)
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("pair"))
		fmt.Fprint(w, `{"error":[],"result":{"XXBTZUSD":{"c":["50123.40000","0.01000000"]}}}`)
	}))
	defer srv.Close()

	price, err := newTestClient(srv).Ticker(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("50123.4")))
}

func TestTickerVenueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":["EQuery:Unknown asset pair"],"result":{}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Ticker(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown asset pair")
}

func TestOHLC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/OHLC", r.URL.Path)
		assert.Equal(t, "60", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `{"error":[],"result":{"XXBTZUSD":[
			[1700000000,"100.0","110.0","95.0","105.0","102.0","12.5",42],
			[1700003600,"105.0","120.0","104.0","118.0","111.0","9.1",37]
		],"last":1700003600}}`)
	}))
	defer srv.Close()

	candles, err := newTestClient(srv).OHLC(context.Background(), "XBTUSD", 60)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.EqualValues(t, 1700000000, candles[0].Time)
	assert.Equal(t, 105.0, candles[0].Close)
	assert.Equal(t, 118.0, candles[1].Close)
}

func TestBalanceSignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/private/Balance", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("API-Key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		nonce := form.Get("nonce")
		assert.NotEmpty(t, nonce)

		// Recompute the signature the venue would verify.
		key, err := base64.StdEncoding.DecodeString(testSecret)
		require.NoError(t, err)
		inner := sha256.Sum256([]byte(nonce + string(body)))
		mac := hmac.New(sha512.New, key)
		mac.Write([]byte("/0/private/Balance"))
		mac.Write(inner[:])
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, r.Header.Get("API-Sign"))

		fmt.Fprint(w, `{"error":[],"result":{"ZUSD":"1000.0000","XXBT":"0.02500000"}}`)
	}))
	defer srv.Close()

	balances, err := newTestClient(srv).Balance(context.Background())
	require.NoError(t, err)
	assert.True(t, balances["ZUSD"].Equal(decimal.RequireFromString("1000")))
	assert.True(t, balances["XXBT"].Equal(decimal.RequireFromString("0.025")))
}

func TestBalanceRequiresCredentials(t *testing.T) {
	c := New(Config{BaseURL: "http://unused"})
	_, err := c.Balance(context.Background())
	assert.Error(t, err)
}

func TestAddOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		assert.Equal(t, "XBTUSD", form.Get("pair"))
		assert.Equal(t, "buy", form.Get("type"))
		assert.Equal(t, "limit", form.Get("ordertype"))
		assert.Equal(t, "50000", form.Get("price"))
		assert.Equal(t, "0.002", form.Get("volume"))
		fmt.Fprint(w, `{"error":[],"result":{"txid":["OABC12-DEF34-GHI56"],"descr":{"order":"buy 0.002 XBTUSD @ limit 50000"}}}`)
	}))
	defer srv.Close()

	txid, err := newTestClient(srv).AddOrder(context.Background(), OrderRequest{
		Pair:      "XBTUSD",
		Side:      "buy",
		OrderType: "limit",
		Price:     decimal.RequireFromString("50000"),
		Volume:    decimal.RequireFromString("0.002"),
	})
	require.NoError(t, err)
	assert.Equal(t, "OABC12-DEF34-GHI56", txid)
}

func TestMarketOrderOmitsPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		assert.Equal(t, "market", form.Get("ordertype"))
		assert.Empty(t, form.Get("price"))
		fmt.Fprint(w, `{"error":[],"result":{"txid":["OXYZ99-ABC11-DEF22"]}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).AddOrder(context.Background(), OrderRequest{
		Pair:      "XBTUSD",
		Side:      "sell",
		OrderType: "market",
		Volume:    decimal.RequireFromString("0.002"),
	})
	require.NoError(t, err)
}

func TestQueryOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":[],"result":{"OABC12-DEF34-GHI56":{
			"status":"closed","vol":"0.002","vol_exec":"0.002","price":"50010.5"}}}`)
	}))
	defer srv.Close()

	info, err := newTestClient(srv).QueryOrder(context.Background(), "OABC12-DEF34-GHI56")
	require.NoError(t, err)
	assert.True(t, info.FullyFilled())
	assert.True(t, info.AvgPrice.Equal(decimal.RequireFromString("50010.5")))
}

func TestPartialFillIsNotFull(t *testing.T) {
	info := OrderInfo{
		Status:     "closed",
		Volume:     decimal.RequireFromString("0.002"),
		VolumeExec: decimal.RequireFromString("0.001"),
	}
	assert.False(t, info.FullyFilled())

	info.Status = "open"
	info.VolumeExec = info.Volume
	assert.False(t, info.FullyFilled())
}

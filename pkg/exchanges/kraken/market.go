package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

// Ticker returns the last traded price for the pair.
func (c *Client) Ticker(ctx context.Context, pair string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("pair", pair)

	result, err := c.doPublic(ctx, "/0/public/Ticker", params)
	if err != nil {
		return decimal.Zero, err
	}

	// Keyed by Kraken's canonical pair name, which may differ from the
	// requested one (XBTUSD -> XXBTZUSD).
	var pairs map[string]struct {
		Close []string `json:"c"`
	}
	if err := json.Unmarshal(result, &pairs); err != nil {
		return decimal.Zero, fmt.Errorf("kraken: decode ticker: %w", err)
	}
	for _, t := range pairs {
		if len(t.Close) == 0 {
			continue
		}
		price, err := decimal.NewFromString(t.Close[0])
		if err != nil {
			return decimal.Zero, fmt.Errorf("kraken: parse last price: %w", err)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("kraken: no ticker data for %s", pair)
}

// Candle is one OHLC bar.
type Candle struct {
	Time  int64
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// OHLC returns up to 720 bars of interval minutes each, oldest first.
func (c *Client) OHLC(ctx context.Context, pair string, interval int) ([]Candle, error) {
	params := url.Values{}
	params.Set("pair", pair)
	params.Set("interval", strconv.Itoa(interval))

	result, err := c.doPublic(ctx, "/0/public/OHLC", params)
	if err != nil {
		return nil, err
	}

	// Result mixes the pair key with a "last" cursor; decode loosely.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("kraken: decode ohlc: %w", err)
	}

	for key, val := range raw {
		if key == "last" {
			continue
		}
		// Rows mix numeric timestamps with string prices:
		// [time, "open", "high", "low", "close", "vwap", "volume", count].
		var rows [][]any
		if err := json.Unmarshal(val, &rows); err != nil {
			return nil, fmt.Errorf("kraken: decode ohlc rows: %w", err)
		}
		candles := make([]Candle, 0, len(rows))
		for _, row := range rows {
			if len(row) < 5 {
				continue
			}
			candles = append(candles, Candle{
				Time:  int64(toFloat(row[0])),
				Open:  toFloat(row[1]),
				High:  toFloat(row[2]),
				Low:   toFloat(row[3]),
				Close: toFloat(row[4]),
			})
		}
		return candles, nil
	}
	return nil, fmt.Errorf("kraken: no ohlc data for %s", pair)
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

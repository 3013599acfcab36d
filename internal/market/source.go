// Package market supplies price data to the engine: the latest trade price
// and the close-price history the indicators run over.
package market

import (
	"context"

	"github.com/shopspring/decimal"

	"swingbot/pkg/exchanges/kraken"
)

// Source provides market data for the traded pair. Both calls are bounded
// by the caller's context.
type Source interface {
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
	CloseHistory(ctx context.Context) ([]float64, error)
}

// KrakenSource reads prices from the Kraken public API. No credentials are
// needed, which lets paper mode run against real market data.
type KrakenSource struct {
	client   *kraken.Client
	pair     string
	interval int // candle size in minutes
}

func NewKrakenSource(client *kraken.Client, pair string, interval int) *KrakenSource {
	return &KrakenSource{client: client, pair: pair, interval: interval}
}

func (s *KrakenSource) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	return s.client.Ticker(ctx, s.pair)
}

func (s *KrakenSource) CloseHistory(ctx context.Context) ([]float64, error) {
	candles, err := s.client.OHLC(ctx, s.pair, s.interval)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes, nil
}

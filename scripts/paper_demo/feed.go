package main

import (
	"context"

	"github.com/shopspring/decimal"
)

// trendingFeed serves a scripted price path: a steady climb that lets the
// entry gates open, a further run-up that ratchets the stop, then a drop
// sharp enough to trigger it.
type trendingFeed struct {
	closes []float64
	path   []float64
	step   int
}

func newTrendingFeed() *trendingFeed {
	// History: a gentle uptrend with alternating closes at the end so the
	// RSI settles inside the entry band.
	closes := make([]float64, 0, 114)
	for i := 0; i < 100; i++ {
		closes = append(closes, 50000+float64(i)*20)
	}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			closes = append(closes, 52000)
		} else {
			closes = append(closes, 51980)
		}
	}
	return &trendingFeed{
		closes: closes,
		path:   []float64{52000, 52400, 52900, 53300, 53600, 53400, 52700, 52000, 51500, 51000, 50500, 50000},
	}
}

func (f *trendingFeed) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	i := f.step
	if i >= len(f.path) {
		i = len(f.path) - 1
	}
	f.step++
	return decimal.NewFromFloat(f.path[i]), nil
}

func (f *trendingFeed) CloseHistory(ctx context.Context) ([]float64, error) {
	return f.closes, nil
}

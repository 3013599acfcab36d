package indicators

// EMA calculates the exponential moving average over the full series and
// returns the latest value. Returns 0 when there is not enough history.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}

	// Seed with the SMA of the first period, then smooth forward.
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	ema := seed / float64(period)

	alpha := 2.0 / (float64(period) + 1.0)
	for _, v := range values[period:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}

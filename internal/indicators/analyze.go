package indicators

import (
	"errors"

	"swingbot/pkg/config"
)

// ErrInsufficientHistory indicates the price history is too short for the
// configured indicator periods.
var ErrInsufficientHistory = errors.New("insufficient price history")

// FeatureVector is the indicator snapshot fed into the decision engine.
type FeatureVector struct {
	EMAFast float64
	EMASlow float64
	RSI     float64
}

// TrendUp reports whether the fast average leads the slow one.
func (f FeatureVector) TrendUp() bool {
	return f.EMAFast > f.EMASlow
}

// Analyze computes the feature vector from an ordered close-price series.
// It is pure and deterministic.
func Analyze(closes []float64, strat config.StrategyConfig) (FeatureVector, error) {
	need := strat.EMASlowPeriod
	if strat.RSIPeriod+1 > need {
		need = strat.RSIPeriod + 1
	}
	if len(closes) < need {
		return FeatureVector{}, ErrInsufficientHistory
	}

	return FeatureVector{
		EMAFast: EMA(closes, strat.EMAFastPeriod),
		EMASlow: EMA(closes, strat.EMASlowPeriod),
		RSI:     RSI(closes, strat.RSIPeriod),
	}, nil
}

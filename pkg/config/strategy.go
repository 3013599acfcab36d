package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyConfig holds the gate thresholds for the decision rules.
type StrategyConfig struct {
	EMAFastPeriod int     `yaml:"ema_fast_period"`
	EMASlowPeriod int     `yaml:"ema_slow_period"`
	RSIPeriod     int     `yaml:"rsi_period"`
	BuyRSIMin     float64 `yaml:"buy_rsi_min"`
	BuyRSIMax     float64 `yaml:"buy_rsi_max"`
	SellRSIBelow  float64 `yaml:"sell_rsi_below"`
}

// DefaultStrategy returns the stock swing-trade thresholds.
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		EMAFastPeriod: 20,
		EMASlowPeriod: 50,
		RSIPeriod:     14,
		BuyRSIMin:     45,
		BuyRSIMax:     60,
		SellRSIBelow:  40,
	}
}

// LoadStrategy reads thresholds from a YAML file, falling back to defaults
// when path is empty.
func LoadStrategy(path string) (StrategyConfig, error) {
	strat := DefaultStrategy()
	if path == "" {
		return strat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return strat, err
	}
	if err := yaml.Unmarshal(data, &strat); err != nil {
		return strat, err
	}
	if err := strat.validate(); err != nil {
		return strat, err
	}
	return strat, nil
}

func (s StrategyConfig) validate() error {
	if s.EMAFastPeriod <= 0 || s.EMASlowPeriod <= 0 || s.RSIPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if s.EMAFastPeriod >= s.EMASlowPeriod {
		return fmt.Errorf("fast EMA period %d must be shorter than slow %d", s.EMAFastPeriod, s.EMASlowPeriod)
	}
	if s.BuyRSIMin >= s.BuyRSIMax {
		return fmt.Errorf("buy RSI band [%v,%v] is empty", s.BuyRSIMin, s.BuyRSIMax)
	}
	return nil
}

// Package stop implements the trailing-stop rule that protects accumulated
// gains: the stop rises with the market price but never falls.
package stop

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tracker computes trailing-stop levels for a long position. It holds no
// position state; callers pass the previous stop on each evaluation.
type Tracker struct {
	retention decimal.Decimal
}

// New validates the retention factor and returns a tracker. Factor must be
// strictly inside (0,1); 0.99 keeps the stop 1% below the high-water price.
func New(retention decimal.Decimal) (*Tracker, error) {
	one := decimal.NewFromInt(1)
	if retention.LessThanOrEqual(decimal.Zero) || retention.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("retention factor must be in (0,1), got %s", retention)
	}
	return &Tracker{retention: retention}, nil
}

// Initial returns the stop for a freshly opened position.
func (t *Tracker) Initial(entryPrice decimal.Decimal) decimal.Decimal {
	return entryPrice.Mul(t.retention)
}

// Advance returns the stop after observing price. The result is never below
// prev, which makes the stop sequence monotonic non-decreasing over the
// life of a position.
func (t *Tracker) Advance(prev, price decimal.Decimal) decimal.Decimal {
	candidate := price.Mul(t.retention)
	if candidate.GreaterThan(prev) {
		return candidate
	}
	return prev
}

// Triggered reports whether the position must be closed at price.
func (t *Tracker) Triggered(price, stop decimal.Decimal) bool {
	return price.LessThanOrEqual(stop)
}

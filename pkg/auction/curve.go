// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"errors"
	"math/big"
)

var (
	ErrZeroQuantity = errors.New("quantity must be positive")
)

// Unit is the fixed-point scale for unit prices: payment per 10^18 sale units.
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

const (
	secondsPerDay = 86400

	// maxDecayDays is the last day on which the curve formula still yields a
	// nonzero price for quantities above Unit. Beyond it the floor applies.
	maxDecayDays = 36
)

// curveDenom is the per-day interpolation denominator. Within a day the
// price falls linearly from 10^(36-d) to 10^(35-d), i.e. by a factor
// (864000 - 9r)/864000 at r seconds into day d.
var curveDenom = big.NewInt(864000)

var bigOne = big.NewInt(1)

// Curve is the deterministic price decay schedule for one auction. It is
// pure: every output is a function of the construction-time quantity and
// the elapsed time passed in. All arithmetic is exact integer math.
type Curve struct {
	quantity *big.Int
	minPrice *big.Int
}

// NewCurve derives a curve for the given sale quantity. The floor price is
// max(1, ceil(Unit/quantity)) so that the target payment total never rounds
// to zero however small the quantity is.
func NewCurve(quantity *big.Int) (*Curve, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return nil, ErrZeroQuantity
	}
	minPrice := ceilDiv(new(big.Int).Set(Unit), quantity)
	if minPrice.Cmp(bigOne) < 0 {
		minPrice.Set(bigOne)
	}
	return &Curve{
		quantity: new(big.Int).Set(quantity),
		minPrice: minPrice,
	}, nil
}

// Quantity returns the sale quantity the curve was derived from.
func (c *Curve) Quantity() *big.Int {
	return new(big.Int).Set(c.quantity)
}

// MinPrice returns the floor unit price.
func (c *Curve) MinPrice() *big.Int {
	return new(big.Int).Set(c.minPrice)
}

// Price returns the unit price elapsed seconds after the start. The price
// starts at 10^36, drops by a factor of ten every day with linear
// interpolation inside each day, and clamps at the floor. Monotonically
// non-increasing in elapsed.
func (c *Curve) Price(elapsed int64) *big.Int {
	if elapsed < 0 {
		elapsed = 0
	}
	days := elapsed / secondsPerDay
	if days > maxDecayDays {
		return new(big.Int).Set(c.minPrice)
	}
	rem := elapsed % secondsPerDay

	// 10^(36-days) * (864000 - 9*rem) / 864000
	p := new(big.Int).Exp(big.NewInt(10), big.NewInt(maxDecayDays-days), nil)
	p.Mul(p, big.NewInt(864000-9*rem))
	p.Div(p, curveDenom)

	if p.Cmp(c.minPrice) < 0 {
		return new(big.Int).Set(c.minPrice)
	}
	return p
}

// TotalToEnd returns the payment total that would exhaust the full quantity
// at the current price: Price(elapsed) * quantity / Unit, rounded toward
// zero. The floor price guarantees this never rounds to zero.
func (c *Curve) TotalToEnd(elapsed int64) *big.Int {
	total := c.Price(elapsed)
	total.Mul(total, c.quantity)
	return total.Div(total, Unit)
}

// ceilDiv computes ceil(a/b) for positive a, b. It mutates and returns a.
func ceilDiv(a, b *big.Int) *big.Int {
	a.Add(a, b)
	a.Sub(a, bigOne)
	return a.Div(a, b)
}

// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Snapshot is the serializable state of an auction at one instant. Big
// amounts travel as decimal strings. A snapshot is sufficient to recompute
// the live price later, because the curve is a pure function of quantity
// and elapsed time.
type Snapshot struct {
	ID            string `json:"id"`
	SaleAsset     string `json:"sale_asset"`
	PaymentAsset  string `json:"payment_asset"`
	Beneficiary   string `json:"beneficiary"`
	Quantity      string `json:"quantity"`
	MinPrice      string `json:"min_price"`
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	Started       bool   `json:"started"`
	Finalized     bool   `json:"finalized"`
	Closed        bool   `json:"closed"`
	ReceivedTotal string `json:"received_total"`
	FinalPrice    string `json:"final_price"`
	BidCount      uint64 `json:"bid_count"`
	ClaimCount    uint64 `json:"claim_count"`
}

// Snapshot captures the auction's current state.
func (a *Auction) Snapshot() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &Snapshot{
		ID:            a.id.String(),
		SaleAsset:     a.saleAsset.String(),
		PaymentAsset:  a.paymentAsset.String(),
		Beneficiary:   a.beneficiary.String(),
		Quantity:      a.curve.quantity.String(),
		MinPrice:      a.curve.minPrice.String(),
		StartTime:     a.startTime,
		EndTime:       a.endTime,
		Started:       a.started,
		Finalized:     a.finalized,
		Closed:        a.closed,
		ReceivedTotal: a.receivedTotal.String(),
		FinalPrice:    a.finalPrice.String(),
		BidCount:      a.bidCount,
		ClaimCount:    a.claimCount,
	}
}

// PriceAt recomputes the unit price at the given unix time from the
// snapshot alone. Once finalized the frozen clearing price is returned.
func (s *Snapshot) PriceAt(now int64) (*big.Int, error) {
	if !s.Started {
		return nil, ErrNotStarted
	}
	if s.Finalized {
		price, ok := new(big.Int).SetString(s.FinalPrice, 10)
		if !ok {
			return nil, fmt.Errorf("corrupt final price %q", s.FinalPrice)
		}
		return price, nil
	}
	quantity, ok := new(big.Int).SetString(s.Quantity, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt quantity %q", s.Quantity)
	}
	curve, err := NewCurve(quantity)
	if err != nil {
		return nil, err
	}
	return curve.Price(now - s.StartTime), nil
}

// DisplayAmount renders a fixed-point Unit-scale value as a human decimal,
// e.g. 250000000000000000 -> "0.25". Display only; never fed back into
// settlement arithmetic.
func DisplayAmount(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -18)
}

// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/dutch/pkg/ids"
	"github.com/luxfi/dutch/pkg/log"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted   = errors.New("auction already started")
	ErrNotStarted       = errors.New("auction not started")
	ErrZeroBid          = errors.New("bid amount must be positive")
	ErrBiddingClosed    = errors.New("auction finalized, bidding closed")
	ErrTargetReached    = errors.New("sale target already reached")
	ErrTargetNotReached = errors.New("sale target not reached")
	ErrAlreadyFinalized = errors.New("auction already finalized")
	ErrNotFinalized     = errors.New("auction not finalized")
	ErrNothingToClaim   = errors.New("no outstanding bid to claim")
	ErrUnclaimedBids    = errors.New("unclaimed bids remain")
	ErrResidualBalance  = errors.New("residual payment balance held by auction")
	ErrAuctionClosed    = errors.New("auction closed")
	ErrEscrowTransfer   = errors.New("escrow transfer failed")
)

// AssetLedger is the external asset collaborator. Balances it reports are
// authoritative; the auction reconciles its own accounting against them at
// close time rather than trusting its books alone.
type AssetLedger interface {
	// Transfer moves amount of asset out of the from account.
	Transfer(asset, from, to ids.ID, amount *big.Int) error
	// TransferFrom moves amount of asset from owner to to, spending the
	// allowance owner previously granted to spender.
	TransferFrom(asset, spender, owner, to ids.ID, amount *big.Int) error
	// BalanceOf returns the live balance of account in asset.
	BalanceOf(asset, account ids.ID) *big.Int
}

// Clock supplies the current time. It is sampled once per operation.
type Clock func() time.Time

// Config carries the immutable parameters of one auction instance.
type Config struct {
	ID           ids.ID // the auction's own escrow account
	SaleAsset    ids.ID
	PaymentAsset ids.ID
	Beneficiary  ids.ID // receives proceeds at finalization
	Quantity     *big.Int
	Ledger       AssetLedger
	Clock        Clock
	Log          log.Logger
}

// Auction sells a fixed quantity of the sale asset for the payment asset at
// a price that decays until aggregate bids cover the quantity, then clears
// every bidder at a single frozen price. All mutation flows through the
// gated operations; each one is atomic and rejects cleanly when its
// lifecycle precondition does not hold.
type Auction struct {
	mu sync.Mutex

	id           ids.ID
	saleAsset    ids.ID
	paymentAsset ids.ID
	beneficiary  ids.ID

	curve  *Curve
	ledger AssetLedger
	clock  Clock
	log    log.Logger

	startTime int64 // unix seconds, set by Start
	endTime   int64 // unix seconds, set once when the target is reached

	started   bool
	finalized bool
	closed    bool

	receivedTotal *big.Int
	finalPrice    *big.Int

	bids       map[ids.ID]*big.Int
	bidCount   uint64
	claimCount uint64
}

// New creates an auction bound to an already escrowed quantity of the sale
// asset. It does not start the clock; the registry calls Start.
func New(cfg Config) (*Auction, error) {
	if cfg.SaleAsset.IsZero() {
		return nil, errors.New("sale asset must not be the zero ID")
	}
	if cfg.SaleAsset == cfg.PaymentAsset {
		return nil, errors.New("sale asset must differ from payment asset")
	}
	curve, err := NewCurve(cfg.Quantity)
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.NoOp()
	}
	return &Auction{
		id:            cfg.ID,
		saleAsset:     cfg.SaleAsset,
		paymentAsset:  cfg.PaymentAsset,
		beneficiary:   cfg.Beneficiary,
		curve:         curve,
		ledger:        cfg.Ledger,
		clock:         clock,
		log:           logger,
		receivedTotal: new(big.Int),
		finalPrice:    new(big.Int),
		bids:          make(map[ids.ID]*big.Int),
	}, nil
}

// Start begins the price decay. It fires exactly once.
func (a *Auction) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrAuctionClosed
	}
	if a.started {
		return ErrAlreadyStarted
	}

	a.startTime = a.clock().Unix()
	a.started = true

	a.log.Info("auction started",
		zap.String("auction", a.id.String()),
		zap.String("saleAsset", a.saleAsset.String()),
		zap.String("quantity", a.curve.quantity.String()),
		zap.Int64("startTime", a.startTime))

	return nil
}

// Price returns the current unit price.
func (a *Auction) Price() (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrAuctionClosed
	}
	if !a.started {
		return nil, ErrNotStarted
	}
	if a.finalized {
		return new(big.Int).Set(a.finalPrice), nil
	}
	return a.curve.Price(a.clock().Unix() - a.startTime), nil
}

// TotalToEnd returns the payment total that would end the auction right now.
func (a *Auction) TotalToEnd() (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrAuctionClosed
	}
	if !a.started {
		return nil, ErrNotStarted
	}
	return a.curve.TotalToEnd(a.clock().Unix() - a.startTime), nil
}

// Bid commits payment asset from the bidder. If the amount overshoots the
// remaining room under the current target, only the room is accepted; the
// escrow transfer is limited to the accepted amount, so the surplus never
// leaves the bidder. Returns the accepted amount.
func (a *Auction) Bid(bidder ids.ID, amount *big.Int) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrAuctionClosed
	}
	if !a.started {
		return nil, ErrNotStarted
	}
	if a.finalized {
		return nil, ErrBiddingClosed
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroBid
	}

	now := a.clock().Unix()
	target := a.curve.TotalToEnd(now - a.startTime)

	room := new(big.Int).Sub(target, a.receivedTotal)
	if room.Sign() <= 0 {
		return nil, ErrTargetReached
	}

	accepted := new(big.Int).Set(amount)
	if accepted.Cmp(room) > 0 {
		accepted.Set(room)
	}

	// Commit all internal state before touching the external ledger so a
	// reentrant transfer observes only post-mutation state.
	prev := a.bids[bidder]
	firstBid := prev == nil
	prevEndTime := a.endTime

	if firstBid {
		a.bids[bidder] = new(big.Int).Set(accepted)
		a.bidCount++
	} else {
		prev.Add(prev, accepted)
	}
	a.receivedTotal.Add(a.receivedTotal, accepted)
	if a.endTime == 0 && a.receivedTotal.Cmp(target) == 0 {
		a.endTime = now
	}

	if err := a.ledger.TransferFrom(a.paymentAsset, a.id, bidder, a.id, accepted); err != nil {
		// Restore the exact prior state; a rejected call leaves no trace.
		if firstBid {
			delete(a.bids, bidder)
			a.bidCount--
		} else {
			prev.Sub(prev, accepted)
		}
		a.receivedTotal.Sub(a.receivedTotal, accepted)
		a.endTime = prevEndTime
		return nil, fmt.Errorf("%w: %v", ErrEscrowTransfer, err)
	}

	a.log.Debug("bid accepted",
		zap.String("auction", a.id.String()),
		zap.String("bidder", bidder.String()),
		zap.String("accepted", accepted.String()),
		zap.Bool("clipped", accepted.Cmp(amount) < 0),
		zap.Bool("targetReached", a.endTime != 0))

	return new(big.Int).Set(accepted), nil
}

// Finalize freezes the clearing price once the target has been reached and
// forwards the proceeds to the beneficiary. The price is the minimal unit
// price at which the received total clears at most the full quantity:
// ceil(Unit * receivedTotal / quantity). Rounding up here, and down on the
// claim side, bounds aggregate entitlements by the quantity.
func (a *Auction) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrAuctionClosed
	}
	if !a.started {
		return ErrNotStarted
	}
	if a.finalized {
		return ErrAlreadyFinalized
	}
	if a.endTime == 0 {
		return ErrTargetNotReached
	}

	price := new(big.Int).Mul(Unit, a.receivedTotal)
	ceilDiv(price, a.curve.quantity)

	a.finalPrice.Set(price)
	a.finalized = true

	proceeds := new(big.Int).Set(a.receivedTotal)
	if err := a.ledger.Transfer(a.paymentAsset, a.id, a.beneficiary, proceeds); err != nil {
		a.finalized = false
		a.finalPrice.SetInt64(0)
		return fmt.Errorf("%w: %v", ErrEscrowTransfer, err)
	}

	a.log.Info("auction finalized",
		zap.String("auction", a.id.String()),
		zap.String("finalPrice", a.finalPrice.String()),
		zap.String("receivedTotal", a.receivedTotal.String()))

	return nil
}

// Claim converts the bidder's frozen commitment into sale asset at the
// clearing price, floor rounded, and retires the commitment.
func (a *Auction) Claim(bidder ids.ID) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrAuctionClosed
	}
	if !a.finalized {
		return nil, ErrNotFinalized
	}
	bid := a.bids[bidder]
	if bid == nil || bid.Sign() == 0 {
		return nil, ErrNothingToClaim
	}

	entitlement := new(big.Int).Mul(Unit, bid)
	entitlement.Div(entitlement, a.finalPrice)

	retired := new(big.Int).Set(bid)
	delete(a.bids, bidder)
	a.claimCount++

	if err := a.ledger.Transfer(a.saleAsset, a.id, bidder, entitlement); err != nil {
		a.bids[bidder] = retired
		a.claimCount--
		return nil, fmt.Errorf("%w: %v", ErrEscrowTransfer, err)
	}

	a.log.Debug("claim paid",
		zap.String("auction", a.id.String()),
		zap.String("bidder", bidder.String()),
		zap.String("entitlement", entitlement.String()))

	return entitlement, nil
}

// Close destroys the auction once every entitlement has been claimed and no
// payment asset remains escrowed. The balance check consults the ledger, not
// the auction's own books, so stray transfers block teardown. Residual sale
// asset dust from floor rounding is returned to the beneficiary. Terminal:
// every later operation fails.
func (a *Auction) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrAuctionClosed
	}
	if !a.finalized {
		return ErrNotFinalized
	}
	if a.claimCount != a.bidCount {
		return ErrUnclaimedBids
	}
	if a.ledger.BalanceOf(a.paymentAsset, a.id).Sign() != 0 {
		return ErrResidualBalance
	}

	a.closed = true
	a.bids = nil

	dust := a.ledger.BalanceOf(a.saleAsset, a.id)
	if dust.Sign() > 0 {
		if err := a.ledger.Transfer(a.saleAsset, a.id, a.beneficiary, dust); err != nil {
			a.log.Warn("dust return failed",
				zap.String("auction", a.id.String()),
				zap.Error(err))
		}
	}

	a.log.Info("auction closed", zap.String("auction", a.id.String()))

	return nil
}

// ID returns the auction's escrow account ID.
func (a *Auction) ID() ids.ID { return a.id }

// SaleAsset returns the asset being sold.
func (a *Auction) SaleAsset() ids.ID { return a.saleAsset }

// PaymentAsset returns the asset bidders pay with.
func (a *Auction) PaymentAsset() ids.ID { return a.paymentAsset }

// Quantity returns the escrowed sale quantity.
func (a *Auction) Quantity() *big.Int { return a.curve.Quantity() }

// MinPrice returns the curve's floor unit price.
func (a *Auction) MinPrice() *big.Int { return a.curve.MinPrice() }

// Started reports whether Start has fired.
func (a *Auction) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Finalized reports whether the clearing price has been frozen.
func (a *Auction) Finalized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalized
}

// Closed reports whether the auction has been destroyed.
func (a *Auction) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// StartTime returns the unix time the auction started, zero before Start.
func (a *Auction) StartTime() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startTime
}

// EndTime returns the unix time the target was reached, zero until then.
func (a *Auction) EndTime() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.endTime
}

// ReceivedTotal returns the payment total accepted so far.
func (a *Auction) ReceivedTotal() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.receivedTotal)
}

// FinalPrice returns the clearing price, zero until finalized.
func (a *Auction) FinalPrice() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.finalPrice)
}

// BidOf returns the bidder's outstanding commitment, zero if none.
func (a *Auction) BidOf(bidder ids.ID) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if bid := a.bids[bidder]; bid != nil {
		return new(big.Int).Set(bid)
	}
	return new(big.Int)
}

// BidCount returns the number of distinct bidders.
func (a *Auction) BidCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bidCount
}

// ClaimCount returns the number of bidders who have claimed.
func (a *Auction) ClaimCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.claimCount
}

// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tests

import (
	"math/big"
	"testing"
	"time"

	"github.com/luxfi/dutch/pkg/auction"
	"github.com/luxfi/dutch/pkg/ids"
	"github.com/luxfi/dutch/pkg/ledger"
	"github.com/luxfi/dutch/pkg/log"
	"github.com/luxfi/dutch/pkg/registry"
	"github.com/luxfi/dutch/pkg/store"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() time.Time {
	return time.Unix(c.now, 0)
}

// TestFullLifecycle drives one auction from creation through destruction:
// three bidders each commit an equal third of the opening target, the third
// bid closes the sale, finalization fixes the clearing price and forwards
// the proceeds, every bidder claims a proportional share, and close tears
// the instance down.
func TestFullLifecycle(t *testing.T) {
	require := require.New(t)
	logger := log.NoOp()

	// 1. Wire the collaborators.
	t.Log("=== Phase 1: Initialize Components ===")

	l := ledger.New()
	clock := &fakeClock{now: 1700000000}

	st, err := store.New("memory", "")
	require.NoError(err)
	defer st.Close()

	networkAccount := ids.GenerateTestID()
	paymentAsset := ids.GenerateTestID()

	reg := registry.New(registry.Config{
		Account:      networkAccount,
		PaymentAsset: paymentAsset,
		Ledger:       l,
		Store:        st,
		Clock:        clock.Now,
		Log:          logger,
	})
	require.NotNil(reg)

	// 2. Escrow the sale quantity and create the auction.
	t.Log("=== Phase 2: Create Auction ===")

	saleAsset := ids.GenerateTestID()
	quantity := new(big.Int).Mul(big.NewInt(3), new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil))
	require.NoError(l.Mint(saleAsset, networkAccount, quantity))

	auc, err := reg.StartAuction(saleAsset)
	require.NoError(err)
	require.True(auc.Started())
	require.Equal("1", auc.MinPrice().String())

	// Opening price is 1e36 per unit, so the full sellout target is 3e54.
	target, err := auc.TotalToEnd()
	require.NoError(err)
	wantTarget, _ := new(big.Int).SetString("3000000000000000000000000000000000000000000000000000000", 10)
	require.Equal(wantTarget.String(), target.String())

	// 3. Three bidders fund and commit equal thirds.
	t.Log("=== Phase 3: Bidding ===")

	third := new(big.Int).Div(target, big.NewInt(3))
	bidders := []ids.ID{ids.GenerateTestID(), ids.GenerateTestID(), ids.GenerateTestID()}
	for _, b := range bidders {
		require.NoError(l.Mint(paymentAsset, b, third))
		require.NoError(l.Approve(paymentAsset, b, auc.ID(), third))
	}

	for i, b := range bidders {
		accepted, err := auc.Bid(b, third)
		require.NoError(err)
		require.Equal(third.String(), accepted.String())

		if i < 2 {
			require.Zero(auc.EndTime(), "endTime set before the target was reached")
		}
	}

	// The third bid reached the target exactly.
	require.Equal(clock.now, auc.EndTime())
	require.Equal(uint64(3), auc.BidCount())
	require.Equal(target.String(), auc.ReceivedTotal().String())

	// Late bidders are turned away.
	late := ids.GenerateTestID()
	require.NoError(l.Mint(paymentAsset, late, big.NewInt(1)))
	require.NoError(l.Approve(paymentAsset, late, auc.ID(), big.NewInt(1)))
	_, err = auc.Bid(late, big.NewInt(1))
	require.ErrorIs(err, auction.ErrTargetReached)

	// 4. Finalize: clearing price fixed, proceeds forwarded.
	t.Log("=== Phase 4: Finalize ===")

	require.NoError(auc.Finalize())
	require.True(auc.Finalized())

	// ceil(1e18 * 3e54 / 3e36) = 1e36.
	wantPrice := new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)
	require.Equal(wantPrice.String(), auc.FinalPrice().String())
	require.Equal(target.String(), l.BalanceOf(paymentAsset, networkAccount).String())

	require.ErrorIs(auc.Finalize(), auction.ErrAlreadyFinalized)
	require.NoError(reg.Persist(auc.ID()))

	// 5. Claims: each bidder gets a proportional share of the quantity.
	t.Log("=== Phase 5: Claims ===")

	// Close is blocked until every bidder has claimed.
	require.ErrorIs(auc.Close(), auction.ErrUnclaimedBids)

	shareWant := new(big.Int).Div(quantity, big.NewInt(3))
	for i, b := range bidders {
		share, err := auc.Claim(b)
		require.NoError(err)
		require.Equal(shareWant.String(), share.String())
		require.Equal(shareWant.String(), l.BalanceOf(saleAsset, b).String())
		require.Equal(uint64(i+1), auc.ClaimCount())

		_, err = auc.Claim(b)
		require.ErrorIs(err, auction.ErrNothingToClaim)
	}

	// 6. Teardown.
	t.Log("=== Phase 6: Close ===")

	require.NoError(auc.Close())
	require.True(auc.Closed())

	_, err = auc.Bid(bidders[0], big.NewInt(1))
	require.ErrorIs(err, auction.ErrAuctionClosed)

	require.NoError(reg.Persist(auc.ID()))
	reg.Remove(auc.ID())
	_, ok := reg.Get(auc.ID())
	require.False(ok)

	// The persisted record survives for the query side, closed.
	snap, err := st.GetAuction(auc.ID().String())
	require.NoError(err)
	require.True(snap.Closed)
	require.Equal(uint64(3), snap.BidCount)
	require.Equal(uint64(3), snap.ClaimCount)
}

// TestLifecycleWithDecay lets the price decay between bids and checks that
// the clearing price still reconciles every claim against the escrow.
func TestLifecycleWithDecay(t *testing.T) {
	require := require.New(t)

	l := ledger.New()
	clock := &fakeClock{now: 1700000000}

	st, err := store.New("memory", "")
	require.NoError(err)
	defer st.Close()

	networkAccount := ids.GenerateTestID()
	paymentAsset := ids.GenerateTestID()
	reg := registry.New(registry.Config{
		Account:      networkAccount,
		PaymentAsset: paymentAsset,
		Ledger:       l,
		Store:        st,
		Clock:        clock.Now,
		Log:          log.NoOp(),
	})

	saleAsset := ids.GenerateTestID()
	quantity := new(big.Int).Mul(big.NewInt(3), new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil))
	require.NoError(l.Mint(saleAsset, networkAccount, quantity))

	auc, err := reg.StartAuction(saleAsset)
	require.NoError(err)

	// Two weeks in, the price has decayed to 1e20 per unit.
	clock.now += 1382400
	target, err := auc.TotalToEnd()
	require.NoError(err)

	bidder := ids.GenerateTestID()
	overshoot := new(big.Int).Add(target, big.NewInt(12345))
	require.NoError(l.Mint(paymentAsset, bidder, overshoot))
	require.NoError(l.Approve(paymentAsset, bidder, auc.ID(), overshoot))

	accepted, err := auc.Bid(bidder, overshoot)
	require.NoError(err)
	require.Equal(target.String(), accepted.String())
	require.Equal("12345", l.BalanceOf(paymentAsset, bidder).String())

	require.NoError(auc.Finalize())

	share, err := auc.Claim(bidder)
	require.NoError(err)
	require.LessOrEqual(share.Cmp(quantity), 0)

	require.NoError(auc.Close())

	// All sale asset is accounted for: the bidder's share plus any dust
	// returned to the network account.
	total := new(big.Int).Add(share, l.BalanceOf(saleAsset, networkAccount))
	require.Equal(quantity.String(), total.String())
	require.Equal(0, l.BalanceOf(saleAsset, auc.ID()).Sign())
}

// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"testing"

	"github.com/luxfi/database"
	"github.com/luxfi/dutch/pkg/auction"
	"github.com/luxfi/dutch/pkg/ids"
	"github.com/stretchr/testify/require"
)

func testSnapshot(id string) *auction.Snapshot {
	return &auction.Snapshot{
		ID:            id,
		SaleAsset:     ids.GenerateTestID().String(),
		PaymentAsset:  ids.GenerateTestID().String(),
		Quantity:      "3000000000000000000000000000000000000",
		MinPrice:      "1",
		StartTime:     1700000000,
		Started:       true,
		ReceivedTotal: "0",
		FinalPrice:    "0",
	}
}

func TestAuctionRoundTrip(t *testing.T) {
	require := require.New(t)

	s, err := New("memory", "")
	require.NoError(err)
	defer s.Close()

	id := ids.GenerateTestID().String()
	snap := testSnapshot(id)
	require.NoError(s.SaveAuction(snap))

	got, err := s.GetAuction(id)
	require.NoError(err)
	require.Equal(snap, got)

	_, err = s.GetAuction(ids.GenerateTestID().String())
	require.ErrorIs(err, database.ErrNotFound)
}

func TestSaveOverwrites(t *testing.T) {
	require := require.New(t)

	s, err := New("memory", "")
	require.NoError(err)
	defer s.Close()

	id := ids.GenerateTestID().String()
	snap := testSnapshot(id)
	require.NoError(s.SaveAuction(snap))

	snap.Finalized = true
	snap.FinalPrice = "1000000000000000000000000000000000000"
	require.NoError(s.SaveAuction(snap))

	got, err := s.GetAuction(id)
	require.NoError(err)
	require.True(got.Finalized)
	require.Equal(snap.FinalPrice, got.FinalPrice)
}

func TestListAuctions(t *testing.T) {
	require := require.New(t)

	s, err := New("memory", "")
	require.NoError(err)
	defer s.Close()

	snaps, err := s.ListAuctions()
	require.NoError(err)
	require.Empty(snaps)

	require.NoError(s.SaveAuction(testSnapshot(ids.GenerateTestID().String())))
	require.NoError(s.SaveAuction(testSnapshot(ids.GenerateTestID().String())))
	require.NoError(s.SaveAuction(testSnapshot(ids.GenerateTestID().String())))

	snaps, err = s.ListAuctions()
	require.NoError(err)
	require.Len(snaps, 3)
}

func TestCooldownRecords(t *testing.T) {
	require := require.New(t)

	s, err := New("memory", "")
	require.NoError(err)
	defer s.Close()

	asset := ids.GenerateTestID()
	_, ok, err := s.GetLastStart(asset)
	require.NoError(err)
	require.False(ok)

	require.NoError(s.SetLastStart(asset, 1700000000))
	last, ok, err := s.GetLastStart(asset)
	require.NoError(err)
	require.True(ok)
	require.Equal(int64(1700000000), last)

	// Cooldown records do not collide with auction records.
	snaps, err := s.ListAuctions()
	require.NoError(err)
	require.Empty(snaps)
}

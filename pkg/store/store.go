// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"

	"github.com/luxfi/dutch/pkg/auction"
	"github.com/luxfi/dutch/pkg/ids"
)

var (
	auctionPrefix  = []byte("auction/")
	cooldownPrefix = []byte("cooldown/")
)

// Store persists auction snapshots and per-asset cooldown records using
// luxfi/database. The read side powers the query API; the cooldown records
// let the registry enforce its 30-day rule across restarts.
type Store struct {
	db database.Database
}

// New creates a store backed by the requested database.
func New(dbType string, path string) (*Store, error) {
	var db database.Database
	var err error

	switch dbType {
	case "memory":
		db = memdb.New()
	case "badger":
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, err
		}
	default:
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// SaveAuction writes the snapshot, keyed by auction ID.
func (s *Store) SaveAuction(snap *auction.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Put(auctionKey(snap.ID), data)
}

// GetAuction loads one snapshot. Returns database.ErrNotFound when the
// auction is unknown.
func (s *Store) GetAuction(id string) (*auction.Snapshot, error) {
	data, err := s.db.Get(auctionKey(id))
	if err != nil {
		return nil, err
	}
	snap := &auction.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("corrupt auction record %s: %w", id, err)
	}
	return snap, nil
}

// ListAuctions returns every persisted snapshot.
func (s *Store) ListAuctions() ([]*auction.Snapshot, error) {
	iter := s.db.NewIteratorWithPrefix(auctionPrefix)
	defer iter.Release()

	var snaps []*auction.Snapshot
	for iter.Next() {
		snap := &auction.Snapshot{}
		if err := json.Unmarshal(iter.Value(), snap); err != nil {
			return nil, fmt.Errorf("corrupt auction record %s: %w", iter.Key(), err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, iter.Error()
}

// SetLastStart records when an auction for the asset last started.
func (s *Store) SetLastStart(asset ids.ID, unix int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(unix))
	return s.db.Put(cooldownKey(asset), buf)
}

// GetLastStart returns the last start time for the asset. The second
// return is false when the asset has never been auctioned.
func (s *Store) GetLastStart(asset ids.ID) (int64, bool, error) {
	data, err := s.db.Get(cooldownKey(asset))
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("corrupt cooldown record for %s", asset)
	}
	return int64(binary.BigEndian.Uint64(data)), true, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func auctionKey(id string) []byte {
	return append(append([]byte{}, auctionPrefix...), id...)
}

func cooldownKey(asset ids.ID) []byte {
	return append(append([]byte{}, cooldownPrefix...), asset.Bytes()...)
}

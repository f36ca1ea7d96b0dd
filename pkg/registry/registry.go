// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/dutch/pkg/auction"
	"github.com/luxfi/dutch/pkg/ids"
	"github.com/luxfi/dutch/pkg/log"
	"github.com/luxfi/dutch/pkg/store"
	"go.uber.org/zap"
)

// Cooldown is the minimum gap between two auctions of the same sale asset.
const Cooldown = 30 * 24 * time.Hour

var (
	ErrZeroAsset       = errors.New("sale asset must not be the zero ID")
	ErrPaymentAsset    = errors.New("cannot auction the payment asset")
	ErrNothingEscrowed = errors.New("no sale asset escrowed for auction")
	ErrCooldownActive  = errors.New("auction cooldown for asset still active")
	ErrUnknownAuction  = errors.New("unknown auction")
)

// Registry creates and indexes one auction per sale-asset offering. The
// registry's own account escrows the quantity before a start and receives
// the proceeds at finalization.
type Registry struct {
	mu sync.Mutex

	account      ids.ID
	paymentAsset ids.ID
	ledger       auction.AssetLedger
	store        *store.Store // nil means ephemeral
	clock        auction.Clock
	log          log.Logger

	auctions  map[ids.ID]*auction.Auction
	lastStart map[ids.ID]int64
}

// Config carries the registry's collaborators.
type Config struct {
	Account      ids.ID
	PaymentAsset ids.ID
	Ledger       auction.AssetLedger
	Store        *store.Store
	Clock        auction.Clock
	Log          log.Logger
}

// New creates a registry.
func New(cfg Config) *Registry {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.NoOp()
	}
	return &Registry{
		account:      cfg.Account,
		paymentAsset: cfg.PaymentAsset,
		ledger:       cfg.Ledger,
		store:        cfg.Store,
		clock:        clock,
		log:          logger,
		auctions:     make(map[ids.ID]*auction.Auction),
		lastStart:    make(map[ids.ID]int64),
	}
}

// StartAuction creates and starts an auction for the registry's full
// escrowed balance of the sale asset. The quantity is moved into the fresh
// auction account atomically with the start.
func (r *Registry) StartAuction(saleAsset ids.ID) (*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if saleAsset.IsZero() {
		return nil, ErrZeroAsset
	}
	if saleAsset == r.paymentAsset {
		return nil, ErrPaymentAsset
	}

	quantity := r.ledger.BalanceOf(saleAsset, r.account)
	if quantity.Sign() == 0 {
		return nil, ErrNothingEscrowed
	}

	now := r.clock().Unix()
	last, err := r.lastStartOf(saleAsset)
	if err != nil {
		return nil, err
	}
	if last != 0 && now-last < int64(Cooldown/time.Second) {
		return nil, ErrCooldownActive
	}

	auctionID := ids.Generate()
	auc, err := auction.New(auction.Config{
		ID:           auctionID,
		SaleAsset:    saleAsset,
		PaymentAsset: r.paymentAsset,
		Beneficiary:  r.account,
		Quantity:     quantity,
		Ledger:       r.ledger,
		Clock:        r.clock,
		Log:          r.log,
	})
	if err != nil {
		return nil, err
	}

	if err := r.ledger.Transfer(saleAsset, r.account, auctionID, quantity); err != nil {
		return nil, fmt.Errorf("escrow transfer failed: %w", err)
	}
	if err := auc.Start(); err != nil {
		return nil, err
	}

	r.auctions[auctionID] = auc
	r.lastStart[saleAsset] = now
	if r.store != nil {
		if err := r.store.SetLastStart(saleAsset, now); err != nil {
			return nil, err
		}
		if err := r.store.SaveAuction(auc.Snapshot()); err != nil {
			return nil, err
		}
	}

	r.log.Info("auction created",
		zap.String("auction", auctionID.String()),
		zap.String("saleAsset", saleAsset.String()),
		zap.String("quantity", quantity.String()))

	return auc, nil
}

// Get returns a live auction by ID.
func (r *Registry) Get(id ids.ID) (*auction.Auction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	auc, ok := r.auctions[id]
	return auc, ok
}

// List returns all live auctions.
func (r *Registry) List() []*auction.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	aucs := make([]*auction.Auction, 0, len(r.auctions))
	for _, auc := range r.auctions {
		aucs = append(aucs, auc)
	}
	return aucs
}

// Persist writes the auction's current snapshot to the store.
func (r *Registry) Persist(id ids.ID) error {
	r.mu.Lock()
	auc, ok := r.auctions[id]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownAuction
	}
	if r.store == nil {
		return nil
	}
	return r.store.SaveAuction(auc.Snapshot())
}

// Remove drops a closed auction from the live index. The persisted
// snapshot remains for the query side.
func (r *Registry) Remove(id ids.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.auctions, id)
}

// lastStartOf consults the in-memory record first and falls back to the
// store so the cooldown survives restarts.
func (r *Registry) lastStartOf(saleAsset ids.ID) (int64, error) {
	if last, ok := r.lastStart[saleAsset]; ok {
		return last, nil
	}
	if r.store == nil {
		return 0, nil
	}
	last, ok, err := r.store.GetLastStart(saleAsset)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

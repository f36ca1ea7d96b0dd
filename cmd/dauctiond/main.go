// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luxfi/dutch/pkg/auction"
	"github.com/luxfi/dutch/pkg/ids"
	"github.com/luxfi/dutch/pkg/ledger"
	"github.com/luxfi/dutch/pkg/log"
	"github.com/luxfi/dutch/pkg/metric"
	"github.com/luxfi/dutch/pkg/registry"
	"github.com/luxfi/dutch/pkg/store"
)

var (
	port         = flag.Int("port", 8000, "HTTP port")
	dataDir      = flag.String("data-dir", "/tmp/dauctiond", "Data directory")
	dbType       = flag.String("db", "badger", "Database backend: badger, memory")
	logLevel     = flag.String("log-level", "info", "Log level")
	paymentAsset = flag.String("payment-asset", "", "Payment asset ID (hex); generated when empty")
	feedInterval = flag.Duration("feed-interval", 5*time.Second, "Price feed tick interval")

	// Version info
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server hosts the auction registry behind an HTTP API. It runs against
// the in-memory asset ledger, so mint and approval endpoints are exposed
// for local operation.
type Server struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	store    *store.Store
	metrics  *metric.Metrics

	httpServer *http.Server
	upgrader   websocket.Upgrader

	log log.Logger
}

func main() {
	flag.Parse()

	fmt.Printf("Dutch auction daemon (dauctiond) %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	srv, err := NewServer(logger)
	if err != nil {
		fmt.Printf("Failed to create server: %v\n", err)
		os.Exit(1)
	}

	srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
	}

	fmt.Println("Daemon stopped")
}

// NewServer wires the ledger, store, registry and metrics together.
func NewServer(logger log.Logger) (*Server, error) {
	st, err := store.New(*dbType, *dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	metrics, err := metric.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	payment := ids.Generate()
	if *paymentAsset != "" {
		payment, err = ids.FromString(*paymentAsset)
		if err != nil {
			return nil, fmt.Errorf("bad payment asset: %w", err)
		}
	}

	l := ledger.New()
	reg := registry.New(registry.Config{
		Account:      ids.Generate(),
		PaymentAsset: payment,
		Ledger:       l,
		Store:        st,
		Log:          logger,
	})

	logger.Info("server configured",
		zap.String("paymentAsset", payment.String()),
		zap.String("db", *dbType))

	return &Server{
		registry: reg,
		ledger:   l,
		store:    st,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger,
	}, nil
}

// Start launches the HTTP server.
func (s *Server) Start() {
	router := s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	go func() {
		s.log.Info("HTTP server listening", zap.Int("port", *port))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("HTTP server shutdown error", zap.Error(err))
	}
	return s.store.Close()
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetGatherer(), promhttp.HandlerOpts{})).Methods("GET")

	r.HandleFunc("/auctions", s.handleCreateAuction).Methods("POST")
	r.HandleFunc("/auctions", s.handleListAuctions).Methods("GET")
	r.HandleFunc("/auctions/{id}", s.handleGetAuction).Methods("GET")
	r.HandleFunc("/auctions/{id}/price", s.handleGetPrice).Methods("GET")
	r.HandleFunc("/auctions/{id}/bids", s.handleBid).Methods("POST")
	r.HandleFunc("/auctions/{id}/finalize", s.handleFinalize).Methods("POST")
	r.HandleFunc("/auctions/{id}/claims", s.handleClaim).Methods("POST")
	r.HandleFunc("/auctions/{id}/close", s.handleClose).Methods("POST")
	r.HandleFunc("/auctions/{id}/feed", s.handlePriceFeed).Methods("GET")

	// Local-mode asset operations against the in-memory ledger.
	r.HandleFunc("/assets/mint", s.handleMint).Methods("POST")
	r.HandleFunc("/assets/approvals", s.handleApprove).Methods("POST")
	r.HandleFunc("/assets/{asset}/balances/{account}", s.handleBalance).Methods("GET")

	return r
}

// requestIDMiddleware tags every request with a UUID for log correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		w.Header().Set("X-Request-ID", reqID)
		s.log.Debug("request",
			zap.String("requestID", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
}

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SaleAsset string `json:"sale_asset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	saleAsset, err := ids.FromString(req.SaleAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	auc, err := s.registry.StartAuction(saleAsset)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	s.metrics.AuctionsStarted.Inc()
	writeJSON(w, http.StatusCreated, auc.Snapshot())
}

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	aucs := s.registry.List()
	snaps := make([]*auction.Snapshot, 0, len(aucs))
	for _, auc := range aucs {
		snaps = append(snaps, auc.Snapshot())
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	auc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, auc.Snapshot())
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	auc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	price, err := auc.Price()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	total, err := auc.TotalToEnd()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"price":         price.String(),
		"price_display": auction.DisplayAmount(price).String(),
		"total_to_end":  total.String(),
	})
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	auc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Bidder string `json:"bidder"`
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bidder, err := ids.FromString(req.Bidder)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, ok2 := new(big.Int).SetString(req.Amount, 10)
	if !ok2 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad amount %q", req.Amount))
		return
	}

	started := time.Now()
	accepted, err := auc.Bid(bidder, amount)
	s.metrics.BidLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.BidsRejected.Inc()
		writeError(w, http.StatusConflict, err)
		return
	}

	s.metrics.BidsAccepted.Inc()
	if accepted.Cmp(amount) < 0 {
		s.metrics.BidsClipped.Inc()
	}
	s.persist(auc)
	writeJSON(w, http.StatusOK, map[string]string{"accepted": accepted.String()})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	auc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := auc.Finalize(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.metrics.AuctionsFinalized.Inc()
	s.persist(auc)
	writeJSON(w, http.StatusOK, map[string]string{"final_price": auc.FinalPrice().String()})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	auc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Bidder string `json:"bidder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bidder, err := ids.FromString(req.Bidder)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entitlement, err := auc.Claim(bidder)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.metrics.ClaimsPaid.Inc()
	s.persist(auc)
	writeJSON(w, http.StatusOK, map[string]string{"entitlement": entitlement.String()})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	auc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := auc.Close(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.metrics.AuctionsClosed.Inc()
	s.persist(auc)
	s.registry.Remove(auc.ID())
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// handlePriceFeed streams price ticks over a websocket until the auction
// finalizes or the client goes away.
func (s *Server) handlePriceFeed(w http.ResponseWriter, r *http.Request) {
	auc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(*feedInterval)
	defer ticker.Stop()

	for {
		price, err := auc.Price()
		if err != nil {
			return
		}
		tick := map[string]interface{}{
			"auction":       auc.ID().String(),
			"price":         price.String(),
			"price_display": auction.DisplayAmount(price).String(),
			"finalized":     auc.Finalized(),
			"timestamp":     time.Now().Unix(),
		}
		if err := conn.WriteJSON(tick); err != nil {
			return
		}
		if auc.Finalized() {
			return
		}
		<-ticker.C
	}
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Asset   string `json:"asset"`
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := ids.FromString(req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := ids.FromString(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad amount %q", req.Amount))
		return
	}
	if err := s.ledger.Mint(asset, account, amount); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": s.ledger.BalanceOf(asset, account).String()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Asset   string `json:"asset"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := ids.FromString(req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := ids.FromString(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := ids.FromString(req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad amount %q", req.Amount))
		return
	}
	if err := s.ledger.Approve(asset, owner, spender, amount); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"allowance": s.ledger.Allowance(asset, owner, spender).String()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset, err := ids.FromString(vars["asset"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := ids.FromString(vars["account"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": s.ledger.BalanceOf(asset, account).String()})
}

// lookup resolves the {id} path variable to a live auction.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*auction.Auction, bool) {
	id, err := ids.FromString(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	auc, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, registry.ErrUnknownAuction)
		return nil, false
	}
	return auc, true
}

func (s *Server) persist(auc *auction.Auction) {
	if err := s.registry.Persist(auc.ID()); err != nil {
		s.log.Warn("snapshot persist failed",
			zap.String("auction", auc.ID().String()),
			zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

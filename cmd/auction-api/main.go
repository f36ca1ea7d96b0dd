// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luxfi/database"

	"github.com/luxfi/dutch/pkg/auction"
	"github.com/luxfi/dutch/pkg/store"
)

var (
	port    = flag.String("port", "8080", "API server port")
	env     = flag.String("env", "development", "Environment (development/production)")
	dataDir = flag.String("data-dir", "/tmp/dauctiond", "Data directory shared with the daemon")
	dbType  = flag.String("db", "badger", "Database backend: badger, memory")
)

// The query API serves persisted auction snapshots, read-only. Prices are
// recomputed from the snapshot through the pure curve, so a finalized or
// running price is always current even though the record is not.
func main() {
	flag.Parse()

	st, err := store.New(*dbType, *dataDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	router := setupRouter(st)

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Auction query API started on port %s", *port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func setupRouter(st *store.Store) *gin.Engine {
	if *env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api := router.Group("/v1")
	{
		api.GET("/auctions", func(c *gin.Context) {
			snaps, err := st.ListAuctions()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, snaps)
		})

		api.GET("/auctions/:id", func(c *gin.Context) {
			snap, ok := getSnapshot(c, st)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, snap)
		})

		api.GET("/auctions/:id/price", func(c *gin.Context) {
			snap, ok := getSnapshot(c, st)
			if !ok {
				return
			}
			price, err := snap.PriceAt(time.Now().Unix())
			if err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"price":         price.String(),
				"price_display": auction.DisplayAmount(price).String(),
				"finalized":     snap.Finalized,
			})
		})
	}

	return router
}

func getSnapshot(c *gin.Context, st *store.Store) (*auction.Snapshot, bool) {
	snap, err := st.GetAuction(c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown auction"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return snap, true
}

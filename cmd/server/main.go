package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mintbay/gomart/internal/market"
	"github.com/mintbay/gomart/internal/marketserver"
	"github.com/mintbay/gomart/pkg/config"
	"github.com/mintbay/gomart/pkg/contentstore"
	"github.com/mintbay/gomart/pkg/logger"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		configPath = flag.String("config", getenv("GOMART_CONFIG", ""), "optional YAML config file")
		listenAddr = flag.String("listen", getenv("GOMART_LISTEN", ""), "HTTP listen address")
		dbPath     = flag.String("db", getenv("GOMART_DB", ""), "SQLite db file path")
		blobsDir   = flag.String("blobs", getenv("GOMART_BLOBS", ""), "content store directory")
		collector  = flag.String("fee-collector", getenv("GOMART_FEE_COLLECTOR", ""), "fee collector address (hex)")
		listingFee = flag.String("listing-fee", getenv("GOMART_LISTING_FEE", ""), "listing fee amount")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *blobsDir != "" {
		cfg.BlobsDir = *blobsDir
	}
	if *collector != "" {
		cfg.Fees.Collector = *collector
	}
	if *listingFee != "" {
		cfg.Fees.ListingFee = *listingFee
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}

	fee, err := cfg.Fees.ListingFeeDecimal()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if fee.LessThan(decimal.Zero) {
		log.Fatalf("listing fee must not be negative: %s", fee)
	}

	ledger, err := market.Open(market.Config{
		DBPath:             cfg.DBPath,
		FeeCollector:       cfg.Fees.Collector,
		ListingFee:         fee,
		ReForwardFeeOnSale: cfg.Fees.ReForwardFeeOnSale,
	})
	if err != nil {
		log.Fatalf("open ledger failed: %v", err)
	}
	defer ledger.Close()

	store, err := contentstore.Open(cfg.BlobsDir)
	if err != nil {
		log.Fatalf("open content store failed: %v", err)
	}
	defer store.Close()

	srv, err := marketserver.New(marketserver.Config{Ledger: ledger, Store: store})
	if err != nil {
		log.Fatalf("init server failed: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("marketplace listening on %s (fee=%s, deferred-fee=%v)",
			cfg.Listen, fee, cfg.Fees.ReForwardFeeOnSale)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)

	fmt.Println("server stopped")
}

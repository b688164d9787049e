// Command ledgerd runs the settlement engine behind the HTTP API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/internal/api"
	"github.com/oberonmarkets/comex-ledger/internal/config"
	"github.com/oberonmarkets/comex-ledger/internal/directory"
	"github.com/oberonmarkets/comex-ledger/internal/fees"
	"github.com/oberonmarkets/comex-ledger/internal/governance"
	"github.com/oberonmarkets/comex-ledger/internal/ledger"
	"github.com/oberonmarkets/comex-ledger/internal/registry"
	"github.com/oberonmarkets/comex-ledger/internal/settlement"
	"github.com/oberonmarkets/comex-ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	reg := registry.NewRegistry(log.Named("registry"))
	for _, c := range cfg.Currencies {
		if _, err := reg.RegisterCurrency(c.Name, c.Unit, c.Decimals); err != nil {
			log.Fatal("failed to seed currency", zap.String("name", c.Name), zap.Error(err))
		}
	}
	for _, t := range cfg.TokenTypes {
		if _, err := reg.RegisterTokenType(t.Name, t.Unit, t.SettlementKind); err != nil {
			log.Fatal("failed to seed token type", zap.String("name", t.Name), zap.Error(err))
		}
	}

	gov := governance.NewState(log.Named("governance"))
	if cfg.SealOnStart {
		gov.Seal()
	}

	store := ledger.NewStore(log.Named("ledger"))
	resolver := fees.NewResolver(log.Named("fees"), cfg.AdminIDs())
	dir := directory.NewDirectory()

	promReg := prometheus.NewRegistry()
	metrics := settlement.NewMetrics(promReg)
	engine := settlement.NewEngine(log.Named("settlement"), store, resolver, reg, dir, gov, metrics)

	server := api.NewServer(log.Named("api"), engine, gov, reg, promReg)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

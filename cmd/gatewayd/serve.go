package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/xbyte-labs/byte-gateway/internal/adminauth"
	"github.com/xbyte-labs/byte-gateway/internal/config"
	"github.com/xbyte-labs/byte-gateway/internal/facilitator"
	"github.com/xbyte-labs/byte-gateway/internal/gateway"
	"github.com/xbyte-labs/byte-gateway/internal/httpapi"
	"github.com/xbyte-labs/byte-gateway/internal/registry"
	"github.com/xbyte-labs/byte-gateway/internal/upstream"
)

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	reg := registry.New()

	var facilitatorClient facilitator.Client
	switch {
	case cfg.FacilitatorURL != "":
		slog.Info("payment mode: remote facilitator", "url", cfg.FacilitatorURL)
		facilitatorClient = facilitator.NewHTTPClient(cfg.FacilitatorURL, cfg.FacilitatorTimeout)
	case cfg.RelayerPrivateKey != "":
		chainIDStr := strings.TrimPrefix(cfg.Network, "eip155:")
		chainID := new(big.Int)
		if _, ok := chainID.SetString(chainIDStr, 10); !ok {
			return fmt.Errorf("invalid NETWORK for local facilitator: %s", cfg.Network)
		}
		local, err := facilitator.NewLocalClient(cfg.SettlementRPCURL, cfg.RelayerPrivateKey, chainID)
		if err != nil {
			return fmt.Errorf("local facilitator init failed: %w", err)
		}
		slog.Info("payment mode: local facilitator", "settlement_rpc", cfg.SettlementRPCURL, "relayer", local.Address().Hex())
		facilitatorClient = local
	default:
		return fmt.Errorf("no facilitator configured")
	}

	upstreamFactory := func(ctx context.Context, cred registry.StorageCredential, sessionName string) (*upstream.Adapter, error) {
		region := cred.Region
		if region == "" {
			region = cfg.AWSRegion
		}
		return upstream.NewCredentialed(ctx, cred.RoleARN, sessionName, region)
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.DefaultPayTo = cfg.DefaultPayTo
	gwCfg.Network = cfg.Network
	gwCfg.Asset = cfg.AssetAddress
	gwCfg.FacilitatorTimeout = cfg.FacilitatorTimeout
	gwCfg.SettleWorkers = cfg.SettleWorkers
	gwCfg.SettleQueueSize = cfg.SettleQueueSize

	gw := gateway.New(reg, facilitatorClient, upstreamFactory, gwCfg)
	defer gw.Close(10 * time.Second)

	issuer := adminauth.NewIssuer(cfg.AdminTokenSecret, 24*time.Hour)
	router := httpapi.NewRouter(gw, issuer, cfg.DebugRoutes)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("gateway starting", "addr", server.Addr, "network", cfg.Network, "gateway_url", cfg.GatewayURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	return nil
}

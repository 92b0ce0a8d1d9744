// Package config loads the gateway's process configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all gatewayd configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// GatewayURL is this gateway's public URL, used in the x402 resource field.
	GatewayURL string

	// Network is the CAIP-2 network identifier (e.g. "eip155:8453" for Base).
	Network string

	// AssetAddress is the stablecoin contract address published in every challenge.
	AssetAddress string

	// DefaultPayTo is the fallback payee when a bucket's owner cannot be resolved.
	DefaultPayTo common.Address

	// FacilitatorURL is the x402 facilitator's base URL. When empty and
	// RelayerPrivateKey is set, the gateway settles locally instead.
	FacilitatorURL string

	// FacilitatorTimeout bounds every /verify and /settle call.
	FacilitatorTimeout time.Duration

	// RelayerPrivateKey is the hex-encoded key used by the local facilitator
	// to sign and submit transferWithAuthorization, paying its own gas.
	RelayerPrivateKey string

	// SettlementRPCURL is the JSON-RPC endpoint of the settlement chain,
	// used only by the local facilitator.
	SettlementRPCURL string

	// AWSRegion is the default region for upstream S3 access when a
	// storage credential does not specify its own.
	AWSRegion string

	// AdminTokenSecret signs bearer tokens for the admin routes.
	AdminTokenSecret []byte

	// SettleWorkers is the number of goroutines draining the settlement queue.
	SettleWorkers int

	// SettleQueueSize bounds how many settlements may be pending at once.
	SettleQueueSize int

	// DebugRoutes enables developer-only routes not meant for production
	// (POST /debug/content, an in-memory content store standing in for a
	// real S3 bucket). Off by default.
	DebugRoutes bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first, if present (dev convenience only;
// production deployments set real env vars).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvInt("PORT", 8080),
		GatewayURL:         getEnv("GATEWAY_URL", "http://localhost:8080"),
		Network:            getEnv("NETWORK", "eip155:8453"),
		AssetAddress:       getEnv("ASSET_ADDRESS", "0x036CbD53842c5426634E7929541eC2318f3dCF7e"),
		DefaultPayTo:       common.HexToAddress(getEnv("DEFAULT_PAY_TO", "0x0000000000000000000000000000000000000000")),
		FacilitatorURL:     getEnv("FACILITATOR_URL", ""),
		FacilitatorTimeout: time.Duration(getEnvInt("FACILITATOR_TIMEOUT_SECONDS", 10)) * time.Second,
		RelayerPrivateKey:  getEnv("RELAYER_PRIVATE_KEY", ""),
		SettlementRPCURL:   getEnv("SETTLEMENT_RPC_URL", "https://mainnet.base.org"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		SettleWorkers:      getEnvInt("SETTLE_WORKERS", 4),
		SettleQueueSize:    getEnvInt("SETTLE_QUEUE_SIZE", 256),
		DebugRoutes:        getEnvBool("DEBUG_ROUTES", false),
	}

	secret := getEnv("ADMIN_TOKEN_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN_SECRET env var is required")
	}
	cfg.AdminTokenSecret = []byte(secret)

	if cfg.FacilitatorURL == "" && cfg.RelayerPrivateKey == "" {
		return nil, fmt.Errorf("one of FACILITATOR_URL or RELAYER_PRIVATE_KEY must be set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

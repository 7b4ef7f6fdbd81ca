// Copyright 2025 BPI Labs
//
// Package config loads node configuration from environment variables,
// following the same getEnv*/defaults-with-explicit-override shape
// used throughout the teacher's service configuration, narrowed to
// the fields a bpci-node process actually needs: listen addresses,
// Postgres connection parameters for pkg/pgstore, node identity and
// signing key path, consensus timing, and the ambient security knobs
// (JWT, CORS, TLS, rate limiting) every exposed HTTP surface carries
// regardless of which domain features are compiled in.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for a bpci-node process.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Postgres (pkg/pgstore)
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DatabaseRequired  bool

	// Node identity
	NodeID         string
	NodeRole       string
	Ed25519KeyPath string
	DataDir        string
	LogLevel       string

	// Consensus (CE)
	P2PPort           int
	RPCPort           int
	NetworkChainID    string
	NetworkName       string
	ValidatorPeers    []string
	AttestationQuorum int

	// Ledger anchoring (LA)
	AnchorTargetDescriptor string
	AnchorEvery            uint64
	AnchorInterval         time.Duration

	// Economy settlement (EE)
	EpochEveryBlocks uint64

	// Bank mesh (BM)
	HeartbeatInterval  time.Duration
	SettlementTimeout  time.Duration

	// Partner coordination (PC)
	AuctionMode string

	// Event bus (pkg/eventbus)
	EventBusEnabled         bool
	FirebaseProjectID       string
	FirebaseCredentialsFile string

	// Security
	JWTSecret         string
	CORSOrigins       []string
	TLSEnabled        bool
	RateLimitRequests int
	RateLimitWindow   int
}

// Load reads configuration from environment variables. Call Validate
// after Load to confirm required production configuration is present.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),

		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnvInt("DB_PORT", 5432),
		DBUser:            getEnv("DB_USER", "bpci"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "bpci_node"),
		DBSSLMode:         getEnv("DB_SSL_MODE", "require"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		DatabaseRequired:  getEnvBool("DATABASE_REQUIRED", false),

		NodeID:         getEnv("NODE_ID", "bpci-node-default"),
		NodeRole:       getEnv("NODE_ROLE", "validator"),
		Ed25519KeyPath: getEnv("ED25519_KEY_PATH", ""),
		DataDir:        getEnv("DATA_DIR", "./data"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		P2PPort:           getEnvInt("P2P_PORT", 26656),
		RPCPort:           getEnvInt("RPC_PORT", 26657),
		NetworkChainID:    getEnv("CHAIN_ID", "bpci-devnet"),
		NetworkName:       getEnv("NETWORK_NAME", "devnet"),
		ValidatorPeers:    splitCSV(getEnv("VALIDATOR_PEERS", "")),
		AttestationQuorum: getEnvInt("ATTESTATION_QUORUM", 3),

		AnchorTargetDescriptor: getEnv("ANCHOR_TARGET", ""),
		AnchorEvery:            uint64(getEnvInt("ANCHOR_EVERY_BLOCKS", 50)),
		AnchorInterval:         getEnvDuration("ANCHOR_INTERVAL", 5*time.Minute),

		EpochEveryBlocks: uint64(getEnvInt("EPOCH_EVERY_BLOCKS", 100)),

		HeartbeatInterval: getEnvDuration("MESH_HEARTBEAT_INTERVAL", time.Minute),
		SettlementTimeout: getEnvDuration("SETTLEMENT_TIMEOUT", 30*time.Minute),

		AuctionMode: getEnv("AUCTION_MODE", "testnet"),

		EventBusEnabled:         getEnvBool("EVENTBUS_ENABLED", false),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigins:       splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		TLSEnabled:        getEnvBool("TLS_ENABLED", true),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	return cfg, nil
}

// Validate checks that production-required configuration is present
// and rejects obviously weak security settings.
func (c *Config) Validate() error {
	var problems []string

	if c.NodeID == "" {
		problems = append(problems, "NODE_ID is required but not set")
	}
	if c.AuctionMode != "testnet" && c.AuctionMode != "mainnet" {
		problems = append(problems, "AUCTION_MODE must be \"testnet\" or \"mainnet\"")
	}
	if c.DatabaseRequired && c.DBHost == "" {
		problems = append(problems, "DB_HOST is required when DATABASE_REQUIRED is set")
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required but not set")
	} else {
		lower := strings.ToLower(c.JWTSecret)
		for _, weak := range []string{"development", "secret", "password", "change-me", "changeme", "default", "test"} {
			if strings.Contains(lower, weak) {
				problems = append(problems, "JWT_SECRET contains a weak/default value")
				break
			}
		}
		if len(c.JWTSecret) < 32 {
			problems = append(problems, "JWT_SECRET must be at least 32 characters")
		}
	}

	if c.EventBusEnabled && c.FirebaseProjectID == "" {
		problems = append(problems, "FIREBASE_PROJECT_ID is required when EVENTBUS_ENABLED is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

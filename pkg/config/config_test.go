// Copyright 2025 BPI Labs

package config

import (
	"os"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPort != 5432 {
		t.Fatalf("expected default DB port 5432, got %d", cfg.DBPort)
	}
	if cfg.AuctionMode != "testnet" {
		t.Fatalf("expected default auction mode testnet, got %q", cfg.AuctionMode)
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	os.Setenv("DB_PORT", "6543")
	os.Setenv("AUCTION_MODE", "mainnet")
	defer os.Unsetenv("DB_PORT")
	defer os.Unsetenv("AUCTION_MODE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPort != 6543 {
		t.Fatalf("expected overridden DB port 6543, got %d", cfg.DBPort)
	}
	if cfg.AuctionMode != "mainnet" {
		t.Fatalf("expected overridden auction mode mainnet, got %q", cfg.AuctionMode)
	}
}

func TestValidateRejectsWeakJWTSecret(t *testing.T) {
	cfg := &Config{NodeID: "n1", AuctionMode: "testnet", JWTSecret: "change-me-please-change-me-1234"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for a weak JWT secret")
	}
}

func TestValidateAcceptsStrongConfig(t *testing.T) {
	cfg := &Config{NodeID: "n1", AuctionMode: "mainnet", JWTSecret: "a-sufficiently-long-and-random-signing-key-value"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidateRejectsBadAuctionMode(t *testing.T) {
	cfg := &Config{NodeID: "n1", AuctionMode: "staging", JWTSecret: "a-sufficiently-long-and-random-signing-key-value"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for an unrecognized auction mode")
	}
}

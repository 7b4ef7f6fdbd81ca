// Copyright 2025 BPI Labs
//
// Package walletcrypto implements the Ed25519 Wallet collaborator
// interface: sign/verify over the canonical encoding of a record,
// plus the load-or-generate key file convention used across the
// system's node identities.

package walletcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Wallet is the external collaborator interface the rest of the
// system signs and verifies records against.
type Wallet interface {
	Sign(message []byte) []byte
	Verify(sig, message []byte, publicKey ed25519.PublicKey) bool
	PublicKey() ed25519.PublicKey
}

// Ed25519Wallet is the concrete Wallet backed by an Ed25519 key pair
// held in memory (and optionally persisted to a key file).
type Ed25519Wallet struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// New wraps an existing Ed25519 private key as a Wallet.
func New(privateKey ed25519.PrivateKey) *Ed25519Wallet {
	return &Ed25519Wallet{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}
}

// Generate creates a fresh random Ed25519 wallet.
func Generate() (*Ed25519Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Ed25519Wallet{privateKey: priv, publicKey: pub}, nil
}

// LoadOrGenerate loads a hex-encoded Ed25519 private key from keyPath,
// generating and persisting a new one if the file does not exist.
func LoadOrGenerate(keyPath string) (*Ed25519Wallet, error) {
	keyDir := filepath.Dir(keyPath)
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", keyDir, err)
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		w, err := Generate()
		if err != nil {
			return nil, err
		}
		if err := w.save(keyPath); err != nil {
			return nil, err
		}
		return w, nil
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ed25519 key from %s: %w", keyPath, err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode ed25519 key from %s: %w", keyPath, err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 key size: expected %d, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	return New(ed25519.PrivateKey(keyBytes)), nil
}

func (w *Ed25519Wallet) save(keyPath string) error {
	keyHex := hex.EncodeToString(w.privateKey)
	return os.WriteFile(keyPath, []byte(keyHex), 0600)
}

// Sign signs message with the wallet's private key.
func (w *Ed25519Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.privateKey, message)
}

// Verify checks sig over message against an arbitrary public key, not
// necessarily this wallet's own — used to verify records signed by
// other nodes.
func (w *Ed25519Wallet) Verify(sig, message []byte, publicKey ed25519.PublicKey) bool {
	return ed25519.Verify(publicKey, message, sig)
}

// PublicKey returns this wallet's public key.
func (w *Ed25519Wallet) PublicKey() ed25519.PublicKey {
	return w.publicKey
}

// Copyright 2025 BPI Labs

package walletcrypto

import (
	"path/filepath"
	"testing"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("receipt payload")
	sig := w.Sign(msg)
	if !w.Verify(sig, msg, w.PublicKey()) {
		t.Errorf("expected signature to verify")
	}
	if w.Verify(sig, []byte("tampered"), w.PublicKey()) {
		t.Errorf("expected verification to fail on tampered message")
	}
}

func TestLoadOrGeneratePersists(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "node_key.hex")

	w1, err := LoadOrGenerate(keyPath)
	if err != nil {
		t.Fatalf("load or generate (first): %v", err)
	}

	w2, err := LoadOrGenerate(keyPath)
	if err != nil {
		t.Fatalf("load or generate (second): %v", err)
	}

	if string(w1.PublicKey()) != string(w2.PublicKey()) {
		t.Errorf("expected reloaded wallet to have the same public key")
	}
}

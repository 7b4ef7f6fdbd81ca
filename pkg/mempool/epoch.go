// Copyright 2025 BPI Labs

package mempool

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/box"
)

// EpochKey is one leader term's X25519 keypair; envelopes submitted
// during this epoch are sealed to PublicKey and can only be opened
// with PrivateKey (or, past the stuck timeout, the pool's recovery
// key).
type EpochKey struct {
	EpochID    uint64
	PublicKey  *[32]byte
	PrivateKey *[32]byte
	CreatedAt  time.Time
}

// EpochManager rotates the leader epoch key on a fixed interval,
// retaining enough prior keys to decrypt envelopes still in flight.
// It is the sole writer of its own key table, consulted read-only by
// Submit/Reveal through Current/Find.
type EpochManager struct {
	mu      sync.RWMutex
	current *EpochKey
	retired map[uint64]*EpochKey
	nextID  uint64

	recoveryPub  *[32]byte
	recoveryPriv *[32]byte

	retain time.Duration
}

// NewEpochManager creates a manager with a freshly generated recovery
// key and an initial epoch key, retaining rotated-out keys for retain
// (long enough to cover DefaultStuckTimeout).
func NewEpochManager(retain time.Duration) (*EpochManager, error) {
	recoveryPub, recoveryPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate recovery key: %w", err)
	}

	m := &EpochManager{
		retired:      make(map[uint64]*EpochKey),
		recoveryPub:  recoveryPub,
		recoveryPriv: recoveryPriv,
		retain:       retain,
	}
	if err := m.rotate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active epoch key.
func (m *EpochManager) Current() *EpochKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// RecoveryPublicKey returns the pool-held recovery key's public half,
// to which every envelope is also logically recoverable by the pool
// operator after the stuck timeout.
func (m *EpochManager) RecoveryPublicKey() *[32]byte {
	return m.recoveryPub
}

// Find returns the epoch key for epochID, whether current or retired,
// or false if it has been purged.
func (m *EpochManager) Find(epochID uint64) (*EpochKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current != nil && m.current.EpochID == epochID {
		return m.current, true
	}
	k, ok := m.retired[epochID]
	return k, ok
}

// Rotate retires the current epoch key and generates a new one,
// pruning retired keys older than retain.
func (m *EpochManager) Rotate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotate()
}

func (m *EpochManager) rotate() error {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate epoch key: %w", err)
	}

	if m.current != nil {
		m.retired[m.current.EpochID] = m.current
	}

	now := time.Now()
	for id, k := range m.retired {
		if now.Sub(k.CreatedAt) > m.retain {
			delete(m.retired, id)
		}
	}

	m.current = &EpochKey{
		EpochID:    m.nextID,
		PublicKey:  pub,
		PrivateKey: priv,
		CreatedAt:  now,
	}
	m.nextID++
	return nil
}

// Seal anonymously encrypts plaintext to the given epoch's public key.
func Seal(plaintext []byte, recipientPub *[32]byte) ([]byte, error) {
	sealed, err := box.SealAnonymous(nil, plaintext, recipientPub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("seal envelope: %w", err)
	}
	return sealed, nil
}

// Open decrypts a sealed envelope with the given keypair.
func Open(sealed []byte, pub, priv *[32]byte) ([]byte, bool) {
	return box.OpenAnonymous(nil, sealed, pub, priv)
}

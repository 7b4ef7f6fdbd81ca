// Copyright 2025 BPI Labs
//
// Control-message authentication and confidentiality: every message
// carries an Ed25519 signature from the sending peer (failure
// semantics require a signature on every control message), and its
// payload may additionally be sealed under X25519 key agreement plus
// AEAD between the two specific peers, the same golang.org/x/crypto
// primitives pkg/mempool uses for epoch-sealed envelopes.
//
// Sealing always happens before signing: the signature covers exactly
// the bytes that go out on the wire (ciphertext when sealed, plaintext
// otherwise), so a verifier never has to guess which representation
// was signed.

package bankmesh

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/bpinet/bpci/pkg/walletcrypto"
	"golang.org/x/crypto/nacl/box"
)

func controlMessageDigest(msg ControlMessage) [32]byte {
	body := msg.Payload
	if len(msg.Sealed) > 0 {
		body = msg.Sealed
	}
	w := canon.NewWriter()
	w.Str(msg.Type).Blob(body).Str(msg.Sender)
	return canon.Hash(canon.DomainPayload, w.Bytes())
}

// SealControlMessage encrypts msg.Payload to recipientPub using
// senderPriv, replacing Payload with nil and Sealed with the
// ciphertext so a relay cannot read the plaintext en route. Call this
// before SignControlMessage so the signature covers the sealed form.
func SealControlMessage(msg ControlMessage, senderPriv, recipientPub *[32]byte) (ControlMessage, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return ControlMessage{}, err
	}
	out := msg
	out.Sealed = box.Seal(nil, msg.Payload, &nonce, recipientPub, senderPriv)
	out.Payload = nil
	out.Nonce = nonce
	return out, nil
}

// OpenControlMessage decrypts msg.Sealed using recipientPriv and
// senderPub, returning the plaintext payload. Verify the message's
// signature first; this only undoes confidentiality, not authenticity.
func OpenControlMessage(msg ControlMessage, recipientPriv, senderPub *[32]byte) ([]byte, error) {
	plaintext, ok := box.Open(nil, msg.Sealed, &msg.Nonce, senderPub, recipientPriv)
	if !ok {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}

// SignControlMessage signs msg in its final (possibly sealed) form and
// returns the message with Signature populated.
func SignControlMessage(wallet walletcrypto.Wallet, msg ControlMessage) ControlMessage {
	digest := controlMessageDigest(msg)
	out := msg
	out.Signature = wallet.Sign(digest[:])
	return out
}

// VerifyControlMessage checks msg's signature against senderKey.
func VerifyControlMessage(wallet walletcrypto.Wallet, msg ControlMessage, senderKey ed25519.PublicKey) bool {
	digest := controlMessageDigest(msg)
	return wallet.Verify(msg.Signature, digest[:], senderKey)
}

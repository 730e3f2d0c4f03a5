package credential

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Sign produces a detached base64 signature over Canonical(d).
func Sign(d Data, priv ed25519.PrivateKey) (string, error) {
	msg, err := Canonical(d)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, msg)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a detached signature against the public key embedded in the
// credential data. Any decoding failure counts as an invalid signature.
func Verify(d Data, sigB64, pubB64 string) bool {
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	msg, err := Canonical(d)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// HashSignature derives the next chain link from a credential's signature.
// Keccak-256 keeps the chain collision-resistant and tamper-evident.
func HashSignature(sigB64 string) string {
	h := crypto.Keccak256Hash([]byte(sigB64))
	return hex.EncodeToString(h[:])
}

// NewNonce returns a short random nonce; it defeats payload guessing and
// keeps two otherwise-identical credentials distinct.
func NewNonce() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

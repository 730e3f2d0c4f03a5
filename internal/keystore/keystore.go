// Package keystore owns the device signing keypair. The pair is generated
// once, persisted in device-local Redis, and reused for the lifetime of the
// device; the secret key never leaves local storage.
package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPairKey = "wallet:keys"

// ErrStorage reports that key material could not be persisted or read.
// Callers must treat it as fatal: nothing can be signed or verified without
// a durable keypair.
var ErrStorage = errors.New("keystore storage unavailable")

// KeyPair is the device's asymmetric signing identity.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// PublicKeyB64 returns the public key in the base64 form embedded in
// credentials.
func (kp KeyPair) PublicKeyB64() string {
	return base64.StdEncoding.EncodeToString(kp.PublicKey)
}

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// GetOrCreateKeyPair returns the persisted keypair, generating and persisting
// a fresh one on first use. An existing pair is never regenerated.
func (s *Store) GetOrCreateKeyPair(ctx context.Context) (KeyPair, error) {
	vals, err := s.rdb.HGetAll(ctx, keyPairKey).Result()
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: read keys: %v", ErrStorage, err)
	}
	if len(vals) > 0 {
		return decodePair(vals["public"], vals["secret"])
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate keypair: %w", err)
	}
	err = s.rdb.HSet(ctx, keyPairKey,
		"public", base64.StdEncoding.EncodeToString(pub),
		"secret", base64.StdEncoding.EncodeToString(priv),
	).Err()
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: persist keys: %v", ErrStorage, err)
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

func decodePair(pubB64, secB64 string) (KeyPair, error) {
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return KeyPair{}, fmt.Errorf("%w: corrupt public key", ErrStorage)
	}
	sec, err := base64.StdEncoding.DecodeString(secB64)
	if err != nil || len(sec) != ed25519.PrivateKeySize {
		return KeyPair{}, fmt.Errorf("%w: corrupt secret key", ErrStorage)
	}
	return KeyPair{PublicKey: pub, PrivateKey: sec}, nil
}

package wallet

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/paystash/paystash-wallet/internal/credential"
)

const (
	chainKey      = "wallet:chain"
	peerSeqKeyPfx = "wallet:peerseq:"
)

// ChainState tracks the device's issuance chain: a monotonic sequence and the
// hash of the previous credential's signature. Sequence and LastHash only
// move together, inside a single issuance.
type ChainState struct {
	Sequence        uint64
	LastHash        string
	PublicKeySynced bool
}

func loadChainState(ctx context.Context, rdb *redis.Client) (ChainState, error) {
	vals, err := rdb.HGetAll(ctx, chainKey).Result()
	if err != nil {
		return ChainState{}, fmt.Errorf("load chain state: %w", err)
	}
	if len(vals) == 0 {
		return ChainState{Sequence: 0, LastHash: credential.GenesisHash}, nil
	}
	seq, _ := strconv.ParseUint(vals["sequence"], 10, 64)
	synced, _ := strconv.ParseBool(vals["public_key_synced"])
	return ChainState{
		Sequence:        seq,
		LastHash:        vals["last_hash"],
		PublicKeySynced: synced,
	}, nil
}

func saveChainState(ctx context.Context, rdb *redis.Client, cs ChainState) error {
	err := rdb.HSet(ctx, chainKey,
		"sequence", cs.Sequence,
		"last_hash", cs.LastHash,
		"public_key_synced", strconv.FormatBool(cs.PublicKeySynced),
	).Err()
	if err != nil {
		return fmt.Errorf("save chain state: %w", err)
	}
	return nil
}

// peerSequence is the highest issuance sequence observed from a payer key.
// Any single receiver only sees a subset of a payer's credentials, so this
// feeds gap detection, never rejection.
func peerSequence(ctx context.Context, rdb *redis.Client, payerKey string) (uint64, error) {
	v, err := rdb.Get(ctx, peerSeqKeyPfx+payerKey).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("peer sequence: %w", err)
	}
	return v, nil
}

func recordPeerSequence(ctx context.Context, rdb *redis.Client, payerKey string, seq uint64) error {
	last, err := peerSequence(ctx, rdb, payerKey)
	if err != nil {
		return err
	}
	if seq <= last {
		return nil
	}
	if err := rdb.Set(ctx, peerSeqKeyPfx+payerKey, seq, 0).Err(); err != nil {
		return fmt.Errorf("record peer sequence: %w", err)
	}
	return nil
}

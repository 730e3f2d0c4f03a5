package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	walletBalanceKey = "wallet:balance:wallet"
	serverBalanceKey = "wallet:balance:server"
)

// WalletBalance is the locally spendable, reconciled balance.
func (s *Store) WalletBalance(ctx context.Context) (int64, error) {
	return s.getBalance(ctx, walletBalanceKey)
}

// ServerBalance is the last known authoritative remote balance.
func (s *Store) ServerBalance(ctx context.Context) (int64, error) {
	return s.getBalance(ctx, serverBalanceKey)
}

func (s *Store) SetWalletBalance(ctx context.Context, v int64) error {
	return s.setBalance(ctx, walletBalanceKey, v)
}

func (s *Store) SetServerBalance(ctx context.Context, v int64) error {
	return s.setBalance(ctx, serverBalanceKey, v)
}

// AddWalletBalance applies a signed delta and returns the new balance.
func (s *Store) AddWalletBalance(ctx context.Context, delta int64) (int64, error) {
	v, err := s.rdb.IncrBy(ctx, walletBalanceKey, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("adjust wallet balance: %w", err)
	}
	return v, nil
}

func (s *Store) AddServerBalance(ctx context.Context, delta int64) (int64, error) {
	v, err := s.rdb.IncrBy(ctx, serverBalanceKey, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("adjust server balance: %w", err)
	}
	return v, nil
}

func (s *Store) getBalance(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) setBalance(ctx context.Context, key string, v int64) error {
	if err := s.rdb.Set(ctx, key, v, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

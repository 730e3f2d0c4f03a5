// Package ledger is the append-only local transaction log and the balance
// store. It is the sole mutator of record status; issuer and verifier append
// records and request transitions through it.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const recordKeyPrefix = "wallet:tx:"

var (
	// ErrNotFound: no record with that id.
	ErrNotFound = errors.New("transaction record not found")
	// ErrStatusConflict: the record is not in the expected source status.
	ErrStatusConflict = errors.New("transaction record status conflict")
)

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}

// Append writes a new record. Records are never overwritten; appending an
// existing id is rejected so a replayed credential cannot clobber history.
func (s *Store) Append(ctx context.Context, r Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", r.ID, err)
	}
	ok, err := s.rdb.SetNX(ctx, recordKey(r.ID), string(raw), 0).Result()
	if err != nil {
		return fmt.Errorf("append record %s: %w", r.ID, err)
	}
	if !ok {
		return fmt.Errorf("append record %s: %w", r.ID, ErrStatusConflict)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, recordKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return &r, nil
}

// Exists is the replay/double-spend check used by the verifier.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, recordKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("exists record %s: %w", id, err)
	}
	return n > 0, nil
}

// UpdateStatus transitions a record from one status to another. The source
// status is checked inside a WATCH transaction so concurrent transitions on
// the same id cannot both succeed.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	key := recordKey(id)
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var r Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return err
		}
		if r.Status != from {
			return ErrStatusConflict
		}
		r.Status = to
		out, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(out), 0)
			return nil
		})
		return err
	}
	if err := s.rdb.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStatusConflict) {
			return err
		}
		return fmt.Errorf("update record %s: %w", id, err)
	}
	return nil
}

// List returns all local records, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	records, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt > records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// PendingRecords returns records still awaiting remote confirmation
// (the sync queue of the reconciliation engine).
func (s *Store) PendingRecords(ctx context.Context) ([]Record, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Record
	for _, r := range all {
		if r.Pending() {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (s *Store) scan(ctx context.Context) ([]Record, error) {
	var records []Record
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, recordKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan records: %w", err)
		}
		for _, key := range keys {
			raw, err := s.rdb.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var r Record
			if err := json.Unmarshal([]byte(raw), &r); err != nil {
				continue
			}
			records = append(records, r)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return records, nil
}

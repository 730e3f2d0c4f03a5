// Package wallet is the device-side money aggregate: it issues signed payment
// credentials against the local balance, redeems scanned credentials, and
// exposes the state-transition primitives the reconciliation engine drives.
//
// All mutations of chain state, records, and balances go through a single
// mutex: the wallet is one logical actor, and issuance in particular must
// never let two signings observe the same chain position.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/paystash/paystash-wallet/internal/credential"
	"github.com/paystash/paystash-wallet/internal/keystore"
	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/remote"
)

const mergedViewKey = "wallet:mergedview"

var (
	ErrKeysNotReady        = errors.New("signing keys not initialized")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrNotLocked           = errors.New("transaction is not locked")
	ErrOnlineRequired      = errors.New("online mode required")

	ErrMalformed        = errors.New("malformed payment credential")
	ErrExpired          = errors.New("payment credential expired")
	ErrAlreadyProcessed = errors.New("payment credential already processed")
	ErrNotAddressedToMe = errors.New("payment credential addressed to someone else")
	ErrInvalidSignature = errors.New("payment credential signature invalid")
)

// Connectivity is satisfied by connectivity.Monitor.
type Connectivity interface {
	Online() bool
}

// Remote is the slice of the remote ledger contract the wallet itself calls.
type Remote interface {
	LookupPublicKey(ctx context.Context, publicKey string) (string, bool, error)
	SubmitCredit(ctx context.Context, data credential.Data, signature string, risk remote.RiskMetadata) error
	SubmitTransaction(ctx context.Context, tx remote.Transaction) error
	Transfer(ctx context.Context, userID, recipientID string, amount int64) error
}

type Wallet struct {
	rdb    *redis.Client
	ledger *ledger.Store
	keys   keystore.KeyPair
	remote Remote
	online Connectivity
	userID string
	ttl    time.Duration
	log    *zap.Logger

	mu sync.Mutex
}

func New(
	rdb *redis.Client,
	store *ledger.Store,
	keys keystore.KeyPair,
	rem Remote,
	online Connectivity,
	userID string,
	credentialTTL time.Duration,
	log *zap.Logger,
) *Wallet {
	return &Wallet{
		rdb:    rdb,
		ledger: store,
		keys:   keys,
		remote: rem,
		online: online,
		userID: userID,
		ttl:    credentialTTL,
		log:    log,
	}
}

func (w *Wallet) UserID() string { return w.userID }

// PublicKey returns the device public key in credential (base64) form.
func (w *Wallet) PublicKey() string { return w.keys.PublicKeyB64() }

// Balances returns (walletBalance, serverBalance).
func (w *Wallet) Balances(ctx context.Context) (int64, int64, error) {
	wb, err := w.ledger.WalletBalance(ctx)
	if err != nil {
		return 0, 0, err
	}
	sb, err := w.ledger.ServerBalance(ctx)
	if err != nil {
		return 0, 0, err
	}
	return wb, sb, nil
}

// MergedTx is one entry of the reconciled transaction view: remote truth
// overlaid with still-unsynced local records. Amount is signed per-user
// (debits negative).
type MergedTx struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Amount    int64         `json:"amount"`
	Type      string        `json:"type"`
	Status    ledger.Status `json:"status"`
	CreatedAt int64         `json:"created_at"`
}

// LocalRecords returns the full local log, newest first.
func (w *Wallet) LocalRecords(ctx context.Context) ([]ledger.Record, error) {
	return w.ledger.List(ctx)
}

// PendingRecords returns the sync queue: records awaiting remote confirmation.
func (w *Wallet) PendingRecords(ctx context.Context) ([]ledger.Record, error) {
	return w.ledger.PendingRecords(ctx)
}

// CompleteRecord marks a synced record completed. The monetary effect was
// applied at acceptance time; only the status moves.
func (w *Wallet) CompleteRecord(ctx context.Context, id string, from ledger.Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger.UpdateStatus(ctx, id, from, ledger.StatusCompleted)
}

// ExpireLockedDebit implicitly cancels a locked debit whose credential passed
// its expiry without being redeemed: the record goes to cancelled and the
// locked amount returns to the spendable balance. The chain slot stays used.
func (w *Wallet) ExpireLockedDebit(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, err := w.ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ledger.ErrNotFound
	}
	if err := w.ledger.UpdateStatus(ctx, id, ledger.StatusLocked, ledger.StatusCancelled); err != nil {
		return err
	}
	if _, err := w.ledger.AddWalletBalance(ctx, rec.Amount); err != nil {
		return err
	}
	w.log.Info("expired locked debit refunded",
		zap.String("tx", id),
		zap.Int64("amount", rec.Amount),
	)
	return nil
}

// ReconciledView is the output of the balance/log merge applied back onto the
// wallet.
type ReconciledView struct {
	ServerBalance     int64
	ReconciledBalance int64
	Merged            []MergedTx
}

// ApplyReconciliation commits a merge result: the remote balance becomes the
// new server truth, the reconciled balance becomes the spendable balance, and
// the merged list becomes the presented transaction view.
func (w *Wallet) ApplyReconciliation(ctx context.Context, view ReconciledView) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ledger.SetServerBalance(ctx, view.ServerBalance); err != nil {
		return err
	}
	if err := w.ledger.SetWalletBalance(ctx, view.ReconciledBalance); err != nil {
		return err
	}
	raw, err := json.Marshal(view.Merged)
	if err != nil {
		return fmt.Errorf("marshal merged view: %w", err)
	}
	if err := w.rdb.Set(ctx, mergedViewKey, string(raw), 0).Err(); err != nil {
		return fmt.Errorf("persist merged view: %w", err)
	}
	return nil
}

// MergedView returns the last reconciled transaction view, or the signed
// local log when no reconciliation has run yet.
func (w *Wallet) MergedView(ctx context.Context) ([]MergedTx, error) {
	raw, err := w.rdb.Get(ctx, mergedViewKey).Result()
	if err == redis.Nil {
		records, err := w.ledger.List(ctx)
		if err != nil {
			return nil, err
		}
		view := make([]MergedTx, 0, len(records))
		for _, r := range records {
			view = append(view, LocalMergedTx(r))
		}
		return view, nil
	}
	if err != nil {
		return nil, fmt.Errorf("merged view: %w", err)
	}
	var view []MergedTx
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, fmt.Errorf("decode merged view: %w", err)
	}
	return view, nil
}

// LocalMergedTx projects a local record into the merged-view shape.
func LocalMergedTx(r ledger.Record) MergedTx {
	amount := r.Amount
	if r.Direction == ledger.Debit {
		amount = -amount
	}
	return MergedTx{
		ID:        r.ID,
		Title:     r.Title,
		Amount:    amount,
		Type:      string(r.Direction),
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

// PublicKeySynced reports whether the device key has been pushed to the
// remote profile.
func (w *Wallet) PublicKeySynced(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cs, err := loadChainState(ctx, w.rdb)
	if err != nil {
		return false, err
	}
	return cs.PublicKeySynced, nil
}

func (w *Wallet) MarkPublicKeySynced(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cs, err := loadChainState(ctx, w.rdb)
	if err != nil {
		return err
	}
	cs.PublicKeySynced = true
	return saveChainState(ctx, w.rdb, cs)
}

// Send transfers funds server-side. There is no offline path: no credential
// is involved and the server is the only authority for direct transfers.
func (w *Wallet) Send(ctx context.Context, recipientID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !w.online.Online() {
		return ErrOnlineRequired
	}
	return w.remote.Transfer(ctx, w.userID, recipientID, amount)
}

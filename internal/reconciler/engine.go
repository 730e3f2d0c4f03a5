// Package reconciler drains the sync queue against the remote ledger and
// re-derives the reconciled balance from remote truth plus unsynced local
// records. It runs on every offline→online transition and periodically while
// online; every submission is idempotent by transaction id, so a cycle that
// dies halfway is simply retried.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paystash/paystash-wallet/internal/credential"
	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/remote"
	"github.com/paystash/paystash-wallet/internal/wallet"
)

// Ledger is the slice of the remote contract the engine drives.
type Ledger interface {
	FetchBalanceAndTransactions(ctx context.Context, userID string) (*remote.Snapshot, error)
	SubmitCredit(ctx context.Context, data credential.Data, signature string, risk remote.RiskMetadata) error
	SubmitTransaction(ctx context.Context, tx remote.Transaction) error
	SyncPublicKey(ctx context.Context, userID, publicKey string) error
}

// Connectivity is satisfied by connectivity.Monitor.
type Connectivity interface {
	Online() bool
	Edges() <-chan bool
}

type Engine struct {
	wallet   *wallet.Wallet
	remote   Ledger
	conn     Connectivity
	interval time.Duration
	log      *zap.Logger
}

func New(w *wallet.Wallet, rem Ledger, conn Connectivity, interval time.Duration, log *zap.Logger) *Engine {
	return &Engine{
		wallet:   w,
		remote:   rem,
		conn:     conn,
		interval: interval,
		log:      log,
	}
}

// Run is the main reconciliation loop.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("reconciler started", zap.Duration("interval", e.interval))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("reconciler stopped")
			return
		case online := <-e.conn.Edges():
			if online {
				e.Cycle(ctx)
			}
		case <-ticker.C:
			if e.conn.Online() {
				e.Cycle(ctx)
			}
		}
	}
}

// Cycle performs one full drain-and-merge pass.
func (e *Engine) Cycle(ctx context.Context) {
	e.syncPublicKey(ctx)
	e.Drain(ctx)
	if err := e.Merge(ctx); err != nil {
		e.log.Error("reconcile merge failed", zap.Error(err))
	}
}

// Drain walks the sync queue. Expired locked debits are implicitly cancelled
// (refund policy: locked funds return when the credential can no longer be
// redeemed); records carrying a signed credential, issuer-side locked debits
// and receiver-side pending credits alike, are submitted as verifiable
// credential claims; everything else goes up as a generic transaction.
// Failures leave the record untouched for the next cycle.
func (e *Engine) Drain(ctx context.Context) {
	pending, err := e.wallet.PendingRecords(ctx)
	if err != nil {
		e.log.Error("drain: list pending", zap.Error(err))
		return
	}

	now := time.Now().Unix()
	for _, rec := range pending {
		switch {
		case rec.Status == ledger.StatusLocked && rec.Metadata.ExpiresAt > 0 && now > rec.Metadata.ExpiresAt:
			if err := e.wallet.ExpireLockedDebit(ctx, rec.ID); err != nil {
				e.log.Error("drain: expire locked debit", zap.String("tx", rec.ID), zap.Error(err))
			}

		case rec.Metadata.Payload != "":
			e.submitCredential(ctx, rec)

		default:
			e.submitGeneric(ctx, rec)
		}
	}
}

// submitCredential re-submits the stored signed credential so the server can
// verify it and apply the transfer itself. Whichever side reaches the server
// first wins; the other side's claim lands on the already-recorded id and
// reports idempotent success.
func (e *Engine) submitCredential(ctx context.Context, rec ledger.Record) {
	cred, err := credential.Decode(rec.Metadata.Payload)
	if err != nil {
		// Stored payload is corrupt; the record stays applied locally but can
		// only be reconciled through the balance merge.
		e.log.Error("drain: stored credential unreadable", zap.String("tx", rec.ID), zap.Error(err))
		return
	}
	err = e.remote.SubmitCredit(ctx, cred.Data, cred.Signature, remote.RiskMetadata{
		Risk:        rec.Metadata.Risk,
		SequenceGap: rec.Metadata.SequenceGap,
		Verified:    rec.Metadata.Risk == "low",
	})
	if err != nil {
		e.log.Warn("drain: credential claim failed, will retry", zap.String("tx", rec.ID), zap.Error(err))
		return
	}
	e.complete(ctx, rec)
}

func (e *Engine) submitGeneric(ctx context.Context, rec ledger.Record) {
	tx := remote.Transaction{
		ID:        rec.ID,
		Amount:    rec.Amount,
		Status:    "completed",
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
	}
	switch rec.Direction {
	case ledger.Debit:
		tx.Type = "payment"
		tx.SenderID = e.wallet.UserID()
		tx.RecipientID = rec.Counterparty
	default:
		tx.Type = "topup"
		tx.RecipientID = e.wallet.UserID()
	}

	if err := e.remote.SubmitTransaction(ctx, tx); err != nil {
		e.log.Warn("drain: transaction submit failed, will retry", zap.String("tx", rec.ID), zap.Error(err))
		return
	}
	e.complete(ctx, rec)
}

func (e *Engine) complete(ctx context.Context, rec ledger.Record) {
	if err := e.wallet.CompleteRecord(ctx, rec.ID, rec.Status); err != nil {
		e.log.Error("drain: complete record", zap.String("tx", rec.ID), zap.Error(err))
		return
	}
	e.log.Info("record synced", zap.String("tx", rec.ID), zap.String("from", string(rec.Status)))
}

// Merge fetches the remote snapshot and applies the computed view back onto
// the wallet.
func (e *Engine) Merge(ctx context.Context) error {
	snap, err := e.remote.FetchBalanceAndTransactions(ctx, e.wallet.UserID())
	if err != nil {
		return err
	}
	local, err := e.wallet.LocalRecords(ctx)
	if err != nil {
		return err
	}
	view := ComputeMerge(snap, local, e.wallet.UserID())
	if err := e.wallet.ApplyReconciliation(ctx, view); err != nil {
		return err
	}
	e.log.Info("reconciled",
		zap.Int64("server_balance", view.ServerBalance),
		zap.Int64("wallet_balance", view.ReconciledBalance),
		zap.Int("transactions", len(view.Merged)),
	)
	return nil
}

// syncPublicKey pushes the device key to the remote profile once, so other
// devices can corroborate credentials issued here.
func (e *Engine) syncPublicKey(ctx context.Context) {
	synced, err := e.wallet.PublicKeySynced(ctx)
	if err != nil || synced {
		return
	}
	if err := e.remote.SyncPublicKey(ctx, e.wallet.UserID(), e.wallet.PublicKey()); err != nil {
		e.log.Warn("public key sync failed, will retry", zap.Error(err))
		return
	}
	if err := e.wallet.MarkPublicKeySynced(ctx); err != nil {
		e.log.Error("mark public key synced", zap.Error(err))
	}
}

package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/remote"
)

// TopUp credits the wallet from an external funding source. Like every other
// local acceptance the balance moves immediately; the remote insert either
// completes now or rides the sync queue.
func (w *Wallet) TopUp(ctx context.Context, amount int64) (*ledger.Record, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	rec := ledger.Record{
		ID:           uuid.NewString(),
		Direction:    ledger.Credit,
		Amount:       amount,
		Counterparty: w.userID,
		Title:        "Top Up",
		CreatedAt:    time.Now().UnixMilli(),
		Status:       ledger.StatusPendingSync,
	}

	w.mu.Lock()
	if err := w.ledger.Append(ctx, rec); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if _, err := w.ledger.AddWalletBalance(ctx, amount); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if _, err := w.ledger.AddServerBalance(ctx, amount); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.mu.Unlock()

	if w.online.Online() {
		err := w.remote.SubmitTransaction(ctx, remote.Transaction{
			ID:          rec.ID,
			RecipientID: w.userID,
			Amount:      amount,
			Type:        "topup",
			Status:      "completed",
			Title:       rec.Title,
			CreatedAt:   rec.CreatedAt,
		})
		if err == nil {
			if err := w.CompleteRecord(ctx, rec.ID, ledger.StatusPendingSync); err == nil {
				rec.Status = ledger.StatusCompleted
			}
		} else {
			w.log.Warn("top-up sync deferred", zap.String("tx", rec.ID), zap.Error(err))
		}
	}

	return &rec, nil
}

package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paystash/paystash-wallet/internal/credential"
	"github.com/paystash/paystash-wallet/internal/ledger"
)

// IssueResult carries the signed credential and the local record it locked.
type IssueResult struct {
	TransactionID string
	Sequence      uint64
	Payload       string
	Credential    *credential.Credential
}

// Issue builds, signs, and locally accounts for a new payment credential.
// The chain advance, signing, record append, and balance deduction happen as
// one unit under the wallet mutex; a second issuance can never observe the
// chain between read and commit.
func (w *Wallet) Issue(ctx context.Context, amount int64, recipientID string) (*IssueResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.keys.PrivateKey) == 0 {
		return nil, ErrKeysNotReady
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	balance, err := w.ledger.WalletBalance(ctx)
	if err != nil {
		return nil, err
	}
	if amount > balance {
		return nil, ErrInsufficientBalance
	}

	cs, err := loadChainState(ctx, w.rdb)
	if err != nil {
		return nil, err
	}
	nextSeq := cs.Sequence + 1
	prevHash := cs.LastHash

	if recipientID == "" {
		recipientID = credential.RecipientAny
	}
	nonce, err := credential.NewNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	data := credential.Data{
		Amount:         amount,
		ExpiresAt:      now.Add(w.ttl).Unix(),
		ID:             uuid.NewString(),
		IssuedAt:       now.Unix(),
		Nonce:          nonce,
		PayerPublicKey: w.keys.PublicKeyB64(),
		PrevHash:       prevHash,
		RecipientID:    recipientID,
		Sequence:       nextSeq,
		Type:           credential.TypePayment,
	}

	sig, err := credential.Sign(data, w.keys.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}

	cred := &credential.Credential{Data: data, Signature: sig}
	payload, err := credential.Encode(cred)
	if err != nil {
		return nil, err
	}

	// Commit the chain before the record: a chain slot is consumed by
	// issuance, whether or not the credential is ever redeemed.
	cs.Sequence = nextSeq
	cs.LastHash = credential.HashSignature(sig)
	if err := saveChainState(ctx, w.rdb, cs); err != nil {
		return nil, err
	}

	rec := ledger.Record{
		ID:           data.ID,
		Direction:    ledger.Debit,
		Amount:       amount,
		Counterparty: recipientID,
		Title:        fmt.Sprintf("Offline Payment #%d", nextSeq),
		CreatedAt:    now.UnixMilli(),
		Status:       ledger.StatusLocked,
		Metadata: ledger.Metadata{
			Sequence:  nextSeq,
			Payload:   payload,
			ExpiresAt: data.ExpiresAt,
		},
	}
	if err := w.ledger.Append(ctx, rec); err != nil {
		return nil, err
	}
	if _, err := w.ledger.AddWalletBalance(ctx, -amount); err != nil {
		return nil, err
	}

	w.log.Info("credential issued",
		zap.String("tx", data.ID),
		zap.Uint64("sequence", nextSeq),
		zap.Int64("amount", amount),
		zap.String("recipient", recipientID),
	)

	return &IssueResult{
		TransactionID: data.ID,
		Sequence:      nextSeq,
		Payload:       payload,
		Credential:    cred,
	}, nil
}

// Cancel voids a still-locked credential and refunds its amount. The chain is
// not rolled back: the chain records issuance, not settlement.
func (w *Wallet) Cancel(ctx context.Context, txID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := w.ledger.Get(ctx, txID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ledger.ErrNotFound
	}
	if err := w.ledger.UpdateStatus(ctx, txID, ledger.StatusLocked, ledger.StatusCancelled); err != nil {
		if errors.Is(err, ledger.ErrStatusConflict) {
			return ErrNotLocked
		}
		return err
	}
	if _, err := w.ledger.AddWalletBalance(ctx, rec.Amount); err != nil {
		return err
	}

	w.log.Info("credential cancelled",
		zap.String("tx", txID),
		zap.Int64("refund", rec.Amount),
	)
	return nil
}

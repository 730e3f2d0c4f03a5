package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paystash/paystash-wallet/internal/credential"
	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/remote"
)

// RedeemOutcome describes an accepted credit.
type RedeemOutcome struct {
	TransactionID string
	Amount        int64
	Status        ledger.Status
	Risk          string // "low" when the payer key corroborated online, else "unknown"
	SequenceGap   bool
}

// Redeem validates a scanned credential and records the credit.
//
// Check order: malformed, expired, replayed, mistargeted, forged. The
// signature check is unconditional in every connectivity state; the online
// registry lookup only annotates risk and can never invalidate a credential.
// The credit hits the local balance immediately; remote confirmation (now or
// during a later sync) only moves the record's status.
func (w *Wallet) Redeem(ctx context.Context, payload, selfIdentity string) (*RedeemOutcome, error) {
	cred, err := credential.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	data := cred.Data
	if data.Type != credential.TypePayment {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrMalformed, data.Type)
	}
	if data.Amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrMalformed)
	}

	sigValid := credential.Verify(data, cred.Signature, data.PayerPublicKey)

	if time.Now().Unix() > data.ExpiresAt {
		// Gap detection still learns from an expired-but-authentic
		// credential; expiry says nothing about the payer's chain. The
		// read-compare-set needs the wallet mutex like every other peer
		// sequence update, or a concurrent accept could be regressed.
		if sigValid {
			w.mu.Lock()
			err := recordPeerSequence(ctx, w.rdb, data.PayerPublicKey, data.Sequence)
			w.mu.Unlock()
			if err != nil {
				w.log.Warn("peer sequence update failed", zap.Error(err))
			}
		}
		return nil, ErrExpired
	}

	if exists, err := w.ledger.Exists(ctx, data.ID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyProcessed
	}

	target := strings.ToLower(strings.TrimSpace(data.RecipientID))
	self := strings.ToLower(strings.TrimSpace(selfIdentity))
	if target != "" && target != strings.ToLower(credential.RecipientAny) && target != self {
		return nil, fmt.Errorf("%w: intended for %s", ErrNotAddressedToMe, data.RecipientID)
	}

	if !sigValid {
		return nil, ErrInvalidSignature
	}

	// Optional identity corroboration: only attempted online, and absence of
	// a registered account is recorded, not rejected.
	risk := "unknown"
	verified := false
	if w.online.Online() {
		if _, found, err := w.remote.LookupPublicKey(ctx, data.PayerPublicKey); err != nil {
			w.log.Warn("public key lookup failed", zap.Error(err))
		} else if found {
			risk = "low"
			verified = true
		}
	}

	outcome, err := w.acceptCredit(ctx, cred, risk)
	if err != nil {
		return nil, err
	}

	// Remote confirmation happens after the optimistic local accept; failure
	// demotes nothing, the record simply stays queued for sync.
	if w.online.Online() {
		claimErr := w.remote.SubmitCredit(ctx, data, cred.Signature, remote.RiskMetadata{
			Risk:        risk,
			SequenceGap: outcome.SequenceGap,
			Verified:    verified,
		})
		if claimErr == nil {
			if err := w.CompleteRecord(ctx, data.ID, ledger.StatusPendingSync); err != nil {
				w.log.Warn("complete redeemed credit", zap.String("tx", data.ID), zap.Error(err))
			} else {
				outcome.Status = ledger.StatusCompleted
			}
		} else {
			w.log.Warn("immediate credit claim failed, queued for sync",
				zap.String("tx", data.ID),
				zap.Error(claimErr),
			)
		}
	}

	return outcome, nil
}

// acceptCredit performs the local state transition under the wallet mutex:
// replay re-check, gap detection, record append, optimistic balance credit.
func (w *Wallet) acceptCredit(ctx context.Context, cred *credential.Credential, risk string) (*RedeemOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := cred.Data

	lastSeen, err := peerSequence(ctx, w.rdb, data.PayerPublicKey)
	if err != nil {
		return nil, err
	}
	gap := data.Sequence > lastSeen+1
	if err := recordPeerSequence(ctx, w.rdb, data.PayerPublicKey, data.Sequence); err != nil {
		return nil, err
	}

	rec := ledger.Record{
		ID:           data.ID,
		Direction:    ledger.Credit,
		Amount:       data.Amount,
		Counterparty: data.PayerPublicKey,
		Title:        fmt.Sprintf("Payment Received #%d", data.Sequence),
		CreatedAt:    time.Now().UnixMilli(),
		Status:       ledger.StatusPendingSync,
		Metadata: ledger.Metadata{
			Sequence:    data.Sequence,
			Risk:        risk,
			SequenceGap: gap,
			Payload:     mustEncode(cred),
			PayerKey:    data.PayerPublicKey,
		},
	}
	if err := w.ledger.Append(ctx, rec); err != nil {
		if errors.Is(err, ledger.ErrStatusConflict) {
			// Lost a race with a concurrent scan of the same credential.
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}
	if _, err := w.ledger.AddWalletBalance(ctx, data.Amount); err != nil {
		return nil, err
	}

	if gap {
		w.log.Warn("issuance sequence gap detected",
			zap.String("payer", data.PayerPublicKey),
			zap.Uint64("sequence", data.Sequence),
			zap.Uint64("last_seen", lastSeen),
		)
	}
	w.log.Info("credential redeemed",
		zap.String("tx", data.ID),
		zap.Int64("amount", data.Amount),
		zap.String("risk", risk),
	)

	return &RedeemOutcome{
		TransactionID: data.ID,
		Amount:        data.Amount,
		Status:        ledger.StatusPendingSync,
		Risk:          risk,
		SequenceGap:   gap,
	}, nil
}

func mustEncode(cred *credential.Credential) string {
	payload, err := credential.Encode(cred)
	if err != nil {
		return ""
	}
	return payload
}

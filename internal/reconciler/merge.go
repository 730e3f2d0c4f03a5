package reconciler

import (
	"sort"

	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/remote"
	"github.com/paystash/paystash-wallet/internal/wallet"
)

// ComputeMerge folds the authoritative remote snapshot together with the
// still-unsynced local records into one consistent view.
//
// The remote log is ground truth for everything it has recorded. Local
// pending records are a provisional overlay: they appear in the merged list
// until the server knows them, and unsynced local debits are subtracted from
// the server balance (the server has not seen that money leave yet). Unsynced
// local credits are NOT added back: the optimistic credit already lives in
// the wallet balance and adding it twice would mint money.
//
// The function is pure and deterministic: identical inputs yield an identical
// view, in content and order.
func ComputeMerge(snap *remote.Snapshot, local []ledger.Record, userID string) wallet.ReconciledView {
	onServer := make(map[string]bool, len(snap.Transactions))
	merged := make([]wallet.MergedTx, 0, len(snap.Transactions)+len(local))

	for _, tx := range snap.Transactions {
		onServer[tx.ID] = true
		merged = append(merged, serverMergedTx(tx, userID))
	}

	var unsyncedDebits int64
	for _, r := range local {
		if !r.Pending() || onServer[r.ID] {
			continue
		}
		merged = append(merged, wallet.LocalMergedTx(r))
		if r.Direction == ledger.Debit {
			unsyncedDebits += r.Amount
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt > merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})

	return wallet.ReconciledView{
		ServerBalance:     snap.Balance,
		ReconciledBalance: snap.Balance - unsyncedDebits,
		Merged:            merged,
	}
}

// serverMergedTx signs a remote transaction for this user: sender side is a
// debit, recipient side (including server-originated top-ups with no sender)
// is a credit.
func serverMergedTx(tx remote.Transaction, userID string) wallet.MergedTx {
	amount := tx.Amount
	if amount < 0 {
		amount = -amount
	}
	if tx.SenderID == userID {
		amount = -amount
	}

	status := ledger.Status(tx.Status)
	if status == "" {
		status = ledger.StatusCompleted
	}
	title := tx.Title
	if title == "" {
		title = "Transaction"
	}

	return wallet.MergedTx{
		ID:        tx.ID,
		Title:     title,
		Amount:    amount,
		Type:      tx.Type,
		Status:    status,
		CreatedAt: tx.CreatedAt,
	}
}

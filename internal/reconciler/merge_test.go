package reconciler

import (
	"testing"

	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/remote"
)

func snapshot(balance int64, txs ...remote.Transaction) *remote.Snapshot {
	return &remote.Snapshot{Balance: balance, Transactions: txs}
}

func TestComputeMerge_SubtractsUnsyncedDebits(t *testing.T) {
	snap := snapshot(10_000)
	local := []ledger.Record{
		{ID: "tx-1", Direction: ledger.Debit, Amount: 3000, Status: ledger.StatusLocked, CreatedAt: 10},
		{ID: "tx-2", Direction: ledger.Debit, Amount: 500, Status: ledger.StatusPendingSync, CreatedAt: 20},
	}

	view := ComputeMerge(snap, local, "alice")
	if view.ServerBalance != 10_000 {
		t.Errorf("server balance: got %d want 10000", view.ServerBalance)
	}
	if view.ReconciledBalance != 6500 {
		t.Errorf("reconciled balance: got %d want 6500", view.ReconciledBalance)
	}
	if len(view.Merged) != 2 {
		t.Errorf("merged length: got %d want 2", len(view.Merged))
	}
}

func TestComputeMerge_UnsyncedCreditsNotAddedToBalance(t *testing.T) {
	snap := snapshot(10_000)
	local := []ledger.Record{
		{ID: "tx-c", Direction: ledger.Credit, Amount: 4000, Status: ledger.StatusPendingSync, CreatedAt: 10},
	}

	view := ComputeMerge(snap, local, "alice")
	if view.ReconciledBalance != 10_000 {
		t.Errorf("unsynced credit leaked into balance: got %d want 10000", view.ReconciledBalance)
	}
	// The credit still shows in the transaction view.
	if len(view.Merged) != 1 || view.Merged[0].ID != "tx-c" {
		t.Errorf("pending credit missing from view: %+v", view.Merged)
	}
}

func TestComputeMerge_ServerKnownRecordsNotDuplicated(t *testing.T) {
	snap := snapshot(7000,
		remote.Transaction{ID: "tx-1", SenderID: "alice", Amount: 3000, Type: "payment", CreatedAt: 10},
	)
	// The same transaction still sits pending locally: server truth wins and
	// the local copy contributes nothing.
	local := []ledger.Record{
		{ID: "tx-1", Direction: ledger.Debit, Amount: 3000, Status: ledger.StatusPendingSync, CreatedAt: 10},
	}

	view := ComputeMerge(snap, local, "alice")
	if len(view.Merged) != 1 {
		t.Fatalf("duplicate entry in merged view: %+v", view.Merged)
	}
	if view.ReconciledBalance != 7000 {
		t.Errorf("server-known debit double-counted: got %d want 7000", view.ReconciledBalance)
	}
}

func TestComputeMerge_CompletedLocalRecordsExcluded(t *testing.T) {
	snap := snapshot(5000)
	local := []ledger.Record{
		{ID: "tx-done", Direction: ledger.Debit, Amount: 100, Status: ledger.StatusCompleted, CreatedAt: 1},
		{ID: "tx-void", Direction: ledger.Debit, Amount: 100, Status: ledger.StatusCancelled, CreatedAt: 2},
	}

	view := ComputeMerge(snap, local, "alice")
	if len(view.Merged) != 0 {
		t.Errorf("terminal local records leaked into overlay: %+v", view.Merged)
	}
	if view.ReconciledBalance != 5000 {
		t.Errorf("terminal records affected balance: %d", view.ReconciledBalance)
	}
}

func TestComputeMerge_SignsPerUser(t *testing.T) {
	snap := snapshot(0,
		remote.Transaction{ID: "out", SenderID: "alice", RecipientID: "bob", Amount: 300, CreatedAt: 30},
		remote.Transaction{ID: "in", SenderID: "carol", RecipientID: "alice", Amount: 200, CreatedAt: 20},
		remote.Transaction{ID: "fund", RecipientID: "alice", Amount: 500, Type: "topup", CreatedAt: 10},
	)

	view := ComputeMerge(snap, nil, "alice")
	amounts := map[string]int64{}
	for _, tx := range view.Merged {
		amounts[tx.ID] = tx.Amount
	}
	if amounts["out"] != -300 {
		t.Errorf("sent payment: got %d want -300", amounts["out"])
	}
	if amounts["in"] != 200 {
		t.Errorf("received payment: got %d want 200", amounts["in"])
	}
	if amounts["fund"] != 500 {
		t.Errorf("top-up: got %d want 500", amounts["fund"])
	}
}

func TestComputeMerge_DeterministicOrder(t *testing.T) {
	snap := snapshot(0,
		remote.Transaction{ID: "b", Amount: 1, CreatedAt: 100},
		remote.Transaction{ID: "a", Amount: 1, CreatedAt: 100},
	)
	local := []ledger.Record{
		{ID: "z", Direction: ledger.Credit, Amount: 1, Status: ledger.StatusPendingSync, CreatedAt: 200},
	}

	first := ComputeMerge(snap, local, "alice")
	second := ComputeMerge(snap, local, "alice")

	wantOrder := []string{"z", "a", "b"}
	for i, want := range wantOrder {
		if first.Merged[i].ID != want {
			t.Fatalf("order: got %+v want %v", first.Merged, wantOrder)
		}
	}
	if len(first.Merged) != len(second.Merged) {
		t.Fatal("merge not deterministic")
	}
	for i := range first.Merged {
		if first.Merged[i] != second.Merged[i] {
			t.Fatalf("merge not deterministic at %d: %+v vs %+v", i, first.Merged[i], second.Merged[i])
		}
	}
}

func TestComputeMerge_Idempotent(t *testing.T) {
	snap := snapshot(10_000,
		remote.Transaction{ID: "srv-1", SenderID: "alice", Amount: 1000, CreatedAt: 50},
	)
	local := []ledger.Record{
		{ID: "tx-1", Direction: ledger.Debit, Amount: 3000, Status: ledger.StatusLocked, CreatedAt: 60},
	}

	once := ComputeMerge(snap, local, "alice")
	twice := ComputeMerge(snap, local, "alice")

	if once.ReconciledBalance != twice.ReconciledBalance {
		t.Fatalf("balance drifted across identical merges: %d vs %d",
			once.ReconciledBalance, twice.ReconciledBalance)
	}
	if len(once.Merged) != len(twice.Merged) {
		t.Fatal("view length drifted across identical merges")
	}
}

func TestServerMergedTx_Defaults(t *testing.T) {
	tx := serverMergedTx(remote.Transaction{ID: "x", Amount: 100, CreatedAt: 1}, "alice")
	if tx.Status != ledger.StatusCompleted {
		t.Errorf("status default: got %q want completed", tx.Status)
	}
	if tx.Title != "Transaction" {
		t.Errorf("title default: got %q", tx.Title)
	}

	// Server-provided negative amounts are normalized before signing.
	neg := serverMergedTx(remote.Transaction{ID: "y", SenderID: "alice", Amount: -100}, "alice")
	if neg.Amount != -100 {
		t.Errorf("pre-negated sent amount: got %d want -100", neg.Amount)
	}
}

package ledger

// Direction of a transaction record relative to this wallet.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Status is the lifecycle state of a local transaction record.
//
//	locked:       issuer-side debit; funds already removed from the spendable
//	              balance, waiting for redemption/sync or cancel
//	pending-sync: receiver-side credit accepted offline, waiting for remote
//	              confirmation
//	completed:    confirmed on the remote ledger (terminal)
//	cancelled:    issuer voided the credential before redemption (terminal)
type Status string

const (
	StatusLocked      Status = "locked"
	StatusPendingSync Status = "pending-sync"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Metadata carries per-record annotations that are not part of the monetary
// effect: sync material for credits, expiry for locked debits, and the
// receiver-side trust/gap flags.
type Metadata struct {
	Sequence    uint64 `json:"sequence,omitempty"`
	Risk        string `json:"risk,omitempty"` // "low" | "unknown"
	SequenceGap bool   `json:"sequence_gap,omitempty"`
	Payload     string `json:"payload,omitempty"` // encoded credential, kept for resubmission
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	PayerKey    string `json:"payer_key,omitempty"`
}

// Record is one entry in the append-only local transaction log. Amount is
// always positive; Direction carries the sign.
type Record struct {
	ID           string    `json:"id"`
	Direction    Direction `json:"direction"`
	Amount       int64     `json:"amount"`
	Counterparty string    `json:"counterparty"`
	Title        string    `json:"title"`
	CreatedAt    int64     `json:"created_at"` // unix millis
	Status       Status    `json:"status"`
	Metadata     Metadata  `json:"metadata"`
}

// Pending reports whether the record still needs remote confirmation.
func (r Record) Pending() bool {
	return r.Status == StatusLocked || r.Status == StatusPendingSync
}

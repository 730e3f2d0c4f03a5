package remote

// Transaction is a row of the authoritative remote transaction log.
// SenderID is empty for top-ups and other server-originated credits.
type Transaction struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Title       string `json:"title,omitempty"`
	CreatedAt   int64  `json:"created_at"` // unix millis
}

// Snapshot is the remote balance plus transaction log for one user.
type Snapshot struct {
	Balance      int64         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// RiskMetadata is the receiver-derived trust annotation submitted alongside a
// claimed credit. It never affects whether the server accepts the claim; it
// feeds reputation-style scoring and audit.
type RiskMetadata struct {
	Risk        string `json:"risk"` // "low" | "unknown"
	SequenceGap bool   `json:"sequence_gap,omitempty"`
	Verified    bool   `json:"verified"`
}

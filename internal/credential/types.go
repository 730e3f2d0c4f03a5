package credential

// TypePayment is the only credential type the wallet issues or accepts.
const TypePayment = "payment"

// RecipientAny is the wildcard recipient: any identity may redeem.
const RecipientAny = "ANY"

// GenesisHash seeds the per-device issuance chain before the first credential.
const GenesisHash = "genesis_hash"

// Data is the signed portion of a credential. Fields are declared in
// lexicographic JSON-key order; Canonical relies on this so that a payload
// re-encoded with different field order still verifies.
type Data struct {
	Amount         int64  `json:"amount"` // minor units, > 0
	ExpiresAt      int64  `json:"expires_at"`
	ID             string `json:"id"`
	IssuedAt       int64  `json:"issued_at"`
	Nonce          string `json:"nonce"`
	PayerPublicKey string `json:"payer_public_key"` // base64 ed25519
	PrevHash       string `json:"prev_hash"`
	RecipientID    string `json:"recipient_id"`
	Sequence       uint64 `json:"sequence"`
	Type           string `json:"type"`
}

// Credential is the transferable unit: signed data plus a detached signature
// over Canonical(Data). The embedded payer public key makes it
// self-certifying; no registry lookup is needed to check authenticity.
type Credential struct {
	Data      Data   `json:"data"`
	Signature string `json:"signature"` // base64 ed25519 detached signature
}

package credential

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func testData(t *testing.T) (Data, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	return Data{
		Amount:         2500,
		ExpiresAt:      1_900_000_300,
		ID:             "tx-abc",
		IssuedAt:       1_900_000_000,
		Nonce:          "0011223344556677",
		PayerPublicKey: base64.StdEncoding.EncodeToString(pub),
		PrevHash:       GenesisHash,
		RecipientID:    "bob",
		Sequence:       1,
		Type:           TypePayment,
	}, priv
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, priv := testData(t)
	sig, err := Sign(data, priv)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := Encode(&Credential{Data: data, Signature: sig})
	if err != nil {
		t.Fatal(err)
	}

	cred, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cred.Data != data {
		t.Errorf("data changed in transit:\n got %+v\nwant %+v", cred.Data, data)
	}
	if cred.Signature != sig {
		t.Error("signature changed in transit")
	}
}

func TestDecode_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"not json", "definitely not json"},
		{"missing signature", `{"data":{"amount":1},"signature":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.payload); !errors.Is(err, ErrDecode) {
				t.Fatalf("got %v want ErrDecode", err)
			}
		})
	}
}

// The payload a scanner hands us carries JSON keys in whatever order the
// sending device wrote them. The signature must verify regardless.
func TestVerify_KeyOrderIndependent(t *testing.T) {
	data, priv := testData(t)
	sig, err := Sign(data, priv)
	if err != nil {
		t.Fatal(err)
	}

	reordered := `{"data":{` +
		`"type":"payment",` +
		`"sequence":1,` +
		`"recipient_id":"bob",` +
		`"prev_hash":"genesis_hash",` +
		`"payer_public_key":"` + data.PayerPublicKey + `",` +
		`"nonce":"0011223344556677",` +
		`"issued_at":1900000000,` +
		`"id":"tx-abc",` +
		`"expires_at":1900000300,` +
		`"amount":2500` +
		`},"signature":"` + sig + `"}`

	cred, err := Decode(reordered)
	if err != nil {
		t.Fatalf("Decode reordered payload: %v", err)
	}
	if !Verify(cred.Data, cred.Signature, cred.Data.PayerPublicKey) {
		t.Fatal("signature must verify against a key-reordered payload")
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	data, _ := testData(t)
	a, err := Canonical(data)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonical(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("canonical form must be byte-stable")
	}
}

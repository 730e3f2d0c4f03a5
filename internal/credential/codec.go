package credential

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode reports a malformed credential payload. Receivers treat it as a
// rejection of the scan, never as a fatal condition.
var ErrDecode = errors.New("malformed credential payload")

// Encode serializes a credential into the transport payload (QR string).
func Encode(c *Credential) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode credential: %w", err)
	}
	return string(raw), nil
}

// Decode parses a transport payload back into a credential.
func Decode(payload string) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if c.Signature == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrDecode)
	}
	return &c, nil
}

// Canonical returns the byte form signatures are computed over. Data's struct
// fields are declared in sorted-key order, so marshaling the struct yields a
// stable serialization regardless of how the payload arrived on the wire.
func Canonical(d Data) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("canonicalize credential data: %w", err)
	}
	return raw, nil
}

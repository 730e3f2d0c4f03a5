// Package remote is the HTTP client for the authoritative ledger service.
// All submissions are idempotent by transaction id: re-sending a claim the
// server already recorded is reported as success, which lets the sync queue
// retry blindly after partial failures.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paystash/paystash-wallet/internal/credential"
)

// ErrRemote is a transient remote failure; callers retry on the next cycle.
var ErrRemote = errors.New("remote ledger error")

// Client is an authenticated remote ledger REST client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	return resp, nil
}

// Ping probes the service; the connectivity monitor uses it as the
// online/offline signal.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthz status %d", ErrRemote, resp.StatusCode)
	}
	return nil
}

// FetchBalanceAndTransactions returns the authoritative snapshot for a user.
func (c *Client) FetchBalanceAndTransactions(ctx context.Context, userID string) (*Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/ledger/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch snapshot for %s: status %d", ErrRemote, userID, resp.StatusCode)
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrRemote, err)
	}
	return &snap, nil
}

type claimRequest struct {
	Data      credential.Data `json:"data"`
	Signature string          `json:"signature"`
	Risk      RiskMetadata    `json:"risk"`
}

// SubmitCredit claims a scanned credential on the server. The server verifies
// the signature itself and moves the funds; a 409 means the claim was already
// recorded and is treated as success.
func (c *Client) SubmitCredit(ctx context.Context, data credential.Data, signature string, risk RiskMetadata) error {
	resp, err := c.do(ctx, http.MethodPost, "/ledger/credits", claimRequest{
		Data:      data,
		Signature: signature,
		Risk:      risk,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.submitStatus("submit credit "+data.ID, resp.StatusCode)
}

// SubmitTransaction records a generic transaction (top-ups, issuer-side debit
// confirmations). Idempotent by id like SubmitCredit.
func (c *Client) SubmitTransaction(ctx context.Context, tx Transaction) error {
	resp, err := c.do(ctx, http.MethodPost, "/ledger/transactions", tx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.submitStatus("submit transaction "+tx.ID, resp.StatusCode)
}

// LookupPublicKey asks whether a payer public key is registered to a known
// account. Absence is not an error: it only downgrades the risk annotation.
func (c *Client) LookupPublicKey(ctx context.Context, publicKey string) (string, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/ledger/accounts?public_key="+url.QueryEscape(publicKey), nil)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("%w: lookup public key: status %d", ErrRemote, resp.StatusCode)
	}
	var out struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("%w: decode account: %v", ErrRemote, err)
	}
	return out.AccountID, true, nil
}

// SyncPublicKey registers the device public key under the user's profile so
// other devices can corroborate credentials issued here.
func (c *Client) SyncPublicKey(ctx context.Context, userID, publicKey string) error {
	resp, err := c.do(ctx, http.MethodPut, "/ledger/"+url.PathEscape(userID)+"/public-key", map[string]string{
		"public_key": publicKey,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sync public key: status %d", ErrRemote, resp.StatusCode)
	}
	return nil
}

// Transfer moves funds server-side (the online send path; no credential
// involved).
func (c *Client) Transfer(ctx context.Context, userID, recipientID string, amount int64) error {
	resp, err := c.do(ctx, http.MethodPost, "/ledger/transfers", map[string]any{
		"sender_id":    userID,
		"recipient_id": recipientID,
		"amount":       amount,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: transfer: status %d", ErrRemote, resp.StatusCode)
	}
	return nil
}

func (c *Client) submitStatus(op string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusConflict:
		// Already recorded under this id; idempotent success.
		return nil
	default:
		return fmt.Errorf("%w: %s: status %d", ErrRemote, op, code)
	}
}

// Package httpapi exposes the wallet over HTTP. The transport layer that
// renders or scans QR codes lives outside this process; here a credential is
// just the encoded payload string moving in and out.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/wallet"
)

// Wallet is satisfied by wallet.Wallet.
type Wallet interface {
	Issue(ctx context.Context, amount int64, recipientID string) (*wallet.IssueResult, error)
	Redeem(ctx context.Context, payload, selfIdentity string) (*wallet.RedeemOutcome, error)
	Cancel(ctx context.Context, txID string) error
	TopUp(ctx context.Context, amount int64) (*ledger.Record, error)
	Send(ctx context.Context, recipientID string, amount int64) error
	Balances(ctx context.Context) (int64, int64, error)
	MergedView(ctx context.Context) ([]wallet.MergedTx, error)
	UserID() string
}

type Handler struct {
	wallet Wallet
	log    *zap.Logger
}

func NewHandler(w Wallet, log *zap.Logger) *Handler {
	return &Handler{wallet: w, log: log}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/wallet/issue", h.handleIssue)
	rg.POST("/wallet/redeem", h.handleRedeem)
	rg.POST("/wallet/cancel/:id", h.handleCancel)
	rg.POST("/wallet/topup", h.handleTopUp)
	rg.POST("/wallet/send", h.handleSend)
	rg.GET("/wallet/balance", h.handleBalance)
	rg.GET("/wallet/transactions", h.handleTransactions)
}

type issueRequest struct {
	Amount      int64  `json:"amount"`
	RecipientID string `json:"recipient_id"`
}

func (h *Handler) handleIssue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.wallet.Issue(c.Request.Context(), req.Amount, req.RecipientID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"transaction_id": res.TransactionID,
		"sequence":       res.Sequence,
		"payload":        res.Payload,
	})
}

type redeemRequest struct {
	Payload string `json:"payload"`
}

func (h *Handler) handleRedeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Payload == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	outcome, err := h.wallet.Redeem(c.Request.Context(), req.Payload, h.wallet.UserID())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": outcome.TransactionID,
		"amount":         outcome.Amount,
		"status":         outcome.Status,
		"risk":           outcome.Risk,
		"sequence_gap":   outcome.SequenceGap,
	})
}

func (h *Handler) handleCancel(c *gin.Context) {
	if err := h.wallet.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) handleTopUp(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := h.wallet.TopUp(c.Request.Context(), req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction_id": rec.ID, "status": rec.Status})
}

type sendRequest struct {
	RecipientID string `json:"recipient_id"`
	Amount      int64  `json:"amount"`
}

func (h *Handler) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RecipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.wallet.Send(c.Request.Context(), req.RecipientID, req.Amount); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *Handler) handleBalance(c *gin.Context) {
	wb, sb, err := h.wallet.Balances(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet_balance": wb, "server_balance": sb})
}

func (h *Handler) handleTransactions(c *gin.Context) {
	view, err := h.wallet.MergedView(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": view})
}

// writeError maps wallet errors onto HTTP responses. Fraud-indicating
// rejections (forged signature, replayed credential) are labelled so the
// caller can present them differently from benign ones like an expired or
// garbled payload.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wallet.ErrMalformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_credential"})
	case errors.Is(err, wallet.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "credential_expired"})
	case errors.Is(err, wallet.ErrNotAddressedToMe):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_addressed_to_you"})
	case errors.Is(err, wallet.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": "already_processed", "fraud_risk": true})
	case errors.Is(err, wallet.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature", "fraud_risk": true})
	case errors.Is(err, wallet.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount"})
	case errors.Is(err, wallet.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient_balance"})
	case errors.Is(err, wallet.ErrKeysNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "keys_not_ready"})
	case errors.Is(err, wallet.ErrOnlineRequired):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "online_required"})
	case errors.Is(err, wallet.ErrNotLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "not_cancellable"})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction_not_found"})
	default:
		h.log.Error("wallet operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

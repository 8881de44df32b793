package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reward-guard-backend/internal/ledger"
	"reward-guard-backend/internal/models"
	"reward-guard-backend/internal/settlement"
)

type ClaimHandler struct {
	ledger     *ledger.Ledger
	settlement *settlement.Service
	events     *EventsHandler
	cooldown   time.Duration
	logger     *zap.Logger
}

func NewClaimHandler(claimLedger *ledger.Ledger, settlementService *settlement.Service, events *EventsHandler, cooldown time.Duration, logger *zap.Logger) *ClaimHandler {
	return &ClaimHandler{
		ledger:     claimLedger,
		settlement: settlementService,
		events:     events,
		cooldown:   cooldown,
		logger:     logger,
	}
}

// InitClaim is phase 1 of the claim protocol. Safe to retry: a repeated init
// returns the same reference it returned the first time.
func (h *ClaimHandler) InitClaim(c *gin.Context) {
	subject := c.GetString("subject")

	var req models.InitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.WrapError(models.KindInvalidInput, "invalid init request", err))
		return
	}

	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		respondError(c, models.WrapError(models.KindInvalidInput, "invalid amount", err))
		return
	}

	onCooldown, remaining, err := h.ledger.CooldownCheck(c.Request.Context(), subject, h.cooldown)
	if err != nil {
		respondError(c, err)
		return
	}
	if onCooldown {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":     false,
			"error":       string(models.KindRateLimited),
			"retry_after": remaining.Seconds(),
		})
		return
	}

	record, err := h.ledger.Init(c.Request.Context(), subject, req.Resource, amount)
	if err != nil {
		if models.KindOf(err) == models.KindAmountMismatch && h.events != nil {
			h.events.NotifyTamper(subject, req.Resource)
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"reference": record.Reference,
		"amount":    record.Amount,
		"resource":  record.Resource,
	})
}

// ConfirmClaim is phase 2. The record is CLAIMED before settlement is
// attempted; a settlement failure shows up in the settlement field of the
// response and in the operator feed, never as a rolled-back claim.
func (h *ClaimHandler) ConfirmClaim(c *gin.Context) {
	var req models.ConfirmClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.WrapError(models.KindInvalidInput, "invalid confirm request", err))
		return
	}

	record, err := h.ledger.Confirm(c.Request.Context(), req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.ledger.StartCooldown(c.Request.Context(), record.Subject); err != nil {
		// Advisory only; the claim itself has already been finalized.
		h.logger.Warn("failed to start cooldown", zap.String("subject", record.Subject), zap.Error(err))
	}

	settlementStatus := gin.H{"status": "broadcast"}
	txHash, err := h.settlement.Settle(c.Request.Context(), record.Subject, record.Amount, record.Resource)
	switch {
	case err != nil && models.KindOf(err) == models.KindSettlementUnauthorized:
		settlementStatus = gin.H{"status": "unauthorized", "error": string(models.KindSettlementUnauthorized)}
	case err != nil:
		settlementStatus = gin.H{"status": "failed"}
	default:
		settlementStatus["tx_hash"] = txHash
		h.ledger.AttachSettlement(c.Request.Context(), record, txHash)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"subject":    record.Subject,
		"resource":   record.Resource,
		"amount":     record.Amount,
		"settlement": settlementStatus,
	})
}

// GetClaim returns the caller's claim record for one resource.
func (h *ClaimHandler) GetClaim(c *gin.Context) {
	subject := c.GetString("subject")
	resource := c.Param("resource")

	record, err := h.ledger.GetClaim(c.Request.Context(), subject, resource)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"claim": gin.H{
			"resource":           record.Resource,
			"amount":             record.Amount,
			"state":              record.State(),
			"reference":          record.Reference,
			"settlement_tx_hash": record.SettlementTxHash,
			"created_at":         record.CreatedAt,
		},
	})
}

// Cooldown reports the caller's global cooldown status.
func (h *ClaimHandler) Cooldown(c *gin.Context) {
	subject := c.GetString("subject")

	onCooldown, remaining, err := h.ledger.CooldownCheck(c.Request.Context(), subject, h.cooldown)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"on_cooldown":       onCooldown,
		"remaining_seconds": remaining.Seconds(),
	})
}

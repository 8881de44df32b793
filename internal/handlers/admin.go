package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reward-guard-backend/internal/ledger"
	"reward-guard-backend/internal/models"
	"reward-guard-backend/internal/services"
)

// AdminHandler is the operator/collaborator surface: recording earned rewards
// and toggling maintenance mode.
type AdminHandler struct {
	ledger   *ledger.Ledger
	settings *services.SettingsService
	logger   *zap.Logger
}

func NewAdminHandler(claimLedger *ledger.Ledger, settings *services.SettingsService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		ledger:   claimLedger,
		settings: settings,
		logger:   logger,
	}
}

// RecordReward creates the pending claim record once a reward has been
// earned. Idempotent: an existing record is returned untouched.
func (h *AdminHandler) RecordReward(c *gin.Context) {
	var req models.RecordRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.WrapError(models.KindInvalidInput, "invalid reward request", err))
		return
	}

	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		respondError(c, models.WrapError(models.KindInvalidInput, "invalid amount", err))
		return
	}

	subject := models.NormalizeAddress(req.Subject)
	record, created, err := h.ledger.RecordReward(c.Request.Context(), subject, req.Resource, amount)
	if err != nil {
		respondError(c, err)
		return
	}

	if created {
		h.logger.Info("reward recorded",
			zap.String("subject", subject),
			zap.String("resource", req.Resource),
			zap.String("amount", amount.String()))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"created":  created,
		"subject":  record.Subject,
		"resource": record.Resource,
		"amount":   record.Amount,
		"state":    record.State(),
	})
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *AdminHandler) SetMaintenance(c *gin.Context) {
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.WrapError(models.KindInvalidInput, "invalid maintenance request", err))
		return
	}

	if err := h.settings.SetMaintenanceMode(c.Request.Context(), *req.Enabled); err != nil {
		respondError(c, models.WrapError(models.KindStoreUnavailable, "failed to set maintenance mode", err))
		return
	}

	h.logger.Warn("maintenance mode changed", zap.Bool("enabled", *req.Enabled))
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": *req.Enabled})
}

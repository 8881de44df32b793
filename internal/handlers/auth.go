package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reward-guard-backend/internal/guard"
	"reward-guard-backend/internal/models"
	"reward-guard-backend/internal/services"
)

const challengeCookieName = "auth_challenge"

const sessionTTL = 24 * time.Hour

type AuthHandler struct {
	replayGuard *guard.ReplayGuard
	jwtService  *services.JWTService
	verifier    guard.SignatureVerifier
	logger      *zap.Logger
	secure      bool
}

func NewAuthHandler(replayGuard *guard.ReplayGuard, jwtService *services.JWTService, verifier guard.SignatureVerifier, logger *zap.Logger, secure bool) *AuthHandler {
	return &AuthHandler{
		replayGuard: replayGuard,
		jwtService:  jwtService,
		verifier:    verifier,
		logger:      logger,
		secure:      secure,
	}
}

// Challenge issues a single-use nonce. The nonce value goes in the response
// for the client to sign; the challenge ID travels only inside a signed
// http-only cookie, so possession of the response body alone is not enough to
// answer the challenge.
func (h *AuthHandler) Challenge(c *gin.Context) {
	challengeID, nonce, err := h.replayGuard.Issue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	cookieToken, err := h.jwtService.GenerateChallengeToken(challengeID, guard.NonceTTL)
	if err != nil {
		h.logger.Error("failed to sign challenge cookie", zap.Error(err))
		respondError(c, models.WrapError(models.KindStoreUnavailable, "failed to sign challenge", err))
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(challengeCookieName, cookieToken, int(guard.NonceTTL.Seconds()), "/", "", h.secure, true)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"nonce":      nonce.Value,
		"expires_at": nonce.ExpiresAt,
	})
}

// Verify consumes the challenge and exchanges a valid signature for a session
// token. The nonce is burned on the first attempt whatever the outcome.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.WrapError(models.KindInvalidInput, "invalid verify request", err))
		return
	}

	cookieToken, err := c.Cookie(challengeCookieName)
	if err != nil {
		respondError(c, models.NewError(models.KindReplayInvalid, "challenge cookie missing"))
		return
	}

	claims, err := h.jwtService.ValidateChallengeToken(cookieToken)
	if err != nil {
		respondError(c, models.WrapError(models.KindReplayInvalid, "challenge cookie invalid", err))
		return
	}

	if err := h.replayGuard.Consume(c.Request.Context(), claims.ChallengeID, req.Nonce); err != nil {
		respondError(c, err)
		return
	}

	if err := h.verifier.Verify(req.Address, req.Nonce, req.Signature); err != nil {
		h.logger.Warn("signature verification failed",
			zap.String("address", req.Address), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "INVALID_SIGNATURE"})
		return
	}

	subject := models.NormalizeAddress(req.Address)
	token, err := h.jwtService.GenerateSessionToken(subject, sessionTTL)
	if err != nil {
		h.logger.Error("failed to sign session token", zap.Error(err))
		respondError(c, models.WrapError(models.KindStoreUnavailable, "failed to sign session", err))
		return
	}

	// The challenge is spent either way.
	c.SetCookie(challengeCookieName, "", -1, "/", "", h.secure, true)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"subject": subject,
	})
}

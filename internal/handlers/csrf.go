package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reward-guard-backend/internal/guard"
)

type CSRFHandler struct {
	csrfGuard *guard.CSRFGuard
	secure    bool
}

func NewCSRFHandler(csrfGuard *guard.CSRFGuard, secure bool) *CSRFHandler {
	return &CSRFHandler{csrfGuard: csrfGuard, secure: secure}
}

// Token delivers the double-submit pair: the same value as an http-only
// same-site-strict cookie and in the response body. The client echoes the
// body value in the X-CSRF-Token header on every mutating call.
func (h *CSRFHandler) Token(c *gin.Context) {
	token, err := h.csrfGuard.IssueToken()
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(guard.CSRFCookieName, token, 3600, "/", "", h.secure, true)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"csrf_token": token,
	})
}

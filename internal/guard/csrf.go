package guard

import (
	"crypto/subtle"
	"net/http"

	"reward-guard-backend/internal/models"
)

const (
	// CSRFCookieName is the http-only cookie half of the double-submit pair.
	CSRFCookieName = "csrf_token"
	// CSRFHeaderName is the header the client must echo the cookie value in.
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFGuard implements the double-submit pattern: the same opaque value must
// arrive in both the cookie and the request header. No server-side state —
// validity is byte-equality, not a lookup. An attacker's page cannot read the
// cookie, so it cannot echo it.
type CSRFGuard struct{}

func NewCSRFGuard() *CSRFGuard {
	return &CSRFGuard{}
}

// IssueToken generates a fresh token. A new value is minted per request;
// reuse within a browser session before expiry is harmless.
func (g *CSRFGuard) IssueToken() (string, error) {
	token, err := models.GenerateOpaqueToken()
	if err != nil {
		return "", models.WrapError(models.KindStoreUnavailable, "failed to generate csrf token", err)
	}
	return token, nil
}

// Validate checks the double-submit pair on r. Safe (read-only) methods are
// exempt; everything else fails closed on any absence or mismatch.
func (g *CSRFGuard) Validate(r *http.Request) error {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	}

	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return models.NewError(models.KindCSRFInvalid, "csrf cookie missing")
	}

	header := r.Header.Get(CSRFHeaderName)
	if header == "" {
		return models.NewError(models.KindCSRFInvalid, "csrf header missing")
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return models.NewError(models.KindCSRFInvalid, "csrf token mismatch")
	}
	return nil
}

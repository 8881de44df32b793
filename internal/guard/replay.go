package guard

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"reward-guard-backend/internal/models"
)

// NonceTTL is how long an issued challenge stays valid.
const NonceTTL = 5 * time.Minute

// NonceStore persists challenge nonces server-side. Consume must be atomic:
// a stored nonce is returned at most once, then gone.
type NonceStore interface {
	SaveNonce(ctx context.Context, challengeID string, nonce *models.Nonce) error
	ConsumeNonce(ctx context.Context, challengeID string) (*models.Nonce, error)
}

// SignatureVerifier checks the caller's proof-of-possession over the nonce.
// The cryptography lives with the wallet integration, not here.
type SignatureVerifier interface {
	Verify(address, nonce, signature string) error
}

// ReplayGuard issues and consumes single-use authentication nonces. The nonce
// proves freshness of a signed payload; it is never reusable, even before its
// TTL expires.
type ReplayGuard struct {
	store NonceStore
	now   func() time.Time
}

func NewReplayGuard(store NonceStore) *ReplayGuard {
	return &ReplayGuard{store: store, now: time.Now}
}

// Issue creates a challenge and returns its ID together with the nonce value
// the client must sign. The ID travels in a signed cookie; the value is only
// compared server-side on consume.
func (g *ReplayGuard) Issue(ctx context.Context) (string, *models.Nonce, error) {
	value, err := models.GenerateOpaqueToken()
	if err != nil {
		return "", nil, models.WrapError(models.KindStoreUnavailable, "failed to generate nonce", err)
	}

	now := g.now()
	nonce := &models.Nonce{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(NonceTTL),
	}

	challengeID := uuid.NewString()
	if err := g.store.SaveNonce(ctx, challengeID, nonce); err != nil {
		return "", nil, models.WrapError(models.KindStoreUnavailable, "failed to store nonce", err)
	}
	return challengeID, nonce, nil
}

// Consume validates the presented value against the stored challenge. The
// stored nonce is removed on the first attempt regardless of outcome, so a
// failed guess burns the challenge instead of leaving it open for replay.
func (g *ReplayGuard) Consume(ctx context.Context, challengeID, presented string) error {
	nonce, err := g.store.ConsumeNonce(ctx, challengeID)
	if err != nil {
		return models.WrapError(models.KindStoreUnavailable, "failed to consume nonce", err)
	}
	if nonce == nil {
		return models.NewError(models.KindReplayInvalid, "nonce not found or already consumed")
	}
	if nonce.ExpiredAt(g.now()) {
		return models.NewError(models.KindReplayInvalid, "nonce expired")
	}
	if subtle.ConstantTimeCompare([]byte(nonce.Value), []byte(presented)) != 1 {
		return models.NewError(models.KindReplayInvalid, "nonce mismatch")
	}
	return nil
}

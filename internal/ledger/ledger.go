package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reward-guard-backend/internal/models"
)

// ClaimStore is the durable map behind the ledger. Implementations must give
// per-key atomicity for CompareAndSetClaim; everything else is plain reads.
type ClaimStore interface {
	GetClaim(ctx context.Context, subject, resource string) (*models.ClaimRecord, error)
	GetClaimByReference(ctx context.Context, reference string) (*models.ClaimRecord, error)
	CreateClaim(ctx context.Context, record *models.ClaimRecord) (bool, error)
	CompareAndSetClaim(ctx context.Context, record *models.ClaimRecord, expectedVersion int64) (bool, error)
}

// CooldownStore needs no transactional guarantees: last-writer-wins upserts
// are acceptable for an advisory cooldown.
type CooldownStore interface {
	GetCooldown(ctx context.Context, subject string) (*models.CooldownRecord, error)
	PutCooldown(ctx context.Context, record *models.CooldownRecord) error
}

// Ledger enforces the two-phase claim protocol:
// pending -> referenced (Init) -> claimed (Confirm), never backward.
type Ledger struct {
	claims    ClaimStore
	cooldowns CooldownStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewLedger(claims ClaimStore, cooldowns CooldownStore, logger *zap.Logger) *Ledger {
	return &Ledger{
		claims:    claims,
		cooldowns: cooldowns,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordReward creates the pending record for an earned reward. An existing
// record is left untouched; rewards are never overwritten once recorded.
func (l *Ledger) RecordReward(ctx context.Context, subject, resource string, amount decimal.Decimal) (*models.ClaimRecord, bool, error) {
	record := &models.ClaimRecord{
		Subject:   subject,
		Resource:  resource,
		Amount:    amount,
		CreatedAt: l.now(),
		Version:   1,
	}

	created, err := l.claims.CreateClaim(ctx, record)
	if err != nil {
		return nil, false, models.WrapError(models.KindStoreUnavailable, "failed to record reward", err)
	}
	if !created {
		existing, err := l.claims.GetClaim(ctx, subject, resource)
		if err != nil {
			return nil, false, models.WrapError(models.KindStoreUnavailable, "failed to read existing reward", err)
		}
		return existing, false, nil
	}
	return record, true, nil
}

// GetClaim returns the record for (subject, resource), or REWARD_NOT_FOUND.
func (l *Ledger) GetClaim(ctx context.Context, subject, resource string) (*models.ClaimRecord, error) {
	record, err := l.claims.GetClaim(ctx, subject, resource)
	if err != nil {
		return nil, models.WrapError(models.KindStoreUnavailable, "failed to get claim", err)
	}
	if record == nil {
		return nil, models.NewError(models.KindRewardNotFound, "no reward recorded for subject and resource")
	}
	return record, nil
}

// Init issues the one-time claim reference. Idempotent: re-requesting init on
// an already-referenced record returns the existing (reference, amount) pair
// unchanged instead of minting a new one, so client retries after a dropped
// response converge on a single correlation id.
func (l *Ledger) Init(ctx context.Context, subject, resource string, requested decimal.Decimal) (*models.ClaimRecord, error) {
	record, err := l.GetClaim(ctx, subject, resource)
	if err != nil {
		return nil, err
	}

	switch record.State() {
	case models.ClaimStateClaimed:
		return nil, models.NewError(models.KindAlreadyClaimed, "reward already claimed")
	case models.ClaimStateReferenced:
		return record, nil
	}

	if !record.Amount.Equal(requested) {
		// Amount substitution is a potential tamper attempt, never auto-corrected.
		l.logger.Error("claim amount mismatch",
			zap.String("subject", subject),
			zap.String("resource", resource),
			zap.String("stored", record.Amount.String()),
			zap.String("requested", requested.String()))
		return nil, models.NewError(models.KindAmountMismatch, "requested amount does not match recorded reward")
	}

	updated := *record
	updated.Reference = uuid.NewString()
	updated.Version = record.Version + 1

	swapped, err := l.claims.CompareAndSetClaim(ctx, &updated, record.Version)
	if err != nil {
		return nil, models.WrapError(models.KindStoreUnavailable, "failed to persist reference", err)
	}
	if !swapped {
		// Lost a race with a concurrent init. The winner's reference is the
		// only valid one; two references for one reward would allow double
		// settlement.
		winner, err := l.claims.GetClaim(ctx, subject, resource)
		if err != nil || winner == nil {
			return nil, models.WrapError(models.KindStoreUnavailable, "claim changed concurrently", err)
		}
		if winner.State() == models.ClaimStateClaimed {
			return nil, models.NewError(models.KindAlreadyClaimed, "reward already claimed")
		}
		return winner, nil
	}
	return &updated, nil
}

// Confirm transitions the referenced record to claimed and returns it so the
// caller can trigger settlement exactly once. An already-claimed record
// reports ALREADY_CLAIMED and must not re-trigger settlement; the claim state
// is deliberately decoupled from the settlement outcome.
func (l *Ledger) Confirm(ctx context.Context, reference string) (*models.ClaimRecord, error) {
	record, err := l.claims.GetClaimByReference(ctx, reference)
	if err != nil {
		return nil, models.WrapError(models.KindStoreUnavailable, "failed to resolve reference", err)
	}
	if record == nil {
		return nil, models.NewError(models.KindReferenceNotFound, "unknown claim reference")
	}
	if record.Claimed {
		return nil, models.NewError(models.KindAlreadyClaimed, "reward already claimed")
	}

	updated := *record
	updated.Claimed = true
	updated.Version = record.Version + 1

	swapped, err := l.claims.CompareAndSetClaim(ctx, &updated, record.Version)
	if err != nil {
		return nil, models.WrapError(models.KindStoreUnavailable, "failed to persist claim", err)
	}
	if !swapped {
		// A concurrent confirm won; the loser must not settle a second time.
		current, err := l.claims.GetClaimByReference(ctx, reference)
		if err == nil && current != nil && current.Claimed {
			return nil, models.NewError(models.KindAlreadyClaimed, "reward already claimed")
		}
		return nil, models.WrapError(models.KindStoreUnavailable, "claim changed concurrently", err)
	}
	return &updated, nil
}

// AttachSettlement records the broadcast tx hash on an already-claimed record
// for the audit trail. Best effort: a conflict here never affects claim state.
func (l *Ledger) AttachSettlement(ctx context.Context, record *models.ClaimRecord, txHash string) {
	updated := *record
	updated.SettlementTxHash = txHash
	updated.Version = record.Version + 1

	if swapped, err := l.claims.CompareAndSetClaim(ctx, &updated, record.Version); err != nil || !swapped {
		l.logger.Warn("failed to attach settlement hash",
			zap.String("reference", record.Reference),
			zap.String("tx_hash", txHash),
			zap.Error(err))
	}
}

// CooldownCheck reports whether subject is inside the global inter-action
// window and how long remains. Pure read.
func (l *Ledger) CooldownCheck(ctx context.Context, subject string, window time.Duration) (bool, time.Duration, error) {
	record, err := l.cooldowns.GetCooldown(ctx, subject)
	if err != nil {
		return false, 0, models.WrapError(models.KindStoreUnavailable, "failed to read cooldown", err)
	}
	if record == nil {
		return false, 0, nil
	}

	elapsed := l.now().Sub(record.LastActionAt)
	if elapsed >= window {
		return false, 0, nil
	}
	return true, window - elapsed, nil
}

// StartCooldown unconditionally stamps the subject's last action at now.
func (l *Ledger) StartCooldown(ctx context.Context, subject string) error {
	record := &models.CooldownRecord{Subject: subject, LastActionAt: l.now()}
	if err := l.cooldowns.PutCooldown(ctx, record); err != nil {
		return models.WrapError(models.KindStoreUnavailable, "failed to start cooldown", err)
	}
	return nil
}

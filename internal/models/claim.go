package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClaimState string

const (
	ClaimStatePending    ClaimState = "pending"
	ClaimStateReferenced ClaimState = "referenced"
	ClaimStateClaimed    ClaimState = "claimed"
)

// ClaimRecord is the durable record for one claimable reward, keyed by
// (subject, resource). Records are never deleted; they are the audit trail.
type ClaimRecord struct {
	Subject          string          `json:"subject" redis:"subject"`
	Resource         string          `json:"resource" redis:"resource"`
	Amount           decimal.Decimal `json:"amount" redis:"amount"`
	Reference        string          `json:"reference,omitempty" redis:"reference"`
	Claimed          bool            `json:"claimed" redis:"claimed"`
	SettlementTxHash string          `json:"settlement_tx_hash,omitempty" redis:"settlement_tx_hash"`
	CreatedAt        time.Time       `json:"created_at" redis:"created_at"`

	// Version increments on every successful write and is the expected value
	// for the store's compare-and-set.
	Version int64 `json:"version" redis:"version"`
}

// State derives the claim-machine state from the record fields.
// Transitions only move forward: pending -> referenced -> claimed.
func (r *ClaimRecord) State() ClaimState {
	switch {
	case r.Claimed:
		return ClaimStateClaimed
	case r.Reference != "":
		return ClaimStateReferenced
	default:
		return ClaimStatePending
	}
}

// CooldownRecord tracks the last value-bearing action per subject. The
// cooldown is global across resources, not per-resource.
type CooldownRecord struct {
	Subject      string    `json:"subject" redis:"subject"`
	LastActionAt time.Time `json:"last_action_at" redis:"last_action_at"`
}

// Nonce is a single-use authentication challenge value. It lives server-side
// only; the client never dictates its content.
type Nonce struct {
	Value     string    `json:"value" redis:"value"`
	IssuedAt  time.Time `json:"issued_at" redis:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" redis:"expires_at"`
}

func (n *Nonce) ExpiredAt(now time.Time) bool {
	return now.After(n.ExpiresAt)
}

type InitClaimRequest struct {
	Resource string `json:"resource" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}

type ConfirmClaimRequest struct {
	Reference string `json:"reference" binding:"required,uuid4"`
}

type VerifyRequest struct {
	Address   string `json:"address" binding:"required,ethaddr"`
	Nonce     string `json:"nonce" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type RecordRewardRequest struct {
	Subject  string `json:"subject" binding:"required,ethaddr"`
	Resource string `json:"resource" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}

// SettlementEvent is pushed to the operator event feed after a settlement
// attempt resolves.
type SettlementEvent struct {
	Subject     string          `json:"subject"`
	Resource    string          `json:"resource"`
	Amount      decimal.Decimal `json:"amount"`
	TxHash      string          `json:"tx_hash,omitempty"`
	Success     bool            `json:"success"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	At          time.Time       `json:"at"`
}

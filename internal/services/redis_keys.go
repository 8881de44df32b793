package services

import "time"

const (
	KeyClaim       = "claim:%s:%s"     // subject, resource
	KeyClaimRef    = "claim:ref:%s"    // reference -> claim key
	KeyCooldown    = "cooldown:%s"     // subject
	KeyNonce       = "nonce:%s"        // challenge id
	KeyMaintenance = "settings:maintenance_mode"

	TTLNonce = 5 * time.Minute

	// Claim and cooldown records carry no TTL: claims are the audit trail and
	// cooldowns expire by comparison, not eviction.

	MaintenanceCacheTTL = 30 * time.Second
)

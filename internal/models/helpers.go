package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// GenerateOpaqueToken returns a hex-encoded random value with 128 bits of
// entropy, used for nonces and CSRF tokens.
func GenerateOpaqueToken() (string, error) {
	bytes := make([]byte, 16) // 128 bits of entropy
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ValidAddress reports whether s is a well-formed 0x-prefixed hex address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress returns the checksummed form of an address so that claim
// keys are case-insensitive.
func NormalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// ParseAmount parses a positive decimal amount from a request payload.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %v", s, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", amount)
	}
	return amount, nil
}

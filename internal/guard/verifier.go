package guard

import (
	"fmt"
)

// DevVerifier accepts any non-empty signature. The real wallet-signature
// verification is provided by the wallet integration behind the
// SignatureVerifier interface; this placeholder keeps development and tests
// independent of it.
type DevVerifier struct{}

func NewDevVerifier() *DevVerifier {
	return &DevVerifier{}
}

func (v *DevVerifier) Verify(address, nonce, signature string) error {
	if address == "" || nonce == "" || signature == "" {
		return fmt.Errorf("missing signature material")
	}
	return nil
}

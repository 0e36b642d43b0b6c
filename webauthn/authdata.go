package webauthn

import (
	"bytes"
	"fmt"

	"github.com/splitsecure/go-webauthn/authenticatordata"
)

func parseAuthenticatorData(raw []byte) (*authenticatordata.T, error) {
	ad := &authenticatordata.T{}
	if err := authenticatordata.Unmarshal(raw, ad); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticatorData, err)
	}
	return ad, nil
}

// checkAuthenticatorData applies the contextual checks shared by both
// ceremonies: relying party binding, required flags and extension policy.
func (v *Verifier) checkAuthenticatorData(ad *authenticatordata.T) error {
	if !bytes.Equal(ad.RelyingPartyHash, v.rpIDHash[:]) {
		return fmt.Errorf("%w: issued for a different relying party", ErrAuthenticatorData)
	}
	if !ad.UserPresent() {
		return fmt.Errorf("%w: user presence flag not set", ErrAuthenticatorData)
	}
	if v.requireUserVerification && !ad.UserVerified() {
		return fmt.Errorf("%w: user verification required but flag not set", ErrAuthenticatorData)
	}
	if v.rejectExtensions && ad.HasExtensionData() {
		return fmt.Errorf("%w: extension data present but rejected by policy", ErrAuthenticatorData)
	}
	return nil
}

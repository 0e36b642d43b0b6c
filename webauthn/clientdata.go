package webauthn

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Ceremony types carried in the client data "type" member.
const (
	ceremonyCreate = "webauthn.create"
	ceremonyGet    = "webauthn.get"
)

// clientDataChallenge decodes the base64url challenge member of
// clientDataJSON.
type clientDataChallenge []byte

func (c *clientDataChallenge) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("challenge is not a string: %v", err)
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	*c = clientDataChallenge(data)
	return nil
}

// Equal compares in constant time.
func (c clientDataChallenge) Equal(b []byte) bool {
	return subtle.ConstantTimeCompare([]byte(c), b) == 1
}

// https://www.w3.org/TR/webauthn-3/#dictionary-client-data
type clientData struct {
	Type        string              `json:"type"`
	Challenge   clientDataChallenge `json:"challenge"`
	Origin      string              `json:"origin"`
	TopOrigin   string              `json:"topOrigin"`
	CrossOrigin bool                `json:"crossOrigin"`
}

// verifyClientData checks raw client data against the expected ceremony
// type, challenge and origin, and returns the SHA-256 of the raw input.
// The hash covers the bytes exactly as received, never a re-serialization;
// re-encoding before hashing would open the door to canonicalization
// attacks on the signature input.
func (v *Verifier) verifyClientData(raw []byte, ceremony string, challenge []byte) ([sha256.Size]byte, error) {
	hash := sha256.Sum256(raw)

	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return hash, fmt.Errorf("%w: parsing client data: %v", ErrClientData, err)
	}
	if cd.Type != ceremony {
		return hash, fmt.Errorf("%w: expected type %q, got %q", ErrClientData, ceremony, cd.Type)
	}
	if !cd.Challenge.Equal(challenge) {
		return hash, fmt.Errorf("%w: challenge mismatch", ErrClientData)
	}
	if cd.Origin != v.origin {
		return hash, fmt.Errorf("%w: expected origin %q, got %q", ErrClientData, v.origin, cd.Origin)
	}
	return hash, nil
}

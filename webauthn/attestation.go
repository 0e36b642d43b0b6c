package webauthn

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// attObjDecMode rejects unknown top-level entries: an attestation object is
// exactly {fmt, attStmt, authData}, anything else is attacker noise.
var attObjDecMode, _ = cbor.DecOptions{
	ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
}.DecMode()

// https://www.w3.org/TR/webauthn-3/#attestation-object
type attestationObject struct {
	Format               string          `cbor:"fmt"`
	AttestationStatement cbor.RawMessage `cbor:"attStmt"`
	AuthData             []byte          `cbor:"authData"`
}

func parseAttestationObject(raw []byte) (*attestationObject, error) {
	attObj := &attestationObject{}
	if err := attObjDecMode.Unmarshal(raw, attObj); err != nil {
		return nil, fmt.Errorf("%w: parsing attestation object: %v", ErrAttestation, err)
	}
	if attObj.Format == "" {
		return nil, fmt.Errorf("%w: attestation object has no fmt entry", ErrAttestation)
	}
	if attObj.AttestationStatement == nil {
		return nil, fmt.Errorf("%w: attestation object has no attStmt entry", ErrAttestation)
	}
	if len(attObj.AuthData) == 0 {
		return nil, fmt.Errorf("%w: attestation object has no authData entry", ErrAttestation)
	}
	return attObj, nil
}

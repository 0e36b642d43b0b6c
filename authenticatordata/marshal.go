package authenticatordata

import (
	"encoding/binary"
	"math"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Marshal encodes authenticator data back to its wire form. Unmarshal
// followed by Marshal reproduces the original buffer byte for byte, since
// the raw public key encoding and extension block are retained verbatim.
func Marshal(t *T) ([]byte, error) {
	out := make([]byte, 0, prefixLen)

	if len(t.RelyingPartyHash) != 32 {
		return nil, errors.Errorf("relying party hash must be 32 bytes, got %d", len(t.RelyingPartyHash))
	}
	out = append(out, t.RelyingPartyHash...)
	out = append(out, t.Flags)
	out = binary.BigEndian.AppendUint32(out, t.SignCount)

	if t.HasAttestedCredentialData() {
		acd := t.AttestedCredentialData
		if acd == nil {
			return nil, errors.WithStack(ErrMissingCredential)
		}
		if len(acd.AAGUID) != aaguidLen {
			return nil, errors.Errorf("AAGUID must be %d bytes, got %d", aaguidLen, len(acd.AAGUID))
		}
		if len(acd.CredentialID) > math.MaxUint16 {
			return nil, errors.Errorf("credential ID too long: %d bytes", len(acd.CredentialID))
		}
		out = append(out, acd.AAGUID...)
		out = binary.BigEndian.AppendUint16(out, uint16(len(acd.CredentialID)))
		out = append(out, acd.CredentialID...)

		keyBytes := acd.RawCredentialPublicKey
		if keyBytes == nil {
			var err error
			keyBytes, err = cbor.Marshal(acd.CredentialPublicKey)
			if err != nil {
				return nil, errors.Wrap(err, "marshalling credential public key")
			}
		}
		out = append(out, keyBytes...)
	}

	if t.HasExtensionData() {
		out = append(out, t.Extensions...)
	}

	return out, nil
}

package webauthn

import (
	"bytes"
	"fmt"
)

// The none statement is the empty CBOR map.
var noneStatementCBOR = []byte{0xa0}

type noneStatement struct{}

func parseNoneStatement(raw []byte) (attestationStatement, error) {
	if !bytes.Equal(raw, noneStatementCBOR) {
		return nil, fmt.Errorf("%w: none statement must be an empty map, got % 02x", ErrAttestation, raw)
	}
	return &noneStatement{}, nil
}

// verify implements the none attestation procedure: the authenticator
// provided no attestation, so there is nothing to check.
//
// https://www.w3.org/TR/webauthn-3/#sctn-none-attestation
func (s *noneStatement) verify(*statementVerifyInput) (*statementResult, error) {
	return &statementResult{attestationType: AttestationTypeNone}, nil
}

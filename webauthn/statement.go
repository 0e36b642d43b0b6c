package webauthn

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/splitsecure/go-webauthn/authenticatordata"
	"github.com/splitsecure/go-webauthn/cosekey"
)

// Attestation statement formats this engine understands.
//
// https://www.w3.org/TR/webauthn-3/#sctn-defined-attestation-formats
const (
	FormatNone    = "none"
	FormatPacked  = "packed"
	FormatFIDOU2F = "fido-u2f"
)

// AttestationType classifies the provenance guarantee an attestation
// statement provided.
//
// https://www.w3.org/TR/webauthn-3/#sctn-attestation-types
type AttestationType string

const (
	AttestationTypeNone  AttestationType = "none"
	AttestationTypeSelf  AttestationType = "self"
	AttestationTypeBasic AttestationType = "basic"
)

type statementVerifyInput struct {
	authData       *authenticatordata.T
	rawAuthData    []byte
	clientDataHash [sha256.Size]byte
	credentialKey  *cosekey.Key

	// trustAnchors is nil or empty when attestation trust is not requested;
	// the statement signature is verified either way.
	trustAnchors []*x509.Certificate
	now          time.Time
}

type statementResult struct {
	attestationType AttestationType
	trustPath       []*x509.Certificate
}

// attestationStatement is implemented once per supported format.
type attestationStatement interface {
	verify(in *statementVerifyInput) (*statementResult, error)
}

type statementParser func(raw []byte) (attestationStatement, error)

// statementFormats is the closed dispatch table. A format absent from it is
// a decode-time error, never a silent pass-through.
var statementFormats = map[string]statementParser{
	FormatNone:    parseNoneStatement,
	FormatPacked:  parsePackedStatement,
	FormatFIDOU2F: parseFIDOU2FStatement,
}

func parseStatement(format string, raw []byte) (attestationStatement, error) {
	parse, ok := statementFormats[format]
	if !ok {
		return nil, fmt.Errorf("%w: unknown attestation format %q", ErrAttestation, format)
	}
	return parse(raw)
}

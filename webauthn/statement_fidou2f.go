package webauthn

import (
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/splitsecure/go-webauthn/cosekey"
)

// https://www.w3.org/TR/webauthn-3/#sctn-fido-u2f-attestation
type fidoU2FStatement struct {
	sig  []byte
	cert *x509.Certificate
}

func parseFIDOU2FStatement(raw []byte) (attestationStatement, error) {
	var stmt struct {
		Sig []byte   `cbor:"sig"`
		X5C [][]byte `cbor:"x5c"`
	}
	if err := cbor.Unmarshal(raw, &stmt); err != nil {
		return nil, fmt.Errorf("%w: parsing fido-u2f statement: %v", ErrAttestation, err)
	}
	if len(stmt.Sig) == 0 {
		return nil, fmt.Errorf("%w: fido-u2f statement has no signature", ErrAttestation)
	}
	if len(stmt.X5C) != 1 {
		return nil, fmt.Errorf("%w: fido-u2f statement must carry exactly one certificate, got %d", ErrAttestation, len(stmt.X5C))
	}
	cert, err := x509.ParseCertificate(stmt.X5C[0])
	if err != nil {
		return nil, fmt.Errorf("%w: parsing fido-u2f certificate: %v", ErrAttestation, err)
	}
	return &fidoU2FStatement{sig: stmt.Sig, cert: cert}, nil
}

func (s *fidoU2FStatement) verify(in *statementVerifyInput) (*statementResult, error) {
	certPub, ok := s.cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || certPub.Curve.Params().BitSize != 256 {
		return nil, fmt.Errorf("%w: fido-u2f certificate key must be EC P-256", ErrAttestation)
	}

	credPub, ok := in.credentialKey.Public.(*ecdsa.PublicKey)
	if !ok || credPub.Curve.Params().BitSize != 256 {
		return nil, fmt.Errorf("%w: fido-u2f credential key must be EC P-256", ErrAttestation)
	}

	// The verification data covers the credential ID, so a fido-u2f
	// statement only makes sense over registration authenticator data.
	acd := in.authData.AttestedCredentialData
	if acd == nil {
		return nil, fmt.Errorf("%w: fido-u2f statement requires attested credential data", ErrAttestation)
	}

	// verificationData per the U2F raw message format:
	// 0x00 || rpIdHash || clientDataHash || credentialId || publicKeyU2F
	signed := make([]byte, 0, 1+32+32+len(acd.CredentialID)+65)
	signed = append(signed, 0x00)
	signed = append(signed, in.authData.RelyingPartyHash...)
	signed = append(signed, in.clientDataHash[:]...)
	signed = append(signed, acd.CredentialID...)
	signed = append(signed, x962Uncompressed(credPub)...)

	if err := cosekey.Verify(certPub, cosekey.ES256, signed, s.sig); err != nil {
		return nil, fmt.Errorf("%w: fido-u2f statement signature: %v", ErrAttestation, err)
	}

	if len(in.trustAnchors) > 0 {
		if err := verifyTrustChain([]*x509.Certificate{s.cert}, in.trustAnchors, in.now); err != nil {
			return nil, fmt.Errorf("%w: fido-u2f trust chain: %v", ErrAttestation, err)
		}
	}

	return &statementResult{attestationType: AttestationTypeBasic, trustPath: []*x509.Certificate{s.cert}}, nil
}

// x962Uncompressed encodes an EC P-256 point as 0x04 || X || Y with
// fixed-width coordinates.
func x962Uncompressed(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	xb := pub.X.Bytes()
	yb := pub.Y.Bytes()
	copy(out[1+32-len(xb):33], xb)
	copy(out[33+32-len(yb):], yb)
	return out
}

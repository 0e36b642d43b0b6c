package webauthn

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/authenticatordata"
	"github.com/splitsecure/go-webauthn/cosekey"
)

var idFIDOGenCEAAGUIDOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45724, 1, 1, 4}

// https://www.w3.org/TR/webauthn-3/#sctn-packed-attestation
type packedStatement struct {
	alg   cosekey.Algorithm
	sig   []byte
	certs []*x509.Certificate
}

func parsePackedStatement(raw []byte) (attestationStatement, error) {
	var stmt struct {
		Alg int64    `cbor:"alg"`
		Sig []byte   `cbor:"sig"`
		X5C [][]byte `cbor:"x5c"`
	}
	if err := cbor.Unmarshal(raw, &stmt); err != nil {
		return nil, fmt.Errorf("%w: parsing packed statement: %v", ErrAttestation, err)
	}
	if stmt.Alg == 0 {
		return nil, fmt.Errorf("%w: packed statement has no algorithm", ErrAttestation)
	}
	if len(stmt.Sig) == 0 {
		return nil, fmt.Errorf("%w: packed statement has no signature", ErrAttestation)
	}

	p := &packedStatement{alg: cosekey.Algorithm(stmt.Alg), sig: stmt.Sig}
	for i, der := range stmt.X5C {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing x5c[%d]: %v", ErrAttestation, i, err)
		}
		p.certs = append(p.certs, cert)
	}
	return p, nil
}

func (s *packedStatement) verify(in *statementVerifyInput) (*statementResult, error) {
	signed := make([]byte, 0, len(in.rawAuthData)+len(in.clientDataHash))
	signed = append(signed, in.rawAuthData...)
	signed = append(signed, in.clientDataHash[:]...)

	if len(s.certs) == 0 {
		// Self attestation: the credential private key itself signed, so the
		// statement algorithm must be the credential's.
		if s.alg != in.credentialKey.Algorithm {
			return nil, fmt.Errorf("%w: self attestation algorithm %s does not match credential algorithm %s",
				ErrAttestation, s.alg, in.credentialKey.Algorithm)
		}
		if err := cosekey.Verify(in.credentialKey.Public, s.alg, signed, s.sig); err != nil {
			return nil, fmt.Errorf("%w: self attestation signature: %v", ErrAttestation, err)
		}
		return &statementResult{attestationType: AttestationTypeSelf}, nil
	}

	attCert := s.certs[0]
	if err := cosekey.Verify(attCert.PublicKey, s.alg, signed, s.sig); err != nil {
		return nil, fmt.Errorf("%w: packed statement signature: %v", ErrAttestation, err)
	}
	if err := checkPackedCertificate(attCert, in.authData); err != nil {
		return nil, err
	}

	if len(in.trustAnchors) > 0 {
		if err := verifyTrustChain(s.certs, in.trustAnchors, in.now); err != nil {
			return nil, fmt.Errorf("%w: packed trust chain: %v", ErrAttestation, err)
		}
	}

	return &statementResult{attestationType: AttestationTypeBasic, trustPath: s.certs}, nil
}

// checkPackedCertificate enforces the attestation certificate requirements
// of https://www.w3.org/TR/webauthn-3/#sctn-packed-attestation-cert-requirements
func checkPackedCertificate(cert *x509.Certificate, authData *authenticatordata.T) error {
	if cert.Version != 3 {
		return fmt.Errorf("%w: attestation certificate is version %d, must be 3", ErrAttestation, cert.Version)
	}
	ou := cert.Subject.OrganizationalUnit
	if len(ou) != 1 || ou[0] != "Authenticator Attestation" {
		return fmt.Errorf("%w: attestation certificate Subject-OU must be 'Authenticator Attestation', got %v", ErrAttestation, ou)
	}
	if cert.IsCA {
		return fmt.Errorf("%w: attestation certificate must not be a CA", ErrAttestation)
	}

	// When the certificate carries the id-fido-gen-ce-aaguid extension its
	// value must match the attested AAGUID. Authenticator data without an
	// attested credential block (assertion-side attestation) has no AAGUID
	// to compare against.
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(idFIDOGenCEAAGUIDOID) {
			continue
		}
		if authData.AttestedCredentialData == nil {
			return errors.Wrap(ErrAttestation, "certificate carries an AAGUID but the authenticator data has no attested credential data")
		}
		var aaguid []byte
		if _, err := asn1.Unmarshal(ext.Value, &aaguid); err != nil {
			return fmt.Errorf("%w: parsing id-fido-gen-ce-aaguid extension: %v", ErrAttestation, err)
		}
		if !bytes.Equal(aaguid, authData.AttestedCredentialData.AAGUID) {
			return errors.Wrap(ErrAttestation, "certificate AAGUID does not match attested AAGUID")
		}
		break
	}
	return nil
}

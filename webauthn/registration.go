package webauthn

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/cosekey"
)

// RegistrationInput carries the raw material of a registration ceremony.
// All byte fields are untrusted.
type RegistrationInput struct {
	// CredentialID is the ID the client reported for the new credential.
	// When set it must match the credential ID inside the attested
	// credential data.
	CredentialID []byte

	// Challenge is the value this server issued for the ceremony. Freshness
	// and single-use are the caller's responsibility; the engine compares
	// byte-for-byte.
	Challenge []byte

	ClientDataJSON    []byte
	AttestationObject []byte
}

// Credential is the outcome of a successful registration. Persisting it,
// and enforcing credential ID uniqueness, is the caller's responsibility.
type Credential struct {
	ID   []byte
	Type string

	// PublicKey is the credential public key in its original COSE encoding,
	// suitable for storage and later use with VerifyAuthentication.
	PublicKey []byte
	Algorithm cosekey.Algorithm

	SignCount      uint32
	BackupEligible bool
	BackedUp       bool
	AAGUID         []byte

	AttestationType AttestationType

	// TrustPath is the verified certificate chain, when the attestation
	// format produced one.
	TrustPath []*x509.Certificate

	// Raw ceremony material, retained for audit or re-verification.
	AttestationObject []byte
	ClientDataJSON    []byte

	// Extensions is the raw authenticator extension block, passed through
	// unverified (nil when absent or when extensions are rejected by
	// policy, which fails the ceremony instead).
	Extensions []byte
}

// VerifyRegistration validates a credential creation ceremony. Checks run
// in a fixed order and the first failure aborts: client data, attestation
// object structure, relying party binding and flags, algorithm allow-list,
// then the attestation statement. Structural and contextual checks always
// precede signature verification.
func (v *Verifier) VerifyRegistration(ctx context.Context, in *RegistrationInput) (*Credential, error) {
	clientDataHash, err := v.verifyClientData(in.ClientDataJSON, ceremonyCreate, in.Challenge)
	if err != nil {
		return nil, err
	}

	attObj, err := parseAttestationObject(in.AttestationObject)
	if err != nil {
		return nil, err
	}

	ad, err := parseAuthenticatorData(attObj.AuthData)
	if err != nil {
		return nil, err
	}
	if !ad.HasAttestedCredentialData() || ad.AttestedCredentialData == nil {
		return nil, fmt.Errorf("%w: registration requires attested credential data", ErrAuthenticatorData)
	}
	if err := v.checkAuthenticatorData(ad); err != nil {
		return nil, err
	}

	acd := ad.AttestedCredentialData
	credentialKey, err := cosekey.ParseKey(acd.RawCredentialPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticatorData, err)
	}
	if _, ok := v.allowedAlgorithms[credentialKey.Algorithm]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s is not in the allowed set", credentialKey.Algorithm)
	}

	if len(in.CredentialID) > 0 && !bytes.Equal(in.CredentialID, acd.CredentialID) {
		return nil, fmt.Errorf("%w: reported credential ID does not match attested credential ID", ErrAuthenticatorData)
	}

	if v.credentialExists != nil {
		exists, err := v.credentialExists(ctx, acd.CredentialID)
		if err != nil {
			return nil, errors.Wrap(err, "credential lookup")
		}
		if exists {
			return nil, errors.WithStack(ErrCredentialExists)
		}
	}

	stmt, err := parseStatement(attObj.Format, attObj.AttestationStatement)
	if err != nil {
		return nil, err
	}

	anchors, err := v.lookupTrustAnchors(ctx, attObj.Format)
	if err != nil {
		return nil, err
	}

	result, err := stmt.verify(&statementVerifyInput{
		authData:       ad,
		rawAuthData:    attObj.AuthData,
		clientDataHash: clientDataHash,
		credentialKey:  credentialKey,
		trustAnchors:   anchors,
		now:            time.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &Credential{
		ID:                acd.CredentialID,
		Type:              CredentialTypePublicKey,
		PublicKey:         acd.RawCredentialPublicKey,
		Algorithm:         credentialKey.Algorithm,
		SignCount:         ad.SignCount,
		BackupEligible:    ad.BackupEligible(),
		BackedUp:          ad.BackedUp(),
		AAGUID:            acd.AAGUID,
		AttestationType:   result.attestationType,
		TrustPath:         result.trustPath,
		AttestationObject: in.AttestationObject,
		ClientDataJSON:    in.ClientDataJSON,
		Extensions:        ad.Extensions,
	}, nil
}

// lookupTrustAnchors consults the trust anchor capability at most once per
// ceremony. No source configured means attestation trust is not requested.
func (v *Verifier) lookupTrustAnchors(ctx context.Context, format string) ([]*x509.Certificate, error) {
	if v.trustAnchors == nil {
		return nil, nil
	}
	anchors, err := v.trustAnchors.TrustAnchors(ctx, format)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving trust anchors: %v", ErrAttestation, err)
	}
	return anchors, nil
}

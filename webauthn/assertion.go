package webauthn

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/authenticatordata"
	"github.com/splitsecure/go-webauthn/cosekey"
)

// CredentialDeviceType reports whether a credential is bound to a single
// authenticator or eligible to roam between devices, derived from the
// backup-eligible flag.
type CredentialDeviceType string

const (
	DeviceTypeSingleDevice CredentialDeviceType = "single-device"
	DeviceTypeMultiDevice  CredentialDeviceType = "multi-device"
)

// AssertionResponse is the raw authenticator assertion handed back by the
// client during authentication.
type AssertionResponse struct {
	ClientDataJSON    []byte
	AuthenticatorData []byte
	Signature         []byte

	// UserHandle optionally identifies the user the credential belongs to.
	UserHandle []byte

	// AttestationObject is the optional assertion-side attestation some
	// authenticators emit. When present its authenticator data must match
	// AuthenticatorData and its statement is verified like at registration.
	AttestationObject []byte
}

// AuthenticationInput carries an authentication ceremony plus the stored
// state of the credential being asserted.
type AuthenticationInput struct {
	CredentialID   []byte
	CredentialType string
	Response       AssertionResponse

	// Challenge is the value this server issued for the ceremony.
	Challenge []byte

	// PublicKey is the stored COSE public key from registration.
	PublicKey []byte

	// SignCount is the stored counter from the last successful ceremony.
	SignCount uint32
}

// VerifiedAuthentication is the delta the caller must persist after a
// successful authentication; NewSignCount in particular preserves the
// anti-cloning state. Callers must serialize the counter update per
// credential ID themselves.
type VerifiedAuthentication struct {
	CredentialID         []byte
	NewSignCount         uint32
	CredentialDeviceType CredentialDeviceType
	CredentialBackedUp   bool
	UserHandle           []byte
}

// VerifyAuthentication validates an authentication ceremony. Checks run in
// a fixed order and the first failure aborts: credential type, client data,
// authenticator data structure, relying party binding and flags, assertion
// signature, optional assertion attestation, sign counter.
func (v *Verifier) VerifyAuthentication(ctx context.Context, in *AuthenticationInput) (*VerifiedAuthentication, error) {
	if in.CredentialType != CredentialTypePublicKey {
		return nil, errors.Wrapf(ErrInvalidCredentialType, "got %q, want %q", in.CredentialType, CredentialTypePublicKey)
	}

	clientDataHash, err := v.verifyClientData(in.Response.ClientDataJSON, ceremonyGet, in.Challenge)
	if err != nil {
		return nil, err
	}

	ad, err := parseAuthenticatorData(in.Response.AuthenticatorData)
	if err != nil {
		return nil, err
	}
	if err := v.checkAuthenticatorData(ad); err != nil {
		return nil, err
	}

	storedKey, err := cosekey.ParseKey(in.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "stored credential public key")
	}

	signed := make([]byte, 0, len(in.Response.AuthenticatorData)+len(clientDataHash))
	signed = append(signed, in.Response.AuthenticatorData...)
	signed = append(signed, clientDataHash[:]...)
	if err := cosekey.Verify(storedKey.Public, storedKey.Algorithm, signed, in.Response.Signature); err != nil {
		return nil, err
	}

	if len(in.Response.AttestationObject) > 0 {
		if err := v.verifyAssertionAttestation(ctx, in.Response.AttestationObject, in.Response.AuthenticatorData, clientDataHash, ad, storedKey); err != nil {
			return nil, err
		}
	}

	if err := checkSignCount(in.SignCount, ad.SignCount); err != nil {
		return nil, err
	}

	deviceType := DeviceTypeSingleDevice
	if ad.BackupEligible() {
		deviceType = DeviceTypeMultiDevice
	}

	return &VerifiedAuthentication{
		CredentialID:         in.CredentialID,
		NewSignCount:         ad.SignCount,
		CredentialDeviceType: deviceType,
		CredentialBackedUp:   ad.BackedUp(),
		UserHandle:           in.Response.UserHandle,
	}, nil
}

// checkSignCount is the anti-cloning guard. A zero stored and zero
// asserted counter is a counter-less authenticator; otherwise the counter
// must strictly increase. Not configurable.
func checkSignCount(stored, asserted uint32) error {
	if stored == 0 && asserted == 0 {
		return nil
	}
	if asserted > stored {
		return nil
	}
	return errors.Wrapf(ErrCloningDetected, "stored count %d, asserted count %d", stored, asserted)
}

func (v *Verifier) verifyAssertionAttestation(
	ctx context.Context,
	rawAttObj, rawAuthData []byte,
	clientDataHash [32]byte,
	ad *authenticatordata.T,
	storedKey *cosekey.Key,
) error {
	attObj, err := parseAttestationObject(rawAttObj)
	if err != nil {
		return err
	}
	if !bytes.Equal(attObj.AuthData, rawAuthData) {
		return fmt.Errorf("%w: assertion attestation authenticator data mismatch", ErrAttestation)
	}

	stmt, err := parseStatement(attObj.Format, attObj.AttestationStatement)
	if err != nil {
		return err
	}
	anchors, err := v.lookupTrustAnchors(ctx, attObj.Format)
	if err != nil {
		return err
	}
	_, err = stmt.verify(&statementVerifyInput{
		authData:       ad,
		rawAuthData:    rawAuthData,
		clientDataHash: clientDataHash,
		credentialKey:  storedKey,
		trustAnchors:   anchors,
		now:            time.Now(),
	})
	return err
}

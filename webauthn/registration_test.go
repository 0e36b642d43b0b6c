package webauthn_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn/authenticatordata"
	"github.com/splitsecure/go-webauthn/cosekey"
	"github.com/splitsecure/go-webauthn/mint"
	"github.com/splitsecure/go-webauthn/webauthn"
)

const (
	testRPID   = "example.com"
	testOrigin = "https://example.com"
)

type regFixture struct {
	key          *ecdsa.PrivateKey
	challenge    []byte
	credentialID []byte
	aaguid       []byte
	authData     []byte
	clientData   []byte
}

func newRegFixture(t *testing.T, flags byte, signCount uint32) *regFixture {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	coseKey, err := mint.COSEKeyFromECDSA(&key.PublicKey, cosekey.ES256)
	require.NoError(t, err)

	f := &regFixture{
		key:          key,
		challenge:    randomBytes(t, 32),
		credentialID: randomBytes(t, 16),
		aaguid:       randomBytes(t, 16),
	}

	f.authData, err = mint.AuthData(&mint.AuthDataInput{
		RPID:         testRPID,
		Flags:        flags,
		SignCount:    signCount,
		AAGUID:       f.aaguid,
		CredentialID: f.credentialID,
		PublicKey:    coseKey,
	})
	require.NoError(t, err)

	f.clientData, err = mint.ClientDataJSON(&mint.ClientDataInput{
		Ceremony:  "webauthn.create",
		Challenge: f.challenge,
		Origin:    testOrigin,
	})
	require.NoError(t, err)

	return f
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestVerifyRegistrationNone(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 7)

	attObj, err := mint.AttestationObjectNone(f.authData)
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	cred, err := v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		CredentialID:      f.credentialID,
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.NoError(t, err)

	require.Equal(t, f.credentialID, cred.ID)
	require.Equal(t, webauthn.CredentialTypePublicKey, cred.Type)
	require.EqualValues(t, 7, cred.SignCount)
	require.Equal(t, cosekey.ES256, cred.Algorithm)
	require.Equal(t, webauthn.AttestationTypeNone, cred.AttestationType)
	require.False(t, cred.BackupEligible)
	require.False(t, cred.BackedUp)
	require.Equal(t, f.aaguid, cred.AAGUID)

	// The stored public key is the attested COSE key.
	parsed, err := cosekey.ParseKey(cred.PublicKey)
	require.NoError(t, err)
	pub, ok := parsed.Public.(*ecdsa.PublicKey)
	require.True(t, ok)
	require.True(t, pub.Equal(&f.key.PublicKey))
}

func TestVerifyRegistrationBackupFlags(t *testing.T) {
	flags := authenticatordata.ADF_USER_PRESENT |
		authenticatordata.ADF_BACKUP_ELIGIBLE |
		authenticatordata.ADF_BACKED_UP
	f := newRegFixture(t, flags, 0)

	attObj, err := mint.AttestationObjectNone(f.authData)
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	cred, err := v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.NoError(t, err)
	require.True(t, cred.BackupEligible)
	require.True(t, cred.BackedUp)
}

func TestVerifyRegistrationClientDataMismatches(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := mint.AttestationObjectNone(f.authData)
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	for name, clientData := range map[string]*mint.ClientDataInput{
		"challenge off by one byte": {
			Ceremony:  "webauthn.create",
			Challenge: flipFirstByte(f.challenge),
			Origin:    testOrigin,
		},
		"wrong origin": {
			Ceremony:  "webauthn.create",
			Challenge: f.challenge,
			Origin:    "https://example.com:8443",
		},
		"wrong ceremony type": {
			Ceremony:  "webauthn.get",
			Challenge: f.challenge,
			Origin:    testOrigin,
		},
	} {
		cdj, err := mint.ClientDataJSON(clientData)
		require.NoError(t, err)

		_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
			Challenge:         f.challenge,
			ClientDataJSON:    cdj,
			AttestationObject: attObj,
		})
		require.ErrorIs(t, err, webauthn.ErrClientData, name)
	}
}

// A bad challenge must surface as a client data error even when everything
// after it is garbage: contextual checks run before any parsing or
// cryptography on the attestation side.
func TestVerifyRegistrationFailFastOrdering(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	cdj, err := mint.ClientDataJSON(&mint.ClientDataInput{
		Ceremony:  "webauthn.create",
		Challenge: flipFirstByte(f.challenge),
		Origin:    testOrigin,
	})
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    cdj,
		AttestationObject: []byte("not an attestation object"),
	})
	require.ErrorIs(t, err, webauthn.ErrClientData)
}

func TestVerifyRegistrationTrailingByte(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := mint.AttestationObjectNone(append(f.authData, 0x00))
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrAuthenticatorData)
}

func TestVerifyRegistrationAlgorithmAllowList(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := mint.AttestationObjectNone(f.authData)
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin,
		webauthn.WithAllowedAlgorithms(cosekey.RS256))
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrUnsupportedAlgorithm)
}

func TestVerifyRegistrationUserVerificationRequired(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := mint.AttestationObjectNone(f.authData)
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin,
		webauthn.WithUserVerificationRequired())
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrAuthenticatorData)
}

func TestVerifyRegistrationUnknownFormat(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := cbor.Marshal(&struct {
		Format               string          `cbor:"fmt"`
		AttestationStatement cbor.RawMessage `cbor:"attStmt"`
		AuthData             []byte          `cbor:"authData"`
	}{
		Format:               "android-key",
		AttestationStatement: cbor.RawMessage{0xa0},
		AuthData:             f.authData,
	})
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrAttestation)
}

func TestVerifyRegistrationExtraTopLevelEntry(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := cbor.Marshal(&struct {
		Format               string          `cbor:"fmt"`
		AttestationStatement cbor.RawMessage `cbor:"attStmt"`
		AuthData             []byte          `cbor:"authData"`
		Extra                int             `cbor:"extra"`
	}{
		Format:               "none",
		AttestationStatement: cbor.RawMessage{0xa0},
		AuthData:             f.authData,
		Extra:                1,
	})
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrAttestation)
}

func TestVerifyRegistrationCredentialIDMismatch(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := mint.AttestationObjectNone(f.authData)
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		CredentialID:      randomBytes(t, 16),
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrAuthenticatorData)
}

func TestVerifyRegistrationCredentialExists(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	attObj, err := mint.AttestationObjectNone(f.authData)
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin,
		webauthn.WithCredentialExists(func(_ context.Context, id []byte) (bool, error) {
			return true, nil
		}))
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrCredentialExists)
}

func TestVerifyRegistrationPackedSelf(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 3)

	clientDataHash := sha256.Sum256(f.clientData)
	attObj, err := mint.AttestationObjectPacked(&mint.PackedInput{
		AuthData:       f.authData,
		ClientDataHash: clientDataHash[:],
		Signer:         f.key,
		Algorithm:      cosekey.ES256,
	})
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	cred, err := v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.NoError(t, err)
	require.Equal(t, webauthn.AttestationTypeSelf, cred.AttestationType)
	require.Empty(t, cred.TrustPath)
}

func TestVerifyRegistrationPackedFull(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 3)

	mc, err := mint.NewMintContext()
	require.NoError(t, err)
	intCert, err := mc.IntCert()
	require.NoError(t, err)
	caCert, err := mc.CACert()
	require.NoError(t, err)

	attKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	leafDER, err := mint.AttestationCert(&mint.AttestationCertInput{
		IssuerCertificate: intCert,
		IssuerKey:         mc.IntKey,
		AttestationKey:    &attKey.PublicKey,
		NotBefore:         time.Now().Add(-time.Minute),
		NotAfter:          time.Now().Add(time.Hour),
		AAGUID:            f.aaguid,
	})
	require.NoError(t, err)

	clientDataHash := sha256.Sum256(f.clientData)
	attObj, err := mint.AttestationObjectPacked(&mint.PackedInput{
		AuthData:       f.authData,
		ClientDataHash: clientDataHash[:],
		Signer:         attKey,
		Algorithm:      cosekey.ES256,
		CertChainDER:   [][]byte{leafDER, mc.IntCertDER},
	})
	require.NoError(t, err)

	input := &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	}

	// Without trust anchors the statement signature is still verified.
	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)
	cred, err := v.VerifyRegistration(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, webauthn.AttestationTypeBasic, cred.AttestationType)
	require.Len(t, cred.TrustPath, 2)

	// With trust anchors the chain must terminate at the configured root.
	v, err = webauthn.New(testRPID, testOrigin,
		webauthn.WithTrustAnchors(map[string][]*x509.Certificate{
			webauthn.FormatPacked: {caCert},
		}))
	require.NoError(t, err)
	_, err = v.VerifyRegistration(context.Background(), input)
	require.NoError(t, err)

	// A foreign root must be rejected.
	other, err := mint.NewMintContext()
	require.NoError(t, err)
	otherCA, err := other.CACert()
	require.NoError(t, err)

	v, err = webauthn.New(testRPID, testOrigin,
		webauthn.WithTrustAnchors(map[string][]*x509.Certificate{
			webauthn.FormatPacked: {otherCA},
		}))
	require.NoError(t, err)
	_, err = v.VerifyRegistration(context.Background(), input)
	require.ErrorIs(t, err, webauthn.ErrAttestation)
}

func TestVerifyRegistrationPackedTamperedSignature(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 3)

	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clientDataHash := sha256.Sum256(f.clientData)
	attObj, err := mint.AttestationObjectPacked(&mint.PackedInput{
		AuthData:       f.authData,
		ClientDataHash: clientDataHash[:],
		Signer:         otherKey, // not the credential key
		Algorithm:      cosekey.ES256,
	})
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.ErrorIs(t, err, webauthn.ErrAttestation)
}

func TestVerifyRegistrationFIDOU2F(t *testing.T) {
	f := newRegFixture(t, authenticatordata.ADF_USER_PRESENT, 0)

	mc, err := mint.NewMintContext()
	require.NoError(t, err)
	caCert, err := mc.CACert()
	require.NoError(t, err)

	attKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	leafDER, err := mint.AttestationCert(&mint.AttestationCertInput{
		IssuerCertificate: caCert,
		IssuerKey:         mc.CAKey,
		AttestationKey:    &attKey.PublicKey,
		NotBefore:         time.Now().Add(-time.Minute),
		NotAfter:          time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	rpIDHash := sha256.Sum256([]byte(testRPID))
	clientDataHash := sha256.Sum256(f.clientData)
	attObj, err := mint.AttestationObjectFIDOU2F(&mint.FIDOU2FInput{
		AuthData:            f.authData,
		RPIDHash:            rpIDHash[:],
		ClientDataHash:      clientDataHash[:],
		CredentialID:        f.credentialID,
		CredentialPublicKey: &f.key.PublicKey,
		AttestationKey:      attKey,
		CertDER:             leafDER,
	})
	require.NoError(t, err)

	v, err := webauthn.New(testRPID, testOrigin,
		webauthn.WithTrustAnchors(map[string][]*x509.Certificate{
			webauthn.FormatFIDOU2F: {caCert},
		}))
	require.NoError(t, err)

	cred, err := v.VerifyRegistration(context.Background(), &webauthn.RegistrationInput{
		Challenge:         f.challenge,
		ClientDataJSON:    f.clientData,
		AttestationObject: attObj,
	})
	require.NoError(t, err)
	require.Equal(t, webauthn.AttestationTypeBasic, cred.AttestationType)
}

func TestCredentialIDString(t *testing.T) {
	id := []byte{0xde, 0xad, 0xbe, 0xef}
	require.Equal(t, "3q2-7w", webauthn.CredentialIDString(id))
	require.Equal(t, webauthn.CredentialIDString(id), webauthn.CredentialIDString(id))
}

func flipFirstByte(b []byte) []byte {
	out := append([]byte{}, b...)
	out[0] ^= 0x01
	return out
}

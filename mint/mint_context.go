// Package mint fabricates WebAuthn ceremony material: CA hierarchies,
// authenticator data, attestation objects and signed assertions. It exists
// for tests and local development, never for production use.
package mint

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// MintContext is a fabricated CA hierarchy: a root and one intermediate,
// both ECDSA P-256.
type MintContext struct {
	CAKey     *ecdsa.PrivateKey
	CACertDER []byte

	IntKey     *ecdsa.PrivateKey
	IntCertDER []byte
}

func (mc *MintContext) CACert() (*x509.Certificate, error) {
	return x509.ParseCertificate(mc.CACertDER)
}

func (mc *MintContext) IntCert() (*x509.Certificate, error) {
	return x509.ParseCertificate(mc.IntCertDER)
}

func NewMintContext() (*MintContext, error) {
	cader, capriv, err := generateCACert("go-webauthn Dev/Mock Root CA", nil, nil, 2)
	if err != nil {
		return nil, err
	}

	cacert, err := x509.ParseCertificate(cader)
	if err != nil {
		return nil, err
	}

	intder, intpriv, err := generateCACert("go-webauthn Dev/Mock Intermediate", cacert, capriv, 1)
	if err != nil {
		return nil, err
	}

	return &MintContext{
		CAKey:     capriv,
		CACertDER: cader,

		IntKey:     intpriv,
		IntCertDER: intder,
	}, nil
}

func generateCACert(commonName string, parent *x509.Certificate, parentKey *ecdsa.PrivateKey, maxPathLen int) ([]byte, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            maxPathLen,
	}

	signerCert := &template
	signerKey := key
	if parent != nil {
		signerCert = parent
		signerKey = parentKey
		template.NotAfter = parent.NotAfter.AddDate(-1, 0, 0)
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, signerCert, &key.PublicKey, signerKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating CA certificate")
	}
	return certDER, key, nil
}

// AttestationCertInput describes the leaf certificate minted for packed or
// fido-u2f attestation statements.
type AttestationCertInput struct {
	IssuerCertificate *x509.Certificate
	IssuerKey         *ecdsa.PrivateKey
	AttestationKey    *ecdsa.PublicKey

	NotBefore time.Time
	NotAfter  time.Time

	// AAGUID, when set, is embedded as the id-fido-gen-ce-aaguid extension.
	AAGUID []byte

	// MutateLeafTemplate lets the caller break the template before signing,
	// for negative tests.
	MutateLeafTemplate func(*x509.Certificate)
}

var idFIDOGenCEAAGUIDOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45724, 1, 1, 4}

func aaguidExtension(aaguid []byte) (pkix.Extension, error) {
	wrapped, err := asn1.Marshal(aaguid)
	if err != nil {
		return pkix.Extension{}, errors.Wrap(err, "marshalling AAGUID extension")
	}
	return pkix.Extension{Id: idFIDOGenCEAAGUIDOID, Value: wrapped}, nil
}

// AttestationCert mints a leaf that satisfies the packed attestation
// certificate requirements: Subject-OU "Authenticator Attestation", not a
// CA, digital signature key usage.
func AttestationCert(in *AttestationCertInput) ([]byte, error) {
	template := x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			CommonName:         "mock authenticator attestation",
			OrganizationalUnit: []string{"Authenticator Attestation"},
		},
		NotBefore:             in.NotBefore,
		NotAfter:              in.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	if len(in.AAGUID) > 0 {
		ext, err := aaguidExtension(in.AAGUID)
		if err != nil {
			return nil, err
		}
		template.ExtraExtensions = append(template.ExtraExtensions, ext)
	}

	if in.MutateLeafTemplate != nil {
		in.MutateLeafTemplate(&template)
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, in.IssuerCertificate, in.AttestationKey, in.IssuerKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating attestation certificate")
	}
	return certDER, nil
}

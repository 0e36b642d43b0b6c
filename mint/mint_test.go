package mint_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn/mint"
)

func TestMintContextChain(t *testing.T) {
	mc, err := mint.NewMintContext()
	require.NoError(t, err)

	caCert, err := mc.CACert()
	require.NoError(t, err)
	intCert, err := mc.IntCert()
	require.NoError(t, err)

	require.True(t, caCert.IsCA)
	require.True(t, intCert.IsCA)
	require.NoError(t, intCert.CheckSignatureFrom(caCert))
}

func TestAttestationCertRequirements(t *testing.T) {
	mc, err := mint.NewMintContext()
	require.NoError(t, err)
	intCert, err := mc.IntCert()
	require.NoError(t, err)

	attKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := mint.AttestationCert(&mint.AttestationCertInput{
		IssuerCertificate: intCert,
		IssuerKey:         mc.IntKey,
		AttestationKey:    &attKey.PublicKey,
		NotBefore:         time.Now().Add(-time.Minute),
		NotAfter:          time.Now().Add(time.Hour),
		AAGUID:            make([]byte, 16),
	})
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	require.Equal(t, 3, cert.Version)
	require.Equal(t, []string{"Authenticator Attestation"}, cert.Subject.OrganizationalUnit)
	require.False(t, cert.IsCA)
	require.NoError(t, cert.CheckSignatureFrom(intCert))
}

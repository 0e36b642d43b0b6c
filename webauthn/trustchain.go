package webauthn

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// verifyTrustChain walks an attestation certificate chain, ordered leaf to
// root candidates, and checks it against the caller-supplied trust anchors.
// The walk is explicit rather than delegated wholesale to x509.Verify so
// that attestation-specific requirements (no weak signature algorithms, no
// unknown critical extensions, strict validity nesting) are enforced
// uniformly across formats.
func verifyTrustChain(chain []*x509.Certificate, anchors []*x509.Certificate, now time.Time) error {
	if len(chain) == 0 {
		return errors.New("empty certificate chain")
	}

	for i, cert := range chain {
		isCA := i != 0
		if err := checkChainCertificate(cert, isCA, now); err != nil {
			return errors.Wrapf(err, "certificate %d", i)
		}
	}

	for i := len(chain) - 1; i >= 1; i-- {
		parent := chain[i]
		child := chain[i-1]

		if !bytes.Equal(parent.RawSubject, child.RawIssuer) {
			return errors.Errorf("certificate %d issuer does not match certificate %d subject", i-1, i)
		}
		if err := child.CheckSignatureFrom(parent); err != nil {
			return errors.Wrapf(err, "certificate %d not signed by certificate %d", i-1, i)
		}
		if child.NotBefore.Before(parent.NotBefore) || child.NotAfter.After(parent.NotAfter) {
			return errors.Errorf("certificate %d validity is not nested within certificate %d", i-1, i)
		}
	}

	top := chain[len(chain)-1]
	for _, root := range anchors {
		if !bytes.Equal(root.RawSubject, top.RawIssuer) {
			continue
		}
		if err := top.CheckSignatureFrom(root); err != nil {
			continue
		}
		return nil
	}
	return errors.New("chain does not terminate at any trust anchor")
}

func checkChainCertificate(cert *x509.Certificate, isCA bool, now time.Time) error {
	switch cert.SignatureAlgorithm {
	case x509.MD2WithRSA, x509.MD5WithRSA, x509.SHA1WithRSA, x509.ECDSAWithSHA1:
		return errors.Errorf("weak signature algorithm %v", cert.SignatureAlgorithm)
	}

	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return fmt.Errorf("certificate is not valid at %v", now)
	}

	if isCA {
		if !cert.IsCA {
			return errors.New("intermediate is not a CA certificate")
		}
		if cert.KeyUsage&x509.KeyUsageCertSign == 0 {
			return errors.New("CA certificate lacks the Certificate Sign key usage")
		}
	} else if cert.IsCA {
		return errors.New("leaf certificate must not be a CA")
	}

	for _, ext := range cert.Extensions {
		if !ext.Critical {
			continue
		}
		if _, ok := knownCriticalExtensions[ext.Id.String()]; !ok {
			return errors.Errorf("unknown critical extension %s", ext.Id)
		}
	}
	return nil
}

var knownCriticalExtensions = map[string]struct{}{
	"2.5.29.19":         {}, // Basic Constraints
	"2.5.29.15":         {}, // Key Usage
	"2.5.29.37":         {}, // Extended Key Usage
	"2.5.29.17":         {}, // Subject Alternative Name
	"2.5.29.35":         {}, // Authority Key Identifier
	"2.5.29.14":         {}, // Subject Key Identifier
	"2.5.29.32":         {}, // Certificate Policies
	"2.5.29.31":         {}, // CRL Distribution Points
	"1.3.6.1.5.5.7.1.1": {}, // Authority Information Access
}

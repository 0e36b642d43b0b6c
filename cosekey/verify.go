package cosekey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/pkg/errors"
)

var hashForAlgorithm = map[Algorithm]crypto.Hash{
	ES256: crypto.SHA256,
	ES384: crypto.SHA384,
	ES512: crypto.SHA512,
	RS256: crypto.SHA256,
	RS384: crypto.SHA384,
	RS512: crypto.SHA512,
}

// Verify checks sig over data using pub and the given algorithm. The
// algorithm decides both the signature scheme and the digest; a key of the
// wrong family for the algorithm fails as an invalid signature.
func Verify(pub crypto.PublicKey, alg Algorithm, data, sig []byte) error {
	switch alg {
	case ES256, ES384, ES512:
		ecdsaPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return errors.Wrapf(ErrSignatureInvalid, "public key type %T cannot verify %s", pub, alg)
		}
		digest := digestFor(alg, data)
		if !ecdsa.VerifyASN1(ecdsaPub, digest, sig) {
			return errors.Wrapf(ErrSignatureInvalid, "%s verification failed", alg)
		}
	case EdDSA:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return errors.Wrapf(ErrSignatureInvalid, "public key type %T cannot verify EdDSA", pub)
		}
		if !ed25519.Verify(edPub, data, sig) {
			return errors.Wrap(ErrSignatureInvalid, "EdDSA verification failed")
		}
	case RS256, RS384, RS512:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.Wrapf(ErrSignatureInvalid, "public key type %T cannot verify %s", pub, alg)
		}
		digest := digestFor(alg, data)
		if err := rsa.VerifyPKCS1v15(rsaPub, hashForAlgorithm[alg], digest, sig); err != nil {
			return errors.Wrapf(ErrSignatureInvalid, "%s verification failed", alg)
		}
	default:
		return errors.Wrapf(ErrUnsupportedAlgorithm, "%s", alg)
	}
	return nil
}

func digestFor(alg Algorithm, data []byte) []byte {
	h := hashForAlgorithm[alg].New()
	h.Write(data)
	return h.Sum(nil)
}

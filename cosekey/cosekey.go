// Package cosekey decodes COSE-encoded credential public keys into Go
// crypto keys and verifies signatures with them.
//
// Only the subset of COSE that WebAuthn credentials use is supported:
// EC2 (ES256/ES384/ES512), OKP Ed25519 (EdDSA) and RSA PKCS#1 v1.5
// (RS256/RS384/RS512).
package cosekey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/ldclabs/cose/iana"
	"github.com/pkg/errors"
)

var (
	ErrMalformedKey         = errors.New("malformed COSE key")
	ErrUnsupportedAlgorithm = errors.New("unsupported COSE algorithm")
	ErrSignatureInvalid     = errors.New("invalid signature")
)

// Algorithm is a COSE algorithm identifier.
//
// https://www.iana.org/assignments/cose/cose.xhtml#algorithms
type Algorithm int64

const (
	ES256 Algorithm = -7
	EdDSA Algorithm = -8
	ES384 Algorithm = -35
	ES512 Algorithm = -36
	RS256 Algorithm = -257
	RS384 Algorithm = -258
	RS512 Algorithm = -259
)

var algStrings = map[Algorithm]string{
	ES256: "ES256",
	EdDSA: "EdDSA",
	ES384: "ES384",
	ES512: "ES512",
	RS256: "RS256",
	RS384: "RS384",
	RS512: "RS512",
}

func (a Algorithm) String() string {
	if s, ok := algStrings[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int64(a))
}

// SupportedAlgorithms returns every algorithm this package can verify, in
// IANA registry order. It is the default allow-list for ceremonies.
func SupportedAlgorithms() []Algorithm {
	return []Algorithm{ES256, EdDSA, ES384, ES512, RS256, RS384, RS512}
}

// Key is a credential public key decoded from its COSE encoding.
type Key struct {
	Algorithm Algorithm
	Public    crypto.PublicKey

	// Raw is the CBOR encoding the key was parsed from.
	Raw []byte
}

// The COSE key map uses integer labels. kty and alg are common to all key
// types; the remaining labels are key-type specific and reuse values across
// types, hence the two-stage decode.
type keyHeader struct {
	Kty int64 `cbor:"1,keyasint"`
	Alg int64 `cbor:"3,keyasint,omitempty"`
}

type ec2Params struct {
	Crv int64  `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
	Y   []byte `cbor:"-3,keyasint"`
}

type okpParams struct {
	Crv int64  `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
}

type rsaParams struct {
	N []byte `cbor:"-1,keyasint"`
	E []byte `cbor:"-2,keyasint"`
}

// ParseKey decodes a single COSE key from raw. The key must carry an alg
// entry, and the key type must agree with the algorithm family.
func ParseKey(raw []byte) (*Key, error) {
	var hdr keyHeader
	if err := cbor.Unmarshal(raw, &hdr); err != nil {
		return nil, errors.Wrap(ErrMalformedKey, err.Error())
	}
	if hdr.Alg == 0 {
		return nil, errors.Wrap(ErrMalformedKey, "missing alg entry")
	}

	k := &Key{Algorithm: Algorithm(hdr.Alg), Raw: raw}

	switch hdr.Kty {
	case iana.KeyTypeEC2:
		pub, err := parseEC2(raw, k.Algorithm)
		if err != nil {
			return nil, err
		}
		k.Public = pub
	case iana.KeyTypeOKP:
		pub, err := parseOKP(raw, k.Algorithm)
		if err != nil {
			return nil, err
		}
		k.Public = pub
	case iana.KeyTypeRSA:
		pub, err := parseRSA(raw, k.Algorithm)
		if err != nil {
			return nil, err
		}
		k.Public = pub
	default:
		return nil, errors.Wrapf(ErrMalformedKey, "unsupported key type %d", hdr.Kty)
	}

	return k, nil
}

func parseEC2(raw []byte, alg Algorithm) (*ecdsa.PublicKey, error) {
	var params ec2Params
	if err := cbor.Unmarshal(raw, &params); err != nil {
		return nil, errors.Wrap(ErrMalformedKey, err.Error())
	}

	var curve elliptic.Curve
	switch params.Crv {
	case iana.EllipticCurveP_256:
		curve = elliptic.P256()
	case iana.EllipticCurveP_384:
		curve = elliptic.P384()
	case iana.EllipticCurveP_521:
		curve = elliptic.P521()
	default:
		return nil, errors.Wrapf(ErrMalformedKey, "unsupported EC2 curve %d", params.Crv)
	}

	switch {
	case alg == ES256 && params.Crv == iana.EllipticCurveP_256:
	case alg == ES384 && params.Crv == iana.EllipticCurveP_384:
	case alg == ES512 && params.Crv == iana.EllipticCurveP_521:
	default:
		return nil, errors.Wrapf(ErrMalformedKey, "algorithm %s does not match EC2 curve %d", alg, params.Crv)
	}

	byteLen := (curve.Params().BitSize + 7) / 8
	if len(params.X) != byteLen || len(params.Y) != byteLen {
		return nil, errors.Wrapf(ErrMalformedKey, "EC2 coordinates must be %d bytes", byteLen)
	}

	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(params.X),
		Y:     new(big.Int).SetBytes(params.Y),
	}
	if !curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.Wrap(ErrMalformedKey, "EC2 point is not on the curve")
	}
	return pub, nil
}

func parseOKP(raw []byte, alg Algorithm) (ed25519.PublicKey, error) {
	var params okpParams
	if err := cbor.Unmarshal(raw, &params); err != nil {
		return nil, errors.Wrap(ErrMalformedKey, err.Error())
	}
	if alg != EdDSA {
		return nil, errors.Wrapf(ErrMalformedKey, "algorithm %s does not match OKP key type", alg)
	}
	if params.Crv != iana.EllipticCurveEd25519 {
		return nil, errors.Wrapf(ErrMalformedKey, "unsupported OKP curve %d", params.Crv)
	}
	if len(params.X) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrMalformedKey, "Ed25519 key must be %d bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(params.X), nil
}

func parseRSA(raw []byte, alg Algorithm) (*rsa.PublicKey, error) {
	var params rsaParams
	if err := cbor.Unmarshal(raw, &params); err != nil {
		return nil, errors.Wrap(ErrMalformedKey, err.Error())
	}
	switch alg {
	case RS256, RS384, RS512:
	default:
		return nil, errors.Wrapf(ErrMalformedKey, "algorithm %s does not match RSA key type", alg)
	}
	if len(params.N) == 0 || len(params.E) == 0 {
		return nil, errors.Wrap(ErrMalformedKey, "missing RSA modulus or exponent")
	}
	e := new(big.Int).SetBytes(params.E)
	if !e.IsInt64() || e.Int64() > int64(1<<31-1) || e.Int64() < 2 {
		return nil, errors.Wrap(ErrMalformedKey, "RSA exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(params.N),
		E: int(e.Int64()),
	}, nil
}

package mint

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/ldclabs/cose/iana"
	cose_key "github.com/ldclabs/cose/key"
	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/authenticatordata"
	"github.com/splitsecure/go-webauthn/cosekey"
)

// ClientDataInput describes a fabricated clientDataJSON payload.
type ClientDataInput struct {
	Ceremony  string // "webauthn.create" or "webauthn.get"
	Challenge []byte
	Origin    string
}

func ClientDataJSON(in *ClientDataInput) ([]byte, error) {
	payload := struct {
		Type        string `json:"type"`
		Challenge   string `json:"challenge"`
		Origin      string `json:"origin"`
		CrossOrigin bool   `json:"crossOrigin"`
	}{
		Type:      in.Ceremony,
		Challenge: base64.RawURLEncoding.EncodeToString(in.Challenge),
		Origin:    in.Origin,
	}
	return json.Marshal(payload)
}

// AuthDataInput describes fabricated authenticator data. When PublicKey is
// set the attested credential data block is emitted and the AT flag added.
type AuthDataInput struct {
	RPID      string
	Flags     byte
	SignCount uint32

	AAGUID       []byte
	CredentialID []byte
	PublicKey    cose_key.Key

	Extensions []byte
}

func AuthData(in *AuthDataInput) ([]byte, error) {
	rpIDHash := sha256.Sum256([]byte(in.RPID))

	t := authenticatordata.T{
		RelyingPartyHash: rpIDHash[:],
		Flags:            in.Flags,
		SignCount:        in.SignCount,
	}

	if in.PublicKey != nil {
		aaguid := in.AAGUID
		if aaguid == nil {
			aaguid = make([]byte, 16)
		}
		t.Flags |= authenticatordata.ADF_HAS_ATTESTED_CREDENTIAL_DATA
		t.AttestedCredentialData = &authenticatordata.AttestedCredentialData{
			AAGUID:              aaguid,
			CredentialID:        in.CredentialID,
			CredentialPublicKey: in.PublicKey,
		}
	}

	if in.Extensions != nil {
		t.Flags |= authenticatordata.ADF_HAS_EXTENSION_DATA
		t.Extensions = in.Extensions
	}

	return authenticatordata.Marshal(&t)
}

// COSEKeyFromECDSA builds the COSE map for an EC2 public key.
func COSEKeyFromECDSA(pub *ecdsa.PublicKey, alg cosekey.Algorithm) (cose_key.Key, error) {
	var crv int
	switch pub.Curve.Params().BitSize {
	case 256:
		crv = iana.EllipticCurveP_256
	case 384:
		crv = iana.EllipticCurveP_384
	case 521:
		crv = iana.EllipticCurveP_521
	default:
		return nil, errors.Errorf("unsupported curve %s", pub.Curve.Params().Name)
	}

	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	x := make([]byte, byteLen)
	y := make([]byte, byteLen)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return cose_key.Key{
		iana.KeyParameterKty:    iana.KeyTypeEC2,
		iana.KeyParameterAlg:    int64(alg),
		iana.EC2KeyParameterCrv: crv,
		iana.EC2KeyParameterX:   x,
		iana.EC2KeyParameterY:   y,
	}, nil
}

// COSEKeyFromEd25519 builds the COSE map for an Ed25519 public key.
func COSEKeyFromEd25519(pub ed25519.PublicKey) cose_key.Key {
	return cose_key.Key{
		iana.KeyParameterKty:    iana.KeyTypeOKP,
		iana.KeyParameterAlg:    int64(cosekey.EdDSA),
		iana.OKPKeyParameterCrv: iana.EllipticCurveEd25519,
		iana.OKPKeyParameterX:   []byte(pub),
	}
}

// COSEKeyFromRSA builds the COSE map for an RSA public key.
func COSEKeyFromRSA(pub *rsa.PublicKey, alg cosekey.Algorithm) cose_key.Key {
	e := make([]byte, 0, 4)
	for shift := 24; shift >= 0; shift -= 8 {
		b := byte(pub.E >> shift)
		if b == 0 && len(e) == 0 {
			continue
		}
		e = append(e, b)
	}
	return cose_key.Key{
		iana.KeyParameterKty:  iana.KeyTypeRSA,
		iana.KeyParameterAlg:  int64(alg),
		iana.RSAKeyParameterN: pub.N.Bytes(),
		iana.RSAKeyParameterE: e,
	}
}

type attObj struct {
	Format               string          `cbor:"fmt"`
	AttestationStatement cbor.RawMessage `cbor:"attStmt"`
	AuthData             []byte          `cbor:"authData"`
}

// AttestationObjectNone wraps authenticator data in a "none" attestation
// object (empty statement map).
func AttestationObjectNone(authData []byte) ([]byte, error) {
	return cbor.Marshal(&attObj{
		Format:               "none",
		AttestationStatement: cbor.RawMessage{0xa0},
		AuthData:             authData,
	})
}

// PackedInput describes a packed attestation object. With CertChainDER
// empty the statement is self attestation signed by Signer (the credential
// private key); otherwise Signer must be the attestation certificate key.
type PackedInput struct {
	AuthData       []byte
	ClientDataHash []byte

	Signer    crypto.Signer
	Algorithm cosekey.Algorithm

	CertChainDER [][]byte
}

func AttestationObjectPacked(in *PackedInput) ([]byte, error) {
	signed := append(append([]byte{}, in.AuthData...), in.ClientDataHash...)
	sig, err := Sign(in.Signer, in.Algorithm, signed)
	if err != nil {
		return nil, err
	}

	stmt := struct {
		Alg int64    `cbor:"alg"`
		Sig []byte   `cbor:"sig"`
		X5C [][]byte `cbor:"x5c,omitempty"`
	}{
		Alg: int64(in.Algorithm),
		Sig: sig,
		X5C: in.CertChainDER,
	}
	stmtCBOR, err := cbor.Marshal(&stmt)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling packed statement")
	}

	return cbor.Marshal(&attObj{
		Format:               "packed",
		AttestationStatement: stmtCBOR,
		AuthData:             in.AuthData,
	})
}

// FIDOU2FInput describes a fido-u2f attestation object.
type FIDOU2FInput struct {
	AuthData       []byte
	RPIDHash       []byte
	ClientDataHash []byte
	CredentialID   []byte

	CredentialPublicKey *ecdsa.PublicKey
	AttestationKey      *ecdsa.PrivateKey
	CertDER             []byte
}

func AttestationObjectFIDOU2F(in *FIDOU2FInput) ([]byte, error) {
	xb := make([]byte, 32)
	yb := make([]byte, 32)
	in.CredentialPublicKey.X.FillBytes(xb)
	in.CredentialPublicKey.Y.FillBytes(yb)

	signed := make([]byte, 0, 1+32+32+len(in.CredentialID)+65)
	signed = append(signed, 0x00)
	signed = append(signed, in.RPIDHash...)
	signed = append(signed, in.ClientDataHash...)
	signed = append(signed, in.CredentialID...)
	signed = append(signed, 0x04)
	signed = append(signed, xb...)
	signed = append(signed, yb...)

	sig, err := Sign(in.AttestationKey, cosekey.ES256, signed)
	if err != nil {
		return nil, err
	}

	stmt := struct {
		Sig []byte   `cbor:"sig"`
		X5C [][]byte `cbor:"x5c"`
	}{
		Sig: sig,
		X5C: [][]byte{in.CertDER},
	}
	stmtCBOR, err := cbor.Marshal(&stmt)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling fido-u2f statement")
	}

	return cbor.Marshal(&attObj{
		Format:               "fido-u2f",
		AttestationStatement: stmtCBOR,
		AuthData:             in.AuthData,
	})
}

// Sign produces a signature the engine's verifier accepts for alg: ASN.1
// ECDSA over the digest for ES*, PKCS#1 v1.5 for RS*, pure Ed25519 for
// EdDSA.
func Sign(signer crypto.Signer, alg cosekey.Algorithm, data []byte) ([]byte, error) {
	var digest []byte
	var opts crypto.SignerOpts
	switch alg {
	case cosekey.ES256, cosekey.RS256:
		sum := sha256.Sum256(data)
		digest, opts = sum[:], crypto.SHA256
	case cosekey.ES384, cosekey.RS384:
		sum := sha512.Sum384(data)
		digest, opts = sum[:], crypto.SHA384
	case cosekey.ES512, cosekey.RS512:
		sum := sha512.Sum512(data)
		digest, opts = sum[:], crypto.SHA512
	case cosekey.EdDSA:
		digest, opts = data, crypto.Hash(0)
	default:
		return nil, errors.Errorf("cannot sign with algorithm %s", alg)
	}

	sig, err := signer.Sign(rand.Reader, digest, opts)
	return sig, errors.Wrap(err, "signing")
}

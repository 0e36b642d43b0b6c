package mint

import (
	"crypto"
	"crypto/sha256"

	"github.com/splitsecure/go-webauthn/authenticatordata"
	"github.com/splitsecure/go-webauthn/cosekey"
)

// AssertionInput describes a fabricated authentication assertion.
type AssertionInput struct {
	RPID      string
	Flags     byte
	SignCount uint32

	ClientDataJSON []byte

	Signer    crypto.Signer
	Algorithm cosekey.Algorithm

	Extensions []byte

	// MutateAuthData, when set, alters the authenticator data after signing,
	// for negative tests.
	MutateAuthData func(authData []byte)
}

type AssertionOutput struct {
	AuthenticatorData []byte
	Signature         []byte
}

// Assertion signs authenticatorData || SHA-256(clientDataJSON) with the
// credential private key, the way an authenticator produces an assertion.
func Assertion(in *AssertionInput) (AssertionOutput, error) {
	rpIDHash := sha256.Sum256([]byte(in.RPID))

	t := authenticatordata.T{
		RelyingPartyHash: rpIDHash[:],
		Flags:            in.Flags,
		SignCount:        in.SignCount,
	}
	if in.Extensions != nil {
		t.Flags |= authenticatordata.ADF_HAS_EXTENSION_DATA
		t.Extensions = in.Extensions
	}

	authData, err := authenticatordata.Marshal(&t)
	if err != nil {
		return AssertionOutput{}, err
	}

	clientDataHash := sha256.Sum256(in.ClientDataJSON)
	signed := append(append([]byte{}, authData...), clientDataHash[:]...)

	sig, err := Sign(in.Signer, in.Algorithm, signed)
	if err != nil {
		return AssertionOutput{}, err
	}

	if in.MutateAuthData != nil {
		in.MutateAuthData(authData)
	}

	return AssertionOutput{
		AuthenticatorData: authData,
		Signature:         sig,
	}, nil
}

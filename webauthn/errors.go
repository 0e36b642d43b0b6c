package webauthn

import (
	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/cosekey"
)

// The error taxonomy is closed: every ceremony failure wraps exactly one of
// these sentinels, so callers classify with errors.Is and map classes to
// transport responses themselves. A failed ceremony is terminal; the engine
// never retries and never returns a partial result.
var (
	ErrClientData            = errors.New("client data rejected")
	ErrAuthenticatorData     = errors.New("authenticator data rejected")
	ErrAttestation           = errors.New("attestation rejected")
	ErrCloningDetected       = errors.New("sign counter regressed, authenticator may be cloned")
	ErrInvalidCredentialType = errors.New("invalid credential type")
	ErrCredentialExists      = errors.New("credential ID is already registered")

	ErrUnsupportedAlgorithm = cosekey.ErrUnsupportedAlgorithm
	ErrSignatureInvalid     = cosekey.ErrSignatureInvalid
)

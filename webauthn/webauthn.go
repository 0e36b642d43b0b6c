// Package webauthn verifies WebAuthn/FIDO2 registration and authentication
// ceremonies on behalf of a relying party.
//
// The package is the verification engine only. Challenge generation and
// freshness, credential storage, session handling and transport encoding are
// the caller's responsibility; the engine takes raw, untrusted byte buffers
// and yields either validated credential material or a classified error.
//
// A Verifier holds no mutable state, so a single instance may verify any
// number of ceremonies concurrently.
package webauthn

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/cosekey"
)

// CredentialTypePublicKey is the only credential type defined by WebAuthn.
const CredentialTypePublicKey = "public-key"

// TrustAnchorSource supplies trusted root certificates for an attestation
// format. It is consulted at most once per ceremony, and only when the
// ceremony carries an attestation statement. A source may block (for
// example on a remote root store); the surrounding ceremony produces no
// observable effect if it is abandoned before the lookup completes.
//
// Returning no roots for a format means attestation trust is not enforced
// for it: the statement signature is still verified, the chain is not.
type TrustAnchorSource interface {
	TrustAnchors(ctx context.Context, format string) ([]*x509.Certificate, error)
}

// StaticTrustAnchors is a fixed format-to-roots mapping.
type StaticTrustAnchors map[string][]*x509.Certificate

func (s StaticTrustAnchors) TrustAnchors(_ context.Context, format string) ([]*x509.Certificate, error) {
	return s[format], nil
}

// CredentialExistsFunc reports whether a credential ID is already known to
// the caller's store. Uniqueness enforcement lives with the caller; wiring
// this hook merely lets registration fail early with ErrCredentialExists.
type CredentialExistsFunc func(ctx context.Context, credentialID []byte) (bool, error)

// Verifier verifies ceremonies for a single relying party.
type Verifier struct {
	rpID     string
	rpIDHash [sha256.Size]byte
	origin   string

	requireUserVerification bool
	rejectExtensions        bool
	allowedAlgorithms       map[cosekey.Algorithm]struct{}
	trustAnchors            TrustAnchorSource
	credentialExists        CredentialExistsFunc
}

type optionsState struct {
	requireUserVerification bool
	rejectExtensions        bool
	allowedAlgorithms       []cosekey.Algorithm
	trustAnchors            TrustAnchorSource
	credentialExists        CredentialExistsFunc
}

type option struct {
	apply func(*optionsState)
}

func newoption(fn func(*optionsState)) option {
	return option{
		apply: fn,
	}
}

// WithUserVerificationRequired makes both ceremonies demand the
// user-verified flag in addition to user presence.
func WithUserVerificationRequired() option {
	return newoption(func(s *optionsState) {
		s.requireUserVerification = true
	})
}

// WithAllowedAlgorithms restricts the credential public key algorithms
// accepted during registration. The default allows every algorithm the
// engine supports.
func WithAllowedAlgorithms(algs ...cosekey.Algorithm) option {
	return newoption(func(s *optionsState) {
		s.allowedAlgorithms = algs
	})
}

// WithTrustAnchorSource installs the capability that resolves attestation
// formats to trusted roots.
func WithTrustAnchorSource(src TrustAnchorSource) option {
	return newoption(func(s *optionsState) {
		s.trustAnchors = src
	})
}

// WithTrustAnchors installs a fixed format-to-roots mapping.
func WithTrustAnchors(anchors map[string][]*x509.Certificate) option {
	return newoption(func(s *optionsState) {
		s.trustAnchors = StaticTrustAnchors(anchors)
	})
}

// WithRejectExtensions makes authenticator data that carries an extension
// block fail the ceremony. The default passes the raw block through
// unverified.
func WithRejectExtensions() option {
	return newoption(func(s *optionsState) {
		s.rejectExtensions = true
	})
}

// WithCredentialExists installs the caller's credential ID lookup, checked
// during registration.
func WithCredentialExists(fn CredentialExistsFunc) option {
	return newoption(func(s *optionsState) {
		s.credentialExists = fn
	})
}

// New builds a Verifier for the relying party identified by rpID, whose
// ceremonies originate from origin (scheme, host and optional port, matched
// exactly and case-sensitively).
func New(rpID, origin string, options ...option) (*Verifier, error) {
	if rpID == "" {
		return nil, errors.New("relying party ID must not be empty")
	}
	if origin == "" {
		return nil, errors.New("relying party origin must not be empty")
	}

	state := optionsState{}
	for _, option := range options {
		option.apply(&state)
	}

	v := &Verifier{
		rpID:                    rpID,
		rpIDHash:                sha256.Sum256([]byte(rpID)),
		origin:                  origin,
		requireUserVerification: state.requireUserVerification,
		rejectExtensions:        state.rejectExtensions,
		trustAnchors:            state.trustAnchors,
		credentialExists:        state.credentialExists,
	}

	allowed := state.allowedAlgorithms
	if allowed == nil {
		allowed = cosekey.SupportedAlgorithms()
	}
	v.allowedAlgorithms = make(map[cosekey.Algorithm]struct{}, len(allowed))
	for _, alg := range allowed {
		v.allowedAlgorithms[alg] = struct{}{}
	}

	return v, nil
}

// CredentialIDString derives the textual form of a credential ID. The
// encoding is deterministic, so the result is usable as a storage key.
func CredentialIDString(credentialID []byte) string {
	return base64.RawURLEncoding.EncodeToString(credentialID)
}

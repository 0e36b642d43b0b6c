package authenticatordata

import (
	cose_key "github.com/ldclabs/cose/key"
)

const (
	ADF_USER_PRESENT                 = byte(1)
	ADF_RFU1                         = byte(1 << 1)
	ADF_USER_VERIFIED                = byte(1 << 2)
	ADF_BACKUP_ELIGIBLE              = byte(1 << 3)
	ADF_BACKED_UP                    = byte(1 << 4)
	ADF_RFU2                         = byte(1 << 5)
	ADF_HAS_ATTESTED_CREDENTIAL_DATA = byte(1 << 6)
	ADF_HAS_EXTENSION_DATA           = byte(1 << 7)
)

// T is parsed authenticator data
// according to https://www.w3.org/TR/webauthn-3/#sctn-authenticator-data
type T struct {
	RelyingPartyHash []byte
	Flags            byte
	SignCount        uint32

	// AttestedCredentialData is non-nil iff ADF_HAS_ATTESTED_CREDENTIAL_DATA
	// is set in Flags.
	AttestedCredentialData *AttestedCredentialData

	// Extensions is the raw CBOR extension block, non-nil iff
	// ADF_HAS_EXTENSION_DATA is set in Flags. It is carried through
	// unverified.
	Extensions []byte
}

type AttestedCredentialData struct {
	AAGUID       []byte
	CredentialID []byte

	CredentialPublicKey cose_key.Key

	// RawCredentialPublicKey is the exact CBOR encoding of
	// CredentialPublicKey as it appeared on the wire.
	RawCredentialPublicKey []byte
}

func (t *T) UserPresent() bool    { return t.Flags&ADF_USER_PRESENT != 0 }
func (t *T) UserVerified() bool   { return t.Flags&ADF_USER_VERIFIED != 0 }
func (t *T) BackupEligible() bool { return t.Flags&ADF_BACKUP_ELIGIBLE != 0 }
func (t *T) BackedUp() bool       { return t.Flags&ADF_BACKED_UP != 0 }

func (t *T) HasAttestedCredentialData() bool {
	return t.Flags&ADF_HAS_ATTESTED_CREDENTIAL_DATA != 0
}

func (t *T) HasExtensionData() bool {
	return t.Flags&ADF_HAS_EXTENSION_DATA != 0
}

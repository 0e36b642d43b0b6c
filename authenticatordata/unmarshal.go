package authenticatordata

import (
	"bytes"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	prefixLen = 32 + 1 + 4
	aaguidLen = 16
)

var (
	ErrTruncated           = errors.New("truncated authenticator data")
	ErrTrailingBytes       = errors.New("trailing bytes after authenticator data")
	ErrMalformedPublicKey  = errors.New("malformed credential public key")
	ErrMalformedExtensions = errors.New("malformed extension data")
	ErrMissingCredential   = errors.New("attested credential data flag set but data missing")
)

// Unmarshal unmarshals authenticator data
// according to https://www.w3.org/TR/webauthn-3/#sctn-authenticator-data
//
// The input is attacker controlled: every read is bounds checked, the
// credential public key and extension block must each decode as exactly one
// CBOR item, and any bytes left over after the structures the flags declare
// are rejected.
func Unmarshal(src []byte, dst *T) error {
	rest, err := unmarshalBase(src, dst)
	if err != nil {
		return err
	}

	if dst.HasAttestedCredentialData() {
		acd := &AttestedCredentialData{}
		rest, err = UnmarshalAttestedCredentialData(rest, acd)
		if err != nil {
			return err
		}
		dst.AttestedCredentialData = acd
	}

	if dst.HasExtensionData() {
		rest, err = unmarshalExtensions(rest, dst)
		if err != nil {
			return err
		}
	}

	if len(rest) != 0 {
		return errors.Wrapf(ErrTrailingBytes, "%d unexpected bytes", len(rest))
	}
	return nil
}

func unmarshalBase(src []byte, dst *T) (rest []byte, err error) {
	if len(src) < prefixLen {
		return nil, errors.Wrapf(ErrTruncated, "need %d bytes for the fixed prefix, have %d", prefixLen, len(src))
	}

	cursor := src

	dst.RelyingPartyHash = cursor[0:32]
	cursor = cursor[32:]

	dst.Flags = cursor[0]
	cursor = cursor[1:]

	dst.SignCount = binary.BigEndian.Uint32(cursor)
	cursor = cursor[4:]

	return cursor, nil
}

func UnmarshalAttestedCredentialData(src []byte, dst *AttestedCredentialData) (rest []byte, err error) {
	if len(src) < aaguidLen+2 {
		return nil, errors.Wrap(ErrMissingCredential, "not enough bytes for AAGUID and credential ID length")
	}

	dst.AAGUID = src[0:aaguidLen]

	credLen := int(binary.BigEndian.Uint16(src[aaguidLen : aaguidLen+2]))
	if len(src) < aaguidLen+2+credLen {
		return nil, errors.Wrapf(ErrTruncated, "credential ID declares %d bytes, %d available", credLen, len(src)-aaguidLen-2)
	}
	dst.CredentialID = src[aaguidLen+2 : aaguidLen+2+credLen]

	keyBytes := src[aaguidLen+2+credLen:]
	dec := cbor.NewDecoder(bytes.NewReader(keyBytes))
	if err := dec.Decode(&dst.CredentialPublicKey); err != nil {
		return nil, errors.Wrap(ErrMalformedPublicKey, err.Error())
	}
	dst.RawCredentialPublicKey = keyBytes[:dec.NumBytesRead()]

	return keyBytes[dec.NumBytesRead():], nil
}

func unmarshalExtensions(src []byte, dst *T) (rest []byte, err error) {
	dec := cbor.NewDecoder(bytes.NewReader(src))
	var raw cbor.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(ErrMalformedExtensions, err.Error())
	}
	dst.Extensions = src[:dec.NumBytesRead()]
	return src[dec.NumBytesRead():], nil
}

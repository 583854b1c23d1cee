package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "aidtrace/pkg/domain-errors"
)

// maxIdentifierLength bounds identities and asset IDs at trust boundaries.
const maxIdentifierLength = 128

// Identity names a platform participant (donor, NGO, scanner, auditor).
// The zero value is the null identity.
type Identity string

// AssetID is the caller-supplied key of a tracked shipment, typically the
// keccak-256 hash of its physical QR tag (see AssetIDFromTag).
type AssetID string

// ParseIdentity validates an identity supplied at a trust boundary.
func ParseIdentity(s string) (Identity, error) {
	if err := validateIdentifier(s, "identity"); err != nil {
		return "", err
	}
	return Identity(s), nil
}

// ParseAssetID validates an asset identifier supplied at a trust boundary.
func ParseAssetID(s string) (AssetID, error) {
	if err := validateIdentifier(s, "asset id"); err != nil {
		return "", err
	}
	return AssetID(s), nil
}

// AssetIDFromTag derives an asset identifier from the raw payload printed on a
// physical QR tag: "0x" followed by the hex keccak-256 digest.
func AssetIDFromTag(tag string) AssetID {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(tag))
	return AssetID("0x" + hex.EncodeToString(h.Sum(nil)))
}

func (i Identity) String() string { return string(i) }

// IsNil reports whether i is the null identity.
func (i Identity) IsNil() bool { return i == "" }

func (a AssetID) String() string { return string(a) }

// IsNil reports whether a is the empty identifier.
func (a AssetID) IsNil() bool { return a == "" }

// validateIdentifier accepts 1..128 characters from [A-Za-z0-9._:@-].
func validateIdentifier(s, what string) error {
	if s == "" {
		return dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	if len(s) > maxIdentifierLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s exceeds %d characters", what, maxIdentifierLength)
	}
	for i := 0; i < len(s); i++ {
		if !identifierByte(s[i]) {
			return dErrors.Newf(dErrors.CodeInvalidInput, "%s contains invalid character at position %d", what, i)
		}
	}
	return nil
}

func identifierByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("._:@-", c) >= 0
}

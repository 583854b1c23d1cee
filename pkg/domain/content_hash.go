package domain

import (
	"encoding/hex"
	"strings"

	dErrors "aidtrace/pkg/domain-errors"
)

// ContentHash is the opaque digest of off-ledger proof (a delivery photo, a
// signed waybill). The ledger never fetches or validates the content. The zero
// value means "not provided".
type ContentHash [32]byte

// ParseContentHash accepts 64 hex characters with an optional 0x prefix. The
// empty string parses to the zero hash.
func ParseContentHash(s string) (ContentHash, error) {
	var h ContentHash
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return h, nil
	}
	if len(s) != hex.EncodedLen(len(h)) {
		return h, dErrors.Newf(dErrors.CodeInvalidInput, "content hash must be %d hex characters", hex.EncodedLen(len(h)))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return ContentHash{}, dErrors.New(dErrors.CodeInvalidInput, "content hash is not valid hex")
	}
	return h, nil
}

// IsZero reports whether no proof was supplied.
func (h ContentHash) IsZero() bool {
	return h == ContentHash{}
}

// String renders the hash as 0x-prefixed hex, or "" for the zero hash.
func (h ContentHash) String() string {
	if h.IsZero() {
		return ""
	}
	return "0x" + hex.EncodeToString(h[:])
}

func (h ContentHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *ContentHash) UnmarshalText(text []byte) error {
	parsed, err := ParseContentHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

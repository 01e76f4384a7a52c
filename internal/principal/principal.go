// Package principal implements the textual form of host caller principals:
// lowercase base32 of crc32(data) ‖ data, split into dash-separated groups
// of five characters (e.g. "2vxsx-fae").
package principal

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

// MaxLength is the maximum number of raw bytes in a principal.
const MaxLength = 29

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ErrMalformed is returned by Parse for text that is not a canonical principal.
var ErrMalformed = errors.New("malformed principal")

// Principal is an opaque caller identifier.
type Principal struct {
	b []byte
}

// Anonymous is the principal used by unauthenticated callers.
var Anonymous = Principal{b: []byte{0x04}}

// FromBytes builds a principal from raw bytes.
func FromBytes(b []byte) (Principal, error) {
	if len(b) > MaxLength {
		return Principal{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrMalformed, len(b), MaxLength)
	}
	return Principal{b: append([]byte(nil), b...)}, nil
}

// Parse decodes canonical principal text. Non-canonical spellings
// (uppercase, misplaced dashes) are rejected.
func Parse(text string) (Principal, error) {
	raw := strings.ToUpper(strings.ReplaceAll(text, "-", ""))
	decoded, err := encoding.DecodeString(raw)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(decoded) < 4 {
		return Principal{}, fmt.Errorf("%w: too short", ErrMalformed)
	}
	p, err := FromBytes(decoded[4:])
	if err != nil {
		return Principal{}, err
	}
	if binary.BigEndian.Uint32(decoded[:4]) != crc32.ChecksumIEEE(p.b) {
		return Principal{}, fmt.Errorf("%w: checksum mismatch", ErrMalformed)
	}
	if p.String() != text {
		return Principal{}, fmt.Errorf("%w: not in canonical form", ErrMalformed)
	}
	return p, nil
}

// String returns the canonical text form.
func (p Principal) String() string {
	buf := make([]byte, 4+len(p.b))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(p.b))
	copy(buf[4:], p.b)
	enc := strings.ToLower(encoding.EncodeToString(buf))

	var sb strings.Builder
	for i := 0; i < len(enc); i += 5 {
		if i > 0 {
			sb.WriteByte('-')
		}
		end := i + 5
		if end > len(enc) {
			end = len(enc)
		}
		sb.WriteString(enc[i:end])
	}
	return sb.String()
}

// Bytes returns a copy of the raw bytes.
func (p Principal) Bytes() []byte { return append([]byte(nil), p.b...) }

// Equal reports whether two principals have identical bytes.
func (p Principal) Equal(o Principal) bool { return bytes.Equal(p.b, o.b) }

// IsAnonymous reports whether p is the anonymous principal.
func (p Principal) IsAnonymous() bool { return p.Equal(Anonymous) }

// Package checksum computes the digests keyhash writes and compares.
package checksum

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/zeebo/blake3"
)

// Algorithm names a 256-bit digest function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Size is the byte length of every supported digest.
const Size = 32

// EncodedLen is the length of an encoded digest.
var EncodedLen = base64.StdEncoding.EncodedLen(Size)

// Algorithms lists the supported algorithm names.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, BLAKE3}
}

// Sum returns the raw digest of data under alg.
func Sum(alg Algorithm, data []byte) ([]byte, error) {
	switch alg {
	case SHA256, "":
		h := sha256.Sum256(data)
		return h[:], nil
	case BLAKE3:
		h := blake3.Sum256(data)
		return h[:], nil
	default:
		return nil, fmt.Errorf("checksum: unknown algorithm %q", alg)
	}
}

// Encode renders a digest as padded standard base64.
func Encode(digest []byte) string {
	return base64.StdEncoding.EncodeToString(digest)
}

// Decode reverses Encode and rejects anything that is not a full digest.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("checksum: decode: %w", err)
	}
	if len(b) != Size {
		return nil, fmt.Errorf("checksum: decoded %d bytes, want %d", len(b), Size)
	}
	return b, nil
}

// HashText digests the UTF-8 bytes of text and returns the encoded form.
func HashText(alg Algorithm, text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("checksum: text is not valid UTF-8")
	}
	sum, err := Sum(alg, []byte(text))
	if err != nil {
		return "", err
	}
	return Encode(sum), nil
}

// Hex returns the hex-encoded SHA-256 digest of data. It identifies source
// contents in the ledger and in watch mode.
func Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

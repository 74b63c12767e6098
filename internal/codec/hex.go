package codec

import (
	"encoding/hex"
	"strings"

	sferr "github.com/kbaxter/serialforge/internal/errors"
)

// DecodeHex decodes a hex string into raw bytes. Accepts an optional "0x"
// prefix and embedded spaces. Malformed input yields a ParseError naming the
// offending character and its position in the cleaned string.
func DecodeHex(input string) ([]byte, error) {
	cleaned := strings.TrimSpace(input)
	cleaned = strings.TrimPrefix(cleaned, "0x")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return nil, nil
	}
	if len(cleaned)%2 != 0 {
		return nil, &sferr.ParseError{Input: "hex", Pos: -1, Msg: "odd number of digits"}
	}
	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]
		if !isHexDigit(c) {
			return nil, &sferr.ParseError{Input: "hex", Pos: i, Char: c, Msg: "invalid hex digit"}
		}
	}
	decoded := make([]byte, len(cleaned)/2)
	if _, err := hex.Decode(decoded, []byte(cleaned)); err != nil {
		return nil, &sferr.ParseError{Input: "hex", Pos: -1, Msg: err.Error()}
	}
	return decoded, nil
}

// EncodeHex renders bytes as lowercase hex with no separators; the normal
// form DecodeHex round-trips to.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

package codec

// Byte-order and hex helpers shared by the payload builder and framing
// engine.

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ByteOrder identifies the wire byte order of multi-byte fields.
type ByteOrder string

const (
	LittleEndian ByteOrder = "LE"
	BigEndian    ByteOrder = "BE"
)

// Binary returns the encoding/binary order for a ByteOrder. Empty defaults
// to big-endian, the common convention for length-prefixed serial protocols.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ParseByteOrder parses "LE"/"BE" (case-insensitive, also accepts
// "little"/"big").
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "BE", "BIG":
		return BigEndian, nil
	case "LE", "LITTLE":
		return LittleEndian, nil
	default:
		return "", fmt.Errorf("unknown byte order %q", s)
	}
}

// PutUint writes value into dst (len 1, 2, 4 or 8) using the provided order.
func PutUint(order binary.ByteOrder, dst []byte, value uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(value)
	case 2:
		order.PutUint16(dst, uint16(value))
	case 4:
		order.PutUint32(dst, uint32(value))
	case 8:
		order.PutUint64(dst, value)
	default:
		panic(fmt.Sprintf("codec: unsupported width %d", len(dst)))
	}
}

// Uint reads an unsigned integer from src (len 1..8) using the provided
// order. Widths other than 1/2/4/8 are assembled byte by byte.
func Uint(order binary.ByteOrder, src []byte) uint64 {
	switch len(src) {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(order.Uint16(src))
	case 4:
		return uint64(order.Uint32(src))
	case 8:
		return order.Uint64(src)
	}
	var v uint64
	if order == binary.BigEndian {
		for _, b := range src {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := len(src) - 1; i >= 0; i-- {
		v = v<<8 | uint64(src[i])
	}
	return v
}

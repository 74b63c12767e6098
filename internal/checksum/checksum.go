package checksum

// Pure checksum functions over byte ranges.
//
// CRC16 is the CRC-16/MODBUS variant: reflected polynomial 0xA001 (0x8005),
// initial value 0xFFFF, no final XOR. It is a fixed variant, not
// configurable; payloads that need another CRC flavor are outside this
// engine's scope.

import (
	"fmt"
	"strings"
)

// Algorithm identifies a checksum algorithm.
type Algorithm string

const (
	MOD256 Algorithm = "MOD256"
	XOR    Algorithm = "XOR"
	CRC16  Algorithm = "CRC16"
)

// ParseAlgorithm parses a checksum algorithm name (case-insensitive).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MOD256", "SUM", "SUM8":
		return MOD256, nil
	case "XOR":
		return XOR, nil
	case "CRC16", "CRC-16", "CRC16_MODBUS":
		return CRC16, nil
	default:
		return "", fmt.Errorf("unknown checksum algorithm %q", s)
	}
}

// Size returns the checksum width in bytes.
func (a Algorithm) Size() int {
	if a == CRC16 {
		return 2
	}
	return 1
}

// Sum computes the checksum of data under the algorithm. An empty range
// yields the identity value 0 for MOD256 and XOR; CRC16 of an empty range is
// its init value 0xFFFF.
func Sum(a Algorithm, data []byte) (uint64, error) {
	switch a {
	case MOD256:
		return uint64(Mod256(data)), nil
	case XOR:
		return uint64(Xor(data)), nil
	case CRC16:
		return uint64(Crc16(data)), nil
	default:
		return 0, fmt.Errorf("unknown checksum algorithm %q", a)
	}
}

// Mod256 returns the sum of all bytes modulo 256.
func Mod256(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Xor returns the running XOR of all bytes.
func Xor(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

// Crc16 computes CRC-16/MODBUS over data.
func Crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

package param

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/kbaxter/serialforge/internal/codec"
)

func TestEncodePositionRoundTrip(t *testing.T) {
	values := map[int]uint64{
		1: 0x7F,
		2: 0xBEEF,
		4: 0xDEADBEEF,
		8: 0x0123456789ABCDEF,
	}
	for _, order := range []codec.ByteOrder{codec.BigEndian, codec.LittleEndian} {
		for size, v := range values {
			spec := &PositionSpec{ByteOffset: 1, ByteSize: size, Endianness: order}
			p := &CommandParameter{Name: "v", Type: TypeInteger}
			buf := make([]byte, size+2)
			if err := EncodePosition(p, spec, fmt.Sprintf("%d", v), buf); err != nil {
				t.Fatalf("%s size %d: %v", order, size, err)
			}
			got, err := DecodePosition(spec, buf)
			if err != nil {
				t.Fatalf("decode %s size %d: %v", order, size, err)
			}
			if got != v {
				t.Errorf("%s size %d round trip = %#x, want %#x", order, size, got, v)
			}
			// Bytes outside the window stay zero.
			if buf[0] != 0 || buf[len(buf)-1] != 0 {
				t.Errorf("%s size %d wrote outside window: % x", order, size, buf)
			}
		}
	}
}

func TestEncodePositionEndianBytes(t *testing.T) {
	p := &CommandParameter{Name: "v", Type: TypeInteger}
	buf := make([]byte, 2)
	be := &PositionSpec{ByteOffset: 0, ByteSize: 2, Endianness: codec.BigEndian}
	if err := EncodePosition(p, be, "258", buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0x01, 0x02}) {
		t.Errorf("BE bytes = % x, want 01 02", buf)
	}
	buf = make([]byte, 2)
	le := &PositionSpec{ByteOffset: 0, ByteSize: 2, Endianness: codec.LittleEndian}
	if err := EncodePosition(p, le, "258", buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0x02, 0x01}) {
		t.Errorf("LE bytes = % x, want 02 01", buf)
	}
}

func TestEncodePositionBitFieldPreservesNeighbors(t *testing.T) {
	// High nibble already holds 0xF; writing 0x0A into bits [4,8) must
	// leave it alone: 0xF0 becomes 0xFA.
	p := &CommandParameter{Name: "flags", Type: TypeInteger}
	spec := &PositionSpec{
		ByteOffset: 0,
		ByteSize:   1,
		BitField:   &BitField{StartBit: 4, BitCount: 4},
	}
	buf := []byte{0xF0}
	if err := EncodePosition(p, spec, "10", buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xFA {
		t.Errorf("buf[0] = 0x%02X, want 0xFA", buf[0])
	}
}

func TestEncodePositionBitFieldMSBFirst(t *testing.T) {
	// startBit 0 is the most significant bit of the window.
	p := &CommandParameter{Name: "flag", Type: TypeInteger}
	spec := &PositionSpec{
		ByteOffset: 0,
		ByteSize:   1,
		BitField:   &BitField{StartBit: 0, BitCount: 1},
	}
	buf := []byte{0x00}
	if err := EncodePosition(p, spec, "1", buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x80 {
		t.Errorf("buf[0] = 0x%02X, want 0x80", buf[0])
	}
}

func TestEncodePositionBitFieldValueTooWide(t *testing.T) {
	p := &CommandParameter{Name: "v", Type: TypeInteger}
	spec := &PositionSpec{
		ByteOffset: 0,
		ByteSize:   1,
		BitField:   &BitField{StartBit: 4, BitCount: 4},
	}
	buf := []byte{0x00}
	if err := EncodePosition(p, spec, "16", buf); err == nil {
		t.Error("5-bit value accepted by 4-bit field")
	}
}

func TestEncodePositionValueTooWide(t *testing.T) {
	p := &CommandParameter{Name: "v", Type: TypeInteger}
	spec := &PositionSpec{ByteOffset: 0, ByteSize: 1}
	if err := EncodePosition(p, spec, "256", make([]byte, 1)); err == nil {
		t.Error("256 accepted by one-byte window")
	}
}

func TestEncodePositionWindowOutOfBounds(t *testing.T) {
	p := &CommandParameter{Name: "v", Type: TypeInteger}
	spec := &PositionSpec{ByteOffset: 3, ByteSize: 2}
	if err := EncodePosition(p, spec, "1", make([]byte, 4)); err == nil {
		t.Error("window past buffer end accepted")
	}
}

func TestEncodePositionNegativeTwosComplement(t *testing.T) {
	p := &CommandParameter{Name: "v", Type: TypeInteger}
	spec := &PositionSpec{ByteOffset: 0, ByteSize: 2}
	buf := make([]byte, 2)
	if err := EncodePosition(p, spec, "-1", buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0xFF, 0xFF}) {
		t.Errorf("-1 = % x, want ff ff", buf)
	}
}

func TestEncodePositionFloat32(t *testing.T) {
	p := &CommandParameter{Name: "v", Type: TypeFloat}
	spec := &PositionSpec{ByteOffset: 0, ByteSize: 4}
	buf := make([]byte, 4)
	if err := EncodePosition(p, spec, "1.0", buf); err != nil {
		t.Fatal(err)
	}
	// IEEE 754 single for 1.0, big-endian.
	if !bytes.Equal(buf, []byte{0x3F, 0x80, 0x00, 0x00}) {
		t.Errorf("float bits = % x, want 3f 80 00 00", buf)
	}
}

func TestEncodePositionBoolean(t *testing.T) {
	p := &CommandParameter{Name: "on", Type: TypeBoolean}
	spec := &PositionSpec{ByteOffset: 0, ByteSize: 1}
	buf := make([]byte, 1)
	if err := EncodePosition(p, spec, "true", buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 1 {
		t.Errorf("true = %d, want 1", buf[0])
	}
}

func TestEncodePositionValueTransform(t *testing.T) {
	p := &CommandParameter{Name: "v", Type: TypeInteger}
	spec := &PositionSpec{ByteOffset: 0, ByteSize: 1, ValueTransform: "value * 2"}
	buf := make([]byte, 1)
	if err := EncodePosition(p, spec, "21", buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 42 {
		t.Errorf("transformed = %d, want 42", buf[0])
	}
}

func TestPositionSpecValidate(t *testing.T) {
	bad := []*PositionSpec{
		{ByteOffset: -1, ByteSize: 1},
		{ByteOffset: 0, ByteSize: 3},
		{ByteOffset: 0, ByteSize: 1, BitField: &BitField{StartBit: 6, BitCount: 4}},
		{ByteOffset: 0, ByteSize: 1, BitField: &BitField{StartBit: 0, BitCount: 0}},
	}
	for i, spec := range bad {
		if err := spec.Validate(); err == nil {
			t.Errorf("spec %d validated, want error", i)
		}
	}
	good := &PositionSpec{ByteOffset: 2, ByteSize: 2, BitField: &BitField{StartBit: 4, BitCount: 12}}
	if err := good.Validate(); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}
}

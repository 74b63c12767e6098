package param

// Binary-mode parameter encoding: POSITION placement with optional
// bit-field packing.

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kbaxter/serialforge/internal/codec"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/script"
)

// EncodePosition writes the resolved value into buf at the binding's byte
// window. Bit-field writes patch only their bits and preserve the rest of
// the window, so earlier bindings at overlapping byte offsets survive.
// The buffer must already be large enough; PayloadBuilder sizes it.
func EncodePosition(p *CommandParameter, spec *PositionSpec, value string, buf []byte) error {
	if spec == nil {
		return &sferr.BuildError{Param: p.Name, Reason: "POSITION binding without position spec"}
	}
	if err := spec.Validate(); err != nil {
		return &sferr.BuildError{Param: p.Name, Reason: "invalid position", Err: err}
	}
	end := spec.ByteOffset + spec.ByteSize
	if end > len(buf) {
		return &sferr.BuildError{Param: p.Name,
			Reason: fmt.Sprintf("window [%d,%d) exceeds message size %d", spec.ByteOffset, end, len(buf))}
	}

	raw, err := positionValue(p, spec, value)
	if err != nil {
		return err
	}

	window := buf[spec.ByteOffset:end]
	littleEndian := spec.Endianness == codec.LittleEndian
	bits := spec.ByteSize * 8

	if bf := spec.BitField; bf != nil {
		// Integer view of the window, patch the bit range, write back.
		var current uint64
		if littleEndian {
			for i := spec.ByteSize - 1; i >= 0; i-- {
				current = current<<8 | uint64(window[i])
			}
		} else {
			for i := 0; i < spec.ByteSize; i++ {
				current = current<<8 | uint64(window[i])
			}
		}
		shift := uint(bits - bf.StartBit - bf.BitCount)
		var mask uint64
		if bf.BitCount >= 64 {
			mask = ^uint64(0)
		} else {
			mask = (uint64(1)<<uint(bf.BitCount) - 1) << shift
		}
		if raw > (mask >> shift) {
			return &sferr.BuildError{Param: p.Name,
				Reason: fmt.Sprintf("value %d does not fit in %d bits", raw, bf.BitCount)}
		}
		patched := (current &^ mask) | (raw << shift & mask)
		writeWindow(window, littleEndian, patched)
		return nil
	}

	if bits < 64 && raw > (uint64(1)<<uint(bits))-1 {
		return &sferr.BuildError{Param: p.Name,
			Reason: fmt.Sprintf("value %d does not fit in %d bytes", raw, spec.ByteSize)}
	}
	writeWindow(window, littleEndian, raw)
	return nil
}

// DecodePosition reads the integer stored at the binding's window; the
// inverse of a non-bit-field EncodePosition write.
func DecodePosition(spec *PositionSpec, buf []byte) (uint64, error) {
	end := spec.ByteOffset + spec.ByteSize
	if spec.ByteOffset < 0 || end > len(buf) {
		return 0, fmt.Errorf("window [%d,%d) exceeds buffer size %d", spec.ByteOffset, end, len(buf))
	}
	window := buf[spec.ByteOffset:end]
	var v uint64
	if spec.Endianness == codec.LittleEndian {
		for i := len(window) - 1; i >= 0; i-- {
			v = v<<8 | uint64(window[i])
		}
	} else {
		for _, b := range window {
			v = v<<8 | uint64(b)
		}
	}
	return v, nil
}

func writeWindow(window []byte, littleEndian bool, v uint64) {
	n := len(window)
	if littleEndian {
		for i := 0; i < n; i++ {
			window[i] = byte(v >> (8 * i))
		}
		return
	}
	for i := 0; i < n; i++ {
		window[n-1-i] = byte(v >> (8 * i))
	}
}

// positionValue converts the textual value into the raw integer image to
// place: integers and booleans directly, floats via IEEE 754 bits sized to
// the window, with the optional value transform applied first.
func positionValue(p *CommandParameter, spec *PositionSpec, value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if expr := strings.TrimSpace(spec.ValueTransform); expr != "" {
		transformed, err := runValueTransform(p.Name, expr, value)
		if err != nil {
			return 0, err
		}
		value = transformed
	}

	switch p.Type {
	case TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, &sferr.BuildError{Param: p.Name, Reason: "not a number", Err: err}
		}
		switch spec.ByteSize {
		case 4:
			return uint64(math.Float32bits(float32(f))), nil
		case 8:
			return math.Float64bits(f), nil
		default:
			// Small windows carry the truncated integer part.
			return uint64(int64(f)) & widthMask(spec.ByteSize), nil
		}
	case TypeBoolean:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return 0, &sferr.BuildError{Param: p.Name, Reason: "not a boolean", Err: err}
		}
		if b {
			return 1, nil
		}
		return 0, nil
	default:
		n, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return 0, &sferr.BuildError{Param: p.Name, Reason: "not an integer", Err: err}
		}
		if n < 0 {
			// Two's complement within the window.
			return uint64(n) & widthMask(spec.ByteSize), nil
		}
		return uint64(n), nil
	}
}

func widthMask(byteSize int) uint64 {
	if byteSize >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(byteSize*8) - 1
}

func runValueTransform(name, expr, value string) (string, error) {
	prog, err := script.Compile(expr)
	if err != nil {
		return "", &sferr.BuildError{Param: name, Reason: "value transform", Err: &sferr.ScriptError{Phase: "transform", Err: err}}
	}
	vars := map[string]script.Value{"value": script.StrVal(value)}
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		vars["value"] = script.NumVal(f)
	}
	result, _, err := prog.Run(vars)
	if err != nil {
		return "", &sferr.BuildError{Param: name, Reason: "value transform", Err: &sferr.ScriptError{Phase: "transform", Err: err}}
	}
	return result.Text(), nil
}

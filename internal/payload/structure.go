package payload

// MessageStructure: an arena-style binary message layout. Static segments
// and parameter bindings resolve to absolute byte/bit offsets; the build
// allocates one zeroed buffer of the computed size and writes into it.

import (
	"fmt"

	"github.com/kbaxter/serialforge/internal/checksum"
	"github.com/kbaxter/serialforge/internal/codec"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/param"
)

// StaticSegment is a fixed byte span written verbatim.
type StaticSegment struct {
	Offset  int    `yaml:"offset"`
	DataHex string `yaml:"data_hex"`
}

// Binding places one named parameter at a POSITION window. If Position is
// nil the parameter's own POSITION application is used.
type Binding struct {
	Param    string              `yaml:"param"`
	Position *param.PositionSpec `yaml:"position,omitempty"`
}

// ChecksumSpec embeds a checksum over [RangeStart,RangeEnd) at Offset.
// The offset must lie outside the covered range.
type ChecksumSpec struct {
	Algorithm  checksum.Algorithm `yaml:"algorithm"`
	RangeStart int                `yaml:"range_start"`
	RangeEnd   int                `yaml:"range_end"`
	Offset     int                `yaml:"offset"`
	Endianness codec.ByteOrder    `yaml:"endianness,omitempty"`
}

// MessageStructure is the authored layout of a binary command message.
// Builds never mutate it.
type MessageStructure struct {
	Size           int             `yaml:"size,omitempty"` // optional; computed when zero
	Statics        []StaticSegment `yaml:"statics,omitempty"`
	StaticBindings []Binding       `yaml:"static_bindings,omitempty"`
	Checksum       *ChecksumSpec   `yaml:"checksum,omitempty"`
}

// TotalSize returns the message size: the declared size, or the max
// end-offset across statics, bindings (authored plus call-time) and the
// trailing checksum.
func (ms *MessageStructure) TotalSize(params map[string]*param.CommandParameter, extra []Binding) (int, error) {
	size := ms.Size
	for _, seg := range ms.Statics {
		if seg.Offset < 0 {
			return 0, fmt.Errorf("static segment offset %d is negative", seg.Offset)
		}
		data, err := codec.DecodeHex(seg.DataHex)
		if err != nil {
			return 0, err
		}
		if end := seg.Offset + len(data); end > size {
			size = end
		}
	}
	for _, lst := range [][]Binding{ms.StaticBindings, extra} {
		for _, b := range lst {
			pos, err := bindingPosition(b, params)
			if err != nil {
				return 0, err
			}
			if end := pos.ByteOffset + pos.ByteSize; end > size {
				size = end
			}
		}
	}
	if cs := ms.Checksum; cs != nil {
		if end := cs.Offset + cs.Algorithm.Size(); end > size {
			size = end
		}
	}
	return size, nil
}

// Validate checks structural invariants that do not depend on parameter
// values: known checksum algorithm, checksum offset outside its range,
// checksum range inside the message.
func (ms *MessageStructure) Validate(params map[string]*param.CommandParameter) error {
	size, err := ms.TotalSize(params, nil)
	if err != nil {
		return err
	}
	for _, b := range ms.StaticBindings {
		if _, err := bindingPosition(b, params); err != nil {
			return err
		}
	}
	cs := ms.Checksum
	if cs == nil {
		return nil
	}
	if _, err := checksum.ParseAlgorithm(string(cs.Algorithm)); err != nil {
		return err
	}
	if cs.RangeStart < 0 || cs.RangeEnd < cs.RangeStart {
		return fmt.Errorf("checksum range [%d,%d) is invalid", cs.RangeStart, cs.RangeEnd)
	}
	if cs.RangeEnd > size {
		return fmt.Errorf("checksum range [%d,%d) references undefined bytes (size %d)",
			cs.RangeStart, cs.RangeEnd, size)
	}
	csEnd := cs.Offset + cs.Algorithm.Size()
	if cs.Offset < cs.RangeEnd && csEnd > cs.RangeStart {
		return fmt.Errorf("checksum offset %d lies inside its covered range [%d,%d)",
			cs.Offset, cs.RangeStart, cs.RangeEnd)
	}
	return nil
}

// writeChecksum computes the configured checksum over buf[RangeStart:RangeEnd)
// and writes it at Offset. MOD256/XOR occupy one byte; CRC16 two, placed per
// the configured endianness. Unset defaults to little-endian, the Modbus RTU
// convention for appended CRCs.
func writeChecksum(buf []byte, cs *ChecksumSpec) error {
	if cs.RangeEnd > len(buf) || cs.RangeStart < 0 || cs.RangeStart > cs.RangeEnd {
		return &sferr.BuildError{Reason: fmt.Sprintf("checksum range [%d,%d) references undefined bytes (size %d)",
			cs.RangeStart, cs.RangeEnd, len(buf))}
	}
	width := cs.Algorithm.Size()
	if cs.Offset < 0 || cs.Offset+width > len(buf) {
		return &sferr.BuildError{Reason: fmt.Sprintf("checksum offset %d outside message (size %d)", cs.Offset, len(buf))}
	}
	sum, err := checksum.Sum(cs.Algorithm, buf[cs.RangeStart:cs.RangeEnd])
	if err != nil {
		return &sferr.BuildError{Reason: "checksum", Err: err}
	}
	order := cs.Endianness
	if order == "" {
		order = codec.LittleEndian
	}
	codec.PutUint(order.Binary(), buf[cs.Offset:cs.Offset+width], sum)
	return nil
}

func bindingPosition(b Binding, params map[string]*param.CommandParameter) (*param.PositionSpec, error) {
	pos := b.Position
	if pos == nil {
		p, ok := params[b.Param]
		if !ok {
			return nil, &sferr.BuildError{Param: b.Param, Reason: "binding references undefined parameter"}
		}
		if p.Application == nil || p.Application.Position == nil {
			return nil, &sferr.BuildError{Param: b.Param, Reason: "binding has no POSITION placement"}
		}
		pos = p.Application.Position
	}
	if err := pos.Validate(); err != nil {
		return nil, &sferr.BuildError{Param: b.Param, Reason: "invalid position", Err: err}
	}
	return pos, nil
}

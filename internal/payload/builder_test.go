package payload

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kbaxter/serialforge/internal/checksum"
	"github.com/kbaxter/serialforge/internal/codec"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/param"
	"github.com/kbaxter/serialforge/internal/varsyntax"
)

func shellMatcher(t *testing.T) *varsyntax.Matcher {
	t.Helper()
	m, err := varsyntax.NewMatcher(varsyntax.SyntaxShell, "", false)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestBuildText(t *testing.T) {
	b := &Builder{}
	params := []*param.CommandParameter{
		{Name: "number", Type: param.TypeString},
	}
	text, data, err := b.BuildText("ATD${number};", shellMatcher(t), params,
		map[string]string{"number": "5551234"}, EncodingASCII)
	if err != nil {
		t.Fatal(err)
	}
	if text != "ATD5551234;" {
		t.Errorf("text = %q", text)
	}
	if !bytes.Equal(data, []byte("ATD5551234;")) {
		t.Errorf("data = %q", data)
	}
}

func TestBuildTextNoPlaceholdersUnchanged(t *testing.T) {
	b := &Builder{}
	template := "ATZ\r\n"
	text, _, err := b.BuildText(template, shellMatcher(t), nil,
		map[string]string{"unused": "x"}, EncodingUTF8)
	if err != nil {
		t.Fatal(err)
	}
	if text != template {
		t.Errorf("text = %q, want unchanged %q", text, template)
	}
}

func TestBuildTextUndefinedParameter(t *testing.T) {
	b := &Builder{}
	_, _, err := b.BuildText("ATD${number};", shellMatcher(t), nil, nil, EncodingUTF8)
	var be *sferr.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BuildError", err)
	}
	if be.Param != "number" {
		t.Errorf("BuildError.Param = %q, want number", be.Param)
	}
}

func TestBuildTextASCIIRejectsHighBytes(t *testing.T) {
	b := &Builder{}
	params := []*param.CommandParameter{{Name: "s", Type: param.TypeString}}
	_, _, err := b.BuildText("${s}", shellMatcher(t), params,
		map[string]string{"s": "café"}, EncodingASCII)
	if err == nil {
		t.Error("non-ASCII payload accepted under ASCII encoding")
	}
}

func TestBuildStructured(t *testing.T) {
	b := &Builder{}
	params := []*param.CommandParameter{
		{
			Name: "addr",
			Type: param.TypeInteger,
			Application: &param.Application{
				Mode:     param.ModePosition,
				Position: &param.PositionSpec{ByteOffset: 1, ByteSize: 2},
			},
		},
		{
			Name: "value",
			Type: param.TypeInteger,
			Application: &param.Application{
				Mode:     param.ModePosition,
				Position: &param.PositionSpec{ByteOffset: 3, ByteSize: 1},
			},
		},
	}
	ms := &MessageStructure{
		Statics: []StaticSegment{{Offset: 0, DataHex: "02"}},
		StaticBindings: []Binding{
			{Param: "addr"},
			{Param: "value"},
		},
		Checksum: &ChecksumSpec{
			Algorithm:  checksum.MOD256,
			RangeStart: 0,
			RangeEnd:   4,
			Offset:     4,
		},
	}
	got, err := b.BuildStructured(ms, params, map[string]string{"addr": "258", "value": "7"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// 02 | 01 02 | 07 | sum(02+01+02+07)=0C
	want := []byte{0x02, 0x01, 0x02, 0x07, 0x0C}
	if !bytes.Equal(got, want) {
		t.Errorf("payload = % x, want % x", got, want)
	}
}

func TestBuildStructuredCRC16LittleEndian(t *testing.T) {
	b := &Builder{}
	ms := &MessageStructure{
		Statics: []StaticSegment{{Offset: 0, DataHex: "010300000001"}},
		Checksum: &ChecksumSpec{
			Algorithm:  checksum.CRC16,
			RangeStart: 0,
			RangeEnd:   6,
			Offset:     6,
			Endianness: codec.LittleEndian,
		},
	}
	got, err := b.BuildStructured(ms, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 8 {
		t.Fatalf("payload length = %d, want 8", len(got))
	}
	crc := checksum.Crc16(got[:6])
	if got[6] != byte(crc) || got[7] != byte(crc>>8) {
		t.Errorf("crc bytes = %02x %02x, want %02x %02x", got[6], got[7], byte(crc), byte(crc>>8))
	}
}

func TestBuildStructuredCRC16DefaultsLittleEndian(t *testing.T) {
	// Unset endianness places the CRC low byte first, per Modbus RTU.
	b := &Builder{}
	ms := &MessageStructure{
		Statics: []StaticSegment{{Offset: 0, DataHex: "010300000001"}},
		Checksum: &ChecksumSpec{
			Algorithm:  checksum.CRC16,
			RangeStart: 0,
			RangeEnd:   6,
			Offset:     6,
		},
	}
	got, err := b.BuildStructured(ms, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	crc := checksum.Crc16(got[:6])
	if got[6] != byte(crc) || got[7] != byte(crc>>8) {
		t.Errorf("crc bytes = %02x %02x, want %02x %02x", got[6], got[7], byte(crc), byte(crc>>8))
	}
}

func TestBuildStructuredOverlapRejected(t *testing.T) {
	b := &Builder{}
	params := []*param.CommandParameter{
		{
			Name: "a",
			Type: param.TypeInteger,
			Application: &param.Application{
				Mode:     param.ModePosition,
				Position: &param.PositionSpec{ByteOffset: 0, ByteSize: 2},
			},
		},
		{
			Name: "b",
			Type: param.TypeInteger,
			Application: &param.Application{
				Mode:     param.ModePosition,
				Position: &param.PositionSpec{ByteOffset: 1, ByteSize: 2},
			},
		},
	}
	ms := &MessageStructure{
		StaticBindings: []Binding{{Param: "a"}, {Param: "b"}},
	}
	_, err := b.BuildStructured(ms, params, map[string]string{"a": "1", "b": "2"}, nil)
	var be *sferr.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BuildError", err)
	}
}

func TestBuildStructuredNegativeStaticOffsetRejected(t *testing.T) {
	b := &Builder{}
	ms := &MessageStructure{
		Statics: []StaticSegment{{Offset: -1, DataHex: "AA"}},
	}
	_, err := b.BuildStructured(ms, nil, nil, nil)
	var be *sferr.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BuildError", err)
	}
}

func TestBuildStructuredBitFieldsShareWindow(t *testing.T) {
	// Two bit fields in the same byte cooperate instead of clashing.
	b := &Builder{}
	params := []*param.CommandParameter{
		{
			Name: "hi",
			Type: param.TypeInteger,
			Application: &param.Application{
				Mode: param.ModePosition,
				Position: &param.PositionSpec{
					ByteOffset: 0, ByteSize: 1,
					BitField: &param.BitField{StartBit: 0, BitCount: 4},
				},
			},
		},
		{
			Name: "lo",
			Type: param.TypeInteger,
			Application: &param.Application{
				Mode: param.ModePosition,
				Position: &param.PositionSpec{
					ByteOffset: 0, ByteSize: 1,
					BitField: &param.BitField{StartBit: 4, BitCount: 4},
				},
			},
		},
	}
	ms := &MessageStructure{
		StaticBindings: []Binding{{Param: "hi"}, {Param: "lo"}},
	}
	got, err := b.BuildStructured(ms, params, map[string]string{"hi": "15", "lo": "10"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0xFA {
		t.Errorf("byte = 0x%02X, want 0xFA", got[0])
	}
}

func TestBuildStructuredChecksumInsideRangeRejected(t *testing.T) {
	b := &Builder{}
	ms := &MessageStructure{
		Statics: []StaticSegment{{Offset: 0, DataHex: "0102030405"}},
		Checksum: &ChecksumSpec{
			Algorithm:  checksum.MOD256,
			RangeStart: 0,
			RangeEnd:   5,
			Offset:     2,
		},
	}
	if _, err := b.BuildStructured(ms, nil, nil, nil); err == nil {
		t.Error("checksum offset inside covered range accepted")
	}
}

func TestBuildStructuredCallBindings(t *testing.T) {
	b := &Builder{}
	params := []*param.CommandParameter{{Name: "v", Type: param.TypeInteger}}
	ms := &MessageStructure{
		Statics: []StaticSegment{{Offset: 0, DataHex: "AA"}},
	}
	call := []Binding{{Param: "v", Position: &param.PositionSpec{ByteOffset: 1, ByteSize: 1}}}
	got, err := b.BuildStructured(ms, params, map[string]string{"v": "66"}, call)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0xAA, 0x42}) {
		t.Errorf("payload = % x, want aa 42", got)
	}
}

func TestParseEncoding(t *testing.T) {
	if got, err := ParseEncoding(""); err != nil || got != EncodingUTF8 {
		t.Errorf("ParseEncoding(\"\") = %v, %v", got, err)
	}
	if got, err := ParseEncoding("ascii"); err != nil || got != EncodingASCII {
		t.Errorf("ParseEncoding(\"ascii\") = %v, %v", got, err)
	}
	if _, err := ParseEncoding("latin1"); err == nil {
		t.Error("ParseEncoding(\"latin1\") succeeded, want error")
	}
}

package payload

// PayloadBuilder: turns a command description plus parameter values into the
// exact byte sequence to transmit. Text commands run placeholder
// substitution; binary commands assemble a structured message. Every error
// surfaces before any bytes leave the process — a failed build never returns
// a partially written buffer.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kbaxter/serialforge/internal/codec"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/logging"
	"github.com/kbaxter/serialforge/internal/param"
	"github.com/kbaxter/serialforge/internal/varsyntax"
)

// Encoding is the text encoding of a text-mode command.
type Encoding string

const (
	EncodingUTF8  Encoding = "UTF-8"
	EncodingASCII Encoding = "ASCII"
)

// ParseEncoding parses an encoding tag. Empty defaults to UTF-8.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "UTF-8", "UTF8":
		return EncodingUTF8, nil
	case "ASCII", "US-ASCII":
		return EncodingASCII, nil
	default:
		return "", fmt.Errorf("unknown text encoding %q", s)
	}
}

// Builder builds payloads. Zero value is usable; Logger defaults to discard.
type Builder struct {
	Logger *logging.Logger
}

func (b *Builder) logger() *logging.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return logging.Discard()
}

// BuildText resolves every placeholder in template and returns the final
// string plus its byte encoding. A template with no placeholders comes back
// unchanged regardless of values.
func (b *Builder) BuildText(template string, matcher *varsyntax.Matcher,
	params []*param.CommandParameter, values map[string]string, enc Encoding) (string, []byte, error) {

	byName := indexParams(params)
	fragments := make(map[string]string)
	for _, name := range matcher.Variables(template) {
		p, ok := byName[name]
		if !ok {
			return "", nil, &sferr.BuildError{Param: name, Reason: "template references undefined parameter"}
		}
		value, err := param.Resolve(p, values)
		if err != nil {
			return "", nil, err
		}
		fragment, err := param.EncodeText(p, value)
		if err != nil {
			return "", nil, err
		}
		fragments[name] = fragment
	}

	out, missing := matcher.Substitute(template, fragments)
	if len(missing) > 0 {
		// Unreachable when Variables and Substitute agree; kept as a guard
		// against case-sensitivity mismatches in authored configs.
		return "", nil, &sferr.BuildError{Param: missing[0], Reason: "placeholder left unresolved"}
	}

	encoded, err := encodeText(out, enc)
	if err != nil {
		return "", nil, err
	}
	b.logger().LogHex("text payload", encoded)
	return out, encoded, nil
}

// BuildStructured assembles a binary message: zeroed buffer, statics
// verbatim, authored bindings then call-time bindings in declaration order,
// checksum last. Overlapping non-bit-field bindings are a configuration
// error, not a silent overwrite.
func (b *Builder) BuildStructured(ms *MessageStructure, params []*param.CommandParameter,
	values map[string]string, callBindings []Binding) ([]byte, error) {

	byName := indexParams(params)
	if err := ms.Validate(byName); err != nil {
		return nil, wrapBuild(err)
	}
	size, err := ms.TotalSize(byName, callBindings)
	if err != nil {
		return nil, wrapBuild(err)
	}

	buf := make([]byte, size)
	for _, seg := range ms.Statics {
		data, err := codec.DecodeHex(seg.DataHex)
		if err != nil {
			return nil, &sferr.BuildError{Reason: "static segment", Err: err}
		}
		copy(buf[seg.Offset:], data)
	}

	type window struct {
		start, end int
		param      string
	}
	var written []window
	apply := func(bind Binding) error {
		p, ok := byName[bind.Param]
		if !ok {
			return &sferr.BuildError{Param: bind.Param, Reason: "binding references undefined parameter"}
		}
		pos, err := bindingPosition(bind, byName)
		if err != nil {
			return err
		}
		if pos.BitField == nil {
			w := window{start: pos.ByteOffset, end: pos.ByteOffset + pos.ByteSize, param: bind.Param}
			for _, prev := range written {
				if w.start < prev.end && prev.start < w.end {
					return &sferr.BuildError{Param: bind.Param,
						Reason: fmt.Sprintf("window [%d,%d) overlaps parameter %s at [%d,%d)",
							w.start, w.end, prev.param, prev.start, prev.end)}
				}
			}
			written = append(written, w)
		}
		value, err := param.Resolve(p, values)
		if err != nil {
			return err
		}
		return param.EncodePosition(p, pos, value, buf)
	}

	for _, bind := range ms.StaticBindings {
		if err := apply(bind); err != nil {
			return nil, err
		}
	}
	for _, bind := range callBindings {
		if err := apply(bind); err != nil {
			return nil, err
		}
	}

	if cs := ms.Checksum; cs != nil {
		if err := writeChecksum(buf, cs); err != nil {
			return nil, err
		}
	}

	b.logger().LogHex("structured payload", buf)
	return buf, nil
}

func indexParams(params []*param.CommandParameter) map[string]*param.CommandParameter {
	byName := make(map[string]*param.CommandParameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	return byName
}

func encodeText(s string, enc Encoding) ([]byte, error) {
	switch enc {
	case "", EncodingUTF8:
		return []byte(s), nil
	case EncodingASCII:
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7F {
				return nil, &sferr.BuildError{
					Reason: fmt.Sprintf("byte 0x%02X at position %d is not ASCII", s[i], i)}
			}
		}
		return []byte(s), nil
	default:
		return nil, &sferr.BuildError{Reason: fmt.Sprintf("unknown text encoding %q", enc)}
	}
}

func wrapBuild(err error) error {
	var be *sferr.BuildError
	if errors.As(err, &be) {
		return err
	}
	return &sferr.BuildError{Reason: "invalid message structure", Err: err}
}

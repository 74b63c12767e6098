package param

// Typed command parameters and their application modes.
//
// A parameter's Application decides how its resolved value lands in the
// outgoing payload: text substitution, a value rewrite before substitution,
// deterministic formatting, or direct placement into a binary buffer.
// Exactly one variant is active; ParameterEncoder dispatches on Mode with a
// single switch.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbaxter/serialforge/internal/codec"
)

// Type is a parameter value type.
type Type string

const (
	TypeString  Type = "STRING"
	TypeInteger Type = "INTEGER"
	TypeFloat   Type = "FLOAT"
	TypeBoolean Type = "BOOLEAN"
	TypeEnum    Type = "ENUM"
)

// ParseType parses a parameter type tag (case-insensitive).
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "STRING":
		return TypeString, nil
	case "INTEGER", "INT":
		return TypeInteger, nil
	case "FLOAT":
		return TypeFloat, nil
	case "BOOLEAN", "BOOL":
		return TypeBoolean, nil
	case "ENUM":
		return TypeEnum, nil
	default:
		return "", fmt.Errorf("unknown parameter type %q", s)
	}
}

// CommandParameter describes one user-authored parameter of a command.
type CommandParameter struct {
	Name         string       `yaml:"name"`
	Type         Type         `yaml:"type"`
	Label        string       `yaml:"label,omitempty"`
	DefaultValue string       `yaml:"default,omitempty"`
	Required     bool         `yaml:"required,omitempty"`
	Min          *float64     `yaml:"min,omitempty"`
	Max          *float64     `yaml:"max,omitempty"`
	Options      []string     `yaml:"options,omitempty"` // ENUM only
	Application  *Application `yaml:"application,omitempty"`
}

// Mode identifies the active Application variant.
type Mode string

const (
	ModeSubstitute Mode = "SUBSTITUTE"
	ModeTransform  Mode = "TRANSFORM"
	ModeFormat     Mode = "FORMAT"
	ModePosition   Mode = "POSITION"
)

// Application is the tagged union of parameter application modes. Exactly
// one variant field matching Mode must be set; Validate enforces this.
type Application struct {
	Mode       Mode            `yaml:"mode"`
	Substitute *SubstituteSpec `yaml:"substitute,omitempty"`
	Transform  *TransformSpec  `yaml:"transform,omitempty"`
	Format     *FormatSpec     `yaml:"format,omitempty"`
	Position   *PositionSpec   `yaml:"position,omitempty"`
}

// SubstituteType selects how a text value is quoted or encoded on insertion.
type SubstituteType string

const (
	SubstituteDirect     SubstituteType = "DIRECT"
	SubstituteQuoted     SubstituteType = "QUOTED"
	SubstituteEscaped    SubstituteType = "ESCAPED"
	SubstituteURLEncoded SubstituteType = "URL_ENCODED"
	SubstituteBase64     SubstituteType = "BASE64"
)

// SubstituteSpec configures text substitution.
type SubstituteSpec struct {
	Type        SubstituteType `yaml:"type"`
	QuoteStyle  string         `yaml:"quote_style,omitempty"`  // "double" (default) or "single"
	EscapeChars string         `yaml:"escape_chars,omitempty"` // extra characters to backslash-escape
}

// TransformPreset is a named value rewrite applied before substitution.
type TransformPreset string

const (
	TransformCustom        TransformPreset = "CUSTOM"
	TransformUppercase     TransformPreset = "UPPERCASE"
	TransformLowercase     TransformPreset = "LOWERCASE"
	TransformToHex         TransformPreset = "TO_HEX"
	TransformFromHex       TransformPreset = "FROM_HEX"
	TransformChecksumMod   TransformPreset = "CHECKSUM_MOD256"
	TransformChecksumXor   TransformPreset = "CHECKSUM_XOR"
	TransformChecksumCRC16 TransformPreset = "CHECKSUM_CRC16"
	TransformJSONStringify TransformPreset = "JSON_STRINGIFY"
	TransformJSONParse     TransformPreset = "JSON_PARSE"
	TransformLength        TransformPreset = "LENGTH"
	TransformTrim          TransformPreset = "TRIM"
)

// TransformSpec configures a value rewrite. Expression is only consulted for
// the CUSTOM preset: a script expression evaluated with the raw value bound
// to "value".
type TransformSpec struct {
	Preset     TransformPreset `yaml:"preset"`
	Expression string          `yaml:"expression,omitempty"`
}

// FormatType selects a deterministic rendering.
type FormatType string

const (
	FormatNumber FormatType = "NUMBER"
	FormatString FormatType = "STRING"
	FormatDate   FormatType = "DATE"
	FormatBytes  FormatType = "BYTES"
)

// FormatSpec configures deterministic text/byte rendering.
type FormatSpec struct {
	Type       FormatType      `yaml:"type"`
	Width      int             `yaml:"width,omitempty"`
	Radix      int             `yaml:"radix,omitempty"`     // NUMBER: 2, 8, 10 (default), 16
	Padding    string          `yaml:"padding,omitempty"`   // pad character, default "0" for NUMBER, " " for STRING
	Alignment  string          `yaml:"alignment,omitempty"` // "LEFT" or "RIGHT" (default RIGHT)
	Layout     string          `yaml:"layout,omitempty"`    // DATE: Go reference layout, default RFC3339
	Endianness codec.ByteOrder `yaml:"endianness,omitempty"`
}

// BitField addresses a sub-byte range inside a POSITION window. Bits are
// numbered MSB-first within the window: startBit 0 is the most significant
// bit of the first byte of the integer view.
type BitField struct {
	StartBit int `yaml:"start_bit"`
	BitCount int `yaml:"bit_count"`
}

// PositionSpec places a value directly into a binary buffer.
type PositionSpec struct {
	ByteOffset     int             `yaml:"byte_offset"`
	ByteSize       int             `yaml:"byte_size"` // 1, 2, 4 or 8
	Endianness     codec.ByteOrder `yaml:"endianness,omitempty"`
	ValueTransform string          `yaml:"value_transform,omitempty"` // script expression over "value"
	BitField       *BitField       `yaml:"bit_field,omitempty"`
}

// Validate checks the tagged-union shape: Mode set, the matching variant
// present, all others absent, and variant-specific invariants.
func (a *Application) Validate() error {
	if a == nil {
		return nil
	}
	set := 0
	if a.Substitute != nil {
		set++
	}
	if a.Transform != nil {
		set++
	}
	if a.Format != nil {
		set++
	}
	if a.Position != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("application: more than one variant set")
	}
	switch a.Mode {
	case ModeSubstitute:
		// A nil Substitute means DIRECT.
	case ModeTransform:
		if a.Transform == nil {
			return fmt.Errorf("application: TRANSFORM mode without transform spec")
		}
		if a.Transform.Preset == TransformCustom && strings.TrimSpace(a.Transform.Expression) == "" {
			return fmt.Errorf("application: CUSTOM transform without expression")
		}
	case ModeFormat:
		if a.Format == nil {
			return fmt.Errorf("application: FORMAT mode without format spec")
		}
	case ModePosition:
		if a.Position == nil {
			return fmt.Errorf("application: POSITION mode without position spec")
		}
		return a.Position.Validate()
	default:
		return fmt.Errorf("application: unknown mode %q", a.Mode)
	}
	return nil
}

// Validate checks offset/size/bit-field invariants.
func (p *PositionSpec) Validate() error {
	if p.ByteOffset < 0 {
		return fmt.Errorf("position: byte offset %d is negative", p.ByteOffset)
	}
	switch p.ByteSize {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("position: byte size %d not in {1,2,4,8}", p.ByteSize)
	}
	if bf := p.BitField; bf != nil {
		if bf.StartBit < 0 || bf.BitCount < 1 {
			return fmt.Errorf("position: bit field start %d count %d invalid", bf.StartBit, bf.BitCount)
		}
		if bf.StartBit+bf.BitCount > p.ByteSize*8 {
			return fmt.Errorf("position: bit field [%d,%d) exceeds %d-bit window",
				bf.StartBit, bf.StartBit+bf.BitCount, p.ByteSize*8)
		}
	}
	return nil
}

// CheckValue validates a resolved value against the parameter's type,
// min/max bounds and enum options.
func (p *CommandParameter) CheckValue(value string) error {
	switch p.Type {
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 0, 64)
		if err != nil {
			return fmt.Errorf("value %q is not an integer", value)
		}
		return p.checkRange(float64(n))
	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("value %q is not a number", value)
		}
		return p.checkRange(f)
	case TypeBoolean:
		if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("value %q is not a boolean", value)
		}
	case TypeEnum:
		for _, opt := range p.Options {
			if value == opt {
				return nil
			}
		}
		return fmt.Errorf("value %q is not one of %v", value, p.Options)
	}
	return nil
}

func (p *CommandParameter) checkRange(v float64) error {
	if p.Min != nil && v < *p.Min {
		return fmt.Errorf("value %v below minimum %v", v, *p.Min)
	}
	if p.Max != nil && v > *p.Max {
		return fmt.Errorf("value %v above maximum %v", v, *p.Max)
	}
	return nil
}

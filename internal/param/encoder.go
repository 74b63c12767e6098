package param

// Text-mode parameter encoding: resolve, transform, render.

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kbaxter/serialforge/internal/checksum"
	"github.com/kbaxter/serialforge/internal/codec"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/script"
)

// Resolve picks the effective value for a parameter: the provided value if
// present and non-empty, otherwise the default. A required parameter with
// neither is a BuildError, as is a value outside the declared
// type/range/options.
func Resolve(p *CommandParameter, provided map[string]string) (string, error) {
	value, ok := provided[p.Name]
	if !ok || value == "" {
		value = p.DefaultValue
	}
	if value == "" {
		if p.Required {
			return "", &sferr.BuildError{Param: p.Name, Reason: "required parameter missing"}
		}
		return "", nil
	}
	if err := p.CheckValue(value); err != nil {
		return "", &sferr.BuildError{Param: p.Name, Reason: "invalid value", Err: err}
	}
	return value, nil
}

// EncodeText renders the resolved value as the string fragment substituted
// at each of the parameter's placeholders. Dispatches once on the
// application mode.
func EncodeText(p *CommandParameter, value string) (string, error) {
	app := p.Application
	if app == nil {
		return value, nil
	}
	switch app.Mode {
	case "", ModeSubstitute:
		return applySubstitute(p.Name, app.Substitute, value)
	case ModeTransform:
		transformed, err := applyTransform(p.Name, app.Transform, value)
		if err != nil {
			return "", err
		}
		return transformed, nil
	case ModeFormat:
		return applyFormat(p.Name, app.Format, value)
	case ModePosition:
		return "", &sferr.BuildError{Param: p.Name, Reason: "POSITION parameter used in a text template"}
	default:
		return "", &sferr.BuildError{Param: p.Name, Reason: fmt.Sprintf("unknown application mode %q", app.Mode)}
	}
}

func applySubstitute(name string, spec *SubstituteSpec, value string) (string, error) {
	if spec == nil {
		return value, nil
	}
	switch spec.Type {
	case "", SubstituteDirect:
		return value, nil
	case SubstituteQuoted:
		quote := `"`
		if spec.QuoteStyle == "single" {
			quote = `'`
		}
		escaped := strings.ReplaceAll(value, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, quote, `\`+quote)
		return quote + escaped + quote, nil
	case SubstituteEscaped:
		escaped := strings.ReplaceAll(value, `\`, `\\`)
		for _, c := range spec.EscapeChars {
			if c == '\\' {
				continue
			}
			escaped = strings.ReplaceAll(escaped, string(c), `\`+string(c))
		}
		return escaped, nil
	case SubstituteURLEncoded:
		return url.QueryEscape(value), nil
	case SubstituteBase64:
		return base64.StdEncoding.EncodeToString([]byte(value)), nil
	default:
		return "", &sferr.BuildError{Param: name, Reason: fmt.Sprintf("unknown substitute type %q", spec.Type)}
	}
}

func applyTransform(name string, spec *TransformSpec, value string) (string, error) {
	switch spec.Preset {
	case TransformUppercase:
		return strings.ToUpper(value), nil
	case TransformLowercase:
		return strings.ToLower(value), nil
	case TransformTrim:
		return strings.TrimSpace(value), nil
	case TransformLength:
		return strconv.Itoa(len(value)), nil
	case TransformToHex:
		return codec.EncodeHex([]byte(value)), nil
	case TransformFromHex:
		decoded, err := codec.DecodeHex(value)
		if err != nil {
			return "", &sferr.BuildError{Param: name, Reason: "FROM_HEX transform", Err: err}
		}
		return string(decoded), nil
	case TransformChecksumMod:
		return fmt.Sprintf("%02X", checksum.Mod256([]byte(value))), nil
	case TransformChecksumXor:
		return fmt.Sprintf("%02X", checksum.Xor([]byte(value))), nil
	case TransformChecksumCRC16:
		return fmt.Sprintf("%04X", checksum.Crc16([]byte(value))), nil
	case TransformJSONStringify:
		out, err := json.Marshal(value)
		if err != nil {
			return "", &sferr.BuildError{Param: name, Reason: "JSON_STRINGIFY transform", Err: err}
		}
		return string(out), nil
	case TransformJSONParse:
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			return "", &sferr.BuildError{Param: name, Reason: "JSON_PARSE transform", Err: err}
		}
		return fmt.Sprintf("%v", parsed), nil
	case TransformCustom:
		return runCustomTransform(name, spec.Expression, value)
	default:
		return "", &sferr.BuildError{Param: name, Reason: fmt.Sprintf("unknown transform preset %q", spec.Preset)}
	}
}

func runCustomTransform(name, expression, value string) (string, error) {
	prog, err := script.Compile(expression)
	if err != nil {
		return "", &sferr.BuildError{Param: name, Reason: "transform expression", Err: &sferr.ScriptError{Phase: "transform", Err: err}}
	}
	result, _, err := prog.Run(map[string]script.Value{
		"value": script.StrVal(value),
	})
	if err != nil {
		return "", &sferr.BuildError{Param: name, Reason: "transform expression", Err: &sferr.ScriptError{Phase: "transform", Err: err}}
	}
	return result.Text(), nil
}

func applyFormat(name string, spec *FormatSpec, value string) (string, error) {
	switch spec.Type {
	case FormatNumber:
		return formatNumber(name, spec, value)
	case FormatString:
		return pad(value, spec.Width, padChar(spec, " "), spec.Alignment), nil
	case FormatDate:
		return formatDate(name, spec, value)
	case FormatBytes:
		return formatBytes(name, spec, value)
	default:
		return "", &sferr.BuildError{Param: name, Reason: fmt.Sprintf("unknown format type %q", spec.Type)}
	}
}

func formatNumber(name string, spec *FormatSpec, value string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 0, 64)
	if err != nil {
		return "", &sferr.BuildError{Param: name, Reason: "NUMBER format needs an integer value", Err: err}
	}
	radix := spec.Radix
	if radix == 0 {
		radix = 10
	}
	switch radix {
	case 2, 8, 10, 16:
	default:
		return "", &sferr.BuildError{Param: name, Reason: fmt.Sprintf("unsupported radix %d", radix)}
	}
	rendered := strconv.FormatInt(n, radix)
	if radix == 16 {
		rendered = strings.ToUpper(rendered)
	}
	return pad(rendered, spec.Width, padChar(spec, "0"), spec.Alignment), nil
}

func formatDate(name string, spec *FormatSpec, value string) (string, error) {
	layout := spec.Layout
	if layout == "" {
		layout = time.RFC3339
	}
	// Unix seconds or an RFC3339 timestamp.
	if secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return time.Unix(secs, 0).UTC().Format(layout), nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return "", &sferr.BuildError{Param: name, Reason: "DATE format needs unix seconds or RFC3339", Err: err}
	}
	return t.Format(layout), nil
}

func formatBytes(name string, spec *FormatSpec, value string) (string, error) {
	width := spec.Width
	if width == 0 {
		width = 1
	}
	if width < 1 || width > 8 {
		return "", &sferr.BuildError{Param: name, Reason: fmt.Sprintf("BYTES width %d out of range [1,8]", width)}
	}
	n, err := strconv.ParseUint(strings.TrimSpace(value), 0, 64)
	if err != nil {
		return "", &sferr.BuildError{Param: name, Reason: "BYTES format needs an unsigned integer", Err: err}
	}
	buf := make([]byte, width)
	if spec.Endianness == codec.LittleEndian {
		for i := 0; i < width; i++ {
			buf[i] = byte(n >> (8 * i))
		}
	} else {
		for i := 0; i < width; i++ {
			buf[width-1-i] = byte(n >> (8 * i))
		}
	}
	return string(buf), nil
}

func padChar(spec *FormatSpec, def string) string {
	if spec.Padding != "" {
		return spec.Padding[:1]
	}
	return def
}

func pad(s string, width int, padc, alignment string) string {
	if width <= len(s) {
		return s
	}
	fill := strings.Repeat(padc, width-len(s))
	if strings.EqualFold(alignment, "LEFT") {
		return s + fill
	}
	return fill + s
}

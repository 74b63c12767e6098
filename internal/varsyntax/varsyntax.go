package varsyntax

// Placeholder detection and substitution for command payload templates.
//
// A template references parameters through one of several placeholder
// syntaxes. The matcher reports the ordered, de-duplicated set of referenced
// names and performs substitution against a name->value map. Names that have
// no value are reported as missing and left untouched in the output.

import (
	"fmt"
	"regexp"
	"strings"

	sferr "github.com/kbaxter/serialforge/internal/errors"
)

// Syntax identifies a placeholder syntax.
type Syntax string

const (
	SyntaxShell    Syntax = "SHELL"    // ${name}
	SyntaxMustache Syntax = "MUSTACHE" // {{name}}
	SyntaxBatch    Syntax = "BATCH"    // %name%
	SyntaxColon    Syntax = "COLON"    // :name
	SyntaxBraces   Syntax = "BRACES"   // {name}
	SyntaxCustom   Syntax = "CUSTOM"   // user regex with one capture group
)

// ParseSyntax parses a syntax tag (case-insensitive). Empty defaults to
// SHELL.
func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "SHELL":
		return SyntaxShell, nil
	case "MUSTACHE":
		return SyntaxMustache, nil
	case "BATCH":
		return SyntaxBatch, nil
	case "COLON":
		return SyntaxColon, nil
	case "BRACES":
		return SyntaxBraces, nil
	case "CUSTOM":
		return SyntaxCustom, nil
	default:
		return "", fmt.Errorf("unknown variable syntax %q", s)
	}
}

const namePattern = `[A-Za-z_][A-Za-z0-9_]*`

var builtinPatterns = map[Syntax]string{
	SyntaxShell:    `\$\{(` + namePattern + `)\}`,
	SyntaxMustache: `\{\{\s*(` + namePattern + `)\s*\}\}`,
	SyntaxBatch:    `%(` + namePattern + `)%`,
	SyntaxColon:    `:(` + namePattern + `)`,
	SyntaxBraces:   `\{(` + namePattern + `)\}`,
}

// Matcher detects and substitutes placeholders under one syntax.
type Matcher struct {
	syntax        Syntax
	re            *regexp.Regexp // nil for CUSTOM with no pattern
	caseSensitive bool
}

// NewMatcher builds a matcher. customPattern is only consulted for
// SyntaxCustom and must contain at least one capture group (the variable
// name); an empty custom pattern yields a matcher that matches nothing.
func NewMatcher(syntax Syntax, customPattern string, caseSensitive bool) (*Matcher, error) {
	m := &Matcher{syntax: syntax, caseSensitive: caseSensitive}
	pattern := builtinPatterns[syntax]
	if syntax == SyntaxCustom {
		if strings.TrimSpace(customPattern) == "" {
			return m, nil
		}
		pattern = customPattern
	}
	if pattern == "" {
		return nil, fmt.Errorf("unknown variable syntax %q", syntax)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &sferr.ParseError{Input: "variable pattern", Pos: -1, Msg: err.Error()}
	}
	if syntax == SyntaxCustom && re.NumSubexp() < 1 {
		return nil, &sferr.ParseError{Input: "variable pattern", Pos: -1, Msg: "custom pattern needs one capture group"}
	}
	m.re = re
	return m, nil
}

// Syntax returns the matcher's syntax tag.
func (m *Matcher) Syntax() Syntax { return m.syntax }

// Variables returns the ordered, de-duplicated variable names referenced by
// the template.
func (m *Matcher) Variables(template string) []string {
	if m.re == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, match := range m.re.FindAllStringSubmatch(template, -1) {
		if len(match) < 2 {
			continue
		}
		name := match[1]
		key := m.key(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}

// Substitute replaces every placeholder that has a value in values and
// returns the result plus the names that had no value. A template with no
// placeholders is returned unchanged.
func (m *Matcher) Substitute(template string, values map[string]string) (string, []string) {
	if m.re == nil {
		return template, nil
	}
	lookup := values
	if !m.caseSensitive {
		lookup = make(map[string]string, len(values))
		for k, v := range values {
			lookup[strings.ToLower(k)] = v
		}
	}

	missing := make(map[string]bool)
	var missingNames []string
	out := m.re.ReplaceAllStringFunc(template, func(match string) string {
		sub := m.re.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		name := sub[1]
		value, ok := lookup[m.key(name)]
		if !ok {
			if !missing[m.key(name)] {
				missing[m.key(name)] = true
				missingNames = append(missingNames, name)
			}
			return match
		}
		// The full placeholder (delimiters included) is replaced.
		return value
	})
	return out, missingNames
}

func (m *Matcher) key(name string) string {
	if m.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

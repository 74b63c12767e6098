package varsyntax

import (
	"reflect"
	"testing"
)

func mustMatcher(t *testing.T, syntax Syntax, pattern string, caseSensitive bool) *Matcher {
	t.Helper()
	m, err := NewMatcher(syntax, pattern, caseSensitive)
	if err != nil {
		t.Fatalf("NewMatcher(%s): %v", syntax, err)
	}
	return m
}

func TestVariablesPerSyntax(t *testing.T) {
	cases := []struct {
		syntax   Syntax
		template string
		want     []string
	}{
		{SyntaxShell, "ATD${number};${suffix}", []string{"number", "suffix"}},
		{SyntaxMustache, "SET {{ key }} {{value}}", []string{"key", "value"}},
		{SyntaxBatch, "COPY %src% %dst%", []string{"src", "dst"}},
		{SyntaxColon, "GET :register", []string{"register"}},
		{SyntaxBraces, "MOVE {x} {y}", []string{"x", "y"}},
	}
	for _, tc := range cases {
		m := mustMatcher(t, tc.syntax, "", false)
		got := m.Variables(tc.template)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s Variables(%q) = %v, want %v", tc.syntax, tc.template, got, tc.want)
		}
	}
}

func TestVariablesDeduplicated(t *testing.T) {
	m := mustMatcher(t, SyntaxShell, "", false)
	got := m.Variables("${a} ${b} ${a} ${A}")
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Variables = %v, want %v", got, want)
	}
}

func TestVariablesCaseSensitive(t *testing.T) {
	m := mustMatcher(t, SyntaxShell, "", true)
	got := m.Variables("${a} ${A}")
	want := []string{"a", "A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Variables = %v, want %v", got, want)
	}
}

func TestSubstitute(t *testing.T) {
	m := mustMatcher(t, SyntaxShell, "", false)
	out, missing := m.Substitute("ATD${number};", map[string]string{"number": "5551234"})
	if out != "ATD5551234;" {
		t.Errorf("Substitute = %q, want %q", out, "ATD5551234;")
	}
	if len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
}

func TestSubstituteMissingLeftUntouched(t *testing.T) {
	m := mustMatcher(t, SyntaxShell, "", false)
	out, missing := m.Substitute("AT${a}${b}", map[string]string{"a": "1"})
	if out != "AT1${b}" {
		t.Errorf("Substitute = %q, want %q", out, "AT1${b}")
	}
	if !reflect.DeepEqual(missing, []string{"b"}) {
		t.Errorf("missing = %v, want [b]", missing)
	}
}

func TestSubstituteNoPlaceholdersIdempotent(t *testing.T) {
	m := mustMatcher(t, SyntaxShell, "", false)
	template := "ATZ\r\n"
	out, missing := m.Substitute(template, map[string]string{"unused": "x"})
	if out != template || missing != nil {
		t.Errorf("Substitute(%q) = %q, %v; want unchanged, nil", template, out, missing)
	}
}

func TestSubstituteCaseInsensitiveLookup(t *testing.T) {
	m := mustMatcher(t, SyntaxShell, "", false)
	out, missing := m.Substitute("${Name}", map[string]string{"name": "x"})
	if out != "x" || len(missing) != 0 {
		t.Errorf("Substitute = %q, %v; want \"x\", none", out, missing)
	}
}

func TestCustomSyntax(t *testing.T) {
	m := mustMatcher(t, SyntaxCustom, `<([A-Za-z_][A-Za-z0-9_]*)>`, false)
	got := m.Variables("CMD <arg1> <arg2>")
	if !reflect.DeepEqual(got, []string{"arg1", "arg2"}) {
		t.Errorf("Variables = %v", got)
	}
	out, _ := m.Substitute("CMD <arg1>", map[string]string{"arg1": "42"})
	if out != "CMD 42" {
		t.Errorf("Substitute = %q, want %q", out, "CMD 42")
	}
}

func TestCustomSyntaxEmptyPatternMatchesNothing(t *testing.T) {
	m := mustMatcher(t, SyntaxCustom, "", false)
	if got := m.Variables("${a} {{b}}"); got != nil {
		t.Errorf("Variables = %v, want nil", got)
	}
	out, missing := m.Substitute("${a}", map[string]string{"a": "x"})
	if out != "${a}" || missing != nil {
		t.Errorf("Substitute = %q, %v; want unchanged, nil", out, missing)
	}
}

func TestCustomSyntaxNeedsCaptureGroup(t *testing.T) {
	if _, err := NewMatcher(SyntaxCustom, `<\w+>`, false); err == nil {
		t.Error("NewMatcher without capture group succeeded, want error")
	}
}

func TestCustomSyntaxBadPattern(t *testing.T) {
	if _, err := NewMatcher(SyntaxCustom, `<(`, false); err == nil {
		t.Error("NewMatcher with bad pattern succeeded, want error")
	}
}

func TestParseSyntax(t *testing.T) {
	got, err := ParseSyntax("mustache")
	if err != nil || got != SyntaxMustache {
		t.Errorf("ParseSyntax(\"mustache\") = %v, %v", got, err)
	}
	if got, _ := ParseSyntax(""); got != SyntaxShell {
		t.Errorf("ParseSyntax(\"\") = %v, want SHELL", got)
	}
	if _, err := ParseSyntax("jinja"); err == nil {
		t.Error("ParseSyntax(\"jinja\") succeeded, want error")
	}
}

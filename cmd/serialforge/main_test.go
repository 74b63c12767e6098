package main

import (
	"reflect"
	"testing"
)

func TestParseParamFlags(t *testing.T) {
	got, err := parseParamFlags([]string{"a=1", "b=x=y", "c="})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"a": "1", "b": "x=y", "c": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseParamFlags = %v, want %v", got, want)
	}
}

func TestParseParamFlagsRejectsBadPairs(t *testing.T) {
	for _, in := range []string{"novalue", "=x"} {
		if _, err := parseParamFlags([]string{in}); err == nil {
			t.Errorf("parseParamFlags(%q) succeeded, want error", in)
		}
	}
}

func TestUnescapeDelimiter(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`\r\n`, "\r\n"},
		{`;`, ";"},
		{`\x02`, "\x02"},
		{`\\`, `\`},
		{`\0`, "\x00"},
		{`a\tb`, "a\tb"},
	}
	for _, tc := range cases {
		got, err := unescapeDelimiter(tc.in)
		if err != nil {
			t.Fatalf("unescapeDelimiter(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("unescapeDelimiter(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUnescapeDelimiterErrors(t *testing.T) {
	for _, in := range []string{`\q`, `\x0`, `\xzz`} {
		if _, err := unescapeDelimiter(in); err == nil {
			t.Errorf("unescapeDelimiter(%q) succeeded, want error", in)
		}
	}
}

func TestPrintable(t *testing.T) {
	if got := printable([]byte("OK\r\n")); got != "|OK..|" {
		t.Errorf("printable = %q, want |OK..|", got)
	}
}

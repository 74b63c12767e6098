package respond

// Variable extraction: harvesting named variables from validated response
// frames.

import (
	"fmt"
	"regexp"
	"strings"

	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/framing"
	"github.com/kbaxter/serialforge/internal/logging"
	"github.com/kbaxter/serialforge/internal/script"
)

// RuleType selects how a rule derives variables.
type RuleType string

const (
	RuleRegex  RuleType = "REGEX"
	RuleScript RuleType = "SCRIPT"
)

// ExtractionRule derives variables from response data. REGEX rules map
// named capture groups to variables; with TargetVariable set the first
// group (or the whole match when there are no groups) lands there. SCRIPT
// rules contribute every assignment the script makes.
type ExtractionRule struct {
	Type           RuleType `yaml:"type"`
	Pattern        string   `yaml:"pattern,omitempty"`
	Script         string   `yaml:"script,omitempty"`
	TargetVariable string   `yaml:"target_variable,omitempty"`
}

func (r *ExtractionRule) validate() error {
	switch r.Type {
	case RuleRegex:
		if r.Pattern == "" {
			return fmt.Errorf("REGEX rule needs a pattern")
		}
	case RuleScript:
		if strings.TrimSpace(r.Script) == "" {
			return fmt.Errorf("SCRIPT rule needs a script")
		}
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	return nil
}

type compiledRule struct {
	rule ExtractionRule
	re   *regexp.Regexp
	prog *script.Program
}

// Extractor runs extraction rules over validated frames. Rules execute in
// declaration order; later rules overwrite earlier ones on name collision.
type Extractor struct {
	rules []compiledRule
	log   *logging.Logger
}

// NewExtractor compiles the rules.
func NewExtractor(rules []ExtractionRule, log *logging.Logger) (*Extractor, error) {
	if log == nil {
		log = logging.Discard()
	}
	x := &Extractor{log: log}
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("extraction rule %d: %w", i, err)
		}
		cr := compiledRule{rule: r}
		switch r.Type {
		case RuleRegex:
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, &sferr.ParseError{Input: "extraction pattern", Pos: -1, Msg: err.Error()}
			}
			cr.re = re
		case RuleScript:
			prog, err := script.Compile(r.Script)
			if err != nil {
				return nil, &sferr.ScriptError{Phase: "extraction", Err: err}
			}
			cr.prog = prog
		}
		x.rules = append(x.rules, cr)
	}
	return x, nil
}

// Extract runs every rule over the frame and returns the merged variables.
// A failing script rule is logged and contributes nothing.
func (x *Extractor) Extract(frame framing.Frame) map[string]string {
	out := make(map[string]string)
	text := string(frame.Data)
	for _, cr := range x.rules {
		switch cr.rule.Type {
		case RuleRegex:
			extractRegex(cr, text, out)
		case RuleScript:
			result := x.extractScript(cr, frame, text)
			for k, v := range result {
				out[k] = v
			}
		}
	}
	return out
}

func extractRegex(cr compiledRule, text string, out map[string]string) {
	match := cr.re.FindStringSubmatch(text)
	if match == nil {
		return
	}
	names := cr.re.SubexpNames()
	named := false
	for i, name := range names {
		if i == 0 || name == "" || i >= len(match) {
			continue
		}
		out[name] = match[i]
		named = true
	}
	if cr.rule.TargetVariable == "" {
		return
	}
	if !named && len(match) > 1 {
		out[cr.rule.TargetVariable] = match[1]
	} else if !named {
		out[cr.rule.TargetVariable] = match[0]
	}
}

func (x *Extractor) extractScript(cr compiledRule, frame framing.Frame, text string) map[string]string {
	_, assigned, err := cr.prog.Run(map[string]script.Value{
		"data": script.StrVal(text),
		"raw":  script.BytesVal(frame.Data),
	})
	if err != nil {
		x.log.Error("extraction script: %v (rule skipped)", &sferr.ScriptError{Phase: "extraction", Err: err})
		return nil
	}
	out := make(map[string]string, len(assigned))
	for name, v := range assigned {
		out[name] = v.Text()
	}
	return out
}

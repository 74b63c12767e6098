package respond

// Response validation: the accept/reject decision applied to each received
// frame before it is treated as a command's response.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/framing"
	"github.com/kbaxter/serialforge/internal/logging"
	"github.com/kbaxter/serialforge/internal/script"
)

// Mode selects the validation policy.
type Mode string

const (
	ModeAlwaysPass Mode = "ALWAYS_PASS"
	ModePattern    Mode = "PATTERN"
	ModeScript     Mode = "SCRIPT"
)

// MatchType selects how ModePattern matches.
type MatchType string

const (
	MatchContains MatchType = "CONTAINS"
	MatchRegex    MatchType = "REGEX"
)

// Config is the authored validation configuration.
type Config struct {
	Mode              Mode             `yaml:"mode"`
	MatchType         MatchType        `yaml:"match_type,omitempty"`
	Pattern           string           `yaml:"pattern,omitempty"`
	TimeoutMs         int              `yaml:"timeout"`
	ValidationScript  string           `yaml:"validation_script,omitempty"`
	ExtractionEnabled bool             `yaml:"extraction_enabled,omitempty"`
	ExtractionRules   []ExtractionRule `yaml:"extraction_rules,omitempty"`
}

// Timeout returns the validation deadline as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate checks mode-specific required fields.
func (c *Config) Validate() error {
	switch c.Mode {
	case "", ModeAlwaysPass:
	case ModePattern:
		if c.Pattern == "" {
			return fmt.Errorf("PATTERN validation needs a pattern")
		}
		switch c.MatchType {
		case "", MatchContains, MatchRegex:
		default:
			return fmt.Errorf("unknown match type %q", c.MatchType)
		}
	case ModeScript:
		if strings.TrimSpace(c.ValidationScript) == "" {
			return fmt.Errorf("SCRIPT validation needs a script")
		}
	default:
		return fmt.Errorf("unknown validation mode %q", c.Mode)
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("validation timeout must not be negative")
	}
	for i := range c.ExtractionRules {
		if err := c.ExtractionRules[i].validate(); err != nil {
			return fmt.Errorf("extraction rule %d: %w", i, err)
		}
	}
	return nil
}

// Validator judges frames against one Config. Patterns and scripts are
// compiled once at construction; a malformed pattern is a ParseError up
// front, not a per-frame failure.
type Validator struct {
	cfg  Config
	re   *regexp.Regexp
	prog *script.Program
	log  *logging.Logger
}

// NewValidator compiles the config.
func NewValidator(cfg Config, log *logging.Logger) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}
	v := &Validator{cfg: cfg, log: log}
	if cfg.Mode == ModePattern && cfg.MatchType == MatchRegex {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, &sferr.ParseError{Input: "validation pattern", Pos: -1, Msg: err.Error()}
		}
		v.re = re
	}
	if cfg.Mode == ModeScript {
		prog, err := script.Compile(cfg.ValidationScript)
		if err != nil {
			return nil, &sferr.ScriptError{Phase: "validation", Err: err}
		}
		v.prog = prog
	}
	return v, nil
}

// Config returns the validator's configuration.
func (v *Validator) Config() Config { return v.cfg }

// Check reports whether the frame passes validation. Script failures are
// logged and count as a rejection, never as a pipeline error.
func (v *Validator) Check(frame framing.Frame) bool {
	text := string(frame.Data)
	switch v.cfg.Mode {
	case "", ModeAlwaysPass:
		return true
	case ModePattern:
		if v.re != nil {
			return v.re.MatchString(text)
		}
		return strings.Contains(text, v.cfg.Pattern)
	case ModeScript:
		result, _, err := v.prog.Run(map[string]script.Value{
			"data": script.StrVal(text),
			"raw":  script.BytesVal(frame.Data),
		})
		if err != nil {
			v.log.Error("validation script: %v (frame rejected)", &sferr.ScriptError{Phase: "validation", Err: err})
			return false
		}
		return result.Truthy()
	default:
		return false
	}
}

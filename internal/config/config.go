// Package config loads and validates command-set documents: the YAML files
// that declare a device's commands, parameters, framing and response
// handling.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/framing"
	"github.com/kbaxter/serialforge/internal/param"
	"github.com/kbaxter/serialforge/internal/payload"
	"github.com/kbaxter/serialforge/internal/respond"
	"github.com/kbaxter/serialforge/internal/varsyntax"
)

// CommandKind distinguishes text-template commands from structured binary
// commands.
type CommandKind string

const (
	KindText   CommandKind = "TEXT"
	KindBinary CommandKind = "BINARY"
)

// VariableSyntax configures the placeholder syntax shared by every command
// template in a document.
type VariableSyntax struct {
	Syntax        varsyntax.Syntax `yaml:"syntax"`
	CustomPattern string           `yaml:"custom_pattern,omitempty"`
	CaseSensitive bool             `yaml:"case_sensitive,omitempty"`
}

// Command is one authored device command.
type Command struct {
	Name        string                    `yaml:"name"`
	Description string                    `yaml:"description,omitempty"`
	Kind        CommandKind               `yaml:"kind"`
	Template    string                    `yaml:"template,omitempty"` // TEXT
	Encoding    string                    `yaml:"encoding,omitempty"` // TEXT; UTF-8 or ASCII
	Structure   *payload.MessageStructure `yaml:"structure,omitempty"`
	Parameters  []*param.CommandParameter `yaml:"parameters,omitempty"`
	Framing     *framing.Config           `yaml:"framing,omitempty"` // per-command override
	Respond     *respond.Config           `yaml:"respond,omitempty"`
}

// Document is one command-set file.
type Document struct {
	Version        int             `yaml:"version"`
	Name           string          `yaml:"name"`
	Description    string          `yaml:"description,omitempty"`
	VariableSyntax VariableSyntax  `yaml:"variable_syntax,omitempty"`
	Framing        *framing.Config `yaml:"framing,omitempty"` // connection default
	Commands       []Command       `yaml:"commands"`
}

// Parse decodes and validates a command-set document.
func Parse(data []byte) (*Document, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse command set: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile loads a command-set document from disk. Errors carry the path and
// a pointer at the validate subcommand.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sferr.WrapConfigError(err, path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, sferr.WrapConfigError(err, path)
	}
	return doc, nil
}

// Matcher builds the document's placeholder matcher.
func (d *Document) Matcher() (*varsyntax.Matcher, error) {
	syntax := d.VariableSyntax.Syntax
	if syntax == "" {
		syntax = varsyntax.SyntaxShell
	}
	return varsyntax.NewMatcher(syntax, d.VariableSyntax.CustomPattern, d.VariableSyntax.CaseSensitive)
}

// Command returns the named command, or nil.
func (d *Document) Command(name string) *Command {
	for i := range d.Commands {
		if d.Commands[i].Name == name {
			return &d.Commands[i]
		}
	}
	return nil
}

// Validate checks referential integrity across the document: unique command
// and parameter names, placeholders and bindings resolving to declared
// parameters, and per-section config validity.
func (d *Document) Validate() error {
	if d.Version != 1 {
		return fmt.Errorf("unsupported document version %d", d.Version)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("document needs a name")
	}
	matcher, err := d.Matcher()
	if err != nil {
		return err
	}
	if d.Framing != nil {
		if err := d.Framing.Validate(); err != nil {
			return fmt.Errorf("framing: %w", err)
		}
	}
	if len(d.Commands) == 0 {
		return fmt.Errorf("document declares no commands")
	}
	seen := make(map[string]bool, len(d.Commands))
	for i := range d.Commands {
		c := &d.Commands[i]
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("command %d: missing name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("command %q declared twice", c.Name)
		}
		seen[c.Name] = true
		if err := c.validate(matcher); err != nil {
			return fmt.Errorf("command %q: %w", c.Name, err)
		}
	}
	return nil
}

func (c *Command) validate(matcher *varsyntax.Matcher) error {
	byName := make(map[string]*param.CommandParameter, len(c.Parameters))
	for _, p := range c.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("parameter with empty name")
		}
		if _, dup := byName[p.Name]; dup {
			return fmt.Errorf("parameter %q declared twice", p.Name)
		}
		if _, err := param.ParseType(string(p.Type)); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		if err := p.Application.Validate(); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		byName[p.Name] = p
	}

	switch c.Kind {
	case KindText:
		if c.Template == "" {
			return fmt.Errorf("TEXT command needs a template")
		}
		if _, err := payload.ParseEncoding(c.Encoding); err != nil {
			return err
		}
		for _, name := range matcher.Variables(c.Template) {
			if _, ok := byName[name]; !ok {
				return fmt.Errorf("template references undefined parameter %q", name)
			}
		}
	case KindBinary:
		if c.Structure == nil {
			return fmt.Errorf("BINARY command needs a structure")
		}
		if err := c.Structure.Validate(byName); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command kind %q", c.Kind)
	}

	if c.Framing != nil {
		if err := c.Framing.Validate(); err != nil {
			return fmt.Errorf("framing: %w", err)
		}
	}
	if c.Respond != nil {
		if err := c.Respond.Validate(); err != nil {
			return fmt.Errorf("respond: %w", err)
		}
	}
	return nil
}

// BuildPayload builds the command's wire bytes from caller-supplied values.
// TEXT commands go through template substitution; BINARY commands through
// structured assembly.
func (c *Command) BuildPayload(b *payload.Builder, matcher *varsyntax.Matcher, values map[string]string) ([]byte, error) {
	switch c.Kind {
	case KindText:
		enc, err := payload.ParseEncoding(c.Encoding)
		if err != nil {
			return nil, err
		}
		_, data, err := b.BuildText(c.Template, matcher, c.Parameters, values, enc)
		if err != nil {
			return nil, &sferr.BuildError{Command: c.Name, Reason: "text build", Err: err}
		}
		return data, nil
	case KindBinary:
		data, err := b.BuildStructured(c.Structure, c.Parameters, values, nil)
		if err != nil {
			return nil, &sferr.BuildError{Command: c.Name, Reason: "structured build", Err: err}
		}
		return data, nil
	default:
		return nil, &sferr.BuildError{Command: c.Name, Reason: fmt.Sprintf("unknown command kind %q", c.Kind)}
	}
}

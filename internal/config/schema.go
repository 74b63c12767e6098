package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// documentSchema is the structural contract for command-set documents. It
// catches shape errors (wrong types, unknown enum tags, missing required
// keys) before the referential checks in Document.Validate run.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "name", "commands"],
  "properties": {
    "version": {"type": "integer"},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "variable_syntax": {
      "type": "object",
      "properties": {
        "syntax": {"enum": ["SHELL", "MUSTACHE", "BATCH", "COLON", "BRACES", "CUSTOM"]},
        "custom_pattern": {"type": "string"},
        "case_sensitive": {"type": "boolean"}
      }
    },
    "framing": {"$ref": "#/definitions/framing"},
    "commands": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "kind"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "kind": {"enum": ["TEXT", "BINARY"]},
          "template": {"type": "string"},
          "encoding": {"type": "string"},
          "structure": {"$ref": "#/definitions/structure"},
          "parameters": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "type": {"type": "string"},
                "label": {"type": "string"},
                "default": {"type": "string"},
                "required": {"type": "boolean"},
                "min": {"type": "number"},
                "max": {"type": "number"},
                "options": {"type": "array", "items": {"type": "string"}},
                "application": {"type": "object"}
              }
            }
          },
          "framing": {"$ref": "#/definitions/framing"},
          "respond": {"type": "object"}
        }
      }
    }
  },
  "definitions": {
    "structure": {
      "type": "object",
      "properties": {
        "size": {"type": "integer", "minimum": 0},
        "statics": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["data_hex"],
            "properties": {
              "offset": {"type": "integer", "minimum": 0},
              "data_hex": {"type": "string", "minLength": 1}
            }
          }
        },
        "static_bindings": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["param"],
            "properties": {
              "param": {"type": "string", "minLength": 1},
              "position": {"type": "object"}
            }
          }
        },
        "checksum": {
          "type": "object",
          "required": ["algorithm"],
          "properties": {
            "algorithm": {"enum": ["MOD256", "XOR", "CRC16"]},
            "range_start": {"type": "integer", "minimum": 0},
            "range_end": {"type": "integer", "minimum": 0},
            "offset": {"type": "integer", "minimum": 0},
            "endianness": {"enum": ["LE", "BE"]}
          }
        }
      }
    },
    "framing": {
      "type": "object",
      "required": ["strategy"],
      "properties": {
        "strategy": {"enum": ["NONE", "DELIMITER", "TIMEOUT", "PREFIX_LENGTH", "SCRIPT"]},
        "delimiter": {"type": "string"},
        "timeout": {"type": "integer", "minimum": 0},
        "prefix_length_size": {"type": "integer", "minimum": 1, "maximum": 8},
        "byte_order": {"enum": ["LE", "BE"]},
        "script": {"type": "string"},
        "persistence": {"enum": ["TRANSIENT", "PERSISTENT"]},
        "flush_clock": {"enum": ["IDLE", "INTERVAL"]}
      }
    }
  }
}`

// ValidateSchema checks raw YAML against the document schema.
func ValidateSchema(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse command set: %w", err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("command set does not match schema:\n  %s", strings.Join(problems, "\n  "))
}

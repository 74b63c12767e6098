package errors

// Error taxonomy for the payload encoding and response framing engine.
//
// ParseError and BuildError abort payload construction before any bytes are
// written to a transport. ScriptError is caught at the call site and treated
// as "no effect" so a broken user script cannot corrupt reassembly state.
// TimeoutError and RejectedError are terminal response outcomes, never
// retried by the engine itself.

import (
	"fmt"
	"strings"
	"time"
)

// ParseError reports malformed textual input (hex payloads, delimiters,
// patterns) with the offending character and its position.
type ParseError struct {
	Input string // short description of what was being parsed
	Pos   int    // byte offset of the offending character, -1 if structural
	Char  byte   // offending character, 0 if structural
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("parse %s: %s at position %d (%q)", e.Input, e.Msg, e.Pos, string(e.Char))
	}
	return fmt.Sprintf("parse %s: %s", e.Input, e.Msg)
}

// BuildError reports a payload construction failure: missing or out-of-range
// parameter, overlapping writes, or a bad checksum range.
type BuildError struct {
	Command string // command name, may be empty for ad-hoc builds
	Param   string // parameter name, may be empty
	Reason  string
	Err     error
}

func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString("build payload")
	if e.Command != "" {
		b.WriteString(" for " + e.Command)
	}
	b.WriteString(": ")
	if e.Param != "" {
		b.WriteString("parameter " + e.Param + ": ")
	}
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

// ScriptError reports a failure inside a user script. Phase identifies the
// caller: "framing", "validation", "extraction" or "transform".
type ScriptError struct {
	Phase string
	Err   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s script: %v", e.Phase, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// TimeoutError reports that a validation deadline elapsed with no frame
// received at all.
type TimeoutError struct {
	Configured time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("response timeout after %s", e.Configured)
}

// RejectedError reports that the deadline elapsed after one or more frames
// were received, every one of which failed validation.
type RejectedError struct {
	Frames     int
	Configured time.Duration
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("response rejected: %d frame(s) failed validation within %s", e.Frames, e.Configured)
}

// IoError surfaces a transport read/write failure unchanged.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

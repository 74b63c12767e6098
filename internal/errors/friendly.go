package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError wraps an engine error with context and hints for CLI
// output.
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error { return e.Err }

// WrapConfigError wraps command-set document errors with context.
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Every parameter referenced by a binding or placeholder must be declared",
		Try:     fmt.Sprintf("serialforge validate --config %s", configPath),
		Err:     err,
	}
}

// WrapBuildError wraps payload construction errors with context.
func WrapBuildError(err error, command string) error {
	if err == nil {
		return nil
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to build payload for command %q", command),
		Reason:  err.Error(),
		Hint:    "Check parameter values against their declared type, min/max and required flags",
		Err:     err,
	}
}
